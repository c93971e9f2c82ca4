package vfs

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/user"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"genport/internal/logging"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// SFTPConfig holds connection configuration for a remote handle store.
type SFTPConfig struct {
	Host          string
	Port          int
	User          string
	KeyPath       string
	KeyPassphrase string
	Password      string // fallback if no key
	Root          string // remote directory the store is rooted at
	Timeout       time.Duration
}

// DefaultSFTPConfig returns a configuration with sensible defaults.
func DefaultSFTPConfig() *SFTPConfig {
	currentUser, _ := user.Current()
	username := "root"
	homeDir := ""
	if currentUser != nil {
		username = currentUser.Username
		homeDir = currentUser.HomeDir
	}

	return &SFTPConfig{
		Port:    22,
		User:    username,
		KeyPath: filepath.Join(homeDir, ".ssh", "id_rsa"),
		Root:    "/",
		Timeout: 30 * time.Second,
	}
}

// SFTPStore is a Storage backed by a remote SFTP server. Each handle carries
// the remote path it refers to; the sandbox backend never sees those paths.
type SFTPStore struct {
	config *SFTPConfig

	mu     sync.Mutex
	conn   *ssh.Client
	client *sftp.Client
}

// NewSFTPStore creates a store. The connection is established lazily on the
// first Root call.
func NewSFTPStore(config *SFTPConfig) *SFTPStore {
	if config == nil {
		config = DefaultSFTPConfig()
	}
	return &SFTPStore{config: config}
}

func (s *SFTPStore) Root(ctx context.Context) (DirHandle, error) {
	client, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	info, err := client.Stat(s.config.Root)
	if err != nil {
		return nil, notFound(s.config.Root)
	}
	if !info.IsDir() {
		return nil, notADirectory(s.config.Root)
	}
	return &sftpDirHandle{store: s, path: s.config.Root}, nil
}

// Close tears down the SFTP session and the SSH connection.
func (s *SFTPStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		s.client.Close()
		s.client = nil
	}
	if s.conn != nil {
		err := s.conn.Close()
		s.conn = nil
		return err
	}
	return nil
}

func (s *SFTPStore) connect(ctx context.Context) (*sftp.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil && s.client != nil {
		if _, _, err := s.conn.SendRequest("keepalive@openssh.com", true, nil); err == nil {
			return s.client, nil
		}
		s.client.Close()
		s.conn.Close()
		s.conn, s.client = nil, nil
	}

	sshConfig, err := s.buildSSHConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to build SSH config: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	logging.Info("connecting to SFTP store", "addr", addr, "user", s.config.User)

	dialer := &net.Dialer{Timeout: s.config.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, sshConfig)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("SSH handshake failed: %w", err)
	}
	s.conn = ssh.NewClient(sshConn, chans, reqs)

	client, err := sftp.NewClient(s.conn)
	if err != nil {
		s.conn.Close()
		s.conn = nil
		return nil, fmt.Errorf("failed to create SFTP client: %w", err)
	}
	s.client = client

	logging.Info("SFTP store connected", "host", s.config.Host, "root", s.config.Root)
	return s.client, nil
}

func (s *SFTPStore) buildSSHConfig() (*ssh.ClientConfig, error) {
	var authMethods []ssh.AuthMethod

	if s.config.KeyPath != "" {
		keyPath := expandHome(s.config.KeyPath)
		if key, err := os.ReadFile(keyPath); err == nil {
			var signer ssh.Signer
			if s.config.KeyPassphrase != "" {
				signer, err = ssh.ParsePrivateKeyWithPassphrase(key, []byte(s.config.KeyPassphrase))
			} else {
				signer, err = ssh.ParsePrivateKey(key)
			}
			if err != nil {
				logging.Warn("failed to parse SSH key", "path", keyPath, "error", err)
			} else {
				authMethods = append(authMethods, ssh.PublicKeys(signer))
			}
		}
	}

	if len(authMethods) == 0 {
		for _, keyFile := range []string{"id_ed25519", "id_ecdsa", "id_rsa"} {
			keyPath := expandHome(filepath.Join("~/.ssh", keyFile))
			if key, err := os.ReadFile(keyPath); err == nil {
				if signer, err := ssh.ParsePrivateKey(key); err == nil {
					authMethods = append(authMethods, ssh.PublicKeys(signer))
					break
				}
			}
		}
	}

	if s.config.Password != "" {
		authMethods = append(authMethods, ssh.Password(s.config.Password))
	}

	if len(authMethods) == 0 {
		return nil, fmt.Errorf("no authentication method available")
	}

	return &ssh.ClientConfig{
		User:            s.config.User,
		Auth:            authMethods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         s.config.Timeout,
	}, nil
}

type sftpDirHandle struct {
	store *SFTPStore
	path  string
}

func (h *sftpDirHandle) Name() string { return path.Base(h.path) }

func (h *sftpDirHandle) Entries(ctx context.Context) ([]Entry, error) {
	client, err := h.store.connect(ctx)
	if err != nil {
		return nil, err
	}
	infos, err := client.ReadDir(h.path)
	if err != nil {
		return nil, notFound(h.path)
	}
	entries := make([]Entry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, Entry{Name: info.Name(), IsDir: info.IsDir()})
	}
	return entries, nil
}

func (h *sftpDirHandle) GetFile(ctx context.Context, name string, create bool) (FileHandle, error) {
	client, err := h.store.connect(ctx)
	if err != nil {
		return nil, err
	}
	child := path.Join(h.path, name)
	info, err := client.Stat(child)
	if err != nil {
		if !create {
			return nil, notFound(name)
		}
		f, err := client.Create(child)
		if err != nil {
			return nil, err
		}
		f.Close()
		return &sftpFileHandle{store: h.store, path: child}, nil
	}
	if info.IsDir() {
		return nil, notAFile(name)
	}
	return &sftpFileHandle{store: h.store, path: child}, nil
}

func (h *sftpDirHandle) GetDirectory(ctx context.Context, name string, create bool) (DirHandle, error) {
	client, err := h.store.connect(ctx)
	if err != nil {
		return nil, err
	}
	child := path.Join(h.path, name)
	info, err := client.Stat(child)
	if err != nil {
		if !create {
			return nil, notFound(name)
		}
		if err := client.Mkdir(child); err != nil {
			return nil, err
		}
		return &sftpDirHandle{store: h.store, path: child}, nil
	}
	if !info.IsDir() {
		return nil, notADirectory(name)
	}
	return &sftpDirHandle{store: h.store, path: child}, nil
}

func (h *sftpDirHandle) Remove(ctx context.Context, name string, recursive bool) error {
	client, err := h.store.connect(ctx)
	if err != nil {
		return err
	}
	child := path.Join(h.path, name)
	info, err := client.Stat(child)
	if err != nil {
		return notFound(name)
	}
	if !info.IsDir() {
		return client.Remove(child)
	}
	if recursive {
		return client.RemoveAll(child)
	}
	entries, err := client.ReadDir(child)
	if err != nil {
		return err
	}
	if len(entries) > 0 {
		return invalidArgument("directory not empty: " + name)
	}
	return client.RemoveDirectory(child)
}

type sftpFileHandle struct {
	store *SFTPStore
	path  string
}

func (h *sftpFileHandle) Name() string { return path.Base(h.path) }

func (h *sftpFileHandle) Read(ctx context.Context) ([]byte, error) {
	client, err := h.store.connect(ctx)
	if err != nil {
		return nil, err
	}
	f, err := client.Open(h.path)
	if err != nil {
		return nil, notFound(h.path)
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (h *sftpFileHandle) Write(ctx context.Context, data []byte) error {
	client, err := h.store.connect(ctx)
	if err != nil {
		return err
	}
	f, err := client.Create(h.path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(data)
	return err
}

func (h *sftpFileHandle) Stat(ctx context.Context) (FileStat, error) {
	client, err := h.store.connect(ctx)
	if err != nil {
		return FileStat{}, err
	}
	info, err := client.Stat(h.path)
	if err != nil {
		return FileStat{}, notFound(h.path)
	}
	return statFor(info.IsDir(), info.Size(), info.ModTime()), nil
}

func expandHome(p string) string {
	if strings.HasPrefix(p, "~/") {
		if usr, err := user.Current(); err == nil {
			return filepath.Join(usr.HomeDir, p[2:])
		}
	}
	return p
}
