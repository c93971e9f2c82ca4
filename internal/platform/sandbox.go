package platform

import (
	"context"
	"fmt"
	"sync"

	"genport/internal/vfs"
)

// SandboxPlatform runs against a handle-backed filesystem with a restricted
// shell. It has no clipboard, no git, and cannot spawn processes; Exit marks
// the platform terminated instead of killing the host process.
type SandboxPlatform struct {
	store vfs.Storage
	env   map[string]string

	mu       sync.Mutex
	fs       *vfs.SandboxFS
	exitCode int
	exited   bool
}

// NewSandboxPlatform creates a sandbox over the given store. A nil store
// gets an empty in-memory one.
func NewSandboxPlatform(store vfs.Storage, env map[string]string) *SandboxPlatform {
	if store == nil {
		store = vfs.NewMemStore()
	}
	if env == nil {
		env = map[string]string{}
	}
	return &SandboxPlatform{store: store, env: env}
}

func (p *SandboxPlatform) Name() string { return "sandbox" }

func (p *SandboxPlatform) Capabilities() Capabilities {
	return Capabilities{
		FileSystem: true,
		Shell:      true,
	}
}

func (p *SandboxPlatform) CreateFileSystem() (vfs.FileSystem, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fs == nil {
		p.fs = vfs.NewSandboxFS(p.store)
	}
	return p.fs, nil
}

func (p *SandboxPlatform) CreateShell() (Shell, error) {
	fs, err := p.CreateFileSystem()
	if err != nil {
		return nil, err
	}
	return NewRestrictedShell(fs, p.env), nil
}

func (p *SandboxPlatform) Environ() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.env))
	for k, v := range p.env {
		out = append(out, fmt.Sprintf("%s=%s", k, v))
	}
	return out
}

func (p *SandboxPlatform) Getenv(key string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.env[key]
}

// Exit records the exit code. The sandbox never terminates the host.
func (p *SandboxPlatform) Exit(code int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exitCode = code
	p.exited = true
}

// Exited reports whether Exit was called, and with what code.
func (p *SandboxPlatform) Exited() (bool, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exited, p.exitCode
}

func (p *SandboxPlatform) StoragePath() (string, error) {
	fs, err := p.CreateFileSystem()
	if err != nil {
		return "", err
	}
	if err := fs.Mkdir(context.Background(), "/.genport", true); err != nil {
		return "", err
	}
	return "/.genport", nil
}

func (p *SandboxPlatform) ReadClipboard(ctx context.Context) (string, error) {
	return "", unsupported(p.Name(), "clipboard")
}

func (p *SandboxPlatform) WriteClipboard(ctx context.Context, text string) error {
	return unsupported(p.Name(), "clipboard")
}
