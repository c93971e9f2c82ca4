package platform

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"

	"genport/internal/vfs"

	"github.com/atotto/clipboard"
)

// NativePlatform runs directly on the host operating system.
type NativePlatform struct{}

// NewNativePlatform returns the host-backed platform.
func NewNativePlatform() *NativePlatform {
	return &NativePlatform{}
}

func (p *NativePlatform) Name() string { return "native" }

func (p *NativePlatform) Capabilities() Capabilities {
	return Capabilities{
		FileSystem:   true,
		Shell:        true,
		Git:          true,
		Clipboard:    !clipboard.Unsupported,
		Process:      true,
		ChildProcess: true,
	}
}

func (p *NativePlatform) CreateFileSystem() (vfs.FileSystem, error) {
	return vfs.NewNativeFS("")
}

func (p *NativePlatform) CreateShell() (Shell, error) {
	return &hostShell{}, nil
}

func (p *NativePlatform) Environ() []string { return os.Environ() }

func (p *NativePlatform) Getenv(key string) string { return os.Getenv(key) }

func (p *NativePlatform) Exit(code int) { os.Exit(code) }

func (p *NativePlatform) StoragePath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(base, "genport")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

func (p *NativePlatform) ReadClipboard(ctx context.Context) (string, error) {
	if clipboard.Unsupported {
		return "", unsupported(p.Name(), "clipboard")
	}
	return clipboard.ReadAll()
}

func (p *NativePlatform) WriteClipboard(ctx context.Context, text string) error {
	if clipboard.Unsupported {
		return unsupported(p.Name(), "clipboard")
	}
	return clipboard.WriteAll(text)
}

// hostShell runs commands through /bin/sh.
type hostShell struct{}

func (s *hostShell) Exec(ctx context.Context, command string) (ExecResult, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := ExecResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, err
	}
	return result, nil
}
