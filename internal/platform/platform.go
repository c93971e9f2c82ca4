// Package platform abstracts the host environment: filesystem, shell,
// clipboard, process control. Two implementations exist, native and sandbox.
package platform

import (
	"context"
	"fmt"

	"genport/internal/vfs"
)

// Capabilities reports what a platform can do. Callers check before using
// an optional surface.
type Capabilities struct {
	FileSystem   bool
	Shell        bool
	Git          bool
	Clipboard    bool
	Process      bool
	ChildProcess bool
}

// Platform is the host abstraction. Implementations are safe for concurrent
// use.
type Platform interface {
	Name() string
	Capabilities() Capabilities

	CreateFileSystem() (vfs.FileSystem, error)
	CreateShell() (Shell, error)

	// Environ returns the environment visible to this platform.
	Environ() []string
	Getenv(key string) string

	// Exit terminates the platform's process model with the given code.
	Exit(code int)

	// StoragePath returns a writable directory for application state.
	StoragePath() (string, error)

	ReadClipboard(ctx context.Context) (string, error)
	WriteClipboard(ctx context.Context, text string) error
}

// UnsupportedCapabilityError is returned when a platform is asked for a
// surface it does not provide.
type UnsupportedCapabilityError struct {
	Platform   string
	Capability string
}

func (e *UnsupportedCapabilityError) Error() string {
	return fmt.Sprintf("platform %s does not support %s", e.Platform, e.Capability)
}

func unsupported(platform, capability string) error {
	return &UnsupportedCapabilityError{Platform: platform, Capability: capability}
}
