package platform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genport/internal/vfs"
)

func TestSandboxPlatformCapabilities(t *testing.T) {
	p := NewSandboxPlatform(nil, nil)
	caps := p.Capabilities()
	assert.True(t, caps.FileSystem)
	assert.True(t, caps.Shell)
	assert.False(t, caps.Clipboard)
	assert.False(t, caps.Git)
	assert.False(t, caps.Process)
}

func TestSandboxPlatformFileSystemMemoized(t *testing.T) {
	p := NewSandboxPlatform(nil, nil)
	fs1, err := p.CreateFileSystem()
	require.NoError(t, err)
	fs2, err := p.CreateFileSystem()
	require.NoError(t, err)
	assert.Same(t, fs1.(*vfs.SandboxFS), fs2.(*vfs.SandboxFS))
}

func TestSandboxPlatformShellSharesFileSystem(t *testing.T) {
	p := NewSandboxPlatform(nil, nil)
	ctx := context.Background()

	fs, err := p.CreateFileSystem()
	require.NoError(t, err)
	require.NoError(t, fs.Mkdir(ctx, "/here", true))

	sh, err := p.CreateShell()
	require.NoError(t, err)
	res, err := sh.Exec(ctx, "cd /here")
	require.NoError(t, err)
	assert.Zero(t, res.ExitCode)
	assert.Equal(t, "/here", fs.Cwd())
}

func TestSandboxPlatformClipboardUnsupported(t *testing.T) {
	p := NewSandboxPlatform(nil, nil)

	_, err := p.ReadClipboard(context.Background())
	var capErr *UnsupportedCapabilityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, "clipboard", capErr.Capability)

	err = p.WriteClipboard(context.Background(), "x")
	assert.ErrorAs(t, err, &capErr)
}

func TestSandboxPlatformExitRecordsCode(t *testing.T) {
	p := NewSandboxPlatform(nil, nil)

	exited, _ := p.Exited()
	assert.False(t, exited)

	p.Exit(42)
	exited, code := p.Exited()
	assert.True(t, exited)
	assert.Equal(t, 42, code)
}

func TestSandboxPlatformStoragePath(t *testing.T) {
	p := NewSandboxPlatform(nil, nil)

	path, err := p.StoragePath()
	require.NoError(t, err)
	assert.Equal(t, "/.genport", path)

	fs, err := p.CreateFileSystem()
	require.NoError(t, err)
	stat, err := fs.Stat(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, stat.IsDirectory)
}

func TestSandboxPlatformEnv(t *testing.T) {
	p := NewSandboxPlatform(nil, map[string]string{"HOME": "/home/u"})
	assert.Equal(t, "/home/u", p.Getenv("HOME"))
	assert.Empty(t, p.Getenv("MISSING"))
	assert.Contains(t, p.Environ(), "HOME=/home/u")
}

func TestFactoryMemoizesAndResets(t *testing.T) {
	builds := 0
	f := NewFactory(WithBuilder(func() Platform {
		builds++
		return NewSandboxPlatform(nil, nil)
	}))

	p1 := f.Create()
	p2 := f.Create()
	assert.Same(t, p1, p2)
	assert.Equal(t, 1, builds)

	f.Reset()
	p3 := f.Create()
	assert.NotSame(t, p1, p3)
	assert.Equal(t, 2, builds)
}

func TestFactoryWithPlatform(t *testing.T) {
	pinned := NewSandboxPlatform(nil, nil)
	f := NewFactory(WithPlatform(pinned))
	assert.Same(t, Platform(pinned), f.Create())

	other := NewSandboxPlatform(nil, nil)
	f.SetPlatform(other)
	assert.Same(t, Platform(other), f.Create())
}

func TestFactoryDetectsSandboxFromEnv(t *testing.T) {
	t.Setenv("GENPORT_SANDBOX", "1")
	p := NewFactory().Create()
	assert.Equal(t, "sandbox", p.Name())
}
