package platform

import (
	"os"
	"sync"
)

// Factory creates and memoizes the process platform. It is injected into
// consumers rather than reached through a package-level singleton, so tests
// can swap platforms without global state leaking between cases.
type Factory struct {
	mu       sync.Mutex
	platform Platform
	build    func() Platform
}

// Option configures a Factory.
type Option func(*Factory)

// WithPlatform pins the factory to a pre-built platform.
func WithPlatform(p Platform) Option {
	return func(f *Factory) {
		f.platform = p
	}
}

// WithBuilder overrides how the platform is constructed on first use.
func WithBuilder(build func() Platform) Option {
	return func(f *Factory) {
		f.build = build
	}
}

// NewFactory creates a factory. Without options, Create detects the
// environment: GENPORT_SANDBOX=1 selects the sandbox platform, anything
// else the native one.
func NewFactory(opts ...Option) *Factory {
	f := &Factory{build: detectPlatform}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create returns the platform, building it on first call.
func (f *Factory) Create() Platform {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.platform == nil {
		f.platform = f.build()
	}
	return f.platform
}

// SetPlatform replaces the memoized platform. Test use only.
func (f *Factory) SetPlatform(p Platform) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.platform = p
}

// Reset drops the memoized platform so the next Create rebuilds it. Test
// use only.
func (f *Factory) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.platform = nil
}

func detectPlatform() Platform {
	if os.Getenv("GENPORT_SANDBOX") == "1" {
		return NewSandboxPlatform(nil, envMap())
	}
	return NewNativePlatform()
}

func envMap() map[string]string {
	env := map[string]string{}
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				env[kv[:i]] = kv[i+1:]
				break
			}
		}
	}
	return env
}
