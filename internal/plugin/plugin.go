package plugin

import "context"

// Plugin is the lifecycle contract shared by every processing unit.
type Plugin interface {
	// Descriptor is pure and synchronous.
	Descriptor() Descriptor
	// Initialize may block on I/O or warm-up and must return promptly once
	// ctx is done.
	Initialize(ctx context.Context, cfg Config) error
	// Cleanup is always called during teardown, even when Initialize failed
	// or was never called. It must tolerate partially initialised state.
	Cleanup(ctx context.Context) error
}

// HealthChecker is implemented by plugins that can report their own health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) Health
}

// Factory builds a fresh, uninitialised plugin value.
type Factory func() Plugin
