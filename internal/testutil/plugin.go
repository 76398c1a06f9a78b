package testutil

import (
	"context"
	"sync/atomic"

	"github.com/specialistvlad/ttrpgconv/internal/plugin"
)

// FakePlugin is a configurable plugin.Plugin. Hooks left nil succeed.
type FakePlugin struct {
	Desc      plugin.Descriptor
	InitFn    func(ctx context.Context, cfg plugin.Config) error
	CleanupFn func(ctx context.Context) error
	HealthFn  func(ctx context.Context) plugin.Health

	Inits    atomic.Int32
	Cleanups atomic.Int32
	// LastConfig is the config passed to the most recent Initialize call.
	LastConfig atomic.Value
}

var (
	_ plugin.Plugin        = (*FakePlugin)(nil)
	_ plugin.HealthChecker = (*FakePlugin)(nil)
)

// NewFakePlugin returns a fake plugin answering with the given descriptor.
func NewFakePlugin(d plugin.Descriptor) *FakePlugin {
	return &FakePlugin{Desc: d}
}

func (p *FakePlugin) Descriptor() plugin.Descriptor { return p.Desc }

func (p *FakePlugin) Initialize(ctx context.Context, cfg plugin.Config) error {
	p.Inits.Add(1)
	p.LastConfig.Store(cfg)
	if p.InitFn != nil {
		return p.InitFn(ctx, cfg)
	}
	return nil
}

func (p *FakePlugin) Cleanup(ctx context.Context) error {
	p.Cleanups.Add(1)
	if p.CleanupFn != nil {
		return p.CleanupFn(ctx)
	}
	return nil
}

func (p *FakePlugin) HealthCheck(ctx context.Context) plugin.Health {
	if p.HealthFn != nil {
		return p.HealthFn(ctx)
	}
	return plugin.Healthy()
}

// Config returns the config passed to the most recent Initialize call.
func (p *FakePlugin) Config() plugin.Config {
	cfg, _ := p.LastConfig.Load().(plugin.Config)
	return cfg
}
