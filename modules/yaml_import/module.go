// Package yaml_import provides an input plugin that reads a campaign
// document from a YAML file.
package yaml_import

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/specialistvlad/ttrpgconv/internal/ctxlog"
	"github.com/specialistvlad/ttrpgconv/internal/fsutil"
	"github.com/specialistvlad/ttrpgconv/internal/plugin"
	"github.com/specialistvlad/ttrpgconv/internal/registry"
	"gopkg.in/yaml.v3"
)

// Kind is the registry kind of the YAML importer.
const Kind = "yaml_import"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the yaml_import plugin kind.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKind(Kind, func() plugin.Plugin { return &Plugin{} })
}

// Plugin loads one document during Initialize. Config keys: "path" (required).
type Plugin struct {
	mu   sync.RWMutex
	path string
	doc  map[string]any
}

var _ plugin.Plugin = (*Plugin)(nil)

func (p *Plugin) Descriptor() plugin.Descriptor {
	return plugin.Descriptor{
		Name:         Kind,
		Version:      "1.0.0",
		Description:  "Reads a campaign document from a YAML file.",
		Capabilities: []string{"input", "input:yaml"},
	}
}

func (p *Plugin) Initialize(ctx context.Context, cfg plugin.Config) error {
	path := cfg.String("path", "")
	if path == "" {
		return fmt.Errorf("yaml_import requires a 'path'")
	}
	path = fsutil.ExpandHome(path)
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read campaign file: %w", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to parse campaign file %s: %w", path, err)
	}
	if doc == nil {
		return fmt.Errorf("campaign file %s is empty", path)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.path = path
	p.doc = doc
	ctxlog.FromContext(ctx).Debug("Campaign document loaded.", "path", path, "keys", len(doc))
	return nil
}

func (p *Plugin) Cleanup(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc = nil
	return nil
}

func (p *Plugin) HealthCheck(ctx context.Context) plugin.Health {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.doc == nil {
		return plugin.Degraded("no document loaded")
	}
	if !fsutil.Exists(p.path) {
		return plugin.Degraded(fmt.Sprintf("source file %s is gone", p.path))
	}
	return plugin.Healthy()
}

// Document returns the loaded document, or nil before Initialize.
func (p *Plugin) Document() map[string]any {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.doc
}
