// Package yaml_export provides an export plugin that writes documents as
// YAML files.
package yaml_export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/specialistvlad/ttrpgconv/internal/ctxlog"
	"github.com/specialistvlad/ttrpgconv/internal/fsutil"
	"github.com/specialistvlad/ttrpgconv/internal/plugin"
	"github.com/specialistvlad/ttrpgconv/internal/registry"
	"gopkg.in/yaml.v3"
)

// Kind is the registry kind of the YAML exporter.
const Kind = "yaml_export"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the yaml_export plugin kind.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterKind(Kind, func() plugin.Plugin { return &Plugin{} })
}

// Plugin writes documents as YAML. Config keys: "output_dir" (default "."),
// "indent" (default 2).
type Plugin struct {
	mu        sync.RWMutex
	outputDir string
	indent    int
	ready     bool
}

var _ plugin.ExportPlugin = (*Plugin)(nil)

func (p *Plugin) Descriptor() plugin.Descriptor {
	return plugin.Descriptor{
		Name:         Kind,
		Version:      "1.0.0",
		Description:  "Writes converted documents as YAML.",
		Capabilities: []string{"export", "export:yaml"},
	}
}

func (p *Plugin) Initialize(ctx context.Context, cfg plugin.Config) error {
	indent := 2
	switch v := cfg["indent"].(type) {
	case nil:
	case int:
		indent = v
	case float64:
		indent = int(v)
	default:
		return fmt.Errorf("config key 'indent': unsupported value of type %T", v)
	}
	if indent < 1 {
		return fmt.Errorf("config key 'indent' must be positive, got %d", indent)
	}

	dir := fsutil.ExpandHome(cfg.String("output_dir", "."))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.outputDir = dir
	p.indent = indent
	p.ready = true
	return nil
}

func (p *Plugin) Cleanup(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ready = false
	return nil
}

func (p *Plugin) HealthCheck(ctx context.Context) plugin.Health {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.ready {
		return plugin.Degraded("not initialised")
	}
	return plugin.Healthy()
}

// Export encodes doc and writes it to dest. A relative dest is resolved
// against output_dir. The file is replaced atomically.
func (p *Plugin) Export(ctx context.Context, doc any, dest string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.RLock()
	dir, indent, ready := p.outputDir, p.indent, p.ready
	p.mu.RUnlock()
	if !ready {
		return fmt.Errorf("yaml_export plugin is not initialised")
	}

	target := fsutil.ExpandHome(dest)
	if !filepath.IsAbs(target) {
		target = filepath.Join(dir, target)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".export-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := yaml.NewEncoder(tmp)
	enc.SetIndent(indent)
	if err := enc.Encode(doc); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode document: %w", err)
	}
	if err := enc.Close(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	ctxlog.FromContext(ctx).Debug("Document exported.", "path", target)
	return nil
}
