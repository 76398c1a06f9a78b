// Package console provides a logging plugin that prints orchestration events
// to a writer, one line per event.
package console

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/specialistvlad/ttrpgconv/internal/plugin"
	"github.com/specialistvlad/ttrpgconv/internal/registry"
)

// Kind is the registry kind of the console plugin.
const Kind = "console"

// Module implements the registry.Module interface for this package.
type Module struct {
	// Out receives the printed events. Defaults to os.Stdout.
	Out io.Writer
}

// Register registers the console plugin kind.
func (m *Module) Register(r *registry.Registry) {
	out := m.Out
	if out == nil {
		out = os.Stdout
	}
	r.RegisterKind(Kind, func() plugin.Plugin { return New(out) })
}

// Plugin prints events. Config keys: "format" ("text" or "json").
type Plugin struct {
	mu     sync.Mutex
	out    io.Writer
	format string
	ready  bool
}

var _ plugin.LoggingPlugin = (*Plugin)(nil)

// New returns an uninitialised console plugin writing to out.
func New(out io.Writer) *Plugin {
	return &Plugin{out: out, format: "text"}
}

func (p *Plugin) Descriptor() plugin.Descriptor {
	return plugin.Descriptor{
		Name:         Kind,
		Version:      "1.0.0",
		Description:  "Prints pipeline events to the console.",
		Capabilities: []string{"logging", "logging:console"},
	}
}

func (p *Plugin) Initialize(ctx context.Context, cfg plugin.Config) error {
	format := cfg.String("format", "text")
	if format != "text" && format != "json" {
		return fmt.Errorf("unsupported console format '%s'", format)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.format = format
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
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.ready {
		return plugin.Degraded("not initialised")
	}
	return plugin.Healthy()
}

// LogEvent prints a single event.
func (p *Plugin) LogEvent(ctx context.Context, ev plugin.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.format == "json" {
		b, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
		_, err = fmt.Fprintln(p.out, string(b))
		return err
	}
	_, err := fmt.Fprintln(p.out, formatText(ev))
	return err
}

func formatText(ev plugin.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", shortID(ev.RunID), ev.Kind)
	if ev.Node != "" {
		fmt.Fprintf(&b, " node=%s", ev.Node)
	}
	if ev.Status != "" {
		fmt.Fprintf(&b, " status=%s", ev.Status)
	}
	if ev.Duration > 0 {
		fmt.Fprintf(&b, " took=%s", ev.Duration.Round(time.Millisecond))
	}
	if ev.Error != "" {
		fmt.Fprintf(&b, " error=%q", ev.Error)
	}

	// Sort keys for consistent output
	keys := make([]string, 0, len(ev.Fields))
	for k := range ev.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, ev.Fields[k])
	}
	return b.String()
}

func shortID(id string) string {
	if id == "" {
		return "-"
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
