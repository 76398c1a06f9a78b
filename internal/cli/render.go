package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/specialistvlad/ttrpgconv/internal/executor"
	"github.com/specialistvlad/ttrpgconv/internal/registry"
	"github.com/specialistvlad/ttrpgconv/internal/scheduler"
	"gopkg.in/yaml.v3"
)

// pluginInfo is the serialised form of a catalogue entry.
type pluginInfo struct {
	Name         string   `json:"name"                   yaml:"name"`
	Version      string   `json:"version"                yaml:"version"`
	Role         string   `json:"role"                   yaml:"role"`
	Kind         string   `json:"kind,omitempty"         yaml:"kind,omitempty"`
	Capabilities []string `json:"capabilities,omitempty" yaml:"capabilities,omitempty"`
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	Origin       string   `json:"origin"                 yaml:"origin"`
}

func toPluginInfos(entries []registry.Entry) []pluginInfo {
	out := make([]pluginInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, pluginInfo{
			Name:         e.Descriptor.Name,
			Version:      e.Descriptor.Version,
			Role:         e.Descriptor.Role().String(),
			Kind:         e.Kind,
			Capabilities: e.Descriptor.Capabilities,
			Dependencies: e.Descriptor.Dependencies,
			Origin:       e.Origin,
		})
	}
	return out
}

var pluginRenderers = map[string]func(io.Writer, []registry.Entry) error{
	"table": renderPluginTable,
	"json":  renderPluginJSON,
	"yaml":  renderPluginYAML,
}

func renderPluginJSON(w io.Writer, entries []registry.Entry) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(toPluginInfos(entries))
}

func renderPluginYAML(w io.Writer, entries []registry.Entry) error {
	encoder := yaml.NewEncoder(w)
	defer encoder.Close()
	return encoder.Encode(toPluginInfos(entries))
}

func renderPluginTable(w io.Writer, entries []registry.Entry) error {
	t := newTable(w)
	t.AppendHeader(table.Row{"Name", "Version", "Role", "Kind", "Depends On", "Origin"})
	for _, p := range toPluginInfos(entries) {
		kind := p.Kind
		if kind == "" {
			kind = "-"
		}
		t.AppendRow(table.Row{p.Name, p.Version, p.Role, kind, strings.Join(p.Dependencies, ", "), p.Origin})
	}
	t.Render()
	return nil
}

func renderPlan(w io.Writer, batches []scheduler.Batch) error {
	if len(batches) == 0 {
		_, err := fmt.Fprintln(w, "Nothing to run.")
		return err
	}
	t := newTable(w)
	t.AppendHeader(table.Row{"Batch", "Plugins"})
	for i, b := range batches {
		t.AppendRow(table.Row{i + 1, strings.Join(b, ", ")})
	}
	t.Render()
	return nil
}

func renderReport(w io.Writer, report *executor.Report) error {
	status := make(map[string]string)
	for _, id := range report.Executed {
		status[id] = "completed"
	}
	for _, id := range report.Failed {
		status[id] = "failed"
	}
	for _, id := range report.Skipped {
		status[id] = "skipped"
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"Batch", "Plugin", "Status", "Took", "Error"})
	for i, b := range report.Batches {
		for _, id := range b {
			st, ok := status[id]
			if !ok {
				st = "pending"
			}
			took := ""
			if d, ok := report.Durations[id]; ok {
				took = d.Round(time.Millisecond).String()
			}
			errText := ""
			if err := report.Errors[id]; err != nil {
				errText = err.Error()
			}
			t.AppendRow(table.Row{i + 1, id, st, took, errText})
		}
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, AutoMerge: true},
		{Number: 5, WidthMax: 60},
	})
	t.Render()

	_, err := fmt.Fprintf(w, "Run %s: %d executed, %d failed, %d skipped in %s.\n",
		report.RunID, report.Stats.Executed, report.Stats.Failed, report.Stats.Skipped,
		report.TotalDuration.Round(time.Millisecond))
	return err
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	style := table.StyleLight
	style.Options.DrawBorder = false
	t.SetStyle(style)
	return t
}
