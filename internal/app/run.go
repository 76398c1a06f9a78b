package app

import (
	"context"
	"fmt"

	"github.com/specialistvlad/ttrpgconv/internal/ctxlog"
	"github.com/specialistvlad/ttrpgconv/internal/executor"
	"github.com/specialistvlad/ttrpgconv/internal/manager"
	"github.com/specialistvlad/ttrpgconv/internal/registry"
	"github.com/specialistvlad/ttrpgconv/internal/scheduler"
)

// Run discovers plugins, fills the role slots and executes the pipeline.
func (a *App) Run(ctx context.Context) (*executor.Report, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.HealthcheckPort > 0 {
		a.startHealthCheckServer(ctx)
	}
	if err := a.prepare(ctx); err != nil {
		return nil, err
	}

	selected := a.selection()
	if len(selected) == 0 {
		a.logger.Warn("No plugins selected, execution not required.")
		return nil, nil
	}

	report, err := a.manager.RunPipeline(ctx, selected...)
	if err != nil {
		return report, fmt.Errorf("execution failed: %w", err)
	}
	a.logger.Debug("App.Run method finished.")
	return report, nil
}

// Plan discovers plugins and returns the execution batches without running
// anything.
func (a *App) Plan(ctx context.Context) ([]scheduler.Batch, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.prepareCatalogue(ctx)
	selected := a.selection()
	if len(selected) == 0 {
		return nil, nil
	}
	return a.manager.Plan(ctx, selected...)
}

// selection names the plugins a run starts from. Without an explicit
// selection these are the plugins declared in configuration blocks and
// manifests; compiled-in kinds join only as dependencies.
func (a *App) selection() []string {
	if len(a.model.Pipeline.Select) > 0 {
		return a.model.Pipeline.Select
	}
	seen := make(map[string]bool)
	var out []string
	add := func(name string) {
		if !seen[name] && a.registry.IsRegistered(name) {
			seen[name] = true
			out = append(out, name)
		}
	}
	for _, pm := range a.model.Plugins {
		if pm.Enabled {
			add(pm.Name)
		}
	}
	for _, d := range a.registry.List() {
		e, _ := a.registry.Entry(d.Name)
		if e.Origin != registry.OriginStatic && e.Origin != manager.OriginSlot {
			add(d.Name)
		}
	}
	return out
}

// Plugins discovers plugins and returns the catalogue, sorted by name.
func (a *App) Plugins(ctx context.Context) []registry.Entry {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.prepareCatalogue(ctx)
	var out []registry.Entry
	for _, d := range a.registry.List() {
		if e, ok := a.registry.Entry(d.Name); ok {
			out = append(out, e)
		}
	}
	return out
}

// Discover runs plugin discovery and returns how many plugins were added
// along with every discovery problem.
func (a *App) Discover(ctx context.Context) (int, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	return a.manager.DiscoverPlugins(ctx, a.sources...)
}

// prepareCatalogue discovers plugins once. Discovery problems are logged and
// do not stop the application.
func (a *App) prepareCatalogue(ctx context.Context) {
	a.discoverOnce.Do(func() {
		n, err := a.Discover(ctx)
		if err != nil {
			a.logger.Warn("Plugin discovery reported problems.", "error", err)
		}
		a.logger.Debug("Catalogue ready.", "discovered", n, "total", a.registry.Len())
	})
}

// prepare discovers plugins and activates the configured slot plugins.
func (a *App) prepare(ctx context.Context) error {
	a.prepareCatalogue(ctx)
	for _, name := range a.model.Manager.Active {
		if _, exists := a.manager.Lifecycle().Plugin(name); exists {
			continue
		}
		if err := a.manager.ActivateSlot(ctx, name); err != nil {
			return fmt.Errorf("failed to activate plugin '%s': %w", name, err)
		}
	}
	return nil
}
