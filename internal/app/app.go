package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/specialistvlad/ttrpgconv/internal/config"
	"github.com/specialistvlad/ttrpgconv/internal/ctxlog"
	"github.com/specialistvlad/ttrpgconv/internal/discovery"
	"github.com/specialistvlad/ttrpgconv/internal/executor"
	"github.com/specialistvlad/ttrpgconv/internal/fsutil"
	"github.com/specialistvlad/ttrpgconv/internal/manager"
	"github.com/specialistvlad/ttrpgconv/internal/metrics"
	"github.com/specialistvlad/ttrpgconv/internal/plugin"
	"github.com/specialistvlad/ttrpgconv/internal/registry"
	"github.com/specialistvlad/ttrpgconv/internal/yamlconf"
)

// OriginConfig marks plugins declared in the configuration files.
const OriginConfig = "config"

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW       io.Writer
	logger     *slog.Logger
	config     *Config
	model      *config.Model
	registry   *registry.Registry
	manager    *manager.Manager
	metrics    *metrics.Recorder
	sources    []registry.Source
	httpServer *http.Server

	discoverOnce sync.Once
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger, registry and
// metrics registry. With no modules given the compiled-in ones are used.
func NewApp(outW io.Writer, appConfig *Config, loader config.Loader, modules ...registry.Module) (*App, error) {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	model, err := loader.Load(ctx, appConfig.ConfigPaths...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	model.Discovery.SearchPaths = append(model.Discovery.SearchPaths, appConfig.PluginPaths...)
	if appConfig.Override != nil {
		appConfig.Override(model)
	}
	logger.Debug("Configuration loaded.", "plugins_declared", len(model.Plugins))

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules(outW)
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All Go modules registered.", "count", len(modules), "kinds", reg.Kinds())

	rec := metrics.NewRecorder()
	mgr := manager.New(reg, managerConfig(model), manager.WithObserver(rec))
	if err := rec.TrackLifecycle(mgr.Lifecycle().Stats); err != nil {
		return nil, fmt.Errorf("failed to register lifecycle metrics: %w", err)
	}

	sources := []registry.Source{configSource(model, reg)}
	if model.Discovery.AllowDynamic {
		loaders, err := manifestLoaders(loader)
		if err != nil {
			return nil, err
		}
		sources = append(sources, discovery.NewManifestSource(model.Discovery, loaders...))
	}

	return &App{
		outW:     outW,
		logger:   logger,
		config:   appConfig,
		model:    model,
		registry: reg,
		manager:  mgr,
		metrics:  rec,
		sources:  sources,
	}, nil
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Manager returns the plugin manager.
func (a *App) Manager() *manager.Manager {
	return a.manager
}

// Model returns the loaded configuration model.
func (a *App) Model() *config.Model {
	return a.model
}

// Close stops the health check server and shuts every plugin down.
func (a *App) Close(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	return errors.Join(a.closeHealthCheckServer(ctx), a.manager.Shutdown(ctx))
}

func managerConfig(model *config.Model) manager.Config {
	cfg := manager.DefaultConfig()
	cfg.ValidateOnRegister = model.Manager.ValidateOnRegister
	cfg.InitTimeout = model.Manager.InitTimeout
	if model.Manager.CacheDir != "" {
		cfg.CacheDir = fsutil.ExpandHome(model.Manager.CacheDir)
	}
	cfg.PipelineName = model.Pipeline.Name
	cfg.RequiredRoles = model.Pipeline.RequiredRoles
	cfg.Pipeline = executor.Config{
		MaxParallel:       model.Pipeline.MaxParallel,
		PerNodeTimeout:    model.Pipeline.PerNodeTimeout,
		ContinueOnError:   model.Pipeline.ContinueOnError,
		ValidateBeforeRun: model.Pipeline.ValidateBeforeRun,
	}
	cfg.Plugins = make(map[string]plugin.Config)
	for _, pm := range model.Plugins {
		if pm.Config != nil {
			cfg.Plugins[pm.Name] = plugin.Config(pm.Config)
		}
	}
	return cfg
}

// configSource offers the plugin blocks of the configuration files. A block
// without a kind that is named after a compiled-in kind only configures that
// plugin and is not offered.
func configSource(model *config.Model, reg *registry.Registry) registry.Source {
	src := registry.SliceSource{Label: OriginConfig}
	for _, pm := range model.Plugins {
		if !pm.Enabled {
			continue
		}
		if _, compiled := reg.Factory(pm.Name); compiled && pm.Kind == "" {
			continue
		}
		src.Items = append(src.Items, registry.Candidate{
			Descriptor: pm.Descriptor(),
			Kind:       pm.Kind,
			Config:     plugin.Config(pm.Config),
			Origin:     pm.Source,
		})
	}
	return src
}

func manifestLoaders(loader config.Loader) ([]config.ManifestLoader, error) {
	var out []config.ManifestLoader
	if ml, ok := loader.(config.ManifestLoader); ok {
		out = append(out, ml)
	}
	yl, err := yamlconf.NewLoader()
	if err != nil {
		return nil, fmt.Errorf("failed to prepare YAML manifest loader: %w", err)
	}
	return append(out, yl), nil
}
