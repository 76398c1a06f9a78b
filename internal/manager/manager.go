package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	"github.com/specialistvlad/ttrpgconv/internal/ctxlog"
	"github.com/specialistvlad/ttrpgconv/internal/executor"
	"github.com/specialistvlad/ttrpgconv/internal/lifecycle"
	"github.com/specialistvlad/ttrpgconv/internal/localsession"
	"github.com/specialistvlad/ttrpgconv/internal/plugin"
	"github.com/specialistvlad/ttrpgconv/internal/registry"
	"github.com/specialistvlad/ttrpgconv/internal/session"
)

var (
	// ErrInvalidVersion is returned by Register when the version is not semver.
	ErrInvalidVersion = errors.New("invalid plugin version")
	// ErrRoleMismatch is returned when a plugin is offered to the wrong slot.
	ErrRoleMismatch = errors.New("plugin role does not match slot")
)

// Config controls the manager's policies and the pipeline runs it starts.
type Config struct {
	// ValidateOnRegister enforces semver versions at registration.
	ValidateOnRegister bool
	// InitTimeout bounds each plugin's Initialize.
	InitTimeout time.Duration
	// CacheDir is handed to every plugin under plugin.CacheDirKey.
	CacheDir string
	// PipelineName labels runs in logs.
	PipelineName string
	// RequiredRoles overrides the default "at least one input" rule.
	RequiredRoles []plugin.Role
	// Plugins holds per-plugin configuration layered over catalogue entries.
	Plugins  map[string]plugin.Config
	Pipeline executor.Config
}

// DefaultConfig returns the default manager configuration.
func DefaultConfig() Config {
	return Config{
		ValidateOnRegister: true,
		InitTimeout:        lifecycle.DefaultInitTimeout,
		PipelineName:       "pipeline",
		Pipeline:           executor.DefaultConfig(),
	}
}

// Stats summarises the catalogue and the live instances.
type Stats struct {
	Registered    int                 `json:"registered"`
	Active        int                 `json:"active"`
	Failed        int                 `json:"failed"`
	ByRole        map[plugin.Role]int `json:"by_role"`
	DiscoveryTime time.Duration       `json:"discovery_time"`
	LastDiscovery time.Time           `json:"last_discovery"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithSessionFactory replaces the local session factory.
func WithSessionFactory(f session.SessionFactory) Option {
	return func(m *Manager) { m.sessions = f }
}

// WithObserver adds an observer to every run.
func WithObserver(o executor.Observer) Option {
	return func(m *Manager) { m.observers = append(m.observers, o) }
}

// Manager is the plugin manager façade.
type Manager struct {
	cfg       Config
	registry  *registry.Registry
	lifecycle *lifecycle.Manager
	sessions  session.SessionFactory
	observers []executor.Observer

	mu            sync.RWMutex
	slots         map[plugin.Role]string
	discoveryTime time.Duration
	lastDiscovery time.Time
}

// New creates a Manager over reg. Compiled-in modules should already have
// registered their kinds on reg.
func New(reg *registry.Registry, cfg Config, opts ...Option) *Manager {
	m := &Manager{
		cfg:       cfg,
		registry:  reg,
		lifecycle: lifecycle.New(lifecycle.WithInitTimeout(cfg.InitTimeout)),
		sessions:  &localsession.SessionFactory{},
		slots:     make(map[plugin.Role]string),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry returns the catalogue.
func (m *Manager) Registry() *registry.Registry {
	return m.registry
}

// Lifecycle returns the instance lifecycle manager.
func (m *Manager) Lifecycle() *lifecycle.Manager {
	return m.lifecycle
}

// Register catalogues d after applying the registration policy.
func (m *Manager) Register(ctx context.Context, d plugin.Descriptor, opts ...registry.RegisterOption) error {
	if err := m.register(ctx, d, opts...); err != nil {
		return err
	}
	m.warnUnresolved(ctx, d)
	return nil
}

func (m *Manager) register(ctx context.Context, d plugin.Descriptor, opts ...registry.RegisterOption) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if m.cfg.ValidateOnRegister {
		if _, err := semver.NewVersion(d.Version); err != nil {
			return fmt.Errorf("%w: plugin '%s' version '%s': %w", ErrInvalidVersion, d.Name, d.Version, err)
		}
	}
	if err := m.registry.Register(d, opts...); err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Debug("Plugin registered.", "plugin", d.String())
	return nil
}

// warnUnresolved logs dependencies of d that are not catalogued. The
// resolver turns them into errors once a pipeline is built.
func (m *Manager) warnUnresolved(ctx context.Context, d plugin.Descriptor) {
	for _, dep := range d.Dependencies {
		if !m.registry.IsRegistered(dep) {
			ctxlog.FromContext(ctx).Warn("Plugin depends on an unregistered plugin.", "plugin", d.Name, "dependency", dep)
		}
	}
}

// DiscoverPlugins registers the compiled-in plugins first, then every new
// candidate offered by the given sources in order. It returns how many
// plugins were registered. Invalid candidates and failing sources are joined
// into the returned error; the rest are still registered. Unresolved
// dependencies are reported once every source has been registered.
func (m *Manager) DiscoverPlugins(ctx context.Context, sources ...registry.Source) (int, error) {
	logger := ctxlog.FromContext(ctx)
	start := time.Now()

	all := append([]registry.Source{registry.StaticSource(m.registry)}, sources...)
	var errs []error
	var added []plugin.Descriptor
	for _, src := range all {
		candidates, err := m.registry.Discover(ctx, src)
		if err != nil {
			errs = append(errs, err)
		}
		for _, c := range candidates {
			kind := c.Kind
			if kind == "" {
				kind = c.Descriptor.Name
			}
			if _, ok := m.registry.Factory(kind); !ok {
				errs = append(errs, fmt.Errorf("plugin '%s' from %s: %w '%s'", c.Descriptor.Name, c.Origin, registry.ErrUnknownKind, kind))
				continue
			}
			err := m.register(ctx, c.Descriptor, c.Options()...)
			if errors.Is(err, registry.ErrDuplicateRegistration) {
				logger.Warn("Skipping duplicate plugin.", "plugin", c.Descriptor.Name, "origin", c.Origin)
				continue
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("plugin '%s' from %s: %w", c.Descriptor.Name, c.Origin, err))
				continue
			}
			added = append(added, c.Descriptor)
		}
	}
	for _, d := range added {
		m.warnUnresolved(ctx, d)
	}
	count := len(added)
	if err := m.registry.ValidateRegistry(ctx); err != nil {
		errs = append(errs, err)
	}

	took := time.Since(start)
	m.mu.Lock()
	m.discoveryTime = took
	m.lastDiscovery = time.Now()
	m.mu.Unlock()

	logger.Info("Plugin discovery finished.", "registered", count, "total", m.registry.Len(), "took", took)
	return count, errors.Join(errs...)
}

// LoadPlugin instantiates a catalogued plugin and initialises it.
func (m *Manager) LoadPlugin(ctx context.Context, name string) error {
	p, err := m.registry.Instantiate(name)
	if err != nil {
		return err
	}
	if err := m.lifecycle.Add(name, p, m.pluginConfig(name)); err != nil {
		return err
	}
	return m.lifecycle.Load(ctx, name, nil)
}

// StartPlugin moves a loaded plugin to Running.
func (m *Manager) StartPlugin(ctx context.Context, name string) error {
	return m.lifecycle.Start(ctx, name)
}

// StopPlugin moves a running plugin back to Loaded.
func (m *Manager) StopPlugin(ctx context.Context, name string) error {
	return m.lifecycle.Stop(ctx, name)
}

// UnloadPlugin cleans up a loaded (or failed) plugin and forgets the
// instance, so it can be loaded again.
func (m *Manager) UnloadPlugin(ctx context.Context, name string) error {
	st, err := m.lifecycle.State(name)
	if err != nil {
		return err
	}
	if st != lifecycle.StateFailed {
		if err := m.lifecycle.Unload(ctx, name); err != nil {
			return err
		}
	}
	m.clearSlot(name)
	return m.lifecycle.Teardown(ctx, name)
}

// HealthCheckAll checks every live instance.
func (m *Manager) HealthCheckAll(ctx context.Context) map[string]plugin.Health {
	return m.lifecycle.HealthCheckAll(ctx)
}

// Stats returns catalogue and instance counts.
func (m *Manager) Stats() Stats {
	ls := m.lifecycle.Stats()
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{
		Registered:    m.registry.Len(),
		Active:        ls.Count(lifecycle.StateRunning),
		Failed:        ls.Count(lifecycle.StateFailed),
		ByRole:        m.registry.CountByRole(),
		DiscoveryTime: m.discoveryTime,
		LastDiscovery: m.lastDiscovery,
	}
}

// Shutdown tears down every instance and empties the slots.
func (m *Manager) Shutdown(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Shutting down plugin manager.")
	err := m.lifecycle.ShutdownAll(ctx)
	m.mu.Lock()
	clear(m.slots)
	m.mu.Unlock()
	if err != nil {
		logger.Error("Plugin manager shutdown finished with errors.", "error", err)
	}
	return err
}

// pluginConfig layers, lowest first: the cache directory, the catalogue
// entry's config and the configured overrides for name.
func (m *Manager) pluginConfig(name string) plugin.Config {
	cfg := plugin.Config{}
	if m.cfg.CacheDir != "" {
		cfg[plugin.CacheDirKey] = m.cfg.CacheDir
	}
	if e, ok := m.registry.Entry(name); ok {
		cfg = cfg.Merge(e.Config)
	}
	return cfg.Merge(m.cfg.Plugins[name])
}

func newRunID() string {
	return uuid.NewString()
}
