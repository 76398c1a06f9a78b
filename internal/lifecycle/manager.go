package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/specialistvlad/ttrpgconv/internal/ctxlog"
	"github.com/specialistvlad/ttrpgconv/internal/plugin"
)

// DefaultInitTimeout bounds Initialize when no timeout is configured.
const DefaultInitTimeout = 30 * time.Second

// Info is a point-in-time view of one instance.
type Info struct {
	ID         string            `json:"id"`
	Descriptor plugin.Descriptor `json:"descriptor"`
	State      State             `json:"state"`
	Reason     string            `json:"reason,omitempty"`
	LastHealth plugin.Health     `json:"last_health"`
	Since      time.Time         `json:"since"`
}

// Stats counts instances per state.
type Stats struct {
	Total   int           `json:"total"`
	ByState map[State]int `json:"by_state"`
}

// Count returns the number of instances in the given state.
func (s Stats) Count(st State) int {
	return s.ByState[st]
}

type instance struct {
	mu      sync.Mutex
	id      string
	plugin  plugin.Plugin
	config  plugin.Config
	state   State
	reason  string
	health  plugin.Health
	since   time.Time
	cleaned bool
}

func (i *instance) set(st State, reason string) {
	i.state = st
	i.reason = reason
	i.since = time.Now()
}

func (i *instance) info() Info {
	return Info{
		ID:         i.id,
		Descriptor: i.plugin.Descriptor(),
		State:      i.state,
		Reason:     i.reason,
		LastHealth: i.health,
		Since:      i.since,
	}
}

// Option configures a Manager.
type Option func(*Manager)

// WithInitTimeout bounds every Initialize call. Zero disables the bound.
func WithInitTimeout(d time.Duration) Option {
	return func(m *Manager) { m.initTimeout = d }
}

// Manager owns plugin instances and drives their state machine.
type Manager struct {
	mu          sync.RWMutex
	instances   map[string]*instance
	initTimeout time.Duration
}

// New creates an empty lifecycle manager.
func New(opts ...Option) *Manager {
	m := &Manager{
		instances:   make(map[string]*instance),
		initTimeout: DefaultInitTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Add tracks a new instance in the Registered state.
func (m *Manager) Add(id string, p plugin.Plugin, cfg plugin.Config) error {
	if p == nil {
		return fmt.Errorf("instance '%s': plugin cannot be nil", id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.instances[id]; exists {
		return fmt.Errorf("%w: '%s'", ErrInstanceExists, id)
	}
	inst := &instance{id: id, plugin: p, config: cfg}
	inst.set(StateRegistered, "")
	m.instances[id] = inst
	return nil
}

// Load initialises a Registered instance. cfg is layered over the config
// given to Add. A failed or timed-out Initialize leaves the instance Failed.
func (m *Manager) Load(ctx context.Context, id string, cfg plugin.Config) error {
	inst, err := m.get(id)
	if err != nil {
		return err
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if inst.state != StateRegistered {
		return &TransitionError{ID: id, Op: "load", From: inst.state}
	}

	logger := ctxlog.FromContext(ctx).With("plugin", id)
	initCtx, cancel := context.WithCancel(ctx)
	if m.initTimeout > 0 {
		initCtx, cancel = context.WithTimeout(ctx, m.initTimeout)
	}
	defer cancel()

	merged := inst.config.Merge(cfg)
	inst.cleaned = false
	done := make(chan error, 1)
	go func() {
		done <- inst.plugin.Initialize(initCtx, merged)
	}()

	select {
	case err = <-done:
	case <-initCtx.Done():
		err = initCtx.Err()
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("initialize timed out after %s: %w", m.initTimeout, err)
		}
	}
	if err != nil {
		inst.set(StateFailed, err.Error())
		logger.Error("Plugin failed to load.", "error", err)
		return fmt.Errorf("failed to load plugin '%s': %w", id, err)
	}

	inst.set(StateLoaded, "")
	logger.Debug("Plugin loaded.")
	return nil
}

// Start moves a Loaded instance to Running.
func (m *Manager) Start(ctx context.Context, id string) error {
	return m.transition(ctx, id, "start", StateLoaded, StateRunning)
}

// Stop moves a Running instance back to Loaded.
func (m *Manager) Stop(ctx context.Context, id string) error {
	return m.transition(ctx, id, "stop", StateRunning, StateLoaded)
}

// Unload cleans up a Loaded instance and returns it to Registered. A failing
// Cleanup leaves the instance Failed.
func (m *Manager) Unload(ctx context.Context, id string) error {
	inst, err := m.get(id)
	if err != nil {
		return err
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if inst.state != StateLoaded {
		return &TransitionError{ID: id, Op: "unload", From: inst.state}
	}
	if err := m.cleanup(ctx, inst); err != nil {
		inst.set(StateFailed, err.Error())
		return err
	}
	inst.set(StateRegistered, "")
	ctxlog.FromContext(ctx).Debug("Plugin unloaded.", "plugin", id)
	return nil
}

func (m *Manager) transition(ctx context.Context, id, op string, from, to State) error {
	inst, err := m.get(id)
	if err != nil {
		return err
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	if inst.state != from {
		return &TransitionError{ID: id, Op: op, From: inst.state}
	}
	inst.set(to, "")
	ctxlog.FromContext(ctx).Debug("Plugin state changed.", "plugin", id, "from", from, "to", to)
	return nil
}

// HealthCheck reports the health of an instance without changing its state.
func (m *Manager) HealthCheck(ctx context.Context, id string) plugin.Health {
	inst, err := m.get(id)
	if err != nil {
		return plugin.Unhealthy(err.Error())
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()

	var h plugin.Health
	switch inst.state {
	case StateRegistered:
		h = plugin.Unknown()
	case StateFailed:
		h = plugin.Unhealthy(inst.reason)
	default:
		h = plugin.Healthy()
		if hc, ok := inst.plugin.(plugin.HealthChecker); ok {
			h = hc.HealthCheck(ctx)
		}
	}
	inst.health = h
	return h
}

// HealthCheckAll checks every instance.
func (m *Manager) HealthCheckAll(ctx context.Context) map[string]plugin.Health {
	out := make(map[string]plugin.Health)
	for _, id := range m.ids() {
		out[id] = m.HealthCheck(ctx, id)
	}
	return out
}

// State returns the current state of an instance.
func (m *Manager) State(id string) (State, error) {
	inst, err := m.get(id)
	if err != nil {
		return 0, err
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.state, nil
}

// Plugin returns the plugin behind an instance.
func (m *Manager) Plugin(id string) (plugin.Plugin, bool) {
	inst, err := m.get(id)
	if err != nil {
		return nil, false
	}
	return inst.plugin, true
}

// Snapshot returns a view of one instance.
func (m *Manager) Snapshot(id string) (Info, bool) {
	inst, err := m.get(id)
	if err != nil {
		return Info{}, false
	}
	inst.mu.Lock()
	defer inst.mu.Unlock()
	return inst.info(), true
}

// Instances returns a view of every instance, sorted by id.
func (m *Manager) Instances() []Info {
	var out []Info
	for _, id := range m.ids() {
		if info, ok := m.Snapshot(id); ok {
			out = append(out, info)
		}
	}
	return out
}

// Stats counts instances per state.
func (m *Manager) Stats() Stats {
	s := Stats{ByState: make(map[State]int, len(States))}
	for _, info := range m.Instances() {
		s.Total++
		s.ByState[info.State]++
	}
	return s
}

// Teardown stops a Running instance, cleans it up if needed and forgets it.
func (m *Manager) Teardown(ctx context.Context, id string) error {
	m.mu.Lock()
	inst, ok := m.instances[id]
	if ok {
		delete(m.instances, id)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: '%s'", ErrUnknownInstance, id)
	}

	inst.mu.Lock()
	defer inst.mu.Unlock()
	if inst.state == StateRunning {
		ctxlog.FromContext(ctx).Debug("Stopping running plugin before teardown.", "plugin", id)
		inst.set(StateLoaded, "")
	}
	return m.cleanup(ctx, inst)
}

// ShutdownAll tears down every instance. Cleanup errors are joined.
func (m *Manager) ShutdownAll(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	var errs []error
	for _, id := range m.ids() {
		if err := m.Teardown(ctx, id); err != nil {
			logger.Warn("Plugin teardown failed during shutdown.", "plugin", id, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// cleanup calls Cleanup unless it already ran since the last Initialize.
// Callers hold inst.mu.
func (m *Manager) cleanup(ctx context.Context, inst *instance) error {
	if inst.cleaned {
		return nil
	}
	inst.cleaned = true
	if err := inst.plugin.Cleanup(ctx); err != nil {
		return fmt.Errorf("cleanup of plugin '%s' failed: %w", inst.id, err)
	}
	return nil
}

func (m *Manager) get(id string) (*instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.instances[id]
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrUnknownInstance, id)
	}
	return inst, nil
}

func (m *Manager) ids() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.instances))
	for id := range m.instances {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
