package manager

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/specialistvlad/ttrpgconv/internal/ctxlog"
	"github.com/specialistvlad/ttrpgconv/internal/executor"
	"github.com/specialistvlad/ttrpgconv/internal/graph"
	"github.com/specialistvlad/ttrpgconv/internal/lifecycle"
	"github.com/specialistvlad/ttrpgconv/internal/plugin"
	"github.com/specialistvlad/ttrpgconv/internal/scheduler"
	"github.com/specialistvlad/ttrpgconv/internal/session"
)

// Plan validates the graph for the selected plugins and returns its batches
// without loading anything. An empty selection plans every catalogued plugin.
func (m *Manager) Plan(ctx context.Context, names ...string) ([]scheduler.Batch, error) {
	descriptors, err := m.selectDescriptors(names)
	if err != nil {
		return nil, err
	}
	sess, err := m.sessions.NewSession(ctx, descriptors, executor.NodeRunnerFunc(noopRun), m.settings(""))
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}
	defer sess.Close(ctx)

	if m.cfg.Pipeline.ValidateBeforeRun {
		if _, err := sess.Graph().Validate(ctx); err != nil {
			return nil, err
		}
	}
	return sess.Plan(ctx)
}

// RunPipeline executes the selected plugins in a fresh session. Every plugin
// instance created for the run is torn down before returning, even when the
// run fails or ctx is cancelled.
func (m *Manager) RunPipeline(ctx context.Context, names ...string) (*executor.Report, error) {
	descriptors, err := m.selectDescriptors(names)
	if err != nil {
		return nil, err
	}

	runID := newRunID()
	ctx = ctxlog.WithRunID(ctx, runID)
	logger := ctxlog.FromContext(ctx)

	runner := &lifecycleRunner{m: m, runID: runID}
	sess, err := m.sessions.NewSession(ctx, descriptors, runner, m.settings(runID))
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}
	defer sess.Close(ctx)

	logger.Info("🚀 Starting pipeline run.", "plugins", len(descriptors))
	report, runErr := sess.Execute(ctx)
	if err := runner.teardown(context.WithoutCancel(ctx)); err != nil {
		logger.Warn("Plugin teardown after run failed.", "error", err)
		runErr = errors.Join(runErr, err)
	}
	if report != nil {
		logger.Info("🏁 Pipeline run finished.", "summary", report.String())
	}
	return report, runErr
}

func (m *Manager) settings(runID string) session.Settings {
	observers := append([]executor.Observer{}, m.observers...)
	observers = append(observers, eventObserver{m: m})
	return session.Settings{
		Name:          m.cfg.PipelineName,
		Executor:      m.cfg.Pipeline,
		RequiredRoles: m.cfg.RequiredRoles,
		Observers:     observers,
		RunID:         runID,
	}
}

// selectDescriptors returns the named descriptors plus everything they
// transitively depend on. Dependencies that are not catalogued are kept out
// here and reported by the resolver.
func (m *Manager) selectDescriptors(names []string) ([]plugin.Descriptor, error) {
	if len(names) == 0 {
		return m.registry.List(), nil
	}

	seen := make(map[string]bool)
	var out []plugin.Descriptor
	var visit func(name string)
	visit = func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		d, ok := m.registry.Find(name)
		if !ok {
			return
		}
		out = append(out, d)
		for _, dep := range d.Dependencies {
			visit(dep)
		}
	}

	for _, name := range names {
		if !m.registry.IsRegistered(name) {
			return nil, fmt.Errorf("%w: unknown plugin '%s' selected", graph.ErrMissingDependency, name)
		}
		visit(name)
	}
	return out, nil
}

func noopRun(context.Context, string) error { return nil }

// lifecycleRunner executes a node by loading and starting its plugin.
type lifecycleRunner struct {
	m     *Manager
	runID string

	mu      sync.Mutex
	created []string
}

func (r *lifecycleRunner) RunNode(ctx context.Context, name string) error {
	logger := ctxlog.FromContext(ctx).With("plugin", name)
	if st, err := r.m.lifecycle.State(name); err == nil && st == lifecycle.StateRunning {
		logger.Debug("Plugin already running, reusing instance.")
		return nil
	}

	p, err := r.m.registry.Instantiate(name)
	if err != nil {
		return err
	}
	id := r.runID + "/" + name
	if err := r.m.lifecycle.Add(id, p, r.m.pluginConfig(name)); err != nil {
		return err
	}
	r.mu.Lock()
	r.created = append(r.created, id)
	r.mu.Unlock()

	if err := r.m.lifecycle.Load(ctx, id, nil); err != nil {
		return err
	}
	return r.m.lifecycle.Start(ctx, id)
}

func (r *lifecycleRunner) teardown(ctx context.Context) error {
	r.mu.Lock()
	ids := r.created
	r.created = nil
	r.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := r.m.lifecycle.Teardown(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// eventObserver forwards run events to the active logging plugin.
type eventObserver struct {
	m *Manager
}

func (o eventObserver) NodeFinished(ctx context.Context, res executor.NodeResult) {
	ev := plugin.Event{
		RunID:    res.RunID,
		Kind:     "node_finished",
		Node:     res.ID,
		Status:   res.Status.String(),
		Duration: res.Duration,
	}
	if res.Err != nil {
		ev.Error = res.Err.Error()
	}
	o.send(ctx, ev)
}

func (o eventObserver) RunFinished(ctx context.Context, report *executor.Report) {
	ev := plugin.Event{
		RunID:    report.RunID,
		Kind:     "run_finished",
		Duration: report.TotalDuration,
		Fields: map[string]any{
			"executed": report.Stats.Executed,
			"failed":   report.Stats.Failed,
			"skipped":  report.Stats.Skipped,
		},
	}
	if err := report.Err(); err != nil {
		ev.Status = "failed"
		ev.Error = err.Error()
	} else {
		ev.Status = "succeeded"
	}
	o.send(ctx, ev)
}

func (o eventObserver) send(ctx context.Context, ev plugin.Event) {
	lp := o.m.LoggingPlugin()
	if lp == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	if err := lp.LogEvent(ctx, ev); err != nil {
		ctxlog.FromContext(ctx).Warn("Logging plugin rejected event.", "kind", ev.Kind, "error", err)
	}
}
