// Package localsession provides a concrete implementation of the
// session.Session and session.SessionFactory interfaces for local, in-process
// execution.
package localsession

import (
	"context"
	"sync/atomic"

	"github.com/specialistvlad/ttrpgconv/internal/ctxlog"
	"github.com/specialistvlad/ttrpgconv/internal/executor"
	"github.com/specialistvlad/ttrpgconv/internal/graph"
	"github.com/specialistvlad/ttrpgconv/internal/inmemorystore"
	"github.com/specialistvlad/ttrpgconv/internal/inmemorytopology"
	"github.com/specialistvlad/ttrpgconv/internal/localexecutor"
	"github.com/specialistvlad/ttrpgconv/internal/plugin"
	"github.com/specialistvlad/ttrpgconv/internal/scheduler"
	"github.com/specialistvlad/ttrpgconv/internal/session"
)

// SessionFactory implements session.SessionFactory for local runs.
type SessionFactory struct{}

var _ session.SessionFactory = (*SessionFactory)(nil)

// NewSession creates and configures a new local session.
func (f *SessionFactory) NewSession(
	ctx context.Context,
	descriptors []plugin.Descriptor,
	runner executor.NodeRunner,
	settings session.Settings,
) (session.Session, error) {
	logger := ctxlog.FromContext(ctx)

	graphOpts := []graph.Option{}
	if settings.Name != "" {
		graphOpts = append(graphOpts, graph.WithName(settings.Name))
	}
	if len(settings.RequiredRoles) > 0 {
		graphOpts = append(graphOpts, graph.WithRequiredRoles(graph.RequireRoles(settings.RequiredRoles...)))
	}

	// --- This is where the dependency injection wiring happens ---
	topoStore := inmemorytopology.New()
	nodeStore := inmemorystore.New()
	g := graph.New(topoStore, nodeStore, graphOpts...)
	if err := graph.Assemble(ctx, g, descriptors); err != nil {
		return nil, err
	}
	sched := scheduler.New(g, settings.Executor.MaxParallel)

	execOpts := []localexecutor.Option{localexecutor.WithRunID(settings.RunID)}
	for _, obs := range settings.Observers {
		execOpts = append(execOpts, localexecutor.WithObserver(obs))
	}
	exec := localexecutor.New(g, runner, settings.Executor, execOpts...)
	// --- End of dependency injection ---

	logger.Debug("Local session created.", "graph", g.String())
	return &Session{graph: g, scheduler: sched, executor: exec}, nil
}

// Session implements session.Session for local runs.
type Session struct {
	graph     *graph.Manager
	scheduler scheduler.Scheduler
	executor  executor.Executor
	closed    atomic.Bool
}

// Graph returns the graph built for this session.
func (s *Session) Graph() graph.Graph {
	return s.graph
}

// Plan computes the execution batches.
func (s *Session) Plan(ctx context.Context) ([]scheduler.Batch, error) {
	if s.closed.Load() {
		return nil, session.ErrClosed
	}
	return s.scheduler.Batches(ctx)
}

// Execute plans and runs the pipeline.
func (s *Session) Execute(ctx context.Context) (*executor.Report, error) {
	batches, err := s.Plan(ctx)
	if err != nil {
		return nil, err
	}
	return s.executor.Execute(ctx, batches)
}

// Close marks the session as closed. The in-memory stores need no cleanup.
func (s *Session) Close(ctx context.Context) error {
	if s.closed.Swap(true) {
		return nil
	}
	ctxlog.FromContext(ctx).Debug("Local session closed.", "graph", s.graph.String())
	return nil
}
