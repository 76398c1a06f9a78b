package localexecutor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/specialistvlad/ttrpgconv/internal/ctxlog"
	"github.com/specialistvlad/ttrpgconv/internal/executor"
	"github.com/specialistvlad/ttrpgconv/internal/graph"
	"github.com/specialistvlad/ttrpgconv/internal/node"
	"github.com/specialistvlad/ttrpgconv/internal/scheduler"
	"golang.org/x/sync/errgroup"
)

// ErrRunAborted is the skip reason for nodes left over after a run stopped.
var ErrRunAborted = errors.New("run aborted")

// Option configures an Executor.
type Option func(*Executor)

// WithObserver adds an observer notified of node and run outcomes.
func WithObserver(o executor.Observer) Option {
	return func(e *Executor) {
		if o != nil {
			e.observers = append(e.observers, o)
		}
	}
}

// WithRunID fixes the run id instead of generating one.
func WithRunID(id string) Option {
	return func(e *Executor) { e.runID = id }
}

// Executor implements executor.Executor for local execution.
type Executor struct {
	graph     graph.Graph
	runner    executor.NodeRunner
	cfg       executor.Config
	observers executor.Observers
	runID     string
}

var _ executor.Executor = (*Executor)(nil)

// New creates a new local executor.
func New(g graph.Graph, runner executor.NodeRunner, cfg executor.Config, opts ...Option) *Executor {
	if cfg.MaxParallel < 1 {
		cfg.MaxParallel = 1
	}
	e := &Executor{graph: g, runner: runner, cfg: cfg}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the batches and returns a report naming the outcome of every
// scheduled node. A structural validation error is returned without a report.
func (e *Executor) Execute(ctx context.Context, batches []scheduler.Batch) (*executor.Report, error) {
	runID := e.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	ctx = ctxlog.WithRunID(ctx, runID)
	logger := ctxlog.FromContext(ctx)

	if e.cfg.ValidateBeforeRun {
		if _, err := e.graph.Validate(ctx); err != nil {
			logger.Error("Pipeline validation failed, nothing was run.", "error", err)
			return nil, err
		}
	}

	report := executor.NewReport(runID, batches)
	start := time.Now()
	logger.Info("▶️ Starting run.", "batches", len(batches), "max_parallel", e.cfg.MaxParallel, "continue_on_error", e.cfg.ContinueOnError)

	var runErr error
	for i, batch := range batches {
		if runErr == nil && ctx.Err() != nil {
			runErr = fmt.Errorf("%w: %w", ErrRunAborted, ctx.Err())
		}
		if runErr != nil {
			e.skipAll(ctx, report, runID, batch, runErr)
			continue
		}

		logger.Debug("Starting batch.", "batch", i+1, "nodes", batch)
		var failures []error
		for _, res := range e.runBatch(ctx, runID, batch) {
			report.Record(res)
			if res.Status == node.StatusFailed {
				failures = append(failures, res.Err)
			}
		}

		switch {
		case ctx.Err() != nil:
			runErr = fmt.Errorf("%w during batch %d: %w", ErrRunAborted, i+1, ctx.Err())
		case len(failures) > 0 && !e.cfg.ContinueOnError:
			runErr = fmt.Errorf("%w after batch %d: %w", ErrRunAborted, i+1, errors.Join(failures...))
		}
	}

	report.Finalize(time.Since(start))
	e.observers.RunFinished(ctx, report)

	if runErr != nil {
		logger.Error("Run aborted.", "executed", len(report.Executed), "failed", report.Failed, "skipped", report.Skipped, "error", runErr)
		return report, runErr
	}
	if len(report.Failed) > 0 {
		logger.Warn("Run finished with failures.", "failed", report.Failed, "skipped", report.Skipped)
	} else {
		logger.Info("✅ Run finished.", "executed", len(report.Executed), "duration", report.TotalDuration)
	}
	return report, nil
}

// runBatch executes the members of one batch concurrently and returns their
// results in batch order.
func (e *Executor) runBatch(ctx context.Context, runID string, batch scheduler.Batch) []executor.NodeResult {
	results := make([]executor.NodeResult, len(batch))

	var eg errgroup.Group
	eg.SetLimit(e.cfg.MaxParallel)
	for i, id := range batch {
		eg.Go(func() error {
			if reason := e.blockedBy(ctx, id); reason != nil {
				results[i] = e.skip(ctx, runID, id, reason)
			} else {
				results[i] = e.runNode(ctx, runID, id)
			}
			e.observers.NodeFinished(ctx, results[i])
			return nil
		})
	}
	_ = eg.Wait()
	return results
}

// blockedBy returns a reason when a dependency of id failed or was skipped.
func (e *Executor) blockedBy(ctx context.Context, id string) error {
	deps, err := e.graph.DependenciesOf(ctx, id)
	if err != nil {
		return err
	}
	for _, dep := range deps {
		if st := e.graph.NodeStatus(ctx, dep); st.Blocking() {
			return fmt.Errorf("dependency '%s' %s", dep, st)
		}
	}
	return nil
}

func (e *Executor) runNode(ctx context.Context, runID, id string) executor.NodeResult {
	logger := ctxlog.FromContext(ctx).With("node", id)
	res := executor.NodeResult{RunID: runID, ID: id}

	if err := e.graph.MarkRunning(ctx, id); err != nil {
		res.Status = node.StatusFailed
		res.Err = fmt.Errorf("%w: %w", executor.ErrExecutionFailure, err)
		return res
	}

	nodeCtx, cancel := context.WithCancel(ctx)
	if e.cfg.PerNodeTimeout > 0 {
		nodeCtx, cancel = context.WithTimeout(ctx, e.cfg.PerNodeTimeout)
	}
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		done <- e.runner.RunNode(ctxlog.WithLogger(nodeCtx, logger), id)
	}()

	var err error
	select {
	case err = <-done:
	case <-nodeCtx.Done():
		err = nodeCtx.Err()
	}
	res.Duration = time.Since(start)

	if err == nil {
		res.Status = node.StatusCompleted
		if markErr := e.graph.MarkCompleted(ctx, id, res.Duration); markErr != nil {
			logger.Warn("Failed to record node completion.", "error", markErr)
		}
		logger.Debug("Node finished.", "duration", res.Duration)
		return res
	}

	if errors.Is(nodeCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		err = fmt.Errorf("%w: node '%s' exceeded %s", executor.ErrExecutionTimeout, id, e.cfg.PerNodeTimeout)
	} else {
		err = fmt.Errorf("%w: node '%s': %w", executor.ErrExecutionFailure, id, err)
	}
	res.Status = node.StatusFailed
	res.Err = err
	if markErr := e.graph.MarkFailed(ctx, id, err, res.Duration); markErr != nil {
		logger.Warn("Failed to record node failure.", "error", markErr)
	}
	logger.Error("Node failed.", "duration", res.Duration, "error", err)
	return res
}

func (e *Executor) skip(ctx context.Context, runID, id string, reason error) executor.NodeResult {
	logger := ctxlog.FromContext(ctx)
	if err := e.graph.MarkSkipped(ctx, id, reason); err != nil {
		logger.Warn("Failed to record skipped node.", "node", id, "error", err)
	}
	logger.Warn("Skipping node.", "node", id, "reason", reason)
	return executor.NodeResult{RunID: runID, ID: id, Status: node.StatusSkipped, Err: reason}
}

func (e *Executor) skipAll(ctx context.Context, report *executor.Report, runID string, batch scheduler.Batch, reason error) {
	for _, id := range batch {
		res := e.skip(ctx, runID, id, reason)
		report.Record(res)
		e.observers.NodeFinished(ctx, res)
	}
}
