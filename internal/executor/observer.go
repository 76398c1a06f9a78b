package executor

import (
	"context"
	"time"

	"github.com/specialistvlad/ttrpgconv/internal/node"
)

// NodeResult is the outcome of one node.
type NodeResult struct {
	RunID    string
	ID       string
	Status   node.Status
	Err      error
	Duration time.Duration
}

// Observer is notified as a run progresses. Calls for different nodes may
// arrive concurrently.
type Observer interface {
	NodeFinished(ctx context.Context, res NodeResult)
	RunFinished(ctx context.Context, report *Report)
}

// Observers fans notifications out to several observers in order.
type Observers []Observer

func (o Observers) NodeFinished(ctx context.Context, res NodeResult) {
	for _, obs := range o {
		obs.NodeFinished(ctx, res)
	}
}

func (o Observers) RunFinished(ctx context.Context, report *Report) {
	for _, obs := range o {
		obs.RunFinished(ctx, report)
	}
}
