package plugin

import (
	"context"
	"time"
)

// Event is a single orchestration event delivered to logging plugins.
type Event struct {
	RunID    string         `json:"run_id,omitempty"`
	Kind     string         `json:"kind"`
	Node     string         `json:"node,omitempty"`
	Status   string         `json:"status,omitempty"`
	Duration time.Duration  `json:"duration,omitempty"`
	Error    string         `json:"error,omitempty"`
	Fields   map[string]any `json:"fields,omitempty"`
	Time     time.Time      `json:"time"`
}

// AssetPlugin resolves an asset reference to a local file path.
type AssetPlugin interface {
	Plugin
	FetchAsset(ctx context.Context, ref string) (string, error)
}

// ValidationPlugin checks a decoded document.
type ValidationPlugin interface {
	Plugin
	ValidateDocument(ctx context.Context, doc any) error
}

// LoggingPlugin receives orchestration events.
type LoggingPlugin interface {
	Plugin
	LogEvent(ctx context.Context, ev Event) error
}

// ExportPlugin writes a document to a destination.
type ExportPlugin interface {
	Plugin
	Export(ctx context.Context, doc any, dest string) error
}
