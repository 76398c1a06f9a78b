package testutil

import "time"

// ExecutionRecord is when a node started and when it returned.
type ExecutionRecord struct {
	Start time.Time
	End   time.Time
}
