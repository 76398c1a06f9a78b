package node

// Status is the execution state of a node within one run.
type Status int

const (
	// StatusPending indicates the node has not been attempted yet.
	StatusPending Status = iota
	// StatusRunning indicates the node's execution unit is in flight.
	StatusRunning
	// StatusCompleted indicates the node finished successfully.
	StatusCompleted
	// StatusFailed indicates the node failed or timed out.
	StatusFailed
	// StatusSkipped indicates the node was not attempted because a
	// dependency failed or the run was aborted.
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status can no longer change during a run.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusSkipped
}

// Blocking reports whether dependents of a node in this status must be skipped.
func (s Status) Blocking() bool {
	return s == StatusFailed || s == StatusSkipped
}
