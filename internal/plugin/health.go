package plugin

// HealthState is the coarse health of a plugin instance.
type HealthState int

const (
	HealthUnknown HealthState = iota
	HealthHealthy
	HealthDegraded
	HealthUnhealthy
)

func (s HealthState) String() string {
	switch s {
	case HealthHealthy:
		return "healthy"
	case HealthDegraded:
		return "degraded"
	case HealthUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Health is the result of a health check. Reason is set for Degraded and
// Unhealthy.
type Health struct {
	State  HealthState `json:"state"`
	Reason string      `json:"reason,omitempty"`
}

func Healthy() Health                { return Health{State: HealthHealthy} }
func Unknown() Health                { return Health{State: HealthUnknown} }
func Degraded(reason string) Health  { return Health{State: HealthDegraded, Reason: reason} }
func Unhealthy(reason string) Health { return Health{State: HealthUnhealthy, Reason: reason} }

func (h Health) String() string {
	if h.Reason == "" {
		return h.State.String()
	}
	return h.State.String() + ": " + h.Reason
}

// MarshalText renders the state name so health maps encode readably.
func (s HealthState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
