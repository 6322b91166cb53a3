package metrics

import "time"

// Outcome labels for run counters.
const (
	OutcomeSuccess = "success"
	OutcomeWarning = "warning"
	OutcomeFailed  = "failed"
)

// Recorder defines observability hooks for run and step metrics.
// Implementations may forward to Prometheus, OpenTelemetry, etc. All methods
// must be safe on the NoopRecorder so injection stays optional.
type Recorder interface {
	ObserveStepDuration(step string, d time.Duration)
	ObserveRunDuration(action string, d time.Duration)
	IncStepResult(step string, success bool)
	IncRunOutcome(action, outcome string)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStepDuration(string, time.Duration) {}
func (NoopRecorder) ObserveRunDuration(string, time.Duration)  {}
func (NoopRecorder) IncStepResult(string, bool)                {}
func (NoopRecorder) IncRunOutcome(string, string)              {}
