package events

import "time"

// Step progress statuses emitted while a run executes.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusError    = "error"
)

// Progress reports one step transition of an in-flight run. These events are
// transient control-flow signals; they exist only for live observers and are
// not persisted.
type Progress struct {
	RunID   string `json:"-"`
	Step    string `json:"step"`
	Status  string `json:"status,omitempty"`
	Label   string `json:"label,omitempty"`
	Message string `json:"message,omitempty"`
	// Success is set only on the terminal {step: "done"} record.
	Success *bool `json:"success,omitempty"`
}

// RunStarted is emitted when the runner begins executing an action.
type RunStarted struct {
	RunID     string
	Action    string
	Trigger   string // "panel", "cli", "schedule"
	StartedAt time.Time
}

// RunFinished is emitted once per run with the terminal outcome. The NATS
// bridge forwards these to external observers when configured.
type RunFinished struct {
	RunID      string    `json:"run_id"`
	Action     string    `json:"action"`
	Trigger    string    `json:"trigger"`
	Success    bool      `json:"success"`
	Message    string    `json:"message,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
