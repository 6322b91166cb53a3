// Package responses defines the JSON payloads the admin endpoints return.
package responses

import "time"

// HealthResponse reports process liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Uptime    float64   `json:"uptime_seconds"`
}

// StatusResponse reports the daemon's current publish configuration and
// activity. Returned by /api/status and used by the panel page.
type StatusResponse struct {
	Status           string     `json:"status"`
	Version          string     `json:"version"`
	BuildDir         string     `json:"build_dir"`
	BucketConfigured bool       `json:"bucket_configured"`
	Bucket           string     `json:"bucket,omitempty"`
	PostPublish      string     `json:"post_publish,omitempty"`
	RunInProgress    bool       `json:"run_in_progress"`
	LastRun          *RunRecord `json:"last_run,omitempty"`
}

// RunRecord is one historical run as the API reports it.
type RunRecord struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	Trigger    string    `json:"trigger"`
	Outcome    string    `json:"outcome"`
	Message    string    `json:"message,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// RunsResponse wraps the run history listing.
type RunsResponse struct {
	Runs []RunRecord `json:"runs"`
}

// RunAccepted is returned when a JSON client triggers a run without
// requesting a progress stream.
type RunAccepted struct {
	RunID   string `json:"run_id"`
	Action  string `json:"action"`
	Success bool   `json:"success"`
	Outcome string `json:"outcome"`
	Message string `json:"message,omitempty"`
}
