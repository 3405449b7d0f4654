package models

import (
	"encoding/json"
	"time"
)

// AlertType is serialized to text only at the storage boundary.
type AlertType string

const (
	AlertMissedJob   AlertType = "MISSED_JOB"
	AlertLongRunning AlertType = "LONG_RUNNING"
)

func (t AlertType) Valid() bool {
	return t == AlertMissedJob || t == AlertLongRunning
}

type Job struct {
	JobID             string    `json:"job_id"`
	Schedule          string    `json:"schedule"`
	ToleranceMinutes  int       `json:"tolerance_minutes"`
	MaxRuntimeMinutes int       `json:"max_runtime_minutes"`
	Paused            bool      `json:"paused"`
	CreatedAt         time.Time `json:"created_at"`
	LastRun           *Run      `json:"last_run,omitempty"` // For list view
}

// HealthCheck reports whether the job has no maximum runtime: start and end
// are recorded in one call and long-running detection never applies.
func (j Job) HealthCheck() bool {
	return j.MaxRuntimeMinutes <= 0
}

func (j Job) Tolerance() time.Duration {
	return time.Duration(j.ToleranceMinutes) * time.Minute
}

func (j Job) MaxRuntime() time.Duration {
	return time.Duration(j.MaxRuntimeMinutes) * time.Minute
}

type Run struct {
	ID             string          `json:"id"`
	JobID          string          `json:"job_id"`
	StartTime      time.Time       `json:"start_time"`
	EndTime        *time.Time      `json:"end_time,omitempty"`
	Duration       *float64        `json:"duration,omitempty"` // seconds
	ClientMetadata json.RawMessage `json:"client_metadata,omitempty"`
}

// Open reports whether the run has started but not ended.
func (r Run) Open() bool {
	return r.EndTime == nil
}

type Alert struct {
	ID                string     `json:"id"`
	JobID             string     `json:"job_id"`
	Type              AlertType  `json:"alert_type"`
	AnchorTime        time.Time  `json:"-"`
	ExpectedStartTime *time.Time `json:"expected_start_time,omitempty"`
	ActualStartTime   *time.Time `json:"actual_start_time,omitempty"`
	DetectedTime      time.Time  `json:"detected_time"`
	Message           string     `json:"alert_message"`
	Acknowledged      bool       `json:"acknowledged"`
}
