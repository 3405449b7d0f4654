// Package services holds the schedule compliance engine: the start/end run
// protocol, the missed-run and long-running detectors, and the poller that
// drives them. Everything here talks to persistence through the Store
// contract and to time through the Clock, so the whole engine can be driven
// deterministically in tests.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cronwatch/db"
	"cronwatch/models"
	"cronwatch/schedule"
)

// ErrHealthCheckEnd is returned for a manual end signal on a job with no
// maximum runtime; health-check jobs close their run within the start call.
var ErrHealthCheckEnd = errors.New("health-check jobs do not accept an end signal")

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func SystemClock() Clock { return systemClock{} }

// Store is the slice of the persistence layer the engine needs. *db.Store
// satisfies it; tests use an in-memory fake. Multi-step operations
// (StartRun, InsertAlert) are atomic on the store side.
type Store interface {
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
	ListJobs(ctx context.Context) ([]models.Job, error)
	SetPaused(ctx context.Context, jobID string, paused bool) error
	OpenRun(ctx context.Context, jobID string) (*models.Run, error)
	LastRun(ctx context.Context, jobID string) (*models.Run, error)
	StartRun(ctx context.Context, jobID string, meta []byte, start time.Time, autoClose bool) (*models.Run, error)
	CloseRun(ctx context.Context, runID string, end time.Time) (float64, error)
	InsertAlert(ctx context.Context, a models.Alert) (bool, error)
	AlertExists(ctx context.Context, jobID string, typ models.AlertType, anchor time.Time) (bool, error)
	GetAlert(ctx context.Context, alertID string) (*models.Alert, error)
	ListAlerts(ctx context.Context, f db.AlertFilter) ([]models.Alert, error)
	AcknowledgeAlerts(ctx context.Context, jobID string, typ models.AlertType) (int64, error)
}

type Monitor struct {
	store Store
	clock Clock
}

func NewMonitor(store Store, clock Clock) *Monitor {
	if clock == nil {
		clock = SystemClock()
	}
	return &Monitor{store: store, clock: clock}
}

// StartResult carries the new run plus an advisory when the start fell
// outside both compliance windows. The advisory is a best-effort nudge to
// the caller; it is never persisted as an alert.
type StartResult struct {
	Run      *models.Run
	Advisory string
}

// StartJob records a start signal. Health-check jobs are closed in the same
// call; monitored jobs fail with db.ErrAlreadyRunning while a run is open.
func (m *Monitor) StartJob(ctx context.Context, jobID string, meta []byte) (*StartResult, error) {
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	now := m.clock.Now().UTC()

	last, err := m.store.LastRun(ctx, jobID)
	if err != nil {
		return nil, err
	}
	advisory := m.advisory(*job, last, now)

	run, err := m.store.StartRun(ctx, jobID, meta, now, job.HealthCheck())
	if err != nil {
		return nil, err
	}
	return &StartResult{Run: run, Advisory: advisory}, nil
}

// advisory checks the start time against the compliance windows around both
// the previous and the next occurrence. This is deliberately looser than
// the missed-run detector, which only ever looks backwards.
func (m *Monitor) advisory(job models.Job, last *models.Run, now time.Time) string {
	prev, next, ok := m.occurrences(job, last, now)
	if !ok {
		return ""
	}
	tol := job.Tolerance()
	if schedule.InWindow(prev, tol, now) || schedule.InWindow(next, tol, now) {
		return ""
	}

	prevLo, prevHi := schedule.Window(prev, tol)
	nextLo, nextHi := schedule.Window(next, tol)
	missedBy := now.Sub(prevHi)
	if wait := nextLo.Sub(now); wait < missedBy {
		missedBy = wait
	}
	return fmt.Sprintf(
		"Job %s started outside its scheduled window. Previous window %s to %s, next window %s to %s, started at %s (nearest window missed by %s). Tolerance: %d minutes.",
		job.JobID,
		prevLo.Format(time.RFC3339), prevHi.Format(time.RFC3339),
		nextLo.Format(time.RFC3339), nextHi.Format(time.RFC3339),
		now.Format(time.RFC3339),
		missedBy.Round(time.Second),
		job.ToleranceMinutes,
	)
}

// occurrences resolves the previous and next occurrence for either dialect.
func (m *Monitor) occurrences(job models.Job, last *models.Run, now time.Time) (prev, next time.Time, ok bool) {
	if interval, sub := schedule.SecondsInterval(job.Schedule); sub {
		var lastStart *time.Time
		if last != nil {
			lastStart = &last.StartTime
		}
		prev = schedule.IntervalOccurrence(interval, lastStart, job.CreatedAt)
		return prev, prev.Add(interval), true
	}
	prev, err := schedule.Prev(job.Schedule, now)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	next, err = schedule.Next(job.Schedule, now)
	if err != nil {
		return time.Time{}, time.Time{}, false
	}
	return prev, next, true
}

type EndResult struct {
	RunID    string
	Duration float64 // seconds
}

// EndJob closes the open run and computes its duration.
func (m *Monitor) EndJob(ctx context.Context, jobID string) (*EndResult, error) {
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.HealthCheck() {
		return nil, fmt.Errorf("job %s: %w", jobID, ErrHealthCheckEnd)
	}

	open, err := m.store.OpenRun(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if open == nil {
		return nil, fmt.Errorf("job %s: %w", jobID, db.ErrNotRunning)
	}

	duration, err := m.store.CloseRun(ctx, open.ID, m.clock.Now())
	if err != nil {
		return nil, err
	}
	return &EndResult{RunID: open.ID, Duration: duration}, nil
}

// PauseJob exempts the job from the missed-run detector. An already-open
// run is unaffected.
func (m *Monitor) PauseJob(ctx context.Context, jobID string) error {
	return m.store.SetPaused(ctx, jobID, true)
}

func (m *Monitor) ResumeJob(ctx context.Context, jobID string) error {
	return m.store.SetPaused(ctx, jobID, false)
}

// Status is the job plus its latest run and the derived schedule bounds.
type Status struct {
	models.Job
	LastRun          *models.Run `json:"last_run,omitempty"`
	NextScheduledRun *time.Time  `json:"next_scheduled_run,omitempty"`
	LastScheduledRun *time.Time  `json:"last_scheduled_run,omitempty"`
}

func (m *Monitor) JobStatus(ctx context.Context, jobID string) (*Status, error) {
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	last, err := m.store.LastRun(ctx, jobID)
	if err != nil {
		return nil, err
	}

	st := &Status{Job: *job, LastRun: last}
	if prev, next, ok := m.occurrences(*job, last, m.clock.Now().UTC()); ok {
		st.LastScheduledRun = &prev
		st.NextScheduledRun = &next
	}
	return st, nil
}
