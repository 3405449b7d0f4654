package services

import (
	"context"
	"fmt"
	"time"

	"cronwatch/models"
	"cronwatch/schedule"
)

// CheckMissedRun evaluates one unpaused monitored job against its previous
// scheduled occurrence. Returns the alert when one was newly stored, nil
// otherwise. The anchor is the expected start time, so re-evaluating the
// same occurrence never stores a second alert.
func (m *Monitor) CheckMissedRun(ctx context.Context, job models.Job) (*models.Alert, error) {
	if job.Paused || job.HealthCheck() {
		return nil, nil
	}
	now := m.clock.Now().UTC()

	last, err := m.store.LastRun(ctx, job.JobID)
	if err != nil {
		return nil, err
	}

	var expected time.Time
	if interval, sub := schedule.SecondsInterval(job.Schedule); sub {
		var lastStart *time.Time
		if last != nil {
			lastStart = &last.StartTime
		}
		expected = schedule.IntervalOccurrence(interval, lastStart, job.CreatedAt)
	} else {
		expected, err = schedule.Prev(job.Schedule, now)
		if err != nil {
			return nil, err
		}
	}

	windowEnd := expected.Add(job.Tolerance())
	if !now.After(windowEnd) {
		return nil, nil
	}
	// A start at or after the expected occurrence means the job ran,
	// even if it ran ahead of the tolerance window.
	if last != nil && !last.StartTime.Before(expected) {
		return nil, nil
	}

	exists, err := m.store.AlertExists(ctx, job.JobID, models.AlertMissedJob, expected)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, nil
	}

	alert := models.Alert{
		JobID:             job.JobID,
		Type:              models.AlertMissedJob,
		AnchorTime:        expected,
		ExpectedStartTime: &expected,
		DetectedTime:      now,
		Message: fmt.Sprintf("Job %s missed its scheduled run. Expected at %s, tolerance window ended at %s.",
			job.JobID, expected.Format(time.RFC3339), windowEnd.Format(time.RFC3339)),
	}
	inserted, err := m.store.InsertAlert(ctx, alert)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, nil
	}
	return &alert, nil
}

// CheckLongRunning flags an open run that exceeded the job's maximum
// runtime. Paused jobs are still checked: the pause silences schedule
// expectations, not a run that is already consuming resources. The anchor
// is the actual start time.
func (m *Monitor) CheckLongRunning(ctx context.Context, job models.Job) (*models.Alert, error) {
	if job.HealthCheck() {
		return nil, nil
	}

	open, err := m.store.OpenRun(ctx, job.JobID)
	if err != nil {
		return nil, err
	}
	if open == nil {
		return nil, nil
	}

	now := m.clock.Now().UTC()
	runtime := now.Sub(open.StartTime)
	if runtime <= job.MaxRuntime() {
		return nil, nil
	}

	start := open.StartTime.UTC()
	exists, err := m.store.AlertExists(ctx, job.JobID, models.AlertLongRunning, start)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, nil
	}

	alert := models.Alert{
		JobID:           job.JobID,
		Type:            models.AlertLongRunning,
		AnchorTime:      start,
		ActualStartTime: &start,
		DetectedTime:    now,
		Message: fmt.Sprintf("Job %s has been running for longer than its maximum runtime. Started at %s, running for %s, maximum is %d minutes.",
			job.JobID, start.Format(time.RFC3339), runtime.Round(time.Second), job.MaxRuntimeMinutes),
	}
	inserted, err := m.store.InsertAlert(ctx, alert)
	if err != nil {
		return nil, err
	}
	if !inserted {
		return nil, nil
	}
	return &alert, nil
}
