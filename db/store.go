package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"cronwatch/models"
)

func (s *Store) UpsertJob(ctx context.Context, job models.Job) error {
	// Re-configuring keeps the pause flag; paused is only toggled by
	// pause/resume.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (job_id, schedule, tolerance_minutes, max_runtime_minutes)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (job_id) DO UPDATE SET
			schedule = EXCLUDED.schedule,
			tolerance_minutes = EXCLUDED.tolerance_minutes,
			max_runtime_minutes = EXCLUDED.max_runtime_minutes
	`, job.JobID, job.Schedule, job.ToleranceMinutes, job.MaxRuntimeMinutes)
	if err != nil {
		return fmt.Errorf("upsert job %s: %w", job.JobID, err)
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	var j models.Job
	err := s.db.QueryRowContext(ctx, `
		SELECT job_id, schedule, tolerance_minutes, max_runtime_minutes, paused, created_at
		FROM jobs WHERE job_id = $1
	`, jobID).Scan(&j.JobID, &j.Schedule, &j.ToleranceMinutes, &j.MaxRuntimeMinutes, &j.Paused, &j.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	return &j, nil
}

func (s *Store) ListJobs(ctx context.Context) ([]models.Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT job_id, schedule, tolerance_minutes, max_runtime_minutes, paused, created_at
		FROM jobs ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []models.Job{}
	for rows.Next() {
		var j models.Job
		if err := rows.Scan(&j.JobID, &j.Schedule, &j.ToleranceMinutes, &j.MaxRuntimeMinutes, &j.Paused, &j.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// DeleteJob removes the job. Runs and alerts cascade via foreign keys.
func (s *Store) DeleteJob(ctx context.Context, jobID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE job_id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("delete job %s: %w", jobID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}
	return nil
}

func (s *Store) SetPaused(ctx context.Context, jobID string, paused bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE jobs SET paused = $2 WHERE job_id = $1`, jobID, paused)
	if err != nil {
		return fmt.Errorf("set paused %s: %w", jobID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}
	return nil
}

func scanRun(row interface{ Scan(...any) error }) (*models.Run, error) {
	var r models.Run
	var meta []byte
	if err := row.Scan(&r.ID, &r.JobID, &r.StartTime, &r.EndTime, &r.Duration, &meta); err != nil {
		return nil, err
	}
	r.ClientMetadata = meta
	return &r, nil
}

const runColumns = `id, job_id, start_time, end_time, duration, client_metadata`

// OpenRun returns the run with no end time, or nil if the job is idle.
func (s *Store) OpenRun(ctx context.Context, jobID string) (*models.Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx, `
		SELECT `+runColumns+` FROM job_runs
		WHERE job_id = $1 AND end_time IS NULL
	`, jobID))
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("open run %s: %w", jobID, err)
	}
	return r, nil
}

// LastRun returns the most recently started run, or nil if the job never ran.
func (s *Store) LastRun(ctx context.Context, jobID string) (*models.Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx, `
		SELECT `+runColumns+` FROM job_runs
		WHERE job_id = $1 ORDER BY start_time DESC LIMIT 1
	`, jobID))
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("last run %s: %w", jobID, err)
	}
	return r, nil
}

// StartRun inserts a run, enforcing at most one open run per job. The job
// row is locked for the duration of the transaction so two concurrent start
// calls cannot both observe "no open run". autoClose records start and end
// in one step (health-check jobs).
func (s *Store) StartRun(ctx context.Context, jobID string, meta []byte, start time.Time, autoClose bool) (*models.Run, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("start run %s: %w", jobID, err)
	}
	defer tx.Rollback()

	var exists string
	err = tx.QueryRowContext(ctx, `SELECT job_id FROM jobs WHERE job_id = $1 FOR UPDATE`, jobID).Scan(&exists)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("lock job %s: %w", jobID, err)
	}

	if !autoClose {
		var open string
		err = tx.QueryRowContext(ctx, `
			SELECT id FROM job_runs WHERE job_id = $1 AND end_time IS NULL
		`, jobID).Scan(&open)
		if err == nil {
			return nil, fmt.Errorf("job %s: %w", jobID, ErrAlreadyRunning)
		} else if err != sql.ErrNoRows {
			return nil, fmt.Errorf("check open run %s: %w", jobID, err)
		}
	}

	if len(meta) == 0 {
		meta = []byte("{}")
	}

	run := models.Run{JobID: jobID, StartTime: start.UTC(), ClientMetadata: meta}
	if autoClose {
		end := run.StartTime
		zero := 0.0
		run.EndTime = &end
		run.Duration = &zero
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO job_runs (job_id, start_time, end_time, duration, client_metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, jobID, run.StartTime, run.EndTime, run.Duration, meta).Scan(&run.ID)
	if err != nil {
		return nil, fmt.Errorf("insert run %s: %w", jobID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("start run %s: %w", jobID, err)
	}
	return &run, nil
}

// CloseRun sets the end time and returns the duration in seconds.
func (s *Store) CloseRun(ctx context.Context, runID string, end time.Time) (float64, error) {
	var duration float64
	err := s.db.QueryRowContext(ctx, `
		UPDATE job_runs
		SET end_time = $2, duration = EXTRACT(EPOCH FROM ($2::timestamptz - start_time))
		WHERE id = $1 AND end_time IS NULL
		RETURNING duration
	`, runID, end.UTC()).Scan(&duration)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("run %s: %w", runID, ErrNotRunning)
	} else if err != nil {
		return 0, fmt.Errorf("close run %s: %w", runID, err)
	}
	return duration, nil
}

func (s *Store) ListRuns(ctx context.Context, jobID string, limit, offset int) ([]models.Run, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+` FROM job_runs
		WHERE job_id = $1 ORDER BY start_time DESC LIMIT $2 OFFSET $3
	`, jobID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list runs %s: %w", jobID, err)
	}
	defer rows.Close()

	runs := []models.Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// InsertAlert stores an alert keyed by (job_id, alert_type, anchor_time).
// Returns false without error when an alert with the same key already
// exists, which makes detection idempotent across sweeps and restarts.
func (s *Store) InsertAlert(ctx context.Context, a models.Alert) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO job_alerts (job_id, alert_type, anchor_time, expected_start_time,
			actual_start_time, detected_time, alert_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (job_id, alert_type, anchor_time) DO NOTHING
	`, a.JobID, string(a.Type), a.AnchorTime.UTC(), a.ExpectedStartTime, a.ActualStartTime, a.DetectedTime.UTC(), a.Message)
	if err != nil {
		return false, fmt.Errorf("insert alert %s/%s: %w", a.JobID, a.Type, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *Store) AlertExists(ctx context.Context, jobID string, typ models.AlertType, anchor time.Time) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM job_alerts
		WHERE job_id = $1 AND alert_type = $2 AND anchor_time = $3
	`, jobID, string(typ), anchor.UTC()).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("alert exists %s/%s: %w", jobID, typ, err)
	}
	return true, nil
}

// AlertFilter narrows ListAlerts. Zero values mean "no filter".
type AlertFilter struct {
	JobID        string
	Type         models.AlertType
	Acknowledged *bool
	Limit        int
	Offset       int
}

func (s *Store) ListAlerts(ctx context.Context, f AlertFilter) ([]models.Alert, error) {
	query := `
		SELECT id, job_id, alert_type, anchor_time, expected_start_time,
			actual_start_time, detected_time, alert_message, acknowledged
		FROM job_alerts WHERE 1=1`
	args := []any{}
	if f.JobID != "" {
		args = append(args, f.JobID)
		query += fmt.Sprintf(" AND job_id = $%d", len(args))
	}
	if f.Type != "" {
		args = append(args, string(f.Type))
		query += fmt.Sprintf(" AND alert_type = $%d", len(args))
	}
	if f.Acknowledged != nil {
		args = append(args, *f.Acknowledged)
		query += fmt.Sprintf(" AND acknowledged = $%d", len(args))
	}
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	args = append(args, f.Limit)
	query += fmt.Sprintf(" ORDER BY detected_time DESC LIMIT $%d", len(args))
	args = append(args, f.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	alerts := []models.Alert{}
	for rows.Next() {
		var a models.Alert
		var typ string
		if err := rows.Scan(&a.ID, &a.JobID, &typ, &a.AnchorTime, &a.ExpectedStartTime,
			&a.ActualStartTime, &a.DetectedTime, &a.Message, &a.Acknowledged); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.Type = models.AlertType(typ)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func (s *Store) GetAlert(ctx context.Context, alertID string) (*models.Alert, error) {
	var a models.Alert
	var typ string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, job_id, alert_type, anchor_time, expected_start_time,
			actual_start_time, detected_time, alert_message, acknowledged
		FROM job_alerts WHERE id = $1
	`, alertID).Scan(&a.ID, &a.JobID, &typ, &a.AnchorTime, &a.ExpectedStartTime,
		&a.ActualStartTime, &a.DetectedTime, &a.Message, &a.Acknowledged)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("alert %s: %w", alertID, ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("get alert %s: %w", alertID, err)
	}
	a.Type = models.AlertType(typ)
	return &a, nil
}

// AcknowledgeAlerts acknowledges every unacknowledged alert sharing
// (job_id, alert_type) and returns how many rows changed.
func (s *Store) AcknowledgeAlerts(ctx context.Context, jobID string, typ models.AlertType) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE job_alerts SET acknowledged = TRUE
		WHERE job_id = $1 AND alert_type = $2 AND NOT acknowledged
	`, jobID, string(typ))
	if err != nil {
		return 0, fmt.Errorf("acknowledge alerts %s/%s: %w", jobID, typ, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
