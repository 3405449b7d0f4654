package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cronwatch/db"
	"cronwatch/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now.UTC()}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t.UTC()
}

// fakeStore is an in-memory Store with the same invariants the SQL store
// enforces: one open run per job, alert dedup on (job, type, anchor).
type fakeStore struct {
	mu     sync.Mutex
	jobs   map[string]*models.Job
	order  []string
	runs   []*models.Run
	alerts []*models.Alert
	nextID int

	// failFor makes run lookups for a job fail, for sweep resilience tests.
	failFor map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		jobs:    map[string]*models.Job{},
		failFor: map[string]error{},
	}
}

func (s *fakeStore) addJob(j models.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[j.JobID]; !ok {
		s.order = append(s.order, j.JobID)
	}
	cp := j
	s.jobs[j.JobID] = &cp
}

func (s *fakeStore) id() string {
	s.nextID++
	return fmt.Sprintf("run-%d", s.nextID)
}

func (s *fakeStore) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", jobID, db.ErrNotFound)
	}
	cp := *j
	return &cp, nil
}

func (s *fakeStore) ListJobs(ctx context.Context) ([]models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := []models.Job{}
	for _, id := range s.order {
		jobs = append(jobs, *s.jobs[id])
	}
	return jobs, nil
}

func (s *fakeStore) SetPaused(ctx context.Context, jobID string, paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("job %s: %w", jobID, db.ErrNotFound)
	}
	j.Paused = paused
	return nil
}

func (s *fakeStore) OpenRun(ctx context.Context, jobID string) (*models.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failFor[jobID]; err != nil {
		return nil, err
	}
	for _, r := range s.runs {
		if r.JobID == jobID && r.EndTime == nil {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) LastRun(ctx context.Context, jobID string) (*models.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failFor[jobID]; err != nil {
		return nil, err
	}
	var last *models.Run
	for _, r := range s.runs {
		if r.JobID != jobID {
			continue
		}
		if last == nil || r.StartTime.After(last.StartTime) {
			last = r
		}
	}
	if last == nil {
		return nil, nil
	}
	cp := *last
	return &cp, nil
}

func (s *fakeStore) StartRun(ctx context.Context, jobID string, meta []byte, start time.Time, autoClose bool) (*models.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[jobID]; !ok {
		return nil, fmt.Errorf("job %s: %w", jobID, db.ErrNotFound)
	}
	if !autoClose {
		for _, r := range s.runs {
			if r.JobID == jobID && r.EndTime == nil {
				return nil, fmt.Errorf("job %s: %w", jobID, db.ErrAlreadyRunning)
			}
		}
	}
	run := &models.Run{ID: s.id(), JobID: jobID, StartTime: start.UTC(), ClientMetadata: meta}
	if autoClose {
		end := run.StartTime
		zero := 0.0
		run.EndTime = &end
		run.Duration = &zero
	}
	s.runs = append(s.runs, run)
	cp := *run
	return &cp, nil
}

func (s *fakeStore) CloseRun(ctx context.Context, runID string, end time.Time) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.runs {
		if r.ID == runID && r.EndTime == nil {
			e := end.UTC()
			d := e.Sub(r.StartTime).Seconds()
			r.EndTime = &e
			r.Duration = &d
			return d, nil
		}
	}
	return 0, fmt.Errorf("run %s: %w", runID, db.ErrNotRunning)
}

func (s *fakeStore) InsertAlert(ctx context.Context, a models.Alert) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.alerts {
		if existing.JobID == a.JobID && existing.Type == a.Type && existing.AnchorTime.Equal(a.AnchorTime) {
			return false, nil
		}
	}
	cp := a
	cp.ID = fmt.Sprintf("alert-%d", len(s.alerts)+1)
	s.alerts = append(s.alerts, &cp)
	return true, nil
}

func (s *fakeStore) AlertExists(ctx context.Context, jobID string, typ models.AlertType, anchor time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.alerts {
		if a.JobID == jobID && a.Type == typ && a.AnchorTime.Equal(anchor) {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) GetAlert(ctx context.Context, alertID string) (*models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.alerts {
		if a.ID == alertID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("alert %s: %w", alertID, db.ErrNotFound)
}

func (s *fakeStore) ListAlerts(ctx context.Context, f db.AlertFilter) ([]models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Alert{}
	for _, a := range s.alerts {
		if f.JobID != "" && a.JobID != f.JobID {
			continue
		}
		if f.Type != "" && a.Type != f.Type {
			continue
		}
		if f.Acknowledged != nil && a.Acknowledged != *f.Acknowledged {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func (s *fakeStore) AcknowledgeAlerts(ctx context.Context, jobID string, typ models.AlertType) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, a := range s.alerts {
		if a.JobID == jobID && a.Type == typ && !a.Acknowledged {
			a.Acknowledged = true
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) alertCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alerts)
}

func (s *fakeStore) alertsFor(jobID string, typ models.AlertType) []models.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Alert{}
	for _, a := range s.alerts {
		if a.JobID == jobID && a.Type == typ {
			out = append(out, *a)
		}
	}
	return out
}

func (s *fakeStore) openRunCount(jobID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.runs {
		if r.JobID == jobID && r.EndTime == nil {
			n++
		}
	}
	return n
}
