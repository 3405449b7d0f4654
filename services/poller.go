package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"cronwatch/models"
)

// DefaultPollInterval keeps detection latency for seconds-dialect jobs
// bounded; minute-granularity jobs would be fine with far less.
const DefaultPollInterval = 5 * time.Second

// Poller sweeps every registered job on a fixed cadence and runs both
// detectors. A failing job is logged and skipped, never aborting the sweep.
// The alert dedup key is derived from data, so overlapping or restarted
// sweeps converge to the same alert set.
type Poller struct {
	monitor  *Monitor
	interval time.Duration
	notify   func(models.Job, models.Alert)

	cancel context.CancelFunc
	done   chan struct{}
}

func NewPoller(m *Monitor, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{monitor: m, interval: interval, notify: NotifyAlert}
}

// Start launches the background loop. Call Stop to cancel the wait and
// drain the in-flight sweep. Starting an already-running poller is a no-op;
// a stopped poller can be started again.
func (p *Poller) Start() {
	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	log.Printf("compliance poller started (interval %s)", p.interval)

	go func() {
		defer close(p.done)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.Sweep(ctx)
			}
		}
	}()
}

func (p *Poller) Stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel = nil
	log.Printf("compliance poller stopped")
}

// Sweep runs one evaluation pass over all jobs. Exported so tests can
// drive the poller deterministically with a fake clock.
func (p *Poller) Sweep(ctx context.Context) {
	// One bad sweep must never take the loop down.
	defer func() {
		if r := recover(); r != nil {
			log.Printf("poller sweep panic: %v", r)
		}
	}()

	jobs, err := p.monitor.store.ListJobs(ctx)
	if err != nil {
		log.Printf("poller: listing jobs: %v", err)
		return
	}

	for _, job := range jobs {
		p.evaluate(ctx, job)
	}
}

func (p *Poller) evaluate(ctx context.Context, job models.Job) {
	if alert, err := p.monitor.CheckMissedRun(ctx, job); err != nil {
		log.Printf("poller: missed-run check for %s: %v", job.JobID, err)
	} else if alert != nil {
		p.emit(job, *alert)
	}

	if alert, err := p.monitor.CheckLongRunning(ctx, job); err != nil {
		log.Printf("poller: long-running check for %s: %v", job.JobID, err)
	} else if alert != nil {
		p.emit(job, *alert)
	}
}

func (p *Poller) emit(job models.Job, alert models.Alert) {
	log.Printf("alert stored: %s %s (%s)", alert.JobID, alert.Type, alert.Message)
	if p.notify != nil {
		// DB is the source of truth; delivery is best effort and must
		// not hold up the sweep.
		go func() {
			defer func() {
				if r := recover(); r != nil {
					fmt.Printf("alert notify panic: %v\n", r)
				}
			}()
			p.notify(job, alert)
		}()
	}
}
