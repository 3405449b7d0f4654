package services

import (
	"context"
	"errors"
	"testing"

	"cronwatch/db"
	"cronwatch/models"
)

func seedAlert(t *testing.T, store *fakeStore, jobID string, typ models.AlertType, anchor string) string {
	t.Helper()
	at := testTime(t, anchor)
	inserted, err := store.InsertAlert(context.Background(), models.Alert{
		JobID:        jobID,
		Type:         typ,
		AnchorTime:   at,
		DetectedTime: at,
		Message:      "seed",
	})
	if err != nil || !inserted {
		t.Fatalf("seed alert for %s/%s: inserted=%v err=%v", jobID, typ, inserted, err)
	}
	alerts, err := store.ListAlerts(context.Background(), db.AlertFilter{JobID: jobID, Type: typ})
	if err != nil {
		t.Fatalf("list seeded alerts: %v", err)
	}
	return alerts[len(alerts)-1].ID
}

func TestAcknowledgeAlertClearsGroup(t *testing.T) {
	ctx := context.Background()
	mon, store, _ := newTestMonitor(t, "2026-03-10T08:00:00Z")

	var firstMissed string
	for i, anchor := range []string{
		"2026-03-10T01:00:00Z",
		"2026-03-10T02:00:00Z",
		"2026-03-10T03:00:00Z",
	} {
		id := seedAlert(t, store, "etl-job", models.AlertMissedJob, anchor)
		if i == 0 {
			firstMissed = id
		}
	}
	seedAlert(t, store, "etl-job", models.AlertLongRunning, "2026-03-10T04:00:00Z")
	seedAlert(t, store, "report-job", models.AlertMissedJob, "2026-03-10T05:00:00Z")

	result, err := mon.AcknowledgeAlert(ctx, firstMissed)
	if err != nil {
		t.Fatalf("AcknowledgeAlert: %v", err)
	}
	if result.JobID != "etl-job" || result.Type != models.AlertMissedJob {
		t.Errorf("result group = %s/%s", result.JobID, result.Type)
	}
	if result.Count != 3 {
		t.Errorf("acknowledged count = %d, want all 3 missed-run alerts", result.Count)
	}

	unacked := false
	pending, err := mon.ListAlerts(ctx, db.AlertFilter{JobID: "etl-job", Type: models.AlertMissedJob, Acknowledged: &unacked})
	if err != nil {
		t.Fatalf("ListAlerts: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("%d missed-run alerts for etl-job still unacknowledged", len(pending))
	}

	// Other groups stay untouched.
	for _, f := range []db.AlertFilter{
		{JobID: "etl-job", Type: models.AlertLongRunning, Acknowledged: &unacked},
		{JobID: "report-job", Type: models.AlertMissedJob, Acknowledged: &unacked},
	} {
		alerts, err := mon.ListAlerts(ctx, f)
		if err != nil {
			t.Fatalf("ListAlerts %s/%s: %v", f.JobID, f.Type, err)
		}
		if len(alerts) != 1 {
			t.Errorf("group %s/%s has %d unacknowledged alerts, want 1", f.JobID, f.Type, len(alerts))
		}
	}
}

func TestAcknowledgeAlertIdempotent(t *testing.T) {
	ctx := context.Background()
	mon, store, _ := newTestMonitor(t, "2026-03-10T08:00:00Z")

	id := seedAlert(t, store, "etl-job", models.AlertMissedJob, "2026-03-10T01:00:00Z")

	if result, err := mon.AcknowledgeAlert(ctx, id); err != nil || result.Count != 1 {
		t.Fatalf("first acknowledge: count=%v err=%v", result, err)
	}
	result, err := mon.AcknowledgeAlert(ctx, id)
	if err != nil {
		t.Fatalf("second acknowledge: %v", err)
	}
	if result.Count != 0 {
		t.Errorf("second acknowledge count = %d, want 0", result.Count)
	}
}

func TestAcknowledgeAlertUnknown(t *testing.T) {
	mon, _, _ := newTestMonitor(t, "2026-03-10T08:00:00Z")
	if _, err := mon.AcknowledgeAlert(context.Background(), "no-such-alert"); !errors.Is(err, db.ErrNotFound) {
		t.Fatalf("err = %v, want db.ErrNotFound", err)
	}
}
