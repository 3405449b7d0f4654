package services

import (
	"context"

	"cronwatch/db"
	"cronwatch/models"
)

func (m *Monitor) ListAlerts(ctx context.Context, f db.AlertFilter) ([]models.Alert, error) {
	return m.store.ListAlerts(ctx, f)
}

// AckResult reports which (job, type) group an acknowledgment cleared and
// how many alerts it covered.
type AckResult struct {
	JobID string
	Type  models.AlertType
	Count int64
}

// AcknowledgeAlert acknowledges the whole group the given alert belongs to:
// every unacknowledged alert sharing its job_id and alert_type.
func (m *Monitor) AcknowledgeAlert(ctx context.Context, alertID string) (*AckResult, error) {
	alert, err := m.store.GetAlert(ctx, alertID)
	if err != nil {
		return nil, err
	}
	count, err := m.store.AcknowledgeAlerts(ctx, alert.JobID, alert.Type)
	if err != nil {
		return nil, err
	}
	return &AckResult{JobID: alert.JobID, Type: alert.Type, Count: count}, nil
}
