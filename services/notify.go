package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"cronwatch/models"
)

// NotifyAlert fans a freshly stored alert out to email and Slack. Both
// channels are env-gated and skipped silently when unconfigured; the alert
// row in the database is the source of truth either way.
func NotifyAlert(job models.Job, alert models.Alert) {
	sendAlertEmail(job, alert)
	SendSlackAlert(job, alert)
}

func sendAlertEmail(job models.Job, alert models.Alert) {
	apiKey := os.Getenv("SENDGRID_API_KEY")
	alertEmail := os.Getenv("ALERT_EMAIL")
	if apiKey == "" || alertEmail == "" {
		// Silent skip
		return
	}

	var subject, hint string
	switch alert.Type {
	case models.AlertMissedJob:
		subject = fmt.Sprintf("[CRITICAL] %s did not run", job.JobID)
		hint = `This usually means:
- Cron did not execute
- Server was down
- Script failed before startup`
	case models.AlertLongRunning:
		subject = fmt.Sprintf("[WARNING] %s is still running", job.JobID)
		hint = `This usually means:
- The job is stuck or deadlocked
- Input grew beyond what the runtime budget assumed`
	default:
		subject = fmt.Sprintf("[ALERT] %s", job.JobID)
	}

	plainTextContent := fmt.Sprintf(`%s

Schedule: %s
Detected at: %s

%s

%s

Please investigate.`,
		alert.Message,
		job.Schedule,
		alert.DetectedTime.Format(time.RFC3339),
		hint,
		fmt.Sprintf("Tolerance: %d minutes, max runtime: %d minutes", job.ToleranceMinutes, job.MaxRuntimeMinutes),
	)

	from := mail.NewEmail("CronWatch", alertEmail)
	to := mail.NewEmail("Admin", alertEmail)
	message := mail.NewSingleEmail(from, subject, to, plainTextContent, plainTextContent)
	client := sendgrid.NewSendClient(apiKey)

	if _, err := client.Send(message); err != nil {
		fmt.Printf("Error sending alert email: %v\n", err)
	}
}

func SendSlackAlert(job models.Job, alert models.Alert) {
	// Safety: Recover from any panic to avoid crashing the worker
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("Slack panic recovered: %v\n", r)
		}
	}()

	webhookURL := os.Getenv("SLACK_WEBHOOK_URL")
	if webhookURL == "" {
		return
	}

	payload := map[string]string{
		"text": fmt.Sprintf("🚨 Cron Alert\n\nJob: %s\nType: %s\nDetected: %s\n\n%s",
			job.JobID,
			alert.Type,
			alert.DetectedTime.Format(time.RFC3339),
			alert.Message,
		),
	}

	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		fmt.Printf("Error marshaling Slack payload: %v\n", err)
		return
	}

	resp, err := http.Post(webhookURL, "application/json", bytes.NewBuffer(jsonPayload))
	if err != nil {
		fmt.Printf("Error sending Slack request: %v\n", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		fmt.Printf("Slack API error: Status %d\n", resp.StatusCode)
	}
}
