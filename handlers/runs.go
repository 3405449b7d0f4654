package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// requestBody reads the posted payload once so it can serve both job_id
// extraction and the opaque metadata blob.
func requestBody(c *gin.Context) []byte {
	if c.Request.Body == nil {
		return nil
	}
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		return nil
	}
	return data
}

func jobIDFrom(c *gin.Context, body []byte) string {
	if id := c.Query("job_id"); id != "" {
		return id
	}
	var req struct {
		JobID string `json:"job_id"`
	}
	if json.Unmarshal(body, &req) == nil {
		return req.JobID
	}
	return ""
}

// collectClientInfo captures request metadata stored opaquely on the run.
// Whatever JSON the caller posted rides along under "metadata"; the core
// never interprets any of it.
func collectClientInfo(c *gin.Context, posted []byte) json.RawMessage {
	clientHost := c.ClientIP()
	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		// The first IP in X-Forwarded-For is the original client
		clientHost = strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}

	hostname, _ := os.Hostname()
	headers := map[string]string{}
	for k, v := range c.Request.Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}

	info := map[string]any{
		"ip_address": clientHost,
		"user_agent": c.GetHeader("User-Agent"),
		"hostname":   hostname,
		"os_info":    runtime.GOOS + " " + runtime.GOARCH,
		"additional_info": map[string]any{
			"go_version": runtime.Version(),
			"headers":    headers,
			"timestamp":  time.Now().UTC().Format(time.RFC3339),
		},
	}
	if len(posted) > 0 && json.Valid(posted) {
		info["metadata"] = json.RawMessage(posted)
	}

	raw, err := json.Marshal(info)
	if err != nil {
		return json.RawMessage("{}")
	}
	return raw
}

func (a *API) StartJob(c *gin.Context) {
	body := requestBody(c)
	jobID := jobIDFrom(c, body)
	if jobID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job_id is required"})
		return
	}

	meta := collectClientInfo(c, body)
	result, err := a.Monitor.StartJob(c.Request.Context(), jobID, meta)
	if err != nil {
		fail(c, err)
		return
	}

	resp := gin.H{
		"message":     "Job started",
		"job_id":      jobID,
		"run_id":      result.Run.ID,
		"client_info": json.RawMessage(meta),
	}
	if result.Advisory != "" {
		resp["message"] = "Job started with schedule violation"
		resp["advisory"] = result.Advisory
	}
	c.JSON(http.StatusOK, resp)
}

func (a *API) EndJob(c *gin.Context) {
	body := requestBody(c)
	jobID := jobIDFrom(c, body)
	if jobID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job_id is required"})
		return
	}

	result, err := a.Monitor.EndJob(c.Request.Context(), jobID)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Job ended",
		"job_id":   jobID,
		"run_id":   result.RunID,
		"duration": result.Duration,
	})
}
