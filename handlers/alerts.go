package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"cronwatch/db"
	"cronwatch/models"
)

func (a *API) ListAlerts(c *gin.Context) {
	filter := db.AlertFilter{JobID: c.Query("job_id")}

	if t := c.Query("type"); t != "" {
		typ := models.AlertType(t)
		if !typ.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "type must be MISSED_JOB or LONG_RUNNING"})
			return
		}
		filter.Type = typ
	}
	if ack := c.Query("acknowledged"); ack != "" {
		v, err := strconv.ParseBool(ack)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "acknowledged must be true or false"})
			return
		}
		filter.Acknowledged = &v
	}
	filter.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "100"))
	filter.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	alerts, err := a.Monitor.ListAlerts(c.Request.Context(), filter)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

// AcknowledgeAlert acknowledges the whole (job, type) group the given alert
// belongs to, not just the single row.
func (a *API) AcknowledgeAlert(c *gin.Context) {
	result, err := a.Monitor.AcknowledgeAlert(c.Request.Context(), c.Param("id"))
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
		return
	} else if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":            "Alerts acknowledged",
		"job_id":             result.JobID,
		"alert_type":         result.Type,
		"acknowledged_count": result.Count,
	})
}
