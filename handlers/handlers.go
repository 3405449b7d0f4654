package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cronwatch/db"
	"cronwatch/services"
)

// API bundles the store and the monitor core for the HTTP layer. The
// handlers are thin: validation and status mapping here, semantics in
// services and db.
type API struct {
	Store   *db.Store
	Monitor *services.Monitor
}

// fail maps store and lifecycle errors to HTTP statuses.
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not configured. Please configure the job first."})
	case errors.Is(err, db.ErrAlreadyRunning):
		c.JSON(http.StatusConflict, gin.H{"error": "Job already has an open run"})
	case errors.Is(err, db.ErrNotRunning):
		c.JSON(http.StatusNotFound, gin.H{"error": "No active job run found"})
	case errors.Is(err, services.ErrHealthCheckEnd):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Health-check jobs do not accept an end signal"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
	}
}
