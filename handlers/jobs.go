package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"cronwatch/models"
	"cronwatch/schedule"
)

func (a *API) ConfigureJob(c *gin.Context) {
	var req struct {
		JobID             string `json:"job_id"`
		Schedule          string `json:"schedule"`
		ToleranceMinutes  *int   `json:"tolerance_minutes"`
		MaxRuntimeMinutes int    `json:"max_runtime_minutes"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}

	if req.JobID == "" || len(req.JobID) > 255 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job_id is required and must be under 255 chars"})
		return
	}
	if err := schedule.Validate(req.Schedule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Default 10-minute window, capped at 24 hours.
	tolerance := 10
	if req.ToleranceMinutes != nil {
		tolerance = *req.ToleranceMinutes
	}
	if tolerance < 0 || tolerance > 1440 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Tolerance must be between 0 and 1440 minutes"})
		return
	}
	if req.MaxRuntimeMinutes < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "max_runtime_minutes must be non-negative"})
		return
	}

	job := models.Job{
		JobID:             req.JobID,
		Schedule:          req.Schedule,
		ToleranceMinutes:  tolerance,
		MaxRuntimeMinutes: req.MaxRuntimeMinutes,
	}
	if err := a.Store.UpsertJob(c.Request.Context(), job); err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Job configured", "job_id": req.JobID})
}

func (a *API) ListJobs(c *gin.Context) {
	ctx := c.Request.Context()
	jobs, err := a.Store.ListJobs(ctx)
	if err != nil {
		fail(c, err)
		return
	}

	// Fill last run for the list view.
	for i := range jobs {
		last, err := a.Store.LastRun(ctx, jobs[i].JobID)
		if err == nil {
			jobs[i].LastRun = last
		}
	}

	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

func (a *API) GetJobStatus(c *gin.Context) {
	status, err := a.Monitor.JobStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (a *API) DeleteJob(c *gin.Context) {
	if err := a.Store.DeleteJob(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Job deleted"})
}

func (a *API) PauseJob(c *gin.Context) {
	if err := a.Monitor.PauseJob(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Job paused", "job_id": c.Param("id")})
}

func (a *API) ResumeJob(c *gin.Context) {
	if err := a.Monitor.ResumeJob(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Job resumed", "job_id": c.Param("id")})
}

func (a *API) GetJobRuns(c *gin.Context) {
	jobID := c.Param("id")
	if _, err := a.Store.GetJob(c.Request.Context(), jobID); err != nil {
		fail(c, err)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	runs, err := a.Store.ListRuns(c.Request.Context(), jobID, limit, offset)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}
