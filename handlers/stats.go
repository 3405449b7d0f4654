package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Read-only overview stats
func (a *API) GetStatsOverview(c *gin.Context) {
	overview, err := a.Store.StatsOverview(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}
