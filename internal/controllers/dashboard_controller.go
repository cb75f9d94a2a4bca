package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zaqqye/applytrack/internal/dashboard"
	"github.com/zaqqye/applytrack/internal/middleware"
	"github.com/zaqqye/applytrack/internal/store"
)

type DashboardController struct {
	Store store.ApplicationStore
	Log   *zap.Logger
}

// Get summarizes the user's full snapshot: total, per-status counts and the
// most recent records (?recent=N, default 3).
func (dc *DashboardController) Get(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	recent := dashboard.DefaultRecent
	if raw := c.Query("recent"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "recent must be a non-negative integer"})
			return
		}
		recent = n
	}

	apps, err := dc.Store.Snapshot(c.Request.Context(), user.UserID)
	if err != nil {
		storeError(c, dc.Log, err)
		return
	}
	c.JSON(http.StatusOK, dashboard.Summarize(apps, recent))
}
