package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zaqqye/applytrack/internal/config"
	"github.com/zaqqye/applytrack/internal/dashboard"
	"github.com/zaqqye/applytrack/internal/models"
)

// ConfigController serves the settings a client needs before sign-in:
// the password policy and the status palette.
type ConfigController struct {
	Cfg *config.Config
}

func (cc *ConfigController) Get(c *gin.Context) {
	statuses := make([]gin.H, 0, len(models.Statuses))
	for _, s := range models.Statuses {
		statuses = append(statuses, gin.H{"status": s, "color": s.Color()})
	}

	c.JSON(http.StatusOK, gin.H{
		"password_min_length":    cc.Cfg.MinPasswordLength(),
		"require_verified_email": cc.Cfg.VerifiedEmailRequired(),
		"statuses":               statuses,
		"dashboard_recent":       dashboard.DefaultRecent,
		"notion_mirror":          cc.Cfg.NotionToken != "" && cc.Cfg.NotionDatabaseID != "",
		"schema_version":         1,
	})
}
