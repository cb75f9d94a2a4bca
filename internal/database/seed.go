package database

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/zaqqye/applytrack/internal/config"
	"github.com/zaqqye/applytrack/internal/models"
	"github.com/zaqqye/applytrack/internal/store"
	"github.com/zaqqye/applytrack/internal/utils"
)

// SeedDemo creates a verified demo account with a handful of applications
// when SEED_DEMO is enabled and the account does not exist yet.
func SeedDemo(ctx context.Context, db *gorm.DB, apps store.ApplicationStore, cfg *config.Config, log *zap.Logger) error {
	if !cfg.SeedDemoEnabled() {
		return nil
	}
	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", cfg.DemoEmail).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hashed, err := utils.HashPassword(cfg.DemoPassword)
	if err != nil {
		return err
	}
	user := models.User{
		DisplayName:   "Demo User",
		Email:         cfg.DemoEmail,
		Password:      hashed,
		EmailVerified: true,
		Active:        true,
	}
	if err := db.Create(&user).Error; err != nil {
		return err
	}

	today := time.Now().UTC()
	samples := []struct {
		company, role, location string
		status                  models.Status
		daysAgo                 int
	}{
		{"Big Company", "Software Engineer", "New York, NY", models.StatusRejected, 21},
		{"StartupXYZ", "Full Stack Engineer", "Remote", models.StatusInterview, 14},
		{"Tech Corp", "Frontend Developer", "San Francisco, CA", models.StatusApplied, 7},
	}
	for _, s := range samples {
		d, _ := models.ParseDate(today.AddDate(0, 0, -s.daysAgo).Format(models.DateLayout))
		app := models.Application{
			Company:     s.company,
			Role:        s.role,
			Location:    s.location,
			Status:      s.status,
			AppliedDate: d,
		}
		if err := apps.Create(ctx, user.UserID, &app); err != nil {
			return err
		}
	}
	log.Info("seeded demo account", zap.String("email", cfg.DemoEmail), zap.Int("applications", len(samples)))
	return nil
}
