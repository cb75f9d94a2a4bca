package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/zaqqye/applytrack/internal/config"
	"github.com/zaqqye/applytrack/internal/controllers"
	"github.com/zaqqye/applytrack/internal/mailer"
	"github.com/zaqqye/applytrack/internal/middleware"
	"github.com/zaqqye/applytrack/internal/store"
	"github.com/zaqqye/applytrack/internal/ws"
)

// Deps are the shared services the handlers are built from. Mirror and
// Mailer may be nil.
type Deps struct {
	DB     *gorm.DB
	Cfg    *config.Config
	Store  store.ApplicationStore
	Feed   *ws.Feed
	Mailer mailer.Mailer
	Mirror controllers.PageMirror
	Log    *zap.Logger
}

func Register(r *gin.Engine, d Deps) {
	controllers.RegisterValidators()
	cfg := d.Cfg

	authCtrl := &controllers.AuthController{
		DB:            d.DB,
		AccessSecret:  cfg.JWTSecret,
		RefreshSecret: cfg.RefreshJWTSecret,
		AccessTTL:     cfg.AccessTTL(),
		RefreshTTL:    cfg.RefreshTTL(),
		VerifyTTL:     cfg.VerifyTTL(),
		ResetTTL:      cfg.ResetTTL(),
		MinPassword:   cfg.MinPasswordLength(),
		Mailer:        d.Mailer,
		Log:           d.Log,
	}
	appCtrl := &controllers.ApplicationController{Store: d.Store, Feed: d.Feed, Mirror: d.Mirror, Log: d.Log}
	dashCtrl := &controllers.DashboardController{Store: d.Store, Log: d.Log}
	cfgCtrl := &controllers.ConfigController{Cfg: cfg}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public
	r.GET("/api/v1/config/public", cfgCtrl.Get)
	auth := r.Group("/api/v1/auth")
	{
		auth.POST("/signup", authCtrl.Signup)
		auth.POST("/login", authCtrl.Login)
		auth.POST("/refresh", authCtrl.Refresh)
		auth.POST("/verify-email", authCtrl.VerifyEmail)
		auth.POST("/password-reset", authCtrl.RequestPasswordReset)
		auth.POST("/password-reset/confirm", authCtrl.ConfirmPasswordReset)
	}

	// Protected
	authMW := middleware.AuthMiddleware(d.DB, middleware.AuthConfig{
		JWTSecret:  cfg.JWTSecret,
		QueryParam: "access_token",
	})
	api := r.Group("/api/v1", authMW)
	{
		api.GET("/auth/me", authCtrl.Me)
		api.POST("/auth/logout", authCtrl.Logout)
		api.POST("/auth/verify-email/resend", authCtrl.ResendVerification)

		records := api.Group("")
		if cfg.VerifiedEmailRequired() {
			records.Use(middleware.RequireVerifiedEmail())
		}
		records.GET("/applications", appCtrl.List)
		records.POST("/applications", appCtrl.Create)
		records.GET("/applications/:id", appCtrl.Get)
		records.PUT("/applications/:id", appCtrl.Update)
		records.DELETE("/applications/:id", appCtrl.Delete)
		records.GET("/dashboard", dashCtrl.Get)

		// Live query; browsers pass the token as ?access_token=
		records.GET("/ws/applications", ws.SnapshotHandler(d.Feed))
	}
}
