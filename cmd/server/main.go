package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/zaqqye/applytrack/internal/config"
	"github.com/zaqqye/applytrack/internal/database"
	"github.com/zaqqye/applytrack/internal/mailer"
	"github.com/zaqqye/applytrack/internal/middleware"
	"github.com/zaqqye/applytrack/internal/notion"
	"github.com/zaqqye/applytrack/internal/routes"
	"github.com/zaqqye/applytrack/internal/store"
	"github.com/zaqqye/applytrack/internal/ws"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zc := zap.NewProductionConfig()
	if cfg.LogFormat == "console" {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func main() {
	// Load .env (non-fatal if missing in production)
	_ = godotenv.Load()

	cfg := config.Load()

	log, err := newLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal("database migration failed", zap.Error(err))
	}

	var apps store.ApplicationStore
	switch cfg.ApplicationStore {
	case "mongo":
		client, err := database.ConnectMongo(ctx, cfg)
		if err != nil {
			log.Fatal("mongo connection failed", zap.Error(err))
		}
		defer client.Disconnect(context.Background())
		ms := store.NewMongo(client.Database(cfg.MongoDB))
		if err := ms.EnsureIndexes(ctx); err != nil {
			log.Fatal("mongo indexes failed", zap.Error(err))
		}
		apps = ms
	default:
		apps = store.NewGorm(db)
	}
	log.Info("application store ready", zap.String("store", cfg.ApplicationStore), zap.String("db_driver", cfg.DBDriver))

	if err := database.SeedDemo(ctx, db, apps, cfg, log); err != nil {
		log.Fatal("demo seed failed", zap.Error(err))
	}

	hub := ws.NewHub(log)
	go hub.Run(ctx)
	feed := &ws.Feed{Store: apps, Hub: hub, Log: log}

	deps := routes.Deps{
		DB:     db,
		Cfg:    cfg,
		Store:  apps,
		Feed:   feed,
		Mailer: mailer.New(cfg, log),
		Log:    log,
	}
	if cfg.NotionToken != "" && cfg.NotionDatabaseID != "" {
		nc := notion.New(cfg.NotionToken, cfg.NotionDatabaseID)
		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := nc.Ping(pingCtx); err != nil {
			log.Warn("notion mirror unreachable; mirroring anyway", zap.Error(err))
		}
		cancel()
		deps.Mirror = nc
	}

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.RequestLogger(log), middleware.Recovery(log), middleware.CORS(cfg.AllowedOrigins()))
	routes.Register(r, deps)

	port := cfg.Port
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server exited with error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
