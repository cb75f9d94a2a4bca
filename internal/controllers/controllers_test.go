package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/zaqqye/applytrack/internal/database"
	"github.com/zaqqye/applytrack/internal/middleware"
	"github.com/zaqqye/applytrack/internal/store"
	"github.com/zaqqye/applytrack/internal/utils"
)

const testSecret = "test-secret"

type sentMail struct {
	Kind  string
	To    string
	Token string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *fakeMailer) SendVerification(_ context.Context, to, _ string, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{Kind: "verify", To: to, Token: token})
	return nil
}

func (m *fakeMailer) SendPasswordReset(_ context.Context, to, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{Kind: "reset", To: to, Token: token})
	return nil
}

func (m *fakeMailer) last(kind string) (sentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.sent) - 1; i >= 0; i-- {
		if m.sent[i].Kind == kind {
			return m.sent[i], true
		}
	}
	return sentMail{}, false
}

type testEnv struct {
	r    *gin.Engine
	db   *gorm.DB
	mail *fakeMailer
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	utils.BcryptCost = bcrypt.MinCost
	RegisterValidators()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	mail := &fakeMailer{}
	log := zap.NewNop()
	st := store.NewGorm(db)
	auth := &AuthController{
		DB:            db,
		AccessSecret:  testSecret,
		RefreshSecret: testSecret + "-refresh",
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
		VerifyTTL:     time.Hour,
		ResetTTL:      time.Hour,
		MinPassword:   8,
		Mailer:        mail,
		Log:           log,
	}
	apps := &ApplicationController{Store: st, Log: log}
	dash := &DashboardController{Store: st, Log: log}

	r := gin.New()
	pub := r.Group("/api/v1/auth")
	pub.POST("/signup", auth.Signup)
	pub.POST("/login", auth.Login)
	pub.POST("/refresh", auth.Refresh)
	pub.POST("/verify-email", auth.VerifyEmail)
	pub.POST("/password-reset", auth.RequestPasswordReset)
	pub.POST("/password-reset/confirm", auth.ConfirmPasswordReset)

	api := r.Group("/api/v1", middleware.AuthMiddleware(db, middleware.AuthConfig{JWTSecret: testSecret}))
	api.GET("/auth/me", auth.Me)
	api.POST("/auth/logout", auth.Logout)
	api.POST("/auth/verify-email/resend", auth.ResendVerification)
	api.GET("/applications", apps.List)
	api.POST("/applications", apps.Create)
	api.GET("/applications/:id", apps.Get)
	api.PUT("/applications/:id", apps.Update)
	api.DELETE("/applications/:id", apps.Delete)
	api.GET("/dashboard", dash.Get)

	return &testEnv{r: r, db: db, mail: mail}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, token string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)

	out := map[string]interface{}{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

// signup registers a user and returns their access and refresh tokens.
func (e *testEnv) signup(t *testing.T, email string) (string, string) {
	t.Helper()
	w, body := e.do(t, http.MethodPost, "/api/v1/auth/signup", gin.H{
		"email": email, "password": "correct-horse", "display_name": "Test User",
	}, "")
	if w.Code != http.StatusCreated {
		t.Fatalf("signup %s: status %d body %s", email, w.Code, w.Body.String())
	}
	return body["access_token"].(string), body["refresh_token"].(string)
}
