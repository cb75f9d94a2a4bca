package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zaqqye/applytrack/internal/middleware"
	"github.com/zaqqye/applytrack/internal/models"
	"github.com/zaqqye/applytrack/internal/pagination"
	"github.com/zaqqye/applytrack/internal/store"
	"github.com/zaqqye/applytrack/internal/ws"
)

type ApplicationController struct {
	Store  store.ApplicationStore
	Feed   *ws.Feed
	Mirror PageMirror
	Log    *zap.Logger
}

type createApplicationRequest struct {
	Company     string `json:"company" binding:"nonblank"`
	Role        string `json:"role" binding:"nonblank"`
	Location    string `json:"location" binding:"nonblank"`
	AppliedDate string `json:"applied_date" binding:"nonblank,appdate"`
	Status      string `json:"status" binding:"nonblank,appstatus"`
	Notes       string `json:"notes"`
	ResumeURL   string `json:"resume_url" binding:"optionalurl"`
}

type updateApplicationRequest struct {
	Company     *string `json:"company" binding:"omitempty,nonblank"`
	Role        *string `json:"role" binding:"omitempty,nonblank"`
	Location    *string `json:"location" binding:"omitempty,nonblank"`
	AppliedDate *string `json:"applied_date" binding:"omitempty,nonblank,appdate"`
	Status      *string `json:"status" binding:"omitempty,nonblank,appstatus"`
	Notes       *string `json:"notes"`
	ResumeURL   *string `json:"resume_url" binding:"omitempty,optionalurl"`
}

func trimmed(p *string) *string {
	if p == nil {
		return nil
	}
	s := strings.TrimSpace(*p)
	return &s
}

func (ac *ApplicationController) List(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	q := store.ListQuery{
		Params: pagination.FromQuery(c, store.SortColumns, "created_at"),
		Text:   strings.TrimSpace(c.Query("q")),
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		st, ok := models.ParseStatus(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		q.Status = st
	}

	apps, total, err := ac.Store.List(c.Request.Context(), user.UserID, q)
	if err != nil {
		storeError(c, ac.Log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data": apps,
		"meta": pagination.Meta(q.Params, total),
	})
}

func (ac *ApplicationController) Create(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	var req createApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	status, _ := models.ParseStatus(req.Status)
	date, err := models.ParseDate(strings.TrimSpace(req.AppliedDate))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fieldMessages["applied_date.appdate"]})
		return
	}

	app := models.Application{
		Company:     strings.TrimSpace(req.Company),
		Role:        strings.TrimSpace(req.Role),
		Location:    strings.TrimSpace(req.Location),
		Status:      status,
		AppliedDate: date,
		Notes:       strings.TrimSpace(req.Notes),
		ResumeURL:   strings.TrimSpace(req.ResumeURL),
	}
	if err := ac.Store.Create(c.Request.Context(), user.UserID, &app); err != nil {
		storeError(c, ac.Log, err)
		return
	}

	ac.broadcast(c, user.UserID)
	ac.mirror(app)
	c.JSON(http.StatusCreated, gin.H{
		"message":     "created",
		"id":          app.ID,
		"application": app,
	})
}

func (ac *ApplicationController) Get(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	app, err := ac.Store.Get(c.Request.Context(), user.UserID, c.Param("id"))
	if err != nil {
		storeError(c, ac.Log, err)
		return
	}
	c.JSON(http.StatusOK, app)
}

func (ac *ApplicationController) Update(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	var req updateApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	patch := store.ApplicationPatch{
		Company:   trimmed(req.Company),
		Role:      trimmed(req.Role),
		Location:  trimmed(req.Location),
		Notes:     trimmed(req.Notes),
		ResumeURL: trimmed(req.ResumeURL),
	}
	if req.Status != nil {
		st, _ := models.ParseStatus(*req.Status)
		patch.Status = &st
	}
	if req.AppliedDate != nil {
		d, err := models.ParseDate(strings.TrimSpace(*req.AppliedDate))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fieldMessages["applied_date.appdate"]})
			return
		}
		patch.AppliedDate = &d
	}
	if patch.Empty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
		return
	}

	app, err := ac.Store.Update(c.Request.Context(), user.UserID, c.Param("id"), patch)
	if err != nil {
		storeError(c, ac.Log, err)
		return
	}
	ac.broadcast(c, user.UserID)
	c.JSON(http.StatusOK, gin.H{"message": "updated", "application": app})
}

func (ac *ApplicationController) Delete(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)
	if err := ac.Store.Delete(c.Request.Context(), user.UserID, c.Param("id")); err != nil {
		storeError(c, ac.Log, err)
		return
	}
	ac.broadcast(c, user.UserID)
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}
