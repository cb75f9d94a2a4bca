package controllers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zaqqye/applytrack/internal/models"
)

// PageMirror receives a copy of every newly created application.
type PageMirror interface {
	CreateApplicationPage(ctx context.Context, app models.Application) (string, error)
}

const mirrorTimeout = 15 * time.Second

// broadcast pushes a fresh snapshot to the user's live subscriptions. The
// write already succeeded, so the request's cancellation must not stop it.
func (ac *ApplicationController) broadcast(c *gin.Context, userID string) {
	if ac.Feed == nil {
		return
	}
	ac.Feed.Publish(context.WithoutCancel(c.Request.Context()), userID)
}

// mirror copies app to the external page mirror in the background. Failures
// are only logged.
func (ac *ApplicationController) mirror(app models.Application) {
	if ac.Mirror == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		defer cancel()
		pageID, err := ac.Mirror.CreateApplicationPage(ctx, app)
		if err != nil {
			ac.Log.Warn("notion mirror", zap.String("application_id", app.ID), zap.Error(err))
			return
		}
		ac.Log.Debug("notion mirror", zap.String("application_id", app.ID), zap.String("page_id", pageID))
	}()
}
