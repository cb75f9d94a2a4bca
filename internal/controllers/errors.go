package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/zaqqye/applytrack/internal/authmsg"
	"github.com/zaqqye/applytrack/internal/store"
)

const genericError = "Something went wrong. Please try again."

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || mongo.IsDuplicateKeyError(err) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// storeError maps an application store failure onto the response.
func storeError(c *gin.Context, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "application not found"})
	case isUniqueViolation(err):
		c.JSON(http.StatusConflict, gin.H{"error": "application already exists"})
	default:
		log.Error("application store", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": genericError})
	}
}

func authError(c *gin.Context, status int, code string, minPassword int) {
	c.JSON(status, gin.H{"error": authmsg.Message(code, minPassword), "code": code})
}
