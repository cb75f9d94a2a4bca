package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"github.com/zaqqye/applytrack/internal/models"
)

const userKey = "user"

type AuthConfig struct {
	JWTSecret string
	// QueryParam, when set, is read if the Authorization header is missing.
	// Browsers cannot set headers on WebSocket upgrades.
	QueryParam string
}

type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

func AuthMiddleware(db *gorm.DB, cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearerToken(c.GetHeader("Authorization"))
		if tokenStr == "" && cfg.QueryParam != "" {
			tokenStr = strings.TrimSpace(c.Query(cfg.QueryParam))
		}
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid authorization header"})
			return
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
			return []byte(cfg.JWTSecret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		var user models.User
		if err := db.WithContext(c.Request.Context()).Where("user_id = ? AND active = ?", claims.UserID, true).First(&user).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found or inactive"})
			return
		}

		SetUser(c, user)
		c.Next()
	}
}

// CurrentUser returns the user stored by AuthMiddleware.
func CurrentUser(c *gin.Context) (models.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return models.User{}, false
	}
	user, ok := v.(models.User)
	return user, ok
}

// SetUser stores user the way AuthMiddleware does.
func SetUser(c *gin.Context, user models.User) {
	c.Set(userKey, user)
}

// RequireVerifiedEmail blocks users who have not confirmed their address yet.
func RequireVerifiedEmail() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if !user.EmailVerified {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Please verify your email address first.", "code": "email-not-verified"})
			return
		}
		c.Next()
	}
}

func bearerToken(header string) string {
	if header == "" || !strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[len("Bearer "):])
}
