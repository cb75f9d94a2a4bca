package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/zaqqye/applytrack/internal/authmsg"
	"github.com/zaqqye/applytrack/internal/mailer"
	"github.com/zaqqye/applytrack/internal/middleware"
	"github.com/zaqqye/applytrack/internal/models"
	"github.com/zaqqye/applytrack/internal/utils"
)

const tokenIssuer = "applytrack"

type AuthController struct {
	DB            *gorm.DB
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	VerifyTTL     time.Duration
	ResetTTL      time.Duration
	MinPassword   int
	Mailer        mailer.Mailer
	Log           *zap.Logger
}

type signupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// maxPasswordBytes is the most bcrypt will hash.
const maxPasswordBytes = 72

// checkCredentials returns the failure code for an email/password pair, or
// "" when both are acceptable. Length is only enforced when minPassword > 0.
func checkCredentials(email, password string, minPassword int) string {
	if !validEmail(email) {
		return authmsg.InvalidEmail
	}
	return checkPassword(password, minPassword)
}

func checkPassword(password string, minPassword int) string {
	if password == "" {
		return authmsg.MissingPassword
	}
	if len(password) > maxPasswordBytes {
		return authmsg.PasswordTooLong
	}
	if minPassword > 0 && len([]rune(password)) < minPassword {
		return authmsg.WeakPassword
	}
	return ""
}

func (a *AuthController) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	email := normalizeEmail(req.Email)
	if code := checkCredentials(email, req.Password, a.MinPassword); code != "" {
		authError(c, http.StatusBadRequest, code, a.MinPassword)
		return
	}

	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		name = strings.TrimSpace(strings.TrimSpace(req.FirstName) + " " + strings.TrimSpace(req.LastName))
	}

	var count int64
	if err := a.DB.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		a.Log.Error("signup: lookup email", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": genericError})
		return
	}
	if count > 0 {
		authError(c, http.StatusConflict, authmsg.EmailAlreadyInUse, a.MinPassword)
		return
	}

	pw, err := utils.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to hash password"})
		return
	}
	user := models.User{
		DisplayName: name,
		Email:       email,
		Password:    pw,
		Active:      true,
	}
	if err := a.DB.Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			authError(c, http.StatusConflict, authmsg.EmailAlreadyInUse, a.MinPassword)
			return
		}
		a.Log.Error("signup: create user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": genericError})
		return
	}

	a.sendVerification(c.Request.Context(), user)

	access, refresh, err := a.issueTokens(user)
	if err != nil {
		a.Log.Error("signup: issue tokens", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": genericError})
		return
	}
	resp := a.tokenResponse(access, refresh)
	resp["message"] = "registered"
	resp["user"] = userJSON(user)
	c.JSON(http.StatusCreated, resp)
}

func (a *AuthController) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	email := normalizeEmail(req.Email)
	if code := checkCredentials(email, req.Password, 0); code != "" {
		authError(c, http.StatusBadRequest, code, a.MinPassword)
		return
	}

	var user models.User
	if err := a.DB.Where("email = ?", email).First(&user).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			a.Log.Error("login: lookup user", zap.Error(err))
		}
		authError(c, http.StatusUnauthorized, authmsg.InvalidCredential, a.MinPassword)
		return
	}
	if !user.Active || !utils.CheckPassword(user.Password, req.Password) {
		authError(c, http.StatusUnauthorized, authmsg.InvalidCredential, a.MinPassword)
		return
	}

	access, refresh, err := a.issueTokens(user)
	if err != nil {
		a.Log.Error("login: issue tokens", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": genericError})
		return
	}
	resp := a.tokenResponse(access, refresh)
	resp["user"] = userJSON(user)
	c.JSON(http.StatusOK, resp)
}

func (a *AuthController) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, userJSON(user))
}

func userJSON(user models.User) gin.H {
	return gin.H{
		"user_id":        user.UserID,
		"email":          user.Email,
		"display_name":   user.DisplayName,
		"email_verified": user.EmailVerified,
		"created_at":     user.CreatedAt,
		"updated_at":     user.UpdatedAt,
	}
}

type tokenPair struct {
	Token string
	JTI   string
}

func (a *AuthController) tokenResponse(access, refresh tokenPair) gin.H {
	return gin.H{
		"access_token":       access.Token,
		"token_type":         "Bearer",
		"expires_in":         int(a.AccessTTL.Seconds()),
		"refresh_token":      refresh.Token,
		"refresh_expires_in": int(a.RefreshTTL.Seconds()),
	}
}

func (a *AuthController) issueTokens(user models.User) (access tokenPair, refresh tokenPair, err error) {
	return a.issueTokensTx(a.DB, user)
}

func (a *AuthController) issueTokensTx(tx *gorm.DB, user models.User) (access tokenPair, refresh tokenPair, err error) {
	now := time.Now().UTC()
	sub := strconv.FormatUint(uint64(user.ID), 10)
	acl := middleware.Claims{
		UserID: user.UserID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.AccessTTL)),
			Subject:   sub,
		},
	}
	atStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, acl).SignedString([]byte(a.AccessSecret))
	if err != nil {
		return
	}
	access = tokenPair{Token: atStr}

	// The jti keeps two refresh tokens minted in the same second distinct.
	jti := uuid.NewString()
	rcl := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.RefreshTTL)),
		Subject:   sub,
		ID:        jti,
	}
	rtStr, err := jwt.NewWithClaims(jwt.SigningMethodHS256, rcl).SignedString([]byte(a.RefreshSecret))
	if err != nil {
		return
	}
	refresh = tokenPair{Token: rtStr, JTI: jti}

	rec := models.RefreshToken{
		TokenID:   jti,
		UserIDRef: user.ID,
		TokenHash: utils.SHA256Hex(rtStr),
		ExpiresAt: now.Add(a.RefreshTTL),
	}
	err = tx.Create(&rec).Error
	return
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (a *AuthController) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refresh_token is required"})
		return
	}
	tok, err := jwt.ParseWithClaims(req.RefreshToken, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(a.RefreshSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !tok.Valid {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}

	var access, newRefresh tokenPair
	err = a.DB.Transaction(func(tx *gorm.DB) error {
		var rec models.RefreshToken
		if err := tx.Where("token_hash = ?", utils.SHA256Hex(req.RefreshToken)).First(&rec).Error; err != nil {
			return errRefreshRejected
		}
		now := time.Now().UTC()
		if rec.RevokedAt != nil || now.After(rec.ExpiresAt) {
			return errRefreshRejected
		}
		var user models.User
		if err := tx.First(&user, rec.UserIDRef).Error; err != nil || !user.Active {
			return errRefreshRejected
		}
		var err error
		access, newRefresh, err = a.issueTokensTx(tx, user)
		if err != nil {
			return err
		}
		// Rotation: the presented token can be used only once.
		res := tx.Model(&models.RefreshToken{}).
			Where("id = ? AND revoked_at IS NULL", rec.ID).
			Updates(map[string]interface{}{
				"revoked_at":           &now,
				"replaced_by_token_id": newRefresh.JTI,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errRefreshRejected
		}
		return nil
	})
	if errors.Is(err, errRefreshRejected) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "refresh token expired or revoked"})
		return
	}
	if err != nil {
		a.Log.Error("refresh: rotate", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": genericError})
		return
	}
	c.JSON(http.StatusOK, a.tokenResponse(access, newRefresh))
}

var errRefreshRejected = errors.New("refresh token rejected")

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
	All          bool   `json:"all"`
}

// Logout revokes refresh tokens (one or all). Access tokens stay valid until
// they expire.
func (a *AuthController) Logout(c *gin.Context) {
	var req logoutRequest
	_ = c.ShouldBindJSON(&req)
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	now := time.Now().UTC()
	q := a.DB.Model(&models.RefreshToken{}).Where("user_id_ref = ? AND revoked_at IS NULL", user.ID)
	if !req.All {
		if req.RefreshToken == "" {
			c.JSON(http.StatusOK, gin.H{"message": "logged out"})
			return
		}
		q = q.Where("token_hash = ?", utils.SHA256Hex(req.RefreshToken))
	}
	if err := q.Update("revoked_at", &now).Error; err != nil {
		a.Log.Error("logout: revoke", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": genericError})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// issueActionToken stores a fresh one-time token for purpose and returns the
// plain value that goes into the email link.
func (a *AuthController) issueActionToken(tx *gorm.DB, user models.User, purpose string, ttl time.Duration) (string, error) {
	plain, err := utils.GenerateToken(32)
	if err != nil {
		return "", err
	}
	rec := models.ActionToken{
		UserIDRef: user.ID,
		Purpose:   purpose,
		TokenHash: utils.SHA256Hex(plain),
		ExpiresAt: time.Now().UTC().Add(ttl),
	}
	if err := tx.Create(&rec).Error; err != nil {
		return "", err
	}
	return plain, nil
}

// sendVerification is best effort; a failed mail can be retried through
// the resend endpoint.
func (a *AuthController) sendVerification(ctx context.Context, user models.User) bool {
	token, err := a.issueActionToken(a.DB, user, models.PurposeVerifyEmail, a.VerifyTTL)
	if err != nil {
		a.Log.Error("verification token", zap.String("user_id", user.UserID), zap.Error(err))
		return false
	}
	if a.Mailer == nil {
		return false
	}
	if err := a.Mailer.SendVerification(ctx, user.Email, user.DisplayName, token); err != nil {
		a.Log.Warn("send verification", zap.String("user_id", user.UserID), zap.Error(err))
		return false
	}
	return true
}

type tokenRequest struct {
	Token string `json:"token"`
}

// consumeActionToken marks a usable token as used and returns its owner.
func consumeActionToken(tx *gorm.DB, plain, purpose string) (models.User, error) {
	var rec models.ActionToken
	err := tx.Where("token_hash = ? AND purpose = ?", utils.SHA256Hex(strings.TrimSpace(plain)), purpose).First(&rec).Error
	if err != nil {
		return models.User{}, errInvalidActionToken
	}
	now := time.Now().UTC()
	if !rec.Usable(now) {
		return models.User{}, errInvalidActionToken
	}
	res := tx.Model(&models.ActionToken{}).Where("id = ? AND used_at IS NULL", rec.ID).Update("used_at", &now)
	if res.Error != nil {
		return models.User{}, res.Error
	}
	if res.RowsAffected == 0 {
		return models.User{}, errInvalidActionToken
	}
	var user models.User
	if err := tx.First(&user, rec.UserIDRef).Error; err != nil {
		return models.User{}, errInvalidActionToken
	}
	return user, nil
}

var errInvalidActionToken = errors.New("invalid action token")

func (a *AuthController) VerifyEmail(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		authError(c, http.StatusBadRequest, authmsg.InvalidToken, a.MinPassword)
		return
	}
	err := a.DB.Transaction(func(tx *gorm.DB) error {
		user, err := consumeActionToken(tx, req.Token, models.PurposeVerifyEmail)
		if err != nil {
			return err
		}
		return tx.Model(&models.User{}).Where("id = ?", user.ID).Update("email_verified", true).Error
	})
	if errors.Is(err, errInvalidActionToken) {
		authError(c, http.StatusBadRequest, authmsg.InvalidToken, a.MinPassword)
		return
	}
	if err != nil {
		a.Log.Error("verify email", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": genericError})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "email verified"})
}

func (a *AuthController) ResendVerification(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if user.EmailVerified {
		c.JSON(http.StatusOK, gin.H{"message": "email already verified"})
		return
	}
	if !a.sendVerification(c.Request.Context(), user) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": genericError})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "verification email sent"})
}

type resetRequest struct {
	Email string `json:"email"`
}

const resetSentMessage = "If an account exists for that email, a reset link has been sent."

// RequestPasswordReset answers the same way whether or not the account
// exists.
func (a *AuthController) RequestPasswordReset(c *gin.Context) {
	var req resetRequest
	_ = c.ShouldBindJSON(&req)
	email := normalizeEmail(req.Email)
	if !validEmail(email) {
		authError(c, http.StatusBadRequest, authmsg.InvalidEmail, a.MinPassword)
		return
	}

	var user models.User
	err := a.DB.Where("email = ? AND active = ?", email, true).First(&user).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
	case err != nil:
		a.Log.Error("password reset: lookup user", zap.Error(err))
	default:
		token, err := a.issueActionToken(a.DB, user, models.PurposePasswordReset, a.ResetTTL)
		if err != nil {
			a.Log.Error("password reset token", zap.String("user_id", user.UserID), zap.Error(err))
			break
		}
		if a.Mailer != nil {
			if err := a.Mailer.SendPasswordReset(c.Request.Context(), user.Email, token); err != nil {
				a.Log.Warn("send password reset", zap.String("user_id", user.UserID), zap.Error(err))
			}
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": resetSentMessage})
}

type resetConfirmRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (a *AuthController) ConfirmPasswordReset(c *gin.Context) {
	var req resetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		authError(c, http.StatusBadRequest, authmsg.InvalidToken, a.MinPassword)
		return
	}
	if code := checkPassword(req.Password, a.MinPassword); code != "" {
		authError(c, http.StatusBadRequest, code, a.MinPassword)
		return
	}
	pw, err := utils.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to hash password"})
		return
	}

	err = a.DB.Transaction(func(tx *gorm.DB) error {
		user, err := consumeActionToken(tx, req.Token, models.PurposePasswordReset)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if err := tx.Model(&models.User{}).Where("id = ?", user.ID).Update("password", pw).Error; err != nil {
			return err
		}
		// Any other outstanding reset links die with this one.
		if err := tx.Model(&models.ActionToken{}).
			Where("user_id_ref = ? AND purpose = ? AND used_at IS NULL", user.ID, models.PurposePasswordReset).
			Update("used_at", &now).Error; err != nil {
			return err
		}
		return tx.Model(&models.RefreshToken{}).
			Where("user_id_ref = ? AND revoked_at IS NULL", user.ID).
			Update("revoked_at", &now).Error
	})
	if errors.Is(err, errInvalidActionToken) {
		authError(c, http.StatusBadRequest, authmsg.InvalidToken, a.MinPassword)
		return
	}
	if err != nil {
		a.Log.Error("password reset confirm", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": genericError})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "password updated"})
}
