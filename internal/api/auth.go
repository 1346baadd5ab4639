package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/themobileprof/telecare-be/internal/api/middleware"
	"github.com/themobileprof/telecare-be/internal/db"
	"github.com/themobileprof/telecare-be/internal/privacy"
	"github.com/themobileprof/telecare-be/pkg/auth"
)

// UserStore is the account persistence used by AuthHandler
type UserStore interface {
	CreateUser(ctx context.Context, user *db.User) error
	GetUserByEmail(ctx context.Context, email string) (*db.User, error)
	GetUserByID(ctx context.Context, id string) (*db.User, error)
	UpdateLastLogin(ctx context.Context, id string) error
	UpdateProfile(ctx context.Context, id string, p db.ProfileUpdate) (*db.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	users      UserStore
	tokens     *auth.Manager
	logger     *zap.Logger
	bcryptCost int
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(users UserStore, tokens *auth.Manager, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		users:      users,
		tokens:     tokens,
		logger:     logger,
		bcryptCost: bcrypt.DefaultCost,
	}
}

// RegisterRequest represents the registration request. Admin accounts
// cannot self-register.
type RegisterRequest struct {
	Email          string    `json:"email" binding:"required,email"`
	Password       string    `json:"password" binding:"required,min=6"`
	FirstName      string    `json:"firstName" binding:"required"`
	LastName       string    `json:"lastName" binding:"required"`
	Role           auth.Role `json:"role" binding:"omitempty,oneof=patient doctor"`
	Phone          *string   `json:"phone"`
	Specialization *string   `json:"specialization"`
	LicenseNumber  *string   `json:"licenseNumber"`
}

// LoginRequest represents the login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=6"`
}

type profileRequest struct {
	FirstName         *string    `json:"firstName"`
	LastName          *string    `json:"lastName"`
	Phone             *string    `json:"phone"`
	Gender            *string    `json:"gender" binding:"omitempty,oneof=male female other"`
	DateOfBirth       *time.Time `json:"dateOfBirth"`
	Specialization    *string    `json:"specialization"`
	LicenseNumber     *string    `json:"licenseNumber"`
	YearsOfExperience *int       `json:"yearsOfExperience" binding:"omitempty,min=0"`
	Bio               *string    `json:"bio"`
	ConsultationFee   *float64   `json:"consultationFee" binding:"omitempty,min=0"`
}

// AuthResponse is returned by register, login and refresh
type AuthResponse struct {
	User         *db.User  `json:"user"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Register handles user registration
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if req.Role == "" {
		req.Role = auth.RolePatient
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.bcryptCost)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	user := &db.User{
		Email:          normalizeEmail(req.Email),
		PasswordHash:   string(hashed),
		Role:           req.Role,
		FirstName:      strings.TrimSpace(req.FirstName),
		LastName:       strings.TrimSpace(req.LastName),
		Phone:          req.Phone,
		Specialization: req.Specialization,
		LicenseNumber:  req.LicenseNumber,
	}

	if err := h.users.CreateUser(c.Request.Context(), user); err != nil {
		if errors.Is(err, db.ErrAlreadyExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
			return
		}
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("user registered",
		zap.String("user_id", user.ID),
		zap.String("email", privacy.MaskEmail(user.Email)),
		zap.String("role", string(user.Role)),
	)
	h.respondWithTokens(c, http.StatusCreated, user)
}

// Login handles user login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ctx := c.Request.Context()
	user, err := h.users.GetUserByEmail(ctx, normalizeEmail(req.Email))
	if errors.Is(err, db.ErrNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}
	if !user.IsActive {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Account is deactivated"})
		return
	}

	if err := h.users.UpdateLastLogin(ctx, user.ID); err != nil {
		h.logger.Warn("failed to record last login", zap.String("user_id", user.ID), zap.Error(err))
	} else {
		now := time.Now()
		user.LastLogin = &now
	}

	h.respondWithTokens(c, http.StatusOK, user)
}

// Refresh exchanges a refresh token for a new token pair
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	claims, err := h.tokens.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid refresh token"})
		return
	}

	user, err := h.users.GetUserByID(c.Request.Context(), claims.UserID)
	if errors.Is(err, db.ErrNotFound) || (err == nil && !user.IsActive) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid refresh token"})
		return
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.respondWithTokens(c, http.StatusOK, user)
}

// Logout is stateless: tokens simply expire. It exists so clients have a
// uniform call to make before discarding their tokens.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.logger.Debug("user logged out", zap.String("user_id", middleware.GetUserID(c)))
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Profile returns the current user
func (h *AuthHandler) Profile(c *gin.Context) {
	user, err := h.users.GetUserByID(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UpdateProfile applies the fields present in the request body
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), middleware.GetUserID(c), db.ProfileUpdate{
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		Phone:             req.Phone,
		Gender:            req.Gender,
		DateOfBirth:       req.DateOfBirth,
		Specialization:    req.Specialization,
		LicenseNumber:     req.LicenseNumber,
		YearsOfExperience: req.YearsOfExperience,
		Bio:               req.Bio,
		ConsultationFee:   req.ConsultationFee,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Profile updated", "user": user})
}

// ChangePassword verifies the current password and stores the new one
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	ctx := c.Request.Context()
	userID := middleware.GetUserID(c)
	user, err := h.users.GetUserByID(ctx, userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Current password is incorrect"})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), h.bcryptCost)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if err := h.users.UpdatePassword(ctx, userID, string(hashed)); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("password changed", zap.String("user_id", userID))
	c.JSON(http.StatusOK, gin.H{"message": "Password changed"})
}

func (h *AuthHandler) respondWithTokens(c *gin.Context, status int, user *db.User) {
	pair, err := h.tokens.GenerateTokenPair(user.ID, user.Email, user.Role)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(status, AuthResponse{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt,
	})
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
