package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/themobileprof/telecare-be/internal/api/middleware"
	"github.com/themobileprof/telecare-be/internal/db"
	"github.com/themobileprof/telecare-be/internal/triage"
	"github.com/themobileprof/telecare-be/pkg/auth"
)

// AdminStore is the persistence used by AdminHandler
type AdminStore interface {
	GetUserStats(ctx context.Context) (*db.UserStats, error)
	ListUsers(ctx context.Context, role auth.Role, limit, offset int) ([]db.User, int, error)
	UpdateProfile(ctx context.Context, id string, p db.ProfileUpdate) (*db.User, error)
	ToggleUserActive(ctx context.Context, id string) (*db.User, error)
	VerifyDoctor(ctx context.Context, id string) (*db.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// SessionTerminator drops a user's live realtime connection
type SessionTerminator interface {
	Disconnect(userID string) bool
}

// AdminHandler handles admin management endpoints
type AdminHandler struct {
	store    AdminStore
	sessions SessionTerminator
	logger   *zap.Logger
}

// NewAdminHandler creates a new admin handler. sessions may be nil.
func NewAdminHandler(store AdminStore, sessions SessionTerminator, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{store: store, sessions: sessions, logger: logger}
}

// Stats returns the dashboard counts
// GET /api/admin/stats
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.store.GetUserStats(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ListUsers pages through accounts, optionally filtered by role
// GET /api/admin/users?role=doctor&page=1&limit=20
func (h *AdminHandler) ListUsers(c *gin.Context) {
	role := auth.Role(c.Query("role"))
	if role != "" && !role.Valid() {
		respondError(c, h.logger, &triage.ValidationError{Fields: []string{"role: must be patient, doctor or admin"}})
		return
	}

	page := queryInt(c, "page", 1)
	limit := min(queryInt(c, "limit", 20), maxPageSize)

	users, total, err := h.store.ListUsers(c.Request.Context(), role, limit, (page-1)*limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"users":      users,
		"pagination": pagination{Total: total, Page: page, Pages: (total + limit - 1) / limit},
	})
}

// UpdateUser edits another account's profile
// PUT /api/admin/users/:id
func (h *AdminHandler) UpdateUser(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.store.UpdateProfile(c.Request.Context(), id, db.ProfileUpdate{
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
	c.JSON(http.StatusOK, gin.H{"message": "User updated", "user": user})
}

// ToggleStatus activates or deactivates an account
// PUT /api/admin/users/:id/toggle-status
func (h *AdminHandler) ToggleStatus(c *gin.Context) {
	id, ok := h.otherUserID(c)
	if !ok {
		return
	}

	user, err := h.store.ToggleUserActive(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	kicked := false
	if !user.IsActive {
		kicked = h.disconnect(id)
	}

	h.logger.Info("user status toggled",
		zap.String("user_id", id),
		zap.Bool("active", user.IsActive),
		zap.Bool("disconnected", kicked),
		zap.String("admin_id", middleware.GetUserID(c)),
	)
	c.JSON(http.StatusOK, gin.H{"message": "User status updated", "user": user})
}

// VerifyDoctor marks a doctor verified so patients can book them
// PUT /api/admin/doctors/:id/verify
func (h *AdminHandler) VerifyDoctor(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	user, err := h.store.VerifyDoctor(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.Info("doctor verified", zap.String("doctor_id", id), zap.String("admin_id", middleware.GetUserID(c)))
	c.JSON(http.StatusOK, gin.H{"message": "Doctor verified", "user": user})
}

// DeleteUser removes an account
// DELETE /api/admin/users/:id
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	id, ok := h.otherUserID(c)
	if !ok {
		return
	}

	if err := h.store.DeleteUser(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.disconnect(id)
	h.logger.Warn("user deleted", zap.String("user_id", id), zap.String("admin_id", middleware.GetUserID(c)))
	c.JSON(http.StatusOK, gin.H{"message": "User deleted"})
}

func (h *AdminHandler) disconnect(userID string) bool {
	if h.sessions == nil {
		return false
	}
	return h.sessions.Disconnect(userID)
}

// otherUserID reads :id and refuses it when it is the calling admin
func (h *AdminHandler) otherUserID(c *gin.Context) (string, bool) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, h.logger, err)
		return "", false
	}
	if id == middleware.GetUserID(c) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Admins cannot change their own account here"})
		return "", false
	}
	return id, true
}
