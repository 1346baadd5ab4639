package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/themobileprof/telecare-be/internal/db"
	"github.com/themobileprof/telecare-be/pkg/auth"
)

const (
	contextUserID = "user_id"
	contextRole   = "role"
	contextEmail  = "email"
)

// TokenValidator validates access tokens
type TokenValidator interface {
	ValidateAccessToken(token string) (*auth.Claims, error)
}

// UserLookup loads the account behind a token
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*db.User, error)
}

// LoadActiveUser reloads userID from storage. A missing or deactivated
// account wraps auth.ErrUnauthorized; any other failure is returned as is.
func LoadActiveUser(ctx context.Context, users UserLookup, userID string) (*db.User, error) {
	user, err := users.GetUserByID(ctx, userID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: user not found", auth.ErrUnauthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.IsActive {
		return nil, fmt.Errorf("%w: user inactive", auth.ErrUnauthorized)
	}
	return user, nil
}

// BearerToken extracts the token from "Authorization: Bearer <token>"
func BearerToken(header string) string {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(token)
}

// JWTAuth rejects requests without a valid access token or whose account is
// gone or deactivated. The caller's id and stored role go into the gin
// context, so role changes apply without a new token.
func JWTAuth(validator TokenValidator, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		claims, err := validator.ValidateAccessToken(token)
		if err != nil {
			msg := "Invalid token"
			if errors.Is(err, auth.ErrTokenExpired) {
				msg = "Token expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		user, err := LoadActiveUser(c.Request.Context(), users, claims.UserID)
		if errors.Is(err, auth.ErrUnauthorized) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Account is deactivated or no longer exists"})
			return
		}
		if err != nil {
			c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		c.Set(contextUserID, user.ID)
		c.Set(contextRole, user.Role)
		c.Set(contextEmail, user.Email)
		c.Next()
	}
}

// RequireRole lets through only callers whose role is in roles.
// Must run after JWTAuth.
func RequireRole(roles ...auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetUserID(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		role := GetRole(c)
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
	}
}

// GetUserID returns the authenticated user's id, or "" if unauthenticated
func GetUserID(c *gin.Context) string {
	return c.GetString(contextUserID)
}

// GetRole returns the authenticated user's role
func GetRole(c *gin.Context) auth.Role {
	if v, ok := c.Get(contextRole); ok {
		if role, ok := v.(auth.Role); ok {
			return role
		}
	}
	return ""
}
