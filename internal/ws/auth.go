package ws

import (
	"context"
	"fmt"
	"net/http"

	"github.com/themobileprof/telecare-be/internal/api/middleware"
	"github.com/themobileprof/telecare-be/internal/db"
	"github.com/themobileprof/telecare-be/pkg/auth"
)

// Identity is the authenticated principal bound to a connection
type Identity struct {
	UserID string
	Role   auth.Role
}

// UserLookup loads the account behind a token
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*db.User, error)
}

// Authenticator validates a connection's credential once, before upgrade
type Authenticator struct {
	tokens middleware.TokenValidator
	users  UserLookup
}

func NewAuthenticator(tokens middleware.TokenValidator, users UserLookup) *Authenticator {
	return &Authenticator{tokens: tokens, users: users}
}

// Authenticate resolves token to an active user. Credential failures wrap
// auth.ErrUnauthorized; storage failures do not.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, fmt.Errorf("%w: token missing", auth.ErrUnauthorized)
	}

	claims, err := a.tokens.ValidateAccessToken(token)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", auth.ErrUnauthorized, err)
	}

	user, err := middleware.LoadActiveUser(ctx, a.users, claims.UserID)
	if err != nil {
		return Identity{}, err
	}
	return Identity{UserID: user.ID, Role: user.Role}, nil
}

// TokenFromRequest reads the handshake credential from ?token= or the
// Authorization header
func TokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	return middleware.BearerToken(r.Header.Get("Authorization"))
}
