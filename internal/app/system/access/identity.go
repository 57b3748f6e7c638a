package access

import (
	"context"
	"net/http"

	"github.com/dalemusser/stratadrive/internal/app/system/auth"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Identity is an authenticated user. Its fields are unexported, so the only
// way to obtain a usable Identity is through this package (Register,
// Authenticate or Bind). The zero value is not valid.
type Identity struct {
	userID primitive.ObjectID
	email  string
}

// UserID is the owning user's ObjectID.
func (id Identity) UserID() primitive.ObjectID { return id.userID }

// Email is the normalized sign-in email.
func (id Identity) Email() string { return id.email }

// Valid reports whether id was minted by this package.
func (id Identity) Valid() bool { return !id.userID.IsZero() }

// FetchUser implements auth.UserFetcher. It binds the session's user id to a
// fresh Identity on every request; a user that no longer exists ends the
// session.
func (s *Service) FetchUser(ctx context.Context, userID string) *auth.SessionUser {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil
	}
	ident, u, err := s.Bind(ctx, oid)
	if err != nil {
		s.logger.Debug("session bind failed", zap.String("user_id", userID), zap.Error(err))
		return nil
	}
	return &auth.SessionUser{
		ID:        u.ID.Hex(),
		Name:      u.FullName,
		Email:     u.Email,
		Principal: ident,
	}
}

// IdentityFrom returns the Identity bound to the request by the session
// middleware.
func IdentityFrom(r *http.Request) (Identity, bool) {
	su, ok := auth.CurrentUser(r)
	if !ok {
		return Identity{}, false
	}
	ident, ok := su.Principal.(Identity)
	if !ok || !ident.Valid() {
		return Identity{}, false
	}
	return ident, true
}
