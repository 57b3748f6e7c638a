// Package account serves sign-up, sign-in and profile endpoints.
//
// Endpoints (mounted at /api/account):
//   - POST /register  - create an account and sign in
//   - POST /login     - sign in
//   - POST /logout    - end the session
//   - GET  /me        - current user
//   - PUT  /profile   - update profile fields
//   - PUT  /password  - change password
//   - PUT  /picture   - upload a profile picture (multipart field "picture")
//   - GET  /picture   - the uploaded picture
//   - DELETE /picture - remove the uploaded picture
package account

import (
	"context"
	"net/http"

	"github.com/dalemusser/stratadrive/internal/app/system/access"
	"github.com/dalemusser/stratadrive/internal/app/system/auth"
	"github.com/dalemusser/stratadrive/internal/app/system/jsonutil"
	"github.com/dalemusser/stratadrive/internal/app/system/network"
	"github.com/dalemusser/stratadrive/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/csrf"
	"go.uber.org/zap"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Handler provides account handlers.
type Handler struct {
	access     *access.Service
	sessionMgr *auth.SessionManager
	logger     *zap.Logger
}

// NewHandler creates a new account Handler.
func NewHandler(svc *access.Service, sessionMgr *auth.SessionManager, logger *zap.Logger) *Handler {
	return &Handler{
		access:     svc,
		sessionMgr: sessionMgr,
		logger:     logger,
	}
}

// Routes returns a chi.Router with account routes mounted.
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Post("/register", h.register)
	r.Post("/login", h.login)
	r.Post("/logout", h.logout)

	r.Group(func(pr chi.Router) {
		pr.Use(sessionMgr.RequireSignedIn)
		pr.Get("/me", h.me)
		pr.Put("/profile", h.updateProfile)
		pr.Put("/password", h.changePassword)
		pr.Put("/picture", h.uploadPicture)
		pr.Get("/picture", h.picture)
		pr.Delete("/picture", h.removePicture)
	})
	return r
}

// CSRFToken hands the current CSRF token to API clients, in the body and in
// the X-CSRF-Token header.
func CSRFToken(w http.ResponseWriter, r *http.Request) {
	token := csrf.Token(r)
	w.Header().Set("X-CSRF-Token", token)
	jsonutil.OK(w, map[string]string{"csrf_token": token})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := jsonutil.Decode(r, v); err != nil {
		jsonutil.BadRequest(w, "invalid JSON payload")
		return false
	}
	return true
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var in access.RegisterInput
	if !decode(w, r, &in) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, _, err := h.access.Register(ctx, in)
	if err != nil {
		jsonutil.Fail(w, err)
		return
	}
	if err := h.sessionMgr.CreateSession(w, r, u.ID); err != nil {
		h.logger.Error("create session after register", zap.String("user_id", u.ID.Hex()), zap.Error(err))
		jsonutil.InternalError(w, "could not start session")
		return
	}
	jsonutil.Created(w, u)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if !decode(w, r, &in) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	u, _, err := h.access.Authenticate(ctx, in.Email, in.Password)
	if err != nil {
		h.logger.Info("sign-in rejected",
			zap.String("ip", network.ClientIP(r)),
			zap.Error(err))
		jsonutil.Fail(w, err)
		return
	}
	if err := h.sessionMgr.CreateSession(w, r, u.ID); err != nil {
		h.logger.Error("create session after login", zap.String("user_id", u.ID.Hex()), zap.Error(err))
		jsonutil.InternalError(w, "could not start session")
		return
	}

	h.logger.Info("user signed in",
		zap.String("user_id", u.ID.Hex()),
		zap.String("ip", network.ClientIP(r)))
	jsonutil.OK(w, u)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if user, ok := auth.CurrentUser(r); ok {
		h.logger.Info("user signed out", zap.String("user_id", user.ID))
	}
	h.sessionMgr.DestroySession(w, r)
	jsonutil.NoContent(w)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	id, ok := access.IdentityFrom(r)
	if !ok {
		jsonutil.Unauthorized(w, "authentication required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.access.User(ctx, id)
	if err != nil {
		jsonutil.Fail(w, err)
		return
	}
	jsonutil.OK(w, u)
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := access.IdentityFrom(r)
	if !ok {
		jsonutil.Unauthorized(w, "authentication required")
		return
	}
	var in access.ProfileInput
	if !decode(w, r, &in) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	u, err := h.access.UpdateProfile(ctx, id, in)
	if err != nil {
		jsonutil.Fail(w, err)
		return
	}
	jsonutil.OK(w, u)
}

type passwordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	id, ok := access.IdentityFrom(r)
	if !ok {
		jsonutil.Unauthorized(w, "authentication required")
		return
	}
	var in passwordRequest
	if !decode(w, r, &in) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	if err := h.access.ChangePassword(ctx, id, in.CurrentPassword, in.NewPassword); err != nil {
		jsonutil.Fail(w, err)
		return
	}
	jsonutil.NoContent(w)
}
