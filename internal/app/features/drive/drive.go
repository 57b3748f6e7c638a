// Package drive serves the file and folder API for the signed-in user.
//
// Items are addressed by reference ("file:<id>" or "folder:<id>"). Every
// handler resolves the caller's Identity from the session and passes it to
// the lifecycle engine, which scopes all work to that owner.
package drive

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/dalemusser/stratadrive/internal/app/system/access"
	"github.com/dalemusser/stratadrive/internal/app/system/auth"
	"github.com/dalemusser/stratadrive/internal/app/system/jsonutil"
	"github.com/dalemusser/stratadrive/internal/app/system/lifecycle"
	"github.com/dalemusser/stratadrive/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// DefaultMaxUploadSize applies when no upload limit is configured.
const DefaultMaxUploadSize = 32 << 20 // 32MB

const (
	maxBodyBytes       = 1 << 20
	defaultRecentLimit = 20
	maxRecentLimit     = 200
)

// Handler provides drive handlers.
type Handler struct {
	engine        *lifecycle.Engine
	maxUploadSize int64
	logger        *zap.Logger
}

// NewHandler creates a new drive Handler. maxUploadSize <= 0 uses
// DefaultMaxUploadSize.
func NewHandler(engine *lifecycle.Engine, maxUploadSize int64, logger *zap.Logger) *Handler {
	if maxUploadSize <= 0 {
		maxUploadSize = DefaultMaxUploadSize
	}
	return &Handler{
		engine:        engine,
		maxUploadSize: maxUploadSize,
		logger:        logger,
	}
}

// Routes returns a chi.Router with drive routes mounted.
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireSignedIn)

	// Listings
	r.Get("/items", h.list)
	r.Get("/starred", h.starred)
	r.Get("/trash", h.trash)
	r.Get("/recent", h.recent)
	r.Get("/folders/{id}/children", h.children)
	r.Get("/folders/{id}/path", h.path)

	// Creation
	r.Post("/folders", h.createFolder)
	r.Post("/files", h.upload)

	// Single items
	r.Route("/items/{ref}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Get("/content", h.download)
		r.Put("/star", h.star)
		r.Put("/name", h.rename)
		r.Put("/parent", h.move)
		r.Post("/trash", h.softDelete)
		r.Post("/restore", h.restore)
		r.Delete("/", h.purge)
	})

	r.Delete("/trash", h.emptyTrash)
	return r
}

// identity returns the caller's Identity or writes a 401.
func identity(w http.ResponseWriter, r *http.Request) (access.Identity, bool) {
	id, ok := access.IdentityFrom(r)
	if !ok {
		jsonutil.Unauthorized(w, "authentication required")
	}
	return id, ok
}

// itemRef parses the {ref} URL parameter or writes a 400.
func itemRef(w http.ResponseWriter, r *http.Request) (models.ItemRef, bool) {
	ref, err := models.ParseItemRef(chi.URLParam(r, "ref"))
	if err != nil {
		jsonutil.BadRequest(w, "invalid item reference")
		return models.ItemRef{}, false
	}
	return ref, true
}

// folderParam parses the {id} URL parameter or writes a 400.
func folderParam(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonutil.BadRequest(w, "invalid folder id")
		return primitive.NilObjectID, false
	}
	return id, true
}

// optionalFolder parses a folder id that may be empty (the root).
func optionalFolder(s string) (*primitive.ObjectID, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "root" {
		return nil, nil
	}
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := jsonutil.Decode(r, v); err != nil {
		jsonutil.BadRequest(w, "invalid JSON payload")
		return false
	}
	return true
}

// listOptions reads q, type, sort and order from the query string.
func listOptions(r *http.Request) lifecycle.ListOptions {
	q := r.URL.Query()
	opts := lifecycle.ListOptions{
		Search:      strings.TrimSpace(q.Get("q")),
		ContentType: strings.TrimSpace(q.Get("type")),
		SortBy:      q.Get("sort"),
	}
	switch strings.ToLower(q.Get("order")) {
	case "asc":
		opts.SortOrder = 1
	case "desc":
		opts.SortOrder = -1
	}
	return opts
}

func recentLimit(r *http.Request) int64 {
	n, err := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)
	if err != nil || n <= 0 {
		return defaultRecentLimit
	}
	if n > maxRecentLimit {
		return maxRecentLimit
	}
	return n
}
