// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"time"

	accountfeature "github.com/dalemusser/stratadrive/internal/app/features/account"
	drivefeature "github.com/dalemusser/stratadrive/internal/app/features/drive"
	healthfeature "github.com/dalemusser/stratadrive/internal/app/features/health"
	jobstatsstore "github.com/dalemusser/stratadrive/internal/app/store/jobstats"
	orphanstore "github.com/dalemusser/stratadrive/internal/app/store/orphans"
	"github.com/dalemusser/stratadrive/internal/app/store/ratelimit"
	userstore "github.com/dalemusser/stratadrive/internal/app/store/users"
	"github.com/dalemusser/stratadrive/internal/app/system/access"
	"github.com/dalemusser/stratadrive/internal/app/system/auth"
	"github.com/dalemusser/stratadrive/internal/app/system/jsonutil"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"
	"go.uber.org/zap"
)

// CSRFHeader is the request header API clients echo the token in.
const CSRFHeader = "X-CSRF-Token"

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// Startup have completed. Everything is a JSON API:
//   - /api/csrf, /api/account: session and profile (30s request timeout)
//   - /api/drive: files and folders (per-handler timeouts, so large
//     uploads and downloads are not cut off)
//   - /health, /ready, /readyz, /livez: health checks
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// Rate limiting for login attempts (nil if disabled)
	var limiter access.Limiter
	if appCfg.RateLimitEnabled {
		limiter = ratelimit.New(
			deps.MongoDatabase,
			appCfg.RateLimitLoginAttempts,
			appCfg.RateLimitLoginWindow,
			appCfg.RateLimitLoginLockout,
		)
	}
	accessSvc := access.New(userstore.New(deps.MongoDatabase), limiter, logger.Named("access"))
	if deps.Blobs != nil {
		accessSvc.SetPictureStore(deps.Blobs, orphanstore.New(deps.MongoDatabase))
	}

	// The session middleware binds a fresh Identity on every request, so a
	// deleted account loses access immediately.
	sessionMgr.SetUserFetcher(accessSvc)

	if driveEngine == nil {
		driveEngine = newEngine(appCfg, deps, logger)
	}

	r := chi.NewRouter()

	// ─────────────────────────────────────────────────────────────────────────────
	// Global Middleware (applies to ALL routes)
	// ─────────────────────────────────────────────────────────────────────────────

	// CORS middleware: must be early in the chain to handle preflight requests.
	r.Use(middleware.CORSFromConfig(coreCfg))

	// Security headers middleware: adds X-Frame-Options, X-Content-Type-Options, etc.
	r.Use(middleware.SecurityHeadersFromConfig(coreCfg))

	// Session middleware: loads SessionUser into context if signed in.
	r.Use(sessionMgr.LoadSessionUser)

	r.Use(csrfProtection(appCfg, secure, logger))

	// ─────────────────────────────────────────────────────────────────────────────
	// Routes
	// ─────────────────────────────────────────────────────────────────────────────

	healthHandler := healthfeature.NewHandler(deps.MongoClient, orphanstore.New(deps.MongoDatabase), jobstatsstore.New(deps.MongoDatabase), logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	healthfeature.MountRootEndpoints(r, healthHandler)

	r.Group(func(tr chi.Router) {
		// Request timeout middleware: prevents requests from hanging indefinitely.
		tr.Use(chimw.Timeout(30 * time.Second))

		tr.Get("/api/csrf", accountfeature.CSRFToken)

		accountHandler := accountfeature.NewHandler(accessSvc, sessionMgr, logger)
		tr.Mount("/api/account", accountfeature.Routes(accountHandler, sessionMgr))
	})

	driveHandler := drivefeature.NewHandler(driveEngine, appCfg.MaxUploadSize, logger)
	r.Mount("/api/drive", drivefeature.Routes(driveHandler, sessionMgr))

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		jsonutil.NotFound(w, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		jsonutil.Error(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r, nil
}

// csrfProtection guards every state-changing request. API clients fetch the
// token from GET /api/csrf and echo it in the X-CSRF-Token header. Cookie
// name is "stratadrive_csrf" to avoid collisions with other services on the
// same domain.
func csrfProtection(appCfg AppConfig, secure bool, logger *zap.Logger) func(http.Handler) http.Handler {
	opts := []csrf.Option{
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.CookieName("stratadrive_csrf"),
		csrf.RequestHeader(CSRFHeader),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			logger.Warn("CSRF validation failed",
				zap.String("path", req.URL.Path),
				zap.String("method", req.Method),
				zap.String("reason", csrf.FailureReason(req).Error()),
			)
			jsonutil.Forbidden(w, "CSRF token invalid or missing")
		})),
	}
	// In dev mode, trust localhost origins for CSRF validation.
	if !secure {
		opts = append(opts, csrf.TrustedOrigins([]string{
			"localhost:8080",
			"localhost:3000",
			"127.0.0.1:8080",
			"127.0.0.1:3000",
		}))
	}
	if appCfg.SessionDomain != "" {
		opts = append(opts, csrf.Domain(appCfg.SessionDomain))
	}
	return csrf.Protect([]byte(appCfg.CSRFKey), opts...)
}
