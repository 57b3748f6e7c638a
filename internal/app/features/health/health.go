// internal/app/features/health/health.go
package health

import (
	"context"
	"net/http"
	"strconv"
	"time"

	jobstatsstore "github.com/dalemusser/stratadrive/internal/app/store/jobstats"
	orphanstore "github.com/dalemusser/stratadrive/internal/app/store/orphans"
	"github.com/dalemusser/stratadrive/internal/app/system/jsonutil"
	"github.com/dalemusser/stratadrive/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Handler provides health check endpoints.
type Handler struct {
	mongoClient *mongo.Client
	orphans     *orphanstore.Store
	stats       *jobstatsstore.Store
	logger      *zap.Logger
}

// NewHandler creates a new health check Handler. orphans and stats may be
// nil, in which case the blob cleanup backlog or job failures are not
// reported.
func NewHandler(mongoClient *mongo.Client, orphans *orphanstore.Store, stats *jobstatsstore.Store, logger *zap.Logger) *Handler {
	return &Handler{
		mongoClient: mongoClient,
		orphans:     orphans,
		stats:       stats,
		logger:      logger,
	}
}

// Response represents the health check response.
type Response struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services,omitempty"`
}

// Routes returns a chi.Router with health check routes mounted.
// Provides /health (full check), /health/ready, and /health/live.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.Check)
	r.Get("/ready", h.Ready)
	r.Get("/live", h.Live)
	return r
}

// MountRootEndpoints adds /ready, /readyz and /livez directly on the root
// router for orchestrator health checks.
func MountRootEndpoints(r chi.Router, h *Handler) {
	r.Get("/ready", h.Ready)
	r.Get("/readyz", h.Ready)
	r.Get("/livez", h.Live)
}

// Check pings MongoDB and reports the orphaned-blob backlog plus each
// background job's failures since yesterday. Neither degrades the status.
func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	resp := Response{
		Status:   "ok",
		Services: make(map[string]string),
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	if err := h.mongoClient.Ping(ctx, readpref.Primary()); err != nil {
		resp.Status = "degraded"
		resp.Services["mongodb"] = "unavailable"
		h.logger.Warn("health check: mongodb ping failed", zap.Error(err))
		jsonutil.JSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	resp.Services["mongodb"] = "ok"

	if h.orphans != nil {
		n, err := h.orphans.Count(ctx)
		switch {
		case err != nil:
			resp.Services["blob_cleanup"] = "unknown"
			h.logger.Warn("health check: orphan count failed", zap.Error(err))
		case n == 0:
			resp.Services["blob_cleanup"] = "ok"
		default:
			resp.Services["blob_cleanup"] = strconv.FormatInt(n, 10) + " pending"
		}
	}

	if h.stats != nil {
		now := time.Now()
		days, err := h.stats.GetRange(ctx, now.AddDate(0, 0, -1), now)
		if err != nil {
			resp.Services["jobs"] = "unknown"
			h.logger.Warn("health check: job stats read failed", zap.Error(err))
		} else {
			for job, n := range recentFailures(days) {
				if n == 0 {
					resp.Services["job:"+job] = "ok"
				} else {
					resp.Services["job:"+job] = strconv.FormatInt(n, 10) + " failures"
				}
			}
		}
	}

	jsonutil.OK(w, resp)
}

// recentFailures sums each job's failure counter across days.
func recentFailures(days []jobstatsstore.Day) map[string]int64 {
	out := make(map[string]int64)
	for i := range days {
		d := &days[i]
		out[d.Job] += d.Count(d.Job + jobstatsstore.SuffixFailures)
	}
	return out
}

// Ready checks if the service is ready to accept requests.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	if err := h.mongoClient.Ping(ctx, readpref.Primary()); err != nil {
		h.logger.Warn("readiness check failed", zap.Error(err))
		jsonutil.JSON(w, http.StatusServiceUnavailable, Response{Status: "not ready"})
		return
	}
	jsonutil.OK(w, Response{Status: "ready"})
}

// Live checks if the process is alive.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	jsonutil.OK(w, Response{Status: "alive"})
}
