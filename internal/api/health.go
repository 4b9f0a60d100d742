package api

import (
	"net/http"
	"time"

	"github.com/snarg/turngap/internal/batch"
	"github.com/snarg/turngap/internal/config"
	"github.com/snarg/turngap/internal/database"
)

// HealthHandler reports service liveness and the state of its optional
// collaborators. Always unauthenticated.
type HealthHandler struct {
	cfg       *config.Config
	db        *database.DB   // nil when persistence is disabled
	runner    *batch.Runner  // nil when watch mode is off
	watcher   *batch.Watcher // nil when watch mode is off
	version   string
	startTime time.Time
}

func NewHealthHandler(cfg *config.Config, db *database.DB, runner *batch.Runner, watcher *batch.Watcher, version string, startTime time.Time) *HealthHandler {
	return &HealthHandler{
		cfg:       cfg,
		db:        db,
		runner:    runner,
		watcher:   watcher,
		version:   version,
		startTime: startTime,
	}
}

type healthResponse struct {
	Status        string               `json:"status"`
	Version       string               `json:"version"`
	UptimeSeconds int64                `json:"uptime_seconds"`
	Checks        map[string]string    `json:"checks"`
	Queue         *batch.QueueStats    `json:"queue,omitempty"`
	Watcher       *batch.WatcherStatus `json:"watcher,omitempty"`
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:        "ok",
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Checks:        map[string]string{},
	}

	if h.cfg.RequireAPIKey() == nil {
		resp.Checks["provider"] = "configured"
	} else {
		resp.Checks["provider"] = "missing_api_key"
		resp.Status = "degraded"
	}

	if h.db != nil {
		if err := h.db.HealthCheck(r.Context()); err != nil {
			resp.Checks["database"] = "error: " + err.Error()
			resp.Status = "degraded"
		} else {
			resp.Checks["database"] = "ok"
		}
	} else {
		resp.Checks["database"] = "not_configured"
	}

	if h.runner != nil {
		stats := h.runner.Stats()
		resp.Queue = &stats
	}
	if h.watcher != nil {
		resp.Watcher = h.watcher.Status()
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	WriteJSON(w, status, resp)
}
