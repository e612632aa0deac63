package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/bdobrica/parlor/common/version"
)

// healthResponse is returned by GET /health.
type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
}

// statusResponse is returned by GET /status.
type statusResponse struct {
	Status              string    `json:"status"`
	Version             string    `json:"version"`
	Commit              string    `json:"commit"`
	BuildTime           string    `json:"build_time"`
	StartedAt           time.Time `json:"started_at"`
	UptimeSecs          float64   `json:"uptime_seconds"`
	ActiveConversations int       `json:"active_conversations"`
	ModelsLoaded        int       `json:"models_loaded"`
}

// apiHealthResponse is returned by GET /api/health.
type apiHealthResponse struct {
	Status              string    `json:"status"`
	Database            string    `json:"database"`
	ModelsLoaded        int       `json:"models_loaded"`
	ActiveConversations int       `json:"active_conversations"`
	Timestamp           time.Time `json:"timestamp"`
}

// Health responds with a simple ok payload.
// GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{
		Status:  "ok",
		Version: version.Version,
		Commit:  version.GitCommit,
	})
}

// Status responds with runtime statistics.
// GET /status
func (h *Handler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, statusResponse{
		Status:              "ok",
		Version:             version.Version,
		Commit:              version.GitCommit,
		BuildTime:           version.BuildTime,
		StartedAt:           h.startedAt,
		UptimeSecs:          time.Since(h.startedAt).Seconds(),
		ActiveConversations: h.chat.ActiveConversations(),
		ModelsLoaded:        h.loaded(),
	})
}

// APIHealth reports database reachability alongside service counters. A
// dead database degrades the status but still answers 200 so dashboards can
// show it.
// GET /api/health
func (h *Handler) APIHealth(c echo.Context) error {
	resp := apiHealthResponse{
		Status:              "healthy",
		Database:            "connected",
		ModelsLoaded:        h.loaded(),
		ActiveConversations: h.chat.ActiveConversations(),
		Timestamp:           time.Now().UTC(),
	}
	if h.db != nil {
		if err := h.db.Ping(c.Request().Context()); err != nil {
			resp.Status = "degraded"
			resp.Database = "disconnected"
		}
	}
	return c.JSON(http.StatusOK, resp)
}
