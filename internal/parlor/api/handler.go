// Package api provides the HTTP handlers for parlor.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/bdobrica/parlor/common/trace"
	"github.com/bdobrica/parlor/internal/parlor/chat"
	"github.com/bdobrica/parlor/internal/parlor/persona"
)

// SettingsStore is what the settings endpoints need.
type SettingsStore interface {
	Platform(ctx context.Context) (persona.Platform, error)
	SavePlatform(ctx context.Context, p persona.Platform) error
	User(ctx context.Context) (map[string]any, error)
	SaveUser(ctx context.Context, update map[string]any) (map[string]any, error)
}

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler handles HTTP requests.
type Handler struct {
	chat      *chat.Service
	settings  SettingsStore
	db        Pinger
	loaded    func() int
	startedAt time.Time
}

// Options are the collaborators of a Handler. DB and Loaded may be nil.
type Options struct {
	Chat     *chat.Service
	Settings SettingsStore
	DB       Pinger
	// Loaded returns the number of personas currently cached.
	Loaded func() int
}

// NewHandler creates a new handler.
func NewHandler(o Options) *Handler {
	loaded := o.Loaded
	if loaded == nil {
		loaded = func() int { return 0 }
	}
	return &Handler{
		chat:      o.Chat,
		settings:  o.Settings,
		db:        o.DB,
		loaded:    loaded,
		startedAt: time.Now(),
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	e.GET("/status", h.Status)

	g := e.Group("/api")
	g.GET("/", h.Root)
	g.GET("/health", h.APIHealth)

	g.POST("/chat", h.Chat)
	g.POST("/test", h.Test)
	g.POST("/rate", h.Rate)
	g.POST("/train", h.Train)

	g.GET("/models", h.ListPersonas)
	g.GET("/model/:name", h.GetPersona)
	g.POST("/model/:name", h.SavePersona)

	g.GET("/statistics", h.Statistics)
	g.GET("/settings", h.GetSettings)
	g.POST("/settings", h.SaveSettings)
	g.GET("/platform-settings", h.GetPlatformSettings)
	g.POST("/platform-settings", h.SavePlatformSettings)
}

// NewServer returns an echo instance with the standard middleware and every
// route registered.
func NewServer(h *Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{v: validator.New(validator.WithRequiredStructEnabled())}

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(Trace)
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			slog.LogAttrs(c.Request().Context(), level, "request",
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("trace_id", trace.FromContext(c.Request().Context())),
			)
			return nil
		},
	}))

	h.RegisterRoutes(e)
	return e
}

// requestValidator adapts go-playground/validator to echo.Validator.
type requestValidator struct {
	v *validator.Validate
}

func (r *requestValidator) Validate(i any) error {
	return r.v.Struct(i)
}

// Trace stores the request's trace ID in its context and echoes it back in
// the response header. Client-supplied IDs are kept when usable.
func Trace(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := trace.Accept(c.Request().Header.Get(trace.Header))
		req := c.Request()
		c.SetRequest(req.WithContext(trace.WithTraceID(req.Context(), id)))
		c.Response().Header().Set(trace.Header, id)
		return next(c)
	}
}

// Root returns the API banner.
// GET /api/
func (h *Handler) Root(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"message": "parlor persona chat API"})
}
