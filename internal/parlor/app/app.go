// Package app wires parlor's services together and runs the HTTP server.
package app

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/samber/do"
	"golang.org/x/sync/errgroup"

	"github.com/bdobrica/parlor/internal/parlor/api"
	"github.com/bdobrica/parlor/internal/parlor/chat"
	"github.com/bdobrica/parlor/internal/parlor/config"
	"github.com/bdobrica/parlor/internal/parlor/conversation"
	"github.com/bdobrica/parlor/internal/parlor/interactions"
	"github.com/bdobrica/parlor/internal/parlor/persona"
	"github.com/bdobrica/parlor/internal/parlor/respond"
	"github.com/bdobrica/parlor/internal/parlor/settings"
	"github.com/bdobrica/parlor/internal/parlor/store"
	"github.com/bdobrica/parlor/internal/parlor/training"
)

// shutdownTimeout bounds how long in-flight requests get on exit.
const shutdownTimeout = 10 * time.Second

// App is the parlor service.
type App struct {
	cfg     *config.Config
	di      *do.Injector
	server  *echo.Echo
	tracker *conversation.Tracker
}

// New builds every service. ctx bounds the startup work (Redis connection);
// cfg is expected to be validated already.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	di := do.New()
	do.ProvideValue(di, ctx)
	do.ProvideValue(di, cfg)

	do.Provide(di, newStore)
	do.Provide(di, newPersonas)
	do.Provide(di, newTemplates)
	do.Provide(di, newTracker)
	do.Provide(di, newTraining)
	do.Provide(di, newSelector)
	do.Provide(di, newLog)
	do.Provide(di, newMirror)
	do.Provide(di, newSink)
	do.Provide(di, newSettings)
	do.Provide(di, newChat)
	do.Provide(di, newHandler)

	h, err := do.Invoke[*api.Handler](di)
	if err != nil {
		_ = di.Shutdown()
		return nil, err
	}

	return &App{
		cfg:     cfg,
		di:      di,
		server:  api.NewServer(h),
		tracker: do.MustInvoke[*conversation.Tracker](di),
	}, nil
}

// Handler returns the HTTP handler serving every route.
func (a *App) Handler() http.Handler {
	return a.server
}

// Run serves HTTP and sweeps idle conversations until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("http server listening", "addr", a.cfg.HTTP.Addr)
		if err := a.server.Start(a.cfg.HTTP.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		slog.Info("stopping http server")
		return a.server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		a.sweep(ctx)
		return nil
	})

	return g.Wait()
}

// sweep evicts idle conversations every SweepInterval. It returns at once
// when eviction is disabled.
func (a *App) sweep(ctx context.Context) {
	interval := a.cfg.Conversation.SweepInterval
	if a.tracker.IdleTTL() <= 0 || interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := a.tracker.Evict(now); n > 0 {
				slog.Debug("evicted idle conversations", "count", n)
			}
		}
	}
}

// Stop closes the database and the Redis mirror.
func (a *App) Stop() {
	slog.Info("closing services")
	if err := a.di.Shutdown(); err != nil {
		slog.Warn("shutdown", "err", err)
	}
}

func newStore(di *do.Injector) (*store.Store, error) {
	cfg := do.MustInvoke[*config.Config](di)
	return store.New(cfg.Database.Path)
}

func newPersonas(di *do.Injector) (*persona.FileSource, error) {
	cfg := do.MustInvoke[*config.Config](di)
	ctx := do.MustInvoke[context.Context](di)

	src, err := persona.NewFileSource(cfg.Personas.Dir)
	if err != nil {
		return nil, err
	}
	if cfg.Personas.SeedDefaults {
		created, err := persona.SeedDefaults(ctx, src)
		if err != nil {
			return nil, err
		}
		if len(created) > 0 {
			slog.Info("seeded default personas", "names", created)
		}
	}
	return src, nil
}

func newTemplates(di *do.Injector) (*respond.Templates, error) {
	cfg := do.MustInvoke[*config.Config](di)
	if cfg.Templates.Path == "" {
		return respond.DefaultTemplates(), nil
	}
	return respond.LoadTemplates(cfg.Templates.Path)
}

func newTracker(di *do.Injector) (*conversation.Tracker, error) {
	cfg := do.MustInvoke[*config.Config](di)
	return conversation.NewTracker(conversation.TrackerConfig{
		MaxHistory: cfg.Conversation.MaxHistory,
		IdleTTL:    cfg.Conversation.IdleTTL,
	}), nil
}

func newTraining(di *do.Injector) (training.Store, error) {
	return training.New(do.MustInvoke[*store.Store](di)), nil
}

func newSelector(di *do.Injector) (*respond.Selector, error) {
	cfg := do.MustInvoke[*config.Config](di)
	var rng *rand.Rand
	if cfg.RandomSeed != 0 {
		rng = rand.New(rand.NewPCG(cfg.RandomSeed, cfg.RandomSeed))
	}
	return respond.NewSelector(
		do.MustInvoke[training.Store](di),
		do.MustInvoke[*respond.Templates](di),
		rng,
	), nil
}

func newLog(di *do.Injector) (*interactions.Log, error) {
	return interactions.NewLog(do.MustInvoke[*store.Store](di)), nil
}

// newSink fans interactions out to SQLite and, when configured, Redis. An
// unreachable Redis is logged and skipped.
func newSink(di *do.Injector) (interactions.Sink, error) {
	cfg := do.MustInvoke[*config.Config](di)
	log := do.MustInvoke[*interactions.Log](di)
	if cfg.Redis.Addr == "" {
		return log, nil
	}

	mirror, err := do.Invoke[*interactions.Mirror](di)
	if err != nil {
		slog.Warn("redis mirror disabled", "addr", cfg.Redis.Addr, "err", err)
		return log, nil
	}
	return interactions.Fanout{log, mirror}, nil
}

func newSettings(di *do.Injector) (*settings.Store, error) {
	return settings.New(do.MustInvoke[*store.Store](di)), nil
}

func newChat(di *do.Injector) (*chat.Service, error) {
	log := do.MustInvoke[*interactions.Log](di)
	return chat.NewService(chat.Deps{
		Personas: do.MustInvoke[*persona.FileSource](di),
		Platform: do.MustInvoke[*settings.Store](di),
		Tracker:  do.MustInvoke[*conversation.Tracker](di),
		Selector: do.MustInvoke[*respond.Selector](di),
		Training: do.MustInvoke[training.Store](di),
		Sink:     do.MustInvoke[interactions.Sink](di),
		Ratings:  log,
	}), nil
}

func newHandler(di *do.Injector) (*api.Handler, error) {
	src := do.MustInvoke[*persona.FileSource](di)
	return api.NewHandler(api.Options{
		Chat:     do.MustInvoke[*chat.Service](di),
		Settings: do.MustInvoke[*settings.Store](di),
		DB:       do.MustInvoke[*store.Store](di),
		Loaded:   src.Loaded,
	}), nil
}

func newMirror(di *do.Injector) (*interactions.Mirror, error) {
	cfg := do.MustInvoke[*config.Config](di)
	ctx := do.MustInvoke[context.Context](di)
	return interactions.NewMirror(ctx, interactions.MirrorConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		ListCap:  cfg.Redis.ListCap,
	})
}
