// Package logging configures the process-wide slog logger.
package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/phsym/console-slog"
	slogmulti "github.com/samber/slog-multi"
	slogtelegram "github.com/samber/slog-telegram/v2"

	"github.com/bdobrica/parlor/common/trace"
	"github.com/bdobrica/parlor/internal/parlor/config"
)

// TelegramKey marks a record for delivery to Telegram regardless of level.
const TelegramKey = "telegram"

// Preinit installs a console logger for the period before config is loaded.
func Preinit() {
	slog.SetDefault(slog.New(console.NewHandler(os.Stderr, &console.HandlerOptions{
		AddSource: true,
		Level:     slog.LevelDebug,
	})))
}

// Init replaces the default logger with one that writes to the console and,
// when a bot token is configured, forwards errors and records tagged with
// TelegramKey to Telegram.
func Init(cfg config.Log) error {
	router := slogmulti.Router()

	router = router.Add(console.NewHandler(os.Stderr, &console.HandlerOptions{
		AddSource: true,
		Level:     ParseLevel(cfg.Level),
	}))

	if cfg.Telegram.Token != "" {
		router = router.Add(
			slogtelegram.Option{
				Level:     slog.LevelDebug,
				Token:     cfg.Telegram.Token,
				Username:  cfg.Telegram.ChatID,
				AddSource: true,
			}.NewTelegramHandler(),
			forTelegram,
		)
	}

	slog.SetDefault(slog.New(router.Handler()))

	return nil
}

func forTelegram(_ context.Context, r slog.Record) bool {
	tagged := false
	r.Attrs(func(attr slog.Attr) bool {
		if attr.Key == TelegramKey {
			tagged = true
			return false
		}
		return true
	})
	return r.Level >= slog.LevelError || tagged
}

// ParseLevel maps a config level name to a slog level. Unknown names map to
// info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithTrace returns the default logger annotated with the request's trace ID,
// if any.
func WithTrace(ctx context.Context) *slog.Logger {
	if id := trace.FromContext(ctx); id != "" {
		return slog.Default().With("trace_id", id)
	}
	return slog.Default()
}
