// Package config loads parlor's runtime configuration from a YAML file and
// PARLOR_* environment variables.
package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/bdobrica/parlor/common/environment"
	"github.com/bdobrica/parlor/common/redact"
)

// DefaultPath is read when no path is given and PARLOR_CONFIG is unset.
const DefaultPath = "parlor.yaml"

type Config struct {
	HTTP         HTTP         `yaml:"http"`
	Database     Database     `yaml:"database"`
	Personas     Personas     `yaml:"personas"`
	Templates    Templates    `yaml:"templates"`
	Conversation Conversation `yaml:"conversation"`
	Redis        Redis        `yaml:"redis"`
	Log          Log          `yaml:"log"`
	// Seed for reply selection; 0 seeds from the runtime.
	RandomSeed uint64 `yaml:"random_seed"`
}

type HTTP struct {
	// Listen address of the API server
	Addr string `yaml:"addr" example:":8001" validate:"required"`
}

type Database struct {
	// SQLite database file
	Path string `yaml:"path" example:"./parlor.db" validate:"required"`
}

type Personas struct {
	// Directory holding one YAML or JSON document per persona
	Dir string `yaml:"dir" example:"./models" validate:"required"`
	// Write the stock personas when their documents are missing
	SeedDefaults bool `yaml:"seed_defaults"`
}

type Templates struct {
	// Optional override for the built-in fallback replies
	Path string `yaml:"path"`
}

type Conversation struct {
	// Messages kept per conversation
	MaxHistory int `yaml:"max_history" validate:"gte=0"`
	// Idle conversations are dropped after this long; 0 keeps them forever
	IdleTTL time.Duration `yaml:"idle_ttl" validate:"gte=0"`
	// How often idle conversations are swept
	SweepInterval time.Duration `yaml:"sweep_interval" validate:"gte=0"`
}

type Redis struct {
	// Redis address; empty disables the interaction mirror
	Addr     string `yaml:"addr" example:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
	// Interactions kept per persona list
	ListCap int `yaml:"list_cap" validate:"gte=0"`
}

type Log struct {
	// debug, info, warn or error
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	// Telegram logging config
	Telegram TelegramLog `yaml:"telegram"`
}

type TelegramLog struct {
	// Chat bot token, obtain it via BotFather
	Token string `yaml:"token" example:"1234567890:ABCdefGHIjklMNopQRstUVwxyZ-123456789"`
	// Chat ID to send messages to
	ChatID string `yaml:"chat_id" example:"1001234567890"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		HTTP:     HTTP{Addr: ":8001"},
		Database: Database{Path: "./parlor.db"},
		Personas: Personas{Dir: "./models", SeedDefaults: true},
		Conversation: Conversation{
			MaxHistory:    50,
			SweepInterval: time.Minute,
		},
		Redis: Redis{ListCap: 1000},
		Log:   Log{Level: "info"},
	}
}

// Load reads path (or PARLOR_CONFIG, or DefaultPath) over the defaults,
// applies environment overrides and validates the result. A missing file is
// not an error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
		environment.String(&path, "PARLOR_CONFIG")
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		slog.Debug("config file not found, using defaults", "path", path)
	case err != nil:
		return nil, oops.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, oops.Errorf("failed to parse YAML config: %w", err)
		}
	}

	cfg.applyEnv()

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return nil, oops.Errorf("failed to validate config: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	environment.String(&c.HTTP.Addr, "PARLOR_HTTP_ADDR")
	environment.String(&c.Database.Path, "PARLOR_DATABASE_PATH")
	environment.String(&c.Personas.Dir, "PARLOR_PERSONAS_DIR")
	environment.Bool(&c.Personas.SeedDefaults, "PARLOR_SEED_DEFAULTS")
	environment.String(&c.Templates.Path, "PARLOR_TEMPLATES_PATH")
	environment.Int(&c.Conversation.MaxHistory, "PARLOR_MAX_HISTORY")
	environment.Duration(&c.Conversation.IdleTTL, "PARLOR_IDLE_TTL")
	environment.Duration(&c.Conversation.SweepInterval, "PARLOR_SWEEP_INTERVAL")
	environment.String(&c.Redis.Addr, "PARLOR_REDIS_ADDR")
	environment.String(&c.Redis.Password, "PARLOR_REDIS_PASSWORD")
	environment.Int(&c.Redis.DB, "PARLOR_REDIS_DB")
	environment.Int(&c.Redis.ListCap, "PARLOR_REDIS_LIST_CAP")
	environment.String(&c.Log.Level, "PARLOR_LOG_LEVEL")
	environment.String(&c.Log.Telegram.Token, "PARLOR_TELEGRAM_TOKEN")
	environment.String(&c.Log.Telegram.ChatID, "PARLOR_TELEGRAM_CHAT_ID")

	var seed int64
	if environment.Int64(&seed, "PARLOR_RANDOM_SEED") && seed >= 0 {
		c.RandomSeed = uint64(seed)
	}
}

// LogValue implements slog.LogValuer with secrets masked.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("http_addr", c.HTTP.Addr),
		slog.String("database", c.Database.Path),
		slog.String("personas_dir", c.Personas.Dir),
		slog.Bool("seed_defaults", c.Personas.SeedDefaults),
		slog.String("templates", c.Templates.Path),
		slog.Int("max_history", c.Conversation.MaxHistory),
		slog.Duration("idle_ttl", c.Conversation.IdleTTL),
		slog.String("redis_addr", c.Redis.Addr),
		slog.String("redis_password", redact.Secret(c.Redis.Password)),
		slog.String("log_level", c.Log.Level),
		slog.String("telegram_token", redact.Secret(c.Log.Telegram.Token)),
	)
}
