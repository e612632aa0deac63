package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bdobrica/parlor/internal/parlor/config"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "parlor.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	def := config.Default()
	if cfg.HTTP.Addr != def.HTTP.Addr || cfg.Database.Path != def.Database.Path {
		t.Errorf("expected defaults, got %+v", cfg)
	}
	if cfg.Conversation.MaxHistory != 50 || cfg.Conversation.IdleTTL != 0 {
		t.Errorf("unexpected conversation defaults: %+v", cfg.Conversation)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
http:
  addr: ":9000"
personas:
  dir: /srv/personas
conversation:
  idle_ttl: 30m
redis:
  addr: localhost:6379
  list_cap: 50
random_seed: 7
`)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Addr != ":9000" || cfg.Personas.Dir != "/srv/personas" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Conversation.IdleTTL != 30*time.Minute {
		t.Errorf("idle_ttl: got %v", cfg.Conversation.IdleTTL)
	}
	if cfg.Database.Path != "./parlor.db" {
		t.Errorf("unset keys must keep defaults, got %q", cfg.Database.Path)
	}
	if cfg.Redis.ListCap != 50 || cfg.RandomSeed != 7 {
		t.Errorf("unexpected redis/seed: %+v %d", cfg.Redis, cfg.RandomSeed)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "http:\n  addr: \":9000\"\n")
	t.Setenv("PARLOR_HTTP_ADDR", ":9100")
	t.Setenv("PARLOR_IDLE_TTL", "1h")
	t.Setenv("PARLOR_REDIS_DB", "not-a-number")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Addr != ":9100" {
		t.Errorf("env override not applied: %q", cfg.HTTP.Addr)
	}
	if cfg.Conversation.IdleTTL != time.Hour {
		t.Errorf("idle ttl: got %v", cfg.Conversation.IdleTTL)
	}
	if cfg.Redis.DB != 0 {
		t.Errorf("unparseable env must be ignored, got %d", cfg.Redis.DB)
	}
}

func TestLoad_ConfigPathFromEnv(t *testing.T) {
	path := writeFile(t, "database:\n  path: /tmp/x.db\n")
	t.Setenv("PARLOR_CONFIG", path)

	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Database.Path != "/tmp/x.db" {
		t.Errorf("expected PARLOR_CONFIG file to be read, got %q", cfg.Database.Path)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"bad yaml":      "http: [",
		"bad log level": "log:\n  level: loud\n",
		"empty addr":    "http:\n  addr: \"\"\n",
		"negative cap":  "redis:\n  list_cap: -1\n",
		"negative hist": "conversation:\n  max_history: -5\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := config.Load(writeFile(t, content)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLogValue_MasksSecrets(t *testing.T) {
	cfg := config.Default()
	cfg.Redis.Password = "hunter2-redis"
	cfg.Log.Telegram.Token = "1234567890:SECRETTOKEN"

	var sb strings.Builder
	logger := slog.New(slog.NewTextHandler(&sb, nil))
	logger.Info("config", "cfg", cfg)

	out := sb.String()
	if strings.Contains(out, "hunter2-redis") || strings.Contains(out, "SECRETTOKEN") {
		t.Errorf("secret leaked into log output: %s", out)
	}
	if !strings.Contains(out, ":8001") {
		t.Errorf("expected non-secret values in output: %s", out)
	}
}
