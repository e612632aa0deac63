package interactions

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/bdobrica/parlor/common/retry"
)

// MirrorConfig configures the Redis mirror.
type MirrorConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // key prefix, default "parlor:interactions"
	ListCap  int    // entries kept per persona, default 1000
}

// Mirror pushes interactions onto a capped Redis list per persona so other
// services can follow recent traffic.
type Mirror struct {
	client *redis.Client
	prefix string
	cap    int64
}

var _ Sink = (*Mirror)(nil)

// NewMirror connects to Redis, retrying the initial ping with the default
// backoff.
func NewMirror(ctx context.Context, cfg MirrorConfig) (*Mirror, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = "parlor:interactions"
	}
	if cfg.ListCap <= 0 {
		cfg.ListCap = 1000
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	err := retry.Do(ctx, retry.DefaultConfig, func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("interactions: connect redis %s: %w", cfg.Addr, err)
	}

	return &Mirror{client: client, prefix: cfg.Prefix, cap: int64(cfg.ListCap)}, nil
}

func (m *Mirror) key(persona string) string {
	return m.prefix + ":" + persona
}

// Record implements Sink.
func (m *Mirror) Record(ctx context.Context, in Interaction) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("interactions: encode: %w", err)
	}
	key := m.key(in.Persona)
	_, err = m.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, key, data)
		pipe.LTrim(ctx, key, 0, m.cap-1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("interactions: mirror %s: %w", key, err)
	}
	return nil
}

// Recent returns up to n of the newest mirrored interactions for persona.
func (m *Mirror) Recent(ctx context.Context, persona string, n int) ([]Interaction, error) {
	if n <= 0 {
		return nil, nil
	}
	raw, err := m.client.LRange(ctx, m.key(persona), 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("interactions: read mirror: %w", err)
	}
	out := make([]Interaction, 0, len(raw))
	for _, r := range raw {
		var in Interaction
		if err := json.Unmarshal([]byte(r), &in); err != nil {
			return nil, fmt.Errorf("interactions: decode mirror entry: %w", err)
		}
		out = append(out, in)
	}
	return out, nil
}

// Ping reports whether Redis is reachable.
func (m *Mirror) Ping(ctx context.Context) error {
	return m.client.Ping(ctx).Err()
}

// Shutdown closes the client.
func (m *Mirror) Shutdown() error {
	return m.client.Close()
}
