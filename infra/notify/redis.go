package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/kilianp07/dockyard/core/events"
)

// RedisConfig defines the Redis notifier settings.
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	// Channel receives every event as JSON.
	Channel string `json:"channel"`
	// KeyPrefix namespaces the dock snapshot hash and counters.
	KeyPrefix string `json:"key_prefix"`
}

// SetDefaults fills address, channel and key prefix.
func (c *RedisConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.Channel == "" {
		c.Channel = "dockyard:events"
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "dockyard"
	}
}

// Validate checks the settings of an enabled notifier.
func (c RedisConfig) Validate() error {
	if c.Enabled && c.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	if c.DB < 0 {
		return fmt.Errorf("redis.db must be >= 0")
	}
	return nil
}

// RedisNotifier publishes events on a channel and keeps a hash of dock
// occupants (<prefix>:docks, dock id to truck id) plus per-kind counters.
type RedisNotifier struct {
	rdb     *redis.Client
	channel string
	prefix  string
}

// NewRedisNotifier connects to Redis and pings it.
func NewRedisNotifier(ctx context.Context, cfg RedisConfig) (*RedisNotifier, error) {
	cfg.SetDefaults()
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return &RedisNotifier{rdb: rdb, channel: cfg.Channel, prefix: cfg.KeyPrefix}, nil
}

func (n *RedisNotifier) Name() string { return "redis" }

// DocksKey is the hash holding the current occupant of each dock.
func (n *RedisNotifier) DocksKey() string { return n.prefix + ":docks" }

// CounterKey is the counter incremented for every event of kind.
func (n *RedisNotifier) CounterKey(kind events.Kind) string {
	return n.prefix + ":count:" + string(kind)
}

func (n *RedisNotifier) Notify(ctx context.Context, ev events.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = n.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.Publish(ctx, n.channel, payload)
		p.Incr(ctx, n.CounterKey(ev.Kind))
		switch ev.Kind {
		case events.KindDockAssigned:
			p.HSet(ctx, n.DocksKey(), ev.DockID, ev.TruckID)
		case events.KindDockReleased:
			p.HSet(ctx, n.DocksKey(), ev.DockID, "")
		}
		return nil
	})
	return err
}

// Close closes the client.
func (n *RedisNotifier) Close() error { return n.rdb.Close() }
