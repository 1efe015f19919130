// Package rediscache is a small read-through cache for external lookups
// (book metadata, crawled hashtags). Values are JSON encoded.
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/bookmatch-backend/internal/platform/logger"
)

type Cache interface {
	// Get decodes the cached value into dst and reports whether it was present.
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
	Close() error
}

type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

type redisCache struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
}

func New(ctx context.Context, log *logger.Logger, cfg Config) (Cache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "bookmatch:"
	}
	return &redisCache{log: log.With("service", "RedisCache"), rdb: rdb, prefix: prefix}, nil
}

func (c *redisCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		// a stale shape is a miss, not a failure
		c.log.Warn("Cache entry undecodable; ignoring", "key", key, "error", err)
		return false, nil
	}
	return true, nil
}

func (c *redisCache) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.prefix+key, raw, ttl).Err()
}

func (c *redisCache) Close() error { return c.rdb.Close() }

// Memory is an in-process Cache used when no Redis is configured.
type Memory struct {
	mu      sync.Mutex
	entries map[string]memEntry
	now     func() time.Time
}

type memEntry struct {
	raw     []byte
	expires time.Time
}

func NewMemory() *Memory {
	return &Memory{entries: map[string]memEntry{}, now: time.Now}
}

func (m *Memory) Get(_ context.Context, key string, dst any) (bool, error) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if ok && !e.expires.IsZero() && m.now().After(e.expires) {
		delete(m.entries, key)
		ok = false
	}
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(e.raw, dst)
}

func (m *Memory) Set(_ context.Context, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	e := memEntry{raw: raw}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }

// GetOrLoad returns the cached value for key, or calls load and caches its
// result. Cache failures degrade to calling load.
func GetOrLoad[T any](ctx context.Context, c Cache, log *logger.Logger, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var cached T
	if c != nil {
		hit, err := c.Get(ctx, key, &cached)
		if err != nil {
			log.Warn("Cache read failed", "key", key, "error", err)
		} else if hit {
			return cached, nil
		}
	}
	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	if c != nil {
		if err := c.Set(ctx, key, v, ttl); err != nil {
			log.Warn("Cache write failed", "key", key, "error", err)
		}
	}
	return v, nil
}
