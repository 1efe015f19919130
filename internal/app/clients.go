package app

import (
	"context"
	"fmt"
	"time"

	"github.com/yungbote/bookmatch-backend/internal/domain/catalog"
	"github.com/yungbote/bookmatch-backend/internal/observability"
	"github.com/yungbote/bookmatch-backend/internal/platform/aladin"
	"github.com/yungbote/bookmatch-backend/internal/platform/breaker"
	"github.com/yungbote/bookmatch-backend/internal/platform/kyobo"
	"github.com/yungbote/bookmatch-backend/internal/platform/logger"
	"github.com/yungbote/bookmatch-backend/internal/platform/openai"
	"github.com/yungbote/bookmatch-backend/internal/platform/rediscache"
)

type Clients struct {
	OpenAI openai.Client
	Aladin *aladin.Client
	Kyobo  *kyobo.Crawler
	Cache  rediscache.Cache
}

func newBreaker(log *logger.Logger, metrics *observability.Metrics, name string, cfg BreakerConfig) *breaker.Breaker {
	metrics.SetBreakerState(name, "closed")
	return breaker.New(log, breaker.Config{
		Name:                name,
		ConsecutiveFailures: cfg.ConsecutiveFailures,
		OpenTimeout:         cfg.OpenTimeout,
		HalfOpenRequests:    1,
		OnStateChange:       metrics.SetBreakerState,
	})
}

func wireClients(ctx context.Context, log *logger.Logger, cfg *Config, metrics *observability.Metrics) (Clients, error) {
	var out Clients

	ai, err := openai.NewClient(log, openai.Config{
		APIKey:      cfg.OpenAI.APIKey,
		BaseURL:     cfg.OpenAI.BaseURL,
		Model:       cfg.OpenAI.Model,
		EmbedModel:  cfg.OpenAI.EmbedModel,
		Timeout:     cfg.OpenAI.Timeout,
		MaxRetries:  cfg.OpenAI.MaxRetries,
		Temperature: cfg.OpenAI.Temperature,
	}, newBreaker(log, metrics, "openai", cfg.Breaker))
	if err != nil {
		return out, fmt.Errorf("init openai client: %w", err)
	}
	out.OpenAI = ai

	al, err := aladin.NewClient(log, aladin.Config{
		TTBKey:         cfg.Aladin.TTBKey,
		BaseURL:        cfg.Aladin.BaseURL,
		Timeout:        cfg.Aladin.Timeout,
		BestsellerSize: cfg.Aladin.BestsellerSize,
	}, newBreaker(log, metrics, "aladin", cfg.Breaker))
	if err != nil {
		return out, fmt.Errorf("init aladin client: %w", err)
	}
	out.Aladin = al

	kc, err := kyobo.NewCrawler(log, kyobo.Config{
		BaseURL: cfg.Kyobo.BaseURL,
		Timeout: cfg.Kyobo.Timeout,
	}, newBreaker(log, metrics, "kyobo", cfg.Breaker))
	if err != nil {
		return out, fmt.Errorf("init kyobo crawler: %w", err)
	}
	out.Kyobo = kc

	var cache rediscache.Cache
	if cfg.Redis.Addr == "" {
		log.Info("REDIS_ADDR not set, using in-process lookup cache")
		cache = rediscache.NewMemory()
	} else {
		cache, err = rediscache.New(ctx, log, rediscache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err != nil {
			return out, fmt.Errorf("init redis cache: %w", err)
		}
	}
	out.Cache = cache
	return out, nil
}

// countingCache records a hit or miss per lookup under one cache name.
type countingCache struct {
	rediscache.Cache
	name    string
	metrics *observability.Metrics
}

func withLookupMetrics(c rediscache.Cache, name string, metrics *observability.Metrics) rediscache.Cache {
	return &countingCache{Cache: c, name: name, metrics: metrics}
}

func (c *countingCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	hit, err := c.Cache.Get(ctx, key, dst)
	if err == nil {
		c.metrics.IncCacheLookup(c.name, hit)
	}
	return hit, err
}

// cachedMetadata reads book metadata through the lookup cache. Errors,
// including not-found, are never cached.
type cachedMetadata struct {
	log   *logger.Logger
	inner interface {
		LookupByISBN(ctx context.Context, isbn string) (catalog.BookInfo, error)
	}
	cache rediscache.Cache
	ttl   time.Duration
}

func (m *cachedMetadata) LookupByISBN(ctx context.Context, isbn string) (catalog.BookInfo, error) {
	return rediscache.GetOrLoad(ctx, m.cache, m.log, "metadata:"+isbn, m.ttl, func(ctx context.Context) (catalog.BookInfo, error) {
		return m.inner.LookupByISBN(ctx, isbn)
	})
}

type cachedCrawler struct {
	log   *logger.Logger
	inner interface {
		Hashtags(ctx context.Context, isbn string) (kyobo.Result, error)
	}
	cache rediscache.Cache
	ttl   time.Duration
}

func (c *cachedCrawler) Hashtags(ctx context.Context, isbn string) (kyobo.Result, error) {
	return rediscache.GetOrLoad(ctx, c.cache, c.log, "hashtags:"+isbn, c.ttl, func(ctx context.Context) (kyobo.Result, error) {
		return c.inner.Hashtags(ctx, isbn)
	})
}
