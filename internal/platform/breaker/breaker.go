// Package breaker wraps calls to external collaborators (metadata provider,
// crawler, LLM) in a circuit breaker so a dead dependency fails fast instead of
// stalling every intake request and batch iteration.
package breaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/yungbote/bookmatch-backend/internal/platform/httpx"
	"github.com/yungbote/bookmatch-backend/internal/platform/logger"
)

// ErrOpen is returned while the breaker rejects calls.
var ErrOpen = errors.New("circuit breaker open")

type Config struct {
	Name string
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration
	// HalfOpenRequests is how many probes are allowed while half-open.
	HalfOpenRequests uint32
	// OnStateChange receives the new state ("closed", "half-open", "open").
	OnStateChange func(name, state string)
}

type Breaker struct {
	cb *gobreaker.CircuitBreaker[struct{}]
}

func New(log *logger.Logger, cfg Config) *Breaker {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = 1
	}
	l := log.With("component", "CircuitBreaker", "breaker", cfg.Name)
	st := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenRequests,
		Interval:    time.Minute,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			l.Warn("Circuit breaker state change", "from", from.String(), "to", to.String())
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(name, to.String())
			}
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker[struct{}](st)}
}

// Execute runs fn through the breaker. A nil Breaker runs fn directly.
func (b *Breaker) Execute(fn func() error) error {
	if b == nil {
		return fn()
	}
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.Join(ErrOpen, err)
	}
	return err
}

// Call is Execute for functions that return a value.
func Call[T any](b *Breaker, fn func() (T, error)) (T, error) {
	var out T
	err := b.Execute(func() error {
		v, err := fn()
		out = v
		return err
	})
	return out, err
}

func (b *Breaker) State() string {
	if b == nil {
		return gobreaker.StateClosed.String()
	}
	return b.cb.State().String()
}

// Caller cancellations and definitive client errors say nothing about the
// dependency's health, so they do not count toward tripping.
func countsAsSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var sc httpx.HTTPStatusCoder
	if errors.As(err, &sc) {
		code := sc.HTTPStatusCode()
		return code >= 400 && code < 500 && !httpx.IsRetryableHTTPStatus(code)
	}
	return false
}
