package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tiptap/internal/ratelimit/metrics"
	"tiptap/internal/ratelimit/models"
	"tiptap/pkg/platform/circuit"
)

// BucketStore admits or rejects one request against a sliding window.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error)
}

// Limits maps each endpoint class to its budget.
type Limits map[models.EndpointClass]models.Limit

// DefaultLimits gives terminals room to look up a product on every scan.
func DefaultLimits(window time.Duration) Limits {
	return Limits{
		models.ClassRead:  {RequestsPerWindow: 300, Window: window},
		models.ClassWrite: {RequestsPerWindow: 60, Window: window},
	}
}

// Service checks per-IP budgets. When a fallback store is configured the
// shared store sits behind a breaker and checks degrade to the fallback
// while it is failing.
type Service struct {
	store    BucketStore
	fallback BucketStore
	breaker  *circuit.Breaker
	limits   Limits
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithFallback serves checks from fb while the primary store is unavailable.
func WithFallback(fb BucketStore) Option {
	return func(s *Service) {
		s.fallback = fb
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(s *Service) {
		s.breaker = b
	}
}

func New(store BucketStore, limits Limits, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("bucket store is required")
	}
	for class, l := range limits {
		if !class.IsValid() {
			return nil, fmt.Errorf("unknown endpoint class %q", class)
		}
		if l.RequestsPerWindow <= 0 || l.Window <= 0 {
			return nil, fmt.Errorf("limit for %s must be positive", class)
		}
	}
	s := &Service{
		store:   store,
		limits:  limits,
		logger:  slog.Default(),
		breaker: circuit.New("ratelimit-store", circuit.WithFailureThreshold(5), circuit.WithCooldown(15*time.Second)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CheckIP records one request from ip against the class budget. A class
// without a configured limit is always allowed and yields a nil result.
func (s *Service) CheckIP(ctx context.Context, ip string, class models.EndpointClass) (*models.Result, error) {
	limit, ok := s.limits[class]
	if !ok {
		return nil, nil
	}
	key := models.Key(ip, class)

	result, err := s.allow(ctx, key, limit)
	if err != nil {
		return nil, err
	}
	s.metrics.IncDecision(string(class), result.Allowed)
	if !result.Allowed {
		s.logger.InfoContext(ctx, "rate limit exceeded",
			"client_ip", ip,
			"endpoint_class", class,
			"limit", limit.RequestsPerWindow,
			"window_seconds", int(limit.Window.Seconds()),
		)
	}
	return result, nil
}

func (s *Service) allow(ctx context.Context, key string, limit models.Limit) (*models.Result, error) {
	if s.fallback == nil {
		return s.store.Allow(ctx, key, limit.RequestsPerWindow, limit.Window)
	}
	if !s.breaker.Allow() {
		return s.fallback.Allow(ctx, key, limit.RequestsPerWindow, limit.Window)
	}

	result, err := s.store.Allow(ctx, key, limit.RequestsPerWindow, limit.Window)
	if err == nil {
		if _, change := s.breaker.RecordSuccess(); change.Closed {
			s.logger.Info("rate limit store recovered, leaving fallback")
			s.metrics.SetFallbackActive(false)
		}
		return result, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	s.metrics.IncStoreError()
	if _, change := s.breaker.RecordFailure(); change.Opened {
		s.logger.WarnContext(ctx, "rate limit store failing, switching to in-process fallback", "error", err)
		s.metrics.SetFallbackActive(true)
	}
	return s.fallback.Allow(ctx, key, limit.RequestsPerWindow, limit.Window)
}
