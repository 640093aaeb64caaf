package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"tiptap/internal/ratelimit/models"
	"tiptap/pkg/platform/httputil"
	"tiptap/pkg/requestcontext"
)

type RateLimiter interface {
	CheckIP(ctx context.Context, ip string, class models.EndpointClass) (*models.Result, error)
}

type Middleware struct {
	limiter  RateLimiter
	logger   *slog.Logger
	disabled bool
	exempt   map[string]bool
}

type Option func(*Middleware)

// WithDisabled disables rate limiting entirely (for local demos).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

// WithExemptPaths replaces the set of paths that are never limited.
func WithExemptPaths(paths ...string) Option {
	return func(m *Middleware) {
		m.exempt = make(map[string]bool, len(paths))
		for _, p := range paths {
			m.exempt[p] = true
		}
	}
}

func New(limiter RateLimiter, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		limiter: limiter,
		logger:  logger,
		exempt: map[string]bool{
			"/api/health":    true,
			"/api/db-status": true,
			"/metrics":       true,
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// ClassOf maps a request onto its endpoint class: safe methods read,
// everything else writes.
func ClassOf(r *http.Request) models.EndpointClass {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return models.ClassRead
	default:
		return models.ClassWrite
	}
}

// Handler limits each client IP per endpoint class. Limiter errors let the
// request through.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.disabled || m.exempt[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		ip := requestcontext.ClientIP(ctx)
		class := ClassOf(r)

		result, err := m.limiter.CheckIP(ctx, ip, class)
		if err != nil {
			m.logger.ErrorContext(ctx, "failed to check IP rate limit",
				"error", err,
				"client_ip", ip,
				"endpoint_class", class,
			)
			next.ServeHTTP(w, r)
			return
		}
		if result == nil {
			next.ServeHTTP(w, r)
			return
		}

		addRateLimitHeaders(w, result)
		if !result.Allowed {
			writeRateLimitExceeded(w, result)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.Result) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &models.ExceededResponse{
		Error:            "rate_limit_exceeded",
		ErrorDescription: "Too many requests from this address. Please try again later.",
		RetryAfter:       result.RetryAfter,
	})
}
