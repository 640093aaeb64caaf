package middleware

//go:generate mockgen -source=ratelimit.go -destination=mocks/mocks.go -package=mocks RateLimiter

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"tiptap/internal/ratelimit/middleware/mocks"
	"tiptap/internal/ratelimit/models"
	"tiptap/pkg/platform/middleware/metadata"
	"tiptap/pkg/testutil"
)

type MiddlewareSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	limiter *mocks.MockRateLimiter
	reached bool
}

func TestMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(MiddlewareSuite))
}

func (s *MiddlewareSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.limiter = mocks.NewMockRateLimiter(s.ctrl)
	s.reached = false
}

func (s *MiddlewareSuite) handler(opts ...Option) http.Handler {
	m := New(s.limiter, testutil.DiscardLogger(), opts...)
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.reached = true
		w.WriteHeader(http.StatusOK)
	})
	return metadata.ClientMetadata(m.Handler(next))
}

func (s *MiddlewareSuite) request(method, path string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	return req
}

func (s *MiddlewareSuite) TestAllowedRequestCarriesHeaders() {
	reset := time.Unix(1740000060, 0)
	s.limiter.EXPECT().CheckIP(gomock.Any(), "203.0.113.7", models.ClassRead).
		Return(&models.Result{Allowed: true, Limit: 300, Remaining: 299, ResetAt: reset}, nil)

	rec := httptest.NewRecorder()
	s.handler().ServeHTTP(rec, s.request(http.MethodGet, "/api/products"))

	s.True(s.reached)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("300", rec.Header().Get("X-RateLimit-Limit"))
	s.Equal("299", rec.Header().Get("X-RateLimit-Remaining"))
	s.Equal("1740000060", rec.Header().Get("X-RateLimit-Reset"))
}

func (s *MiddlewareSuite) TestLimitedRequestGets429() {
	s.limiter.EXPECT().CheckIP(gomock.Any(), "203.0.113.7", models.ClassWrite).
		Return(&models.Result{Allowed: false, Limit: 60, ResetAt: time.Unix(1740000060, 0), RetryAfter: 17}, nil)

	rec := httptest.NewRecorder()
	s.handler().ServeHTTP(rec, s.request(http.MethodPost, "/api/orders"))

	s.False(s.reached)
	s.Equal(http.StatusTooManyRequests, rec.Code)
	s.Equal("17", rec.Header().Get("Retry-After"))
	testutil.AssertJSONContains(s.T(), rec, "error", "rate_limit_exceeded")
}

func (s *MiddlewareSuite) TestLimiterErrorFailsOpen() {
	s.limiter.EXPECT().CheckIP(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New("redis: i/o timeout"))

	rec := httptest.NewRecorder()
	s.handler().ServeHTTP(rec, s.request(http.MethodPatch, "/api/orders/ORD1/status"))

	s.True(s.reached)
	s.Equal(http.StatusOK, rec.Code)
	s.Empty(rec.Header().Get("X-RateLimit-Limit"))
}

func (s *MiddlewareSuite) TestExemptAndDisabledSkipLimiter() {
	rec := httptest.NewRecorder()
	s.handler().ServeHTTP(rec, s.request(http.MethodGet, "/api/health"))
	s.True(s.reached)

	s.reached = false
	rec = httptest.NewRecorder()
	s.handler(WithDisabled(true)).ServeHTTP(rec, s.request(http.MethodPost, "/api/orders"))
	s.True(s.reached)
}

func (s *MiddlewareSuite) TestClassOf() {
	s.Equal(models.ClassRead, ClassOf(httptest.NewRequest(http.MethodGet, "/", nil)))
	s.Equal(models.ClassRead, ClassOf(httptest.NewRequest(http.MethodHead, "/", nil)))
	s.Equal(models.ClassWrite, ClassOf(httptest.NewRequest(http.MethodPost, "/", nil)))
	s.Equal(models.ClassWrite, ClassOf(httptest.NewRequest(http.MethodDelete, "/", nil)))
}
