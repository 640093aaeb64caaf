package httptransport

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	cataloghandler "tiptap/internal/catalog/handler"
	catalogservice "tiptap/internal/catalog/service"
	"tiptap/internal/catalog/store/product"
	orderhandler "tiptap/internal/order/handler"
	"tiptap/internal/order/models"
	orderservice "tiptap/internal/order/service"
	"tiptap/internal/order/store/order"
	"tiptap/internal/platform/metrics"
	"tiptap/internal/platform/middleware"
	"tiptap/internal/tag"
	"tiptap/pkg/testutil"
)

var fixedNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type RouterSuite struct {
	suite.Suite
	registry *prometheus.Registry
	dbErr    error
	router   http.Handler
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	s.dbErr = nil
	s.registry = prometheus.NewRegistry()
	s.router = s.build(func(context.Context) error { return s.dbErr })
}

func (s *RouterSuite) build(db HealthCheck) http.Handler {
	logger := testutil.DiscardLogger()
	products := catalogservice.New(product.NewInMemory(), tag.MustGrammar([]string{"FOOD", "ELEC"}),
		catalogservice.WithLogger(logger))
	orders := orderservice.New(order.NewInMemory(), decimal.RequireFromString("0.18"),
		orderservice.WithLogger(logger))

	return NewRouter(Config{
		Logger:   logger,
		Metrics:  metrics.NewWithRegisterer(s.registry),
		Gatherer: s.registry,
		Database: db,
		Handlers: []Registrar{
			cataloghandler.New(products, logger),
			orderhandler.New(orders, logger),
		},
		Now: func() time.Time { return fixedNow },
	})
}

func (s *RouterSuite) TestBanner() {
	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/", nil))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)

	body := testutil.UnmarshalResponse[bannerResponse](s.T(), rr)
	s.Equal("OK", body.Status)
	s.Equal("/api/products", body.Endpoints["products"])
	s.True(fixedNow.Equal(body.Timestamp))
	s.NotEmpty(rr.Header().Get(middleware.HeaderRequestID))
}

func (s *RouterSuite) TestHealth() {
	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/api/health", nil))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	body := testutil.UnmarshalResponse[healthResponse](s.T(), rr)
	s.Equal("OK", body.Status)
	s.Equal(DBConnected, body.Database)

	s.dbErr = errors.New("connection refused")
	rr = testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/api/health", nil))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	body = testutil.UnmarshalResponse[healthResponse](s.T(), rr)
	s.Equal(DBDisconnected, body.Database)
}

func (s *RouterSuite) TestDBStatus() {
	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/api/db-status", nil))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	s.Equal(dbStatusResponse{Database: "postgres", Status: DBConnected}, *testutil.UnmarshalResponse[dbStatusResponse](s.T(), rr))

	s.dbErr = errors.New("connection refused")
	rr = testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/api/db-status", nil))
	testutil.AssertStatus(s.T(), rr, http.StatusServiceUnavailable)

	memory := s.build(nil)
	rr = testutil.DoRequest(memory, testutil.NewJSONRequest(s.T(), http.MethodGet, "/api/db-status", nil))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	s.Equal(dbStatusResponse{Database: "memory", Status: DBInMemory}, *testutil.UnmarshalResponse[dbStatusResponse](s.T(), rr))
}

func (s *RouterSuite) TestNotFoundListsRoutes() {
	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/api/nope", nil))
	testutil.AssertStatus(s.T(), rr, http.StatusNotFound)

	body := testutil.UnmarshalResponse[notFoundResponse](s.T(), rr)
	s.Equal("Route not found", body.Error)
	s.Equal("The route /api/nope does not exist", body.Message)
	s.Contains(body.AvailableRoutes, "GET /api/health")
	s.Contains(body.AvailableRoutes, "POST /api/seed")
	s.Contains(body.AvailableRoutes, "POST /api/orders")
}

func (s *RouterSuite) TestSeedThenOrder() {
	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/seed", nil))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)

	req := models.CreateOrderRequest{
		ID: "ORD1740000000000",
		Items: []models.LineRequest{
			{ID: "FOOD001", Name: "Vada Pav", Price: decimal.NewFromInt(25), Quantity: 3},
			{ID: "FOOD002", Name: "Pav Bhaji", Price: decimal.NewFromInt(40), Quantity: 1},
		},
		PaymentMethod: "Demo Payment",
	}
	rr = testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/orders", req))
	testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	testutil.AssertJSONContains(s.T(), rr, "orderId", "ORD1740000000000")

	rr = testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/api/order/ORD1740000000000", nil))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	got := testutil.UnmarshalResponse[models.Order](s.T(), rr)
	s.True(decimal.NewFromInt(136).Equal(got.Total), got.Total.String())
}

func (s *RouterSuite) TestRejectsNonJSONBody() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/products", nil)
	req.Body = http.NoBody
	req.ContentLength = 5
	req.Header.Set("Content-Type", "text/plain")
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusUnsupportedMediaType)
}

func (s *RouterSuite) TestMetricsEndpoint() {
	testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/api/health", nil))

	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/metrics", nil))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	s.True(strings.Contains(rr.Body.String(), "tiptap_http_request_duration_seconds"))
}
