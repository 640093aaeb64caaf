// Package client is the terminal's HTTP view of the product catalog.
//
// Lookups go to the catalog API. When the API cannot be reached the client
// answers from a local product table, and after repeated failures a breaker
// skips the API entirely until a probe succeeds.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"tiptap/internal/catalog"
	"tiptap/internal/catalog/metrics"
	"tiptap/internal/catalog/models"
	"tiptap/pkg/platform/circuit"
)

// Client implements catalog.Catalog against the HTTP API.
type Client struct {
	baseURL  string
	http     *http.Client
	fallback catalog.Catalog
	breaker  *circuit.Breaker
	group    singleflight.Group
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithFallback answers lookups from fb when the API is unreachable.
func WithFallback(fb catalog.Catalog) Option {
	return func(c *Client) {
		c.fallback = fb
	}
}

// WithBreaker replaces the default breaker.
func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) {
		if b != nil {
			c.breaker = b
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New creates a Client for the API rooted at baseURL (e.g. http://host:5000/api).
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		breaker: circuit.New("catalog-api", circuit.WithFailureThreshold(3), circuit.WithCooldown(30*time.Second)),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ catalog.Catalog = (*Client)(nil)

// Resolve fetches one product. Concurrent lookups of the same identifier
// share a single request. The shared request is detached from any one
// caller, so a caller that gives up only abandons its own wait; the HTTP
// client timeout bounds the request itself.
func (c *Client) Resolve(ctx context.Context, id string) (*models.Product, error) {
	key := strings.ToUpper(strings.TrimSpace(id))
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		return c.resolve(shared, key)
	})
	select {
	case <-ctx.Done():
		return nil, &catalog.TransportError{Op: "resolve", Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.Product).Clone(), nil
	}
}

func (c *Client) resolve(ctx context.Context, id string) (*models.Product, error) {
	start := time.Now()
	if !c.breaker.Allow() {
		return c.resolveFallback(ctx, id, start, &catalog.TransportError{Op: "resolve", Err: errors.New("circuit open")})
	}

	var p models.Product
	err := c.getJSON(ctx, "/product/"+url.PathEscape(id), &p)
	switch {
	case err == nil:
		c.recordSuccess()
		c.metrics.ObserveLookup(metrics.LookupHit, start)
		return &p, nil
	case errors.Is(err, catalog.ErrNotFound):
		c.recordSuccess()
		c.metrics.ObserveLookup(metrics.LookupNotFound, start)
		return nil, catalog.ErrNotFound
	}

	if ctx.Err() != nil {
		c.metrics.ObserveLookup(metrics.LookupError, start)
		return nil, &catalog.TransportError{Op: "resolve", Err: ctx.Err()}
	}
	c.recordFailure(ctx, err)
	return c.resolveFallback(ctx, id, start, err)
}

func (c *Client) resolveFallback(ctx context.Context, id string, start time.Time, cause error) (*models.Product, error) {
	if c.fallback == nil {
		c.metrics.ObserveLookup(metrics.LookupError, start)
		return nil, cause
	}
	c.logger.WarnContext(ctx, "catalog api unavailable, using local table",
		"product_id", id,
		"error", cause,
	)
	c.metrics.ObserveLookup(metrics.LookupFallback, start)
	return c.fallback.Resolve(ctx, id)
}

// ListAll returns every product ordered by ID.
func (c *Client) ListAll(ctx context.Context) ([]*models.Product, error) {
	return c.Search(ctx, models.Filter{})
}

// Search queries the API with category and q parameters.
func (c *Client) Search(ctx context.Context, filter models.Filter) ([]*models.Product, error) {
	if c.breaker.Allow() {
		q := url.Values{}
		if filter.Category != "" {
			q.Set("category", filter.Category)
		}
		if filter.Query != "" {
			q.Set("q", filter.Query)
		}
		path := "/products"
		if len(q) > 0 {
			path += "?" + q.Encode()
		}
		var byID map[string]*models.Product
		err := c.getJSON(ctx, path, &byID)
		if err == nil {
			c.recordSuccess()
			out := make([]*models.Product, 0, len(byID))
			for _, p := range byID {
				out = append(out, p)
			}
			catalog.SortByID(out)
			return out, nil
		}
		c.recordFailure(ctx, err)
		if c.fallback == nil {
			return nil, err
		}
	} else if c.fallback == nil {
		return nil, &catalog.TransportError{Op: "search", Err: errors.New("circuit open")}
	}
	return c.fallback.Search(ctx, filter)
}

// RefreshLocal copies the live catalog into dst. It bypasses the breaker and
// the fallback so a failed listing never overwrites dst with its own rows.
func (c *Client) RefreshLocal(ctx context.Context, dst *catalog.Local) (int, error) {
	var byID map[string]*models.Product
	if err := c.getJSON(ctx, "/products", &byID); err != nil {
		return 0, err
	}
	products := make([]*models.Product, 0, len(byID))
	for _, p := range byID {
		products = append(products, p)
	}
	dst.Replace(products)
	return len(products), nil
}

// KeepLocalFresh refreshes dst now and then every interval until ctx is
// done. A zero interval refreshes once.
func (c *Client) KeepLocalFresh(ctx context.Context, dst *catalog.Local, every time.Duration) {
	refresh := func() {
		n, err := c.RefreshLocal(ctx, dst)
		if err != nil {
			if ctx.Err() == nil {
				c.logger.WarnContext(ctx, "catalog refresh failed, keeping local table", "error", err)
			}
			return
		}
		c.logger.DebugContext(ctx, "local catalog refreshed", "products", n)
	}
	refresh()
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh()
		}
	}
}

// Health reports whether the API answers its health endpoint.
func (c *Client) Health(ctx context.Context) error {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.getJSON(ctx, "/health", &body); err != nil {
		return err
	}
	if !strings.EqualFold(body.Status, "OK") {
		return &catalog.TransportError{Op: "health", Err: fmt.Errorf("status %q", body.Status)}
	}
	return nil
}

// FallbackActive reports whether the breaker is routing lookups to the local table.
func (c *Client) FallbackActive() bool {
	return c.breaker.IsOpen()
}

func (c *Client) recordSuccess() {
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.Info("catalog api recovered, leaving fallback")
		c.metrics.SetFallbackActive(false)
	}
}

func (c *Client) recordFailure(ctx context.Context, err error) {
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.WarnContext(ctx, "catalog api failing, switching to fallback", "error", err)
		c.metrics.SetFallbackActive(true)
	}
}

// getJSON issues GET baseURL+path. A 404 maps to catalog.ErrNotFound; every
// other failure is a *catalog.TransportError.
func (c *Client) getJSON(ctx context.Context, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &catalog.TransportError{Op: "request", Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &catalog.TransportError{Op: "request", Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return catalog.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		_, _ = io.Copy(io.Discard, resp.Body)
		return &catalog.TransportError{Op: "request", Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return &catalog.TransportError{Op: "decode", Err: err}
	}
	return nil
}
