package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tiptap/internal/catalog"
	"tiptap/internal/catalog/metrics"
	"tiptap/internal/catalog/models"
	"tiptap/pkg/platform/circuit"
	pkgtestutil "tiptap/pkg/testutil"
)

type fakeAPI struct {
	mu       sync.Mutex
	products map[string]*models.Product
	down     bool
	calls    atomic.Int32
	gate     chan struct{}
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{products: map[string]*models.Product{
		"FOOD001": {ID: "FOOD001", Name: "Vada Pav", Price: decimal.NewFromInt(25), Category: "Street Food"},
		"FOOD005": {ID: "FOOD005", Name: "Samosa", Price: decimal.NewFromInt(15), Category: "Snacks"},
	}}
}

func (f *fakeAPI) setDown(down bool) {
	f.mu.Lock()
	f.down = down
	f.mu.Unlock()
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/api/health":
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "OK"})
	case r.URL.Path == "/api/products":
		out := map[string]*models.Product{}
		filter := models.Filter{Category: r.URL.Query().Get("category"), Query: r.URL.Query().Get("q")}
		for id, p := range f.products {
			if filter.Matches(p) {
				out[id] = p
			}
		}
		_ = json.NewEncoder(w).Encode(out)
	case strings.HasPrefix(r.URL.Path, "/api/product/"):
		p, ok := f.products[strings.TrimPrefix(r.URL.Path, "/api/product/")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "not_found"})
			return
		}
		_ = json.NewEncoder(w).Encode(p)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newClient(t *testing.T, api *fakeAPI, opts ...Option) (*Client, *metrics.Metrics) {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	opts = append([]Option{WithLogger(pkgtestutil.DiscardLogger()), WithMetrics(m)}, opts...)
	return New(srv.URL+"/api", time.Second, opts...), m
}

func localTable() *catalog.Local {
	return catalog.NewLocal([]*models.Product{
		{ID: "FOOD001", Name: "Vada Pav (local)", Price: decimal.NewFromInt(25)},
	})
}

func TestResolve(t *testing.T) {
	c, m := newClient(t, newFakeAPI())

	p, err := c.Resolve(context.Background(), "food001")
	require.NoError(t, err)
	assert.Equal(t, "Vada Pav", p.Name)
	assert.True(t, decimal.NewFromInt(25).Equal(p.Price))

	_, err = c.Resolve(context.Background(), "FOOD999")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
	assert.False(t, catalog.IsTransport(err))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Lookups.WithLabelValues(metrics.LookupHit)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Lookups.WithLabelValues(metrics.LookupNotFound)))
}

func TestResolveTransportErrorWithoutFallback(t *testing.T) {
	api := newFakeAPI()
	api.setDown(true)
	c, _ := newClient(t, api)

	_, err := c.Resolve(context.Background(), "FOOD001")
	require.Error(t, err)
	assert.True(t, catalog.IsTransport(err))
	assert.NotErrorIs(t, err, catalog.ErrNotFound)
}

func TestResolveFallsBackToLocalTable(t *testing.T) {
	api := newFakeAPI()
	api.setDown(true)
	c, m := newClient(t, api, WithFallback(localTable()))

	p, err := c.Resolve(context.Background(), "FOOD001")
	require.NoError(t, err)
	assert.Equal(t, "Vada Pav (local)", p.Name)

	_, err = c.Resolve(context.Background(), "FOOD005")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.Lookups.WithLabelValues(metrics.LookupFallback)))
}

func TestBreakerSkipsAPIWhileOpen(t *testing.T) {
	api := newFakeAPI()
	api.setDown(true)
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	breaker := circuit.New("test", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Minute), circuit.WithClock(clock))
	c, m := newClient(t, api, WithFallback(localTable()), WithBreaker(breaker))

	for i := 0; i < 2; i++ {
		_, err := c.Resolve(context.Background(), "FOOD001")
		require.NoError(t, err)
	}
	assert.True(t, c.FallbackActive())
	assert.Equal(t, float64(1), testutil.ToFloat64(m.BreakerOpen))
	callsWhenOpened := api.calls.Load()

	_, err := c.Resolve(context.Background(), "FOOD001")
	require.NoError(t, err)
	assert.Equal(t, callsWhenOpened, api.calls.Load(), "open breaker must not reach the API")
}

func TestResolveCoalescesConcurrentLookups(t *testing.T) {
	api := newFakeAPI()
	api.gate = make(chan struct{})
	c, _ := newClient(t, api)

	const callers = 5
	var wg sync.WaitGroup
	results := make(chan string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := c.Resolve(context.Background(), "FOOD005")
			if err == nil {
				results <- p.Name
			}
		}()
	}
	require.Eventually(t, func() bool { return api.calls.Load() >= 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(api.gate)
	wg.Wait()
	close(results)

	for name := range results {
		assert.Equal(t, "Samosa", name)
	}
	assert.LessOrEqual(t, api.calls.Load(), int32(callers))
	assert.GreaterOrEqual(t, api.calls.Load(), int32(1))
}

func TestResolveCallerCancelDoesNotFailSharedLookup(t *testing.T) {
	api := newFakeAPI()
	api.gate = make(chan struct{})
	c, _ := newClient(t, api)

	leaving, leave := context.WithCancel(context.Background())
	leaverErr := make(chan error, 1)
	go func() {
		_, err := c.Resolve(leaving, "FOOD005")
		leaverErr <- err
	}()
	require.Eventually(t, func() bool { return api.calls.Load() >= 1 }, time.Second, 5*time.Millisecond)

	stayer := make(chan *models.Product, 1)
	go func() {
		p, err := c.Resolve(context.Background(), "FOOD005")
		assert.NoError(t, err)
		stayer <- p
	}()
	time.Sleep(20 * time.Millisecond)

	leave()
	select {
	case err := <-leaverErr:
		assert.True(t, catalog.IsTransport(err))
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled caller still waiting")
	}

	close(api.gate)
	select {
	case p := <-stayer:
		require.NotNil(t, p)
		assert.Equal(t, "Samosa", p.Name)
	case <-time.After(time.Second):
		t.Fatal("remaining caller never resolved")
	}
	assert.False(t, c.FallbackActive())
}

func TestSearchAndListAll(t *testing.T) {
	c, _ := newClient(t, newFakeAPI())

	all, err := c.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "FOOD001", all[0].ID)

	snacks, err := c.Search(context.Background(), models.Filter{Category: "Snacks"})
	require.NoError(t, err)
	require.Len(t, snacks, 1)
	assert.Equal(t, "FOOD005", snacks[0].ID)
}

func TestSearchFallsBack(t *testing.T) {
	api := newFakeAPI()
	api.setDown(true)
	c, _ := newClient(t, api, WithFallback(localTable()))

	all, err := c.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Vada Pav (local)", all[0].Name)
}

func TestHealth(t *testing.T) {
	api := newFakeAPI()
	c, _ := newClient(t, api)
	require.NoError(t, c.Health(context.Background()))

	api.setDown(true)
	assert.True(t, catalog.IsTransport(c.Health(context.Background())))
}

func TestKeepLocalFresh(t *testing.T) {
	api := newFakeAPI()
	c, _ := newClient(t, api)
	local := localTable()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.KeepLocalFresh(ctx, local, 10*time.Millisecond)
	}()

	require.Eventually(t, func() bool {
		all, _ := local.ListAll(context.Background())
		return len(all) == 2
	}, time.Second, 5*time.Millisecond)
	p, err := local.Resolve(context.Background(), "FOOD001")
	require.NoError(t, err)
	assert.Equal(t, "Vada Pav", p.Name)

	api.mu.Lock()
	api.products["FOOD006"] = &models.Product{ID: "FOOD006", Name: "Pav Bhaji", Price: decimal.NewFromInt(80)}
	api.mu.Unlock()
	require.Eventually(t, func() bool {
		_, err := local.Resolve(context.Background(), "FOOD006")
		return err == nil
	}, time.Second, 5*time.Millisecond)

	api.setDown(true)
	time.Sleep(30 * time.Millisecond)
	all, err := local.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 3, "a failed refresh keeps the last good table")

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("refresh loop did not stop")
	}
}
