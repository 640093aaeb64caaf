package httpserver

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"tiptap/internal/platform/config"
)

type ctxKey struct{}

func TestNewAppliesConfig(t *testing.T) {
	cfg := config.Server{
		Port:              8081,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       2 * time.Second,
		WriteTimeout:      3 * time.Second,
		IdleTimeout:       4 * time.Second,
	}
	base := context.WithValue(context.Background(), ctxKey{}, "terminal")
	srv := New(base, cfg, http.NotFoundHandler())

	assert.Equal(t, ":8081", srv.Addr)
	assert.Equal(t, time.Second, srv.ReadHeaderTimeout)
	assert.Equal(t, 2*time.Second, srv.ReadTimeout)
	assert.Equal(t, 3*time.Second, srv.WriteTimeout)
	assert.Equal(t, 4*time.Second, srv.IdleTimeout)
	assert.Equal(t, "terminal", srv.BaseContext(nil).Value(ctxKey{}))
}
