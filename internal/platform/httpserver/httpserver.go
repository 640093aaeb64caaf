// Package httpserver builds the API's *http.Server from configuration.
package httpserver

import (
	"context"
	"net"
	"net/http"

	"tiptap/internal/platform/config"
)

// New builds a server for cfg whose request contexts derive from base.
func New(base context.Context, cfg config.Server, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		BaseContext: func(net.Listener) context.Context {
			return base
		},
	}
}
