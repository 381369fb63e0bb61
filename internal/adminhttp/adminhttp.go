// Package adminhttp exposes the proxy's Prometheus metrics and a liveness
// probe over plain net/http, started only when Settings.AdminAddr is set
// (SPEC_FULL.md's DOMAIN STACK addition).
package adminhttp

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server serves /metrics and /healthz on addr until its context is
// cancelled.
type Server struct {
	addr string
	reg  *prometheus.Registry
	log  zerolog.Logger
}

// New builds a Server backed by reg.
func New(addr string, reg *prometheus.Registry, log zerolog.Logger) *Server {
	return &Server{addr: addr, reg: reg, log: log}
}

// Run starts the HTTP server and blocks until ctx is cancelled or
// ListenAndServe fails.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: s.addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
