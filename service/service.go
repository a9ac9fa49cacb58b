// Package service serves health and metrics endpoints while scripts run.
package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/ethereum-optimism/infra/op-shunit/metrics"
)

const (
	HealthzPath = "/healthz"
	MetricsPath = "/metrics"

	readHeaderTimeout = 10 * time.Second
)

// Service is an HTTP server exposing /healthz and /metrics.
type Service struct {
	log      log.Logger
	server   *http.Server
	listener net.Listener
	done     chan struct{}
}

// New creates a Service. It does not listen until Start is called.
func New(logger log.Logger) *Service {
	if logger == nil {
		logger = log.Root()
	}
	s := &Service{log: logger}

	router := mux.NewRouter()
	router.HandleFunc(HealthzPath, s.handleHealthz).Methods(http.MethodGet, http.MethodHead)
	router.Handle(MetricsPath, promhttp.Handler()).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
	})
	s.server = &http.Server{
		Handler:           c.Handler(router),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return s
}

// Start listens on addr and serves in the background until Shutdown.
func (s *Service) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		metrics.RecordErrorDetails("service", err)
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener
	s.done = make(chan struct{})

	s.log.Info("service starting", "addr", listener.Addr().String())
	go func() {
		defer close(s.done)
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("error serving metrics", "err", err)
			metrics.RecordErrorDetails("service", err)
		}
	}()
	return nil
}

// Addr returns the address the service listens on, or "" before Start.
func (s *Service) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops the server, waiting for in-flight requests until ctx ends.
func (s *Service) Shutdown(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}
	s.log.Info("service shutting down")
	err := s.server.Shutdown(ctx)
	<-s.done
	s.log.Info("service stopped")
	return err
}

func (s *Service) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.log.Trace("Received health check request", "path", r.URL.Path)
	w.Write([]byte("OK")) //nolint:errcheck
}
