// Package httpapi exposes research sessions over REST and streams progress
// events over a websocket.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dusk-indust/deepresearch/internal/orchestrator"
)

// Runner is an Orchestrator that also publishes progress events.
type Runner interface {
	orchestrator.Orchestrator
	Progress() (<-chan orchestrator.ProgressEvent, func())
}

// Compile-time interface check.
var _ Runner = (*orchestrator.Pipeline)(nil)

// Server serves the REST API and the event stream.
type Server struct {
	runner Runner
	logger *zap.Logger

	// Background sessions started with ?async=true run on base and are
	// awaited by Stop.
	base   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu   sync.Mutex
	http *http.Server
	addr net.Addr
}

// NewServer creates a Server. A nil logger discards logs.
func NewServer(runner Runner, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Server{
		runner: runner,
		logger: logger,
		base:   base,
		cancel: cancel,
	}
}

// Routes returns the HTTP handler for every endpoint.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /v1/sessions", s.handleStart)
	mux.HandleFunc("GET /v1/sessions", s.handleList)
	mux.HandleFunc("GET /v1/sessions/{id}", s.handleGet)
	mux.HandleFunc("POST /v1/sessions/{id}/reply", s.handleReply)
	mux.HandleFunc("GET /v1/sessions/{id}/report", s.handleReport)
	mux.HandleFunc("GET /v1/events", s.handleEvents)
	return mux
}

// Start binds addr and serves in a background goroutine. Bind errors are
// returned to the caller.
func (s *Server) Start(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("httpapi: listen %s: %w", addr, err)
	}

	srv := &http.Server{Handler: s.Routes(), ReadHeaderTimeout: 10 * time.Second}
	s.mu.Lock()
	s.http = srv
	s.addr = ln.Addr()
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server stopped", zap.Error(err))
		}
	}()
	s.logger.Info("api listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Stop shuts down the HTTP server, cancels background sessions and waits
// for them to checkpoint.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}
