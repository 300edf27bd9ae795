// Package server assembles the HTTP routes and runs the listener.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"townhall/internal/api"
	"townhall/internal/auth"
	"townhall/internal/logging"
	"townhall/internal/web"
)

// Settings configures the HTTP listener.
type Settings struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server wraps the HTTP listener serving the site and the API.
type Server struct {
	settings Settings
	handler  http.Handler

	mu       sync.Mutex
	server   *http.Server
	listener net.Listener
	done     chan struct{}
	errc     chan error
}

// Routes mounts the pages and the API on one mux and wraps it in the
// request middleware.
func Routes(pages *web.Handler, officials *api.Handler, authSvc *auth.Service) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	pages.Register(mux)
	officials.Register(mux)

	return chain(mux, authSvc.Middleware, recoverer, accessLog, requestID)
}

// New prepares a server for handler.
func New(settings Settings, handler http.Handler) *Server {
	if settings.ShutdownTimeout <= 0 {
		settings.ShutdownTimeout = 10 * time.Second
	}
	return &Server{settings: settings, handler: handler}
}

// Start binds the listener and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return fmt.Errorf("server already started")
	}

	listener, err := net.Listen("tcp", s.settings.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.settings.Addr, err)
	}
	srv := &http.Server{
		Handler:           s.handler,
		ReadTimeout:       s.settings.ReadTimeout,
		ReadHeaderTimeout: s.settings.ReadTimeout,
		WriteTimeout:      s.settings.WriteTimeout,
		ErrorLog:          zap.NewStdLog(logging.Get(logging.CategoryHTTP).Zap()),
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	s.listener = listener
	s.server = srv
	s.done = make(chan struct{})
	s.errc = make(chan error, 1)

	go func(done chan struct{}, errc chan<- error) {
		defer close(done)
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.HTTPError("Serve error: %v", err)
			errc <- err
		}
	}(s.done, s.errc)

	logging.Boot("Listening on %s", listener.Addr())
	logging.HTTP("Read timeout %s, write timeout %s", s.settings.ReadTimeout, s.settings.WriteTimeout)
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown stops accepting connections and waits for in-flight requests,
// up to the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.settings.ShutdownTimeout)
	defer cancel()
	err := s.server.Shutdown(ctx)
	<-s.done

	s.server = nil
	s.listener = nil
	logging.Boot("Server stopped")
	return err
}

// Errors reports a serve loop that stopped for any reason other than
// Shutdown. Nil before Start.
func (s *Server) Errors() <-chan error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errc
}

// Run starts the server and blocks until ctx is cancelled or the serve
// loop fails, then shuts down.
func (s *Server) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		logging.Boot("Shutting down")
		return s.Shutdown(context.WithoutCancel(ctx))
	case err := <-s.Errors():
		shutdownErr := s.Shutdown(context.WithoutCancel(ctx))
		return errors.Join(fmt.Errorf("serve: %w", err), shutdownErr)
	}
}
