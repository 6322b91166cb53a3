// Package httpserver wires the admin panel, API, and monitoring endpoints
// onto a single HTTP server.
package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/sessions"

	"git.home.luguber.info/inful/bakery/internal/config"
	ferrors "git.home.luguber.info/inful/bakery/internal/foundation/errors"
	"git.home.luguber.info/inful/bakery/internal/server/handlers"
	smw "git.home.luguber.info/inful/bakery/internal/server/middleware"
)

// Options carries the optional collaborators of the server.
type Options struct {
	// History backs the panel's run list and /api/runs. May be nil.
	History handlers.History
	// PrometheusHandler serves /metrics when set.
	PrometheusHandler http.Handler
	// SessionStore holds panel flash messages. A fresh cookie store is
	// created when nil.
	SessionStore sessions.Store
}

// Server serves the admin endpoints.
type Server struct {
	cfgFn        func() *config.Config
	opts         Options
	adminServer  *http.Server
	errorAdapter *ferrors.HTTPErrorAdapter

	panelHandlers      *handlers.PanelHandlers
	apiHandlers        *handlers.APIHandlers
	monitoringHandlers *handlers.MonitoringHandlers

	mchain func(http.Handler) http.Handler
	auth   func(http.Handler) http.Handler
}

// New constructs the server wiring. cfgFn is consulted per request so config
// reloads apply without rebinding.
func New(cfgFn func() *config.Config, runner handlers.Runner, opts Options) *Server {
	if opts.SessionStore == nil {
		opts.SessionStore = sessions.NewCookieStore([]byte(cfgFn().Admin.SessionSecret()))
	}

	s := &Server{
		cfgFn:        cfgFn,
		opts:         opts,
		errorAdapter: ferrors.NewHTTPErrorAdapter(slog.Default()),
	}

	s.panelHandlers = handlers.NewPanelHandlers(cfgFn, runner, opts.History, opts.SessionStore)
	s.apiHandlers = handlers.NewAPIHandlers(cfgFn, runner, opts.History)
	s.monitoringHandlers = handlers.NewMonitoringHandlers(cfgFn)

	s.mchain = smw.Chain(slog.Default(), s.errorAdapter)
	s.auth = smw.TokenAuth(cfgFn().Admin.Token, s.errorAdapter)

	return s
}

// Handler returns the fully wired admin handler. Exposed for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Liveness and readiness stay unauthenticated so orchestrators can probe.
	mux.HandleFunc("/healthz", s.monitoringHandlers.HandleHealthCheck)
	mux.HandleFunc("/readyz", s.monitoringHandlers.HandleReadiness)
	if s.opts.PrometheusHandler != nil {
		mux.Handle("/metrics", s.opts.PrometheusHandler)
	}

	mux.Handle(handlers.PanelPath, s.auth(http.HandlerFunc(s.panelHandlers.HandlePanel)))
	mux.Handle("/api/status", s.auth(http.HandlerFunc(s.apiHandlers.HandleStatus)))
	mux.Handle("/api/runs", s.auth(http.HandlerFunc(s.apiHandlers.HandleRuns)))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.Redirect(w, r, handlers.PanelPath, http.StatusTemporaryRedirect)
			return
		}
		http.NotFound(w, r)
	})

	return s.mchain(mux)
}

// Start binds the admin port and begins serving. Binding happens up front so
// an occupied port fails fast instead of surfacing from a goroutine later.
func (s *Server) Start(ctx context.Context) error {
	port := s.cfgFn().Admin.Port
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("admin port %d: %w", port, err)
	}

	s.adminServer = &http.Server{
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		// Progress streams stay open for the length of a run; no write
		// deadline.
		IdleTimeout: 120 * time.Second,
	}

	go func() {
		if err := s.adminServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("admin server error", "error", err)
		}
	}()

	slog.Info("HTTP server started", slog.Int("admin_port", port))
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.adminServer == nil {
		return nil
	}
	if err := s.adminServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("admin server shutdown: %w", err)
	}
	slog.Info("HTTP server stopped")
	return nil
}
