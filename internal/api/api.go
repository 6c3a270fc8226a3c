// Package api serves the optional status endpoint: version, active
// configuration, redirect statistics, prometheus metrics, a live log
// stream and pprof.
package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sqriak/sqriak/internal/config"
	applog "github.com/sqriak/sqriak/internal/log"
	"github.com/sqriak/sqriak/internal/metrics"
	"github.com/sqriak/sqriak/internal/statistics"
)

type APIServer struct {
	addr       string
	secret     string
	version    string
	holder     *config.Holder
	metrics    *metrics.Metrics
	recorder   *statistics.Recorder
	broadcast  *applog.Broadcaster
	httpServer *http.Server
}

// New prepares the server. The listen address and secret are taken once;
// /config always reports the snapshot current at request time. m, rec and
// lb may be nil, which disables the matching endpoint.
func New(addr, secret, version string, holder *config.Holder, m *metrics.Metrics, rec *statistics.Recorder, lb *applog.Broadcaster) *APIServer {
	return &APIServer{
		addr:      addr,
		secret:    secret,
		version:   version,
		holder:    holder,
		metrics:   m,
		recorder:  rec,
		broadcast: lb,
	}
}

// Handler returns the routed handler with logging, recovery and, when a
// secret is set, bearer authentication.
func (s *APIServer) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(slogMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	if s.secret != "" {
		r.Use(s.authMiddleware)
	}

	r.Get("/version", s.handleVersion)
	r.Get("/config", s.handleConfig)
	r.Get("/stats", s.handleStats)
	r.Get("/stats/redirects", s.handleRedirectStats)
	r.Get("/stats/clients", s.handleClientStats)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}
	if s.broadcast != nil {
		r.Get("/logs", s.handleLogs)
	}

	r.Route("/debug/pprof", func(r chi.Router) {
		r.HandleFunc("/", pprof.Index)
		r.HandleFunc("/cmdline", pprof.Cmdline)
		r.HandleFunc("/profile", pprof.Profile)
		r.HandleFunc("/symbol", pprof.Symbol)
		r.HandleFunc("/trace", pprof.Trace)
		r.HandleFunc("/{profile}", pprof.Index)
	})
	return r
}

// Start listens on the configured address and serves in the background.
func (s *APIServer) Start() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("api-server listen: %w", err)
	}
	s.addr = ln.Addr().String()
	slog.Info("api-server started", slog.String("addr", s.addr))

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("api-server error", slog.Any("error", err))
		}
	}()
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *APIServer) Addr() string {
	return s.addr
}

func (s *APIServer) Close() error {
	if s.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	slog.Info("api-server shutting down")
	return s.httpServer.Shutdown(ctx)
}

func slogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("api-server request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("remote", r.RemoteAddr),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

func (s *APIServer) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			token = r.URL.Query().Get("secret")
		}
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.secret)) != 1 {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
