package main

import (
	"net"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/pixelforge/scanvault/attempt"
	"github.com/pixelforge/scanvault/clock"
	"github.com/pixelforge/scanvault/codec"
	"github.com/pixelforge/scanvault/secure"
	"github.com/pixelforge/scanvault/store"
)

// Server exposes the security layer's capability surface over HTTP.
type Server struct {
	cfg       *Config
	mgr       *secure.Manager
	validator KeyValidator
	clk       clock.Clock
	router    *mux.Router

	// Per-client request limiters, keyed by remote host. They share one
	// in-memory store so the sweep can expire stale windows.
	limMu    sync.Mutex
	limiters map[string]*attempt.Limiter
	limStore *store.Store
}

// NewServer wires the routes and middleware. mgr must be initialized.
func NewServer(cfg *Config, mgr *secure.Manager, validator KeyValidator, clk clock.Clock) *Server {
	s := &Server{
		cfg:       cfg,
		mgr:       mgr,
		validator: validator,
		clk:       clk,
		router:    mux.NewRouter(),
		limiters:  make(map[string]*attempt.Limiter),
		limStore: store.New(store.NewMemoryBackend(),
			codec.New(clk, cfg.ClientWindow()*2), clk, cfg.ClientWindow()*2),
	}

	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.activityMiddleware)

	s.router.HandleFunc("/api/validate-key", s.handleValidateKey).Methods(http.MethodPost)
	s.router.HandleFunc("/api/rate-limit-status", s.handleRateLimitStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/api/credential", s.handleSetCredential).Methods(http.MethodPut)
	s.router.HandleFunc("/api/credential", s.handleGetCredential).Methods(http.MethodGet)
	s.router.HandleFunc("/api/credential", s.handleRemoveCredential).Methods(http.MethodDelete)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// clientLimiter returns the sliding-window limiter for a remote host,
// creating it on first sight.
func (s *Server) clientLimiter(remoteAddr string) *attempt.Limiter {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}

	s.limMu.Lock()
	defer s.limMu.Unlock()
	l, ok := s.limiters[host]
	if !ok {
		l = attempt.NewLimiter(s.limStore, s.clk, "client_"+host, attempt.Config{
			MaxAttempts: s.cfg.ClientRate.MaxRequests,
			Window:      s.cfg.ClientWindow(),
		})
		s.limiters[host] = l
	}
	return l
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", w.Header().Get("X-Request-ID")).
			Msg("Request received")
		next.ServeHTTP(w, r)
	})
}

// activityMiddleware reports every request as session activity.
func (s *Server) activityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mgr.Touch("request")
		next.ServeHTTP(w, r)
	})
}
