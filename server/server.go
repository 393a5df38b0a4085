// Package server exposes the enrichment job controller over HTTP: the action
// endpoint, job listings, a WebSocket status push and a health check.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/newsdesk/auth"
	"github.com/teranos/newsdesk/enrich"
	"github.com/teranos/newsdesk/errors"
	"github.com/teranos/newsdesk/logger"
	"github.com/teranos/newsdesk/pulse/async"
)

const (
	// ShutdownTimeout bounds Stop. The worker pool requeues running jobs within it.
	ShutdownTimeout = 45 * time.Second

	readHeaderTimeout = 10 * time.Second
	// writeTimeout covers preview, which waits on one completion
	writeTimeout = 3 * time.Minute
	idleTimeout  = 2 * time.Minute
)

// ServerState represents the server lifecycle state
type ServerState int32

const (
	ServerStateRunning  ServerState = iota // Normal operation
	ServerStateDraining                    // Graceful shutdown in progress
	ServerStateStopped                     // Shutdown complete
)

func (s ServerState) String() string {
	switch s {
	case ServerStateRunning:
		return "running"
	case ServerStateDraining:
		return "draining"
	case ServerStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Options wires a server. Pool may be nil when jobs are executed elsewhere.
type Options struct {
	Controller     *enrich.Controller
	Queue          *async.Queue
	Pool           *async.WorkerPool
	Auth           *auth.Authenticator
	AllowedOrigins []string
	Logger         *zap.SugaredLogger
}

// Server serves the enrichment API
type Server struct {
	controller     *enrich.Controller
	queue          *async.Queue
	pool           *async.WorkerPool
	auth           *auth.Authenticator
	allowedOrigins []string
	logger         *zap.SugaredLogger
	pingInterval   time.Duration

	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	state      atomic.Int32
	watchers   atomic.Int32
	httpServer *http.Server
	mu         sync.Mutex
}

// New creates a server
func New(opts Options) (*Server, error) {
	if opts.Controller == nil || opts.Queue == nil || opts.Auth == nil {
		return nil, errors.New("server requires a controller, a queue and an authenticator")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		controller:     opts.Controller,
		queue:          opts.Queue,
		pool:           opts.Pool,
		auth:           opts.Auth,
		allowedOrigins: opts.AllowedOrigins,
		logger:         log.Named("server"),
		pingInterval:   pingPeriod,
		ctx:            ctx,
		cancel:         cancel,
	}
	s.state.Store(int32(ServerStateRunning))
	return s, nil
}

// Handler returns the routed handler with CORS and authentication applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/enrich", s.wrap(s.HandleEnrichAction))
	mux.HandleFunc("GET /api/enrich/jobs", s.wrap(s.HandleListJobs))
	mux.HandleFunc("GET /api/enrich/jobs/{id}", s.wrap(s.HandleGetJob))
	mux.HandleFunc("GET /ws/enrich/jobs/{id}", s.wrap(s.HandleJobWebSocket))
	mux.HandleFunc("GET /health", s.corsMiddleware(s.HandleHealth))
	mux.HandleFunc("OPTIONS /", s.corsMiddleware(func(w http.ResponseWriter, r *http.Request) {}))
	return mux
}

func (s *Server) wrap(h http.HandlerFunc) http.HandlerFunc {
	return s.corsMiddleware(s.auth.Middleware(h))
}

// Start listens on port and serves until Stop. Returns nil after a clean shutdown.
func (s *Server) Start(port int) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return errors.Wrapf(err, "failed to listen on port %d", port)
	}
	return s.Serve(listener)
}

// Serve accepts connections on listener until Stop
func (s *Server) Serve(listener net.Listener) error {
	s.mu.Lock()
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		BaseContext:       func(net.Listener) context.Context { return s.ctx },
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Infow("HTTP server listening", logger.FieldAddress, listener.Addr().String())
	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "http server failed")
	}
	return nil
}

// Stop drains the server: running jobs are requeued, push connections closed,
// then in-flight requests are given until ShutdownTimeout to finish.
func (s *Server) Stop() error {
	s.logger.Infow("Initiating server shutdown")
	s.setState(ServerStateDraining)

	if s.pool != nil {
		s.logger.Infow("Stopping worker pool")
		s.pool.Stop()
	}

	// ends every WebSocket push loop
	s.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()

	var err error
	if srv != nil {
		if shutdownErr := srv.Shutdown(ctx); shutdownErr != nil {
			err = errors.Wrap(shutdownErr, "http shutdown")
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warnw("Push connections did not close in time", "timeout", ShutdownTimeout)
	}

	s.setState(ServerStateStopped)
	s.logger.Infow("Server shutdown complete")
	return err
}

func (s *Server) getState() ServerState {
	return ServerState(s.state.Load())
}

func (s *Server) setState(state ServerState) {
	s.state.Store(int32(state))
	s.logger.Infow("Server state changed", "new_state", state.String())
}

// corsMiddleware adds CORS headers for allowed origins and answers preflight requests
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.checkOrigin(r) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next(w, r)
	}
}

// checkOrigin accepts requests without an Origin header and origins that
// start with a configured allowed origin (any port)
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.allowedOrigins {
		if strings.HasPrefix(origin, allowed) {
			return true
		}
	}
	return false
}
