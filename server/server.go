// Package server exposes the rsvpd control plane: scheduling endpoints,
// job introspection, event queries, and a websocket stream of job
// lifecycle events.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/courtside/rsvpd/config"
	"github.com/courtside/rsvpd/flags"
	"github.com/courtside/rsvpd/meetup"
	"github.com/courtside/rsvpd/schedule"
	"github.com/courtside/rsvpd/users"
)

const (
	// MaxClients is the maximum number of concurrent WebSocket clients
	MaxClients = 100
	// MaxClientMessageQueueSize is the size of per-client message queues
	MaxClientMessageQueueSize = 256
	// ShutdownTimeout is how long to wait for graceful shutdown
	ShutdownTimeout = 15 * time.Second
)

// RSVPServer hosts the control-plane HTTP API. One instance owns the
// scheduler, the mode controller, and the websocket client set; there
// are no package-level singletons.
type RSVPServer struct {
	cfg       *config.Config
	scheduler *schedule.Scheduler
	modes     *flags.Controller
	meetup    *meetup.Client
	users     *users.Store
	logger    *zap.SugaredLogger

	mu      sync.RWMutex
	clients map[*Client]bool

	mux        *http.ServeMux
	httpServer *http.Server
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// New creates the server and registers its routes
func New(cfg *config.Config, scheduler *schedule.Scheduler, modes *flags.Controller, client *meetup.Client, userStore *users.Store, log *zap.SugaredLogger) *RSVPServer {
	ctx, cancel := context.WithCancel(context.Background())
	s := &RSVPServer{
		cfg:       cfg,
		scheduler: scheduler,
		modes:     modes,
		meetup:    client,
		users:     userStore,
		logger:    log,
		clients:   make(map[*Client]bool),
		mux:       http.NewServeMux(),
		ctx:       ctx,
		cancel:    cancel,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP handlers
func (s *RSVPServer) setupRoutes() {
	s.mux.HandleFunc("/api/rsvp", s.corsMiddleware(s.HandleScheduleRSVP))             // Schedule an RSVP job (POST)
	s.mux.HandleFunc("/api/jobs/pending", s.corsMiddleware(s.HandlePendingJobs))      // List pending jobs (GET)
	s.mux.HandleFunc("/api/jobs/executed", s.corsMiddleware(s.HandleExecutedJobs))    // Executed-job history (GET)
	s.mux.HandleFunc("/api/jobs/summary", s.corsMiddleware(s.HandleJobSummary))       // Pending + executed summary (GET)
	s.mux.HandleFunc("/api/jobs/cancel", s.corsMiddleware(s.HandleCancelJob))         // Cancel a pending job (POST)
	s.mux.HandleFunc("/api/events/upcoming/", s.corsMiddleware(s.HandleUpcomingEvents))
	s.mux.HandleFunc("/api/events/", s.corsMiddleware(s.HandleEvent)) // details / waitlist / not-attending
	s.mux.HandleFunc("/api/users", s.corsMiddleware(s.HandleUsers))
	s.mux.HandleFunc("/api/time", s.corsMiddleware(s.HandleServerTime))
	s.mux.HandleFunc("/ws", s.corsMiddleware(s.HandleWebSocket))
	s.mux.HandleFunc("/health", s.corsMiddleware(s.HandleHealth))
}

// corsMiddleware adds CORS headers using the configured allowed origins
func (s *RSVPServer) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if origin != "" && s.checkOrigin(r) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}

// checkOrigin validates a request origin against configured allowed
// origins, prefix-matched so any port number is accepted
func (s *RSVPServer) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		// Direct clients and tests send no origin header
		return true
	}
	for _, allowed := range s.cfg.Server.AllowedOrigins {
		if strings.HasPrefix(origin, allowed) {
			return true
		}
	}
	return false
}

// Start runs the HTTP server until the context is cancelled, then shuts
// down gracefully
func (s *RSVPServer) Start(ctx context.Context) error {
	s.startJobEventBroadcaster()

	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow("rsvpd server listening", "addr", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Infow("Shutting down rsvpd server")
	s.cancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Warnw("HTTP server shutdown error", "error", err)
	}

	s.closeAllClients()
	s.scheduler.Stop()
	s.wg.Wait()
	return nil
}

// Handler exposes the route mux for tests
func (s *RSVPServer) Handler() http.Handler {
	return s.mux
}
