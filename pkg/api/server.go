package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/harun/browserd/internal/metrics"
	"github.com/harun/browserd/internal/tracing"
	"github.com/harun/browserd/pkg/automation"
	"github.com/harun/browserd/pkg/profile"
	"github.com/harun/browserd/pkg/session"
	"github.com/rs/zerolog"
)

// Sessions is the part of the session registry the HTTP layer drives
type Sessions interface {
	Create(ctx context.Context, req session.CreateRequest) (string, error)
	Close(ctx context.Context, id string) session.CloseResult
	Count() int
	List() []session.Summary
}

// ProfileCatalog lists every profile ever opened
type ProfileCatalog interface {
	List(ctx context.Context) ([]profile.Entry, error)
}

// ProfileDirs lists the profile directories on disk
type ProfileDirs interface {
	List() ([]string, error)
}

// ServerOptions configures the HTTP server
type ServerOptions struct {
	Host            string
	Port            int
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64

	Sessions   Sessions
	Automation *automation.Service
	Catalog    ProfileCatalog
	Profiles   ProfileDirs
	Metrics    *metrics.Metrics
	Logger     zerolog.Logger
}

// Server is the REST front end of the browser service
type Server struct {
	options    ServerOptions
	router     chi.Router
	server     *http.Server
	sessions   Sessions
	automation *automation.Service
	logger     zerolog.Logger
	metrics    *metrics.Metrics
	startTime  time.Time

	isShuttingDown bool
	shutdownMu     sync.RWMutex
	inFlightReqs   sync.WaitGroup
}

// NewServer creates a new server and its routes
func NewServer(options ServerOptions) (*Server, error) {
	if options.Port == 0 {
		options.Port = 3000
	}
	if options.ShutdownTimeout == 0 {
		options.ShutdownTimeout = 30 * time.Second
	}
	if options.MaxBodyBytes == 0 {
		options.MaxBodyBytes = 10 << 20
	}

	if options.Sessions == nil {
		return nil, fmt.Errorf("session registry is required")
	}
	if options.Automation == nil {
		return nil, fmt.Errorf("automation service is required")
	}

	s := &Server{
		options:    options,
		sessions:   options.Sessions,
		automation: options.Automation,
		logger:     options.Logger.With().Str("component", "http").Logger(),
		metrics:    options.Metrics,
		startTime:  time.Now(),
	}
	s.setupRoutes()

	return s, nil
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(s.track)

	r.Get("/health", s.handleHealth)
	r.Get("/sessions", s.handleListSessions)
	r.Get("/profiles", s.handleListProfiles)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/browser", func(r chi.Router) {
		r.Post("/", s.handleCreate)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Delete("/", s.handleClose)
			r.Post("/goto", s.handleGoto)
			r.Get("/content", s.handleContent)
			r.Get("/screenshot", s.handleScreenshot)
			r.Post("/click", s.handleClick)
			r.Post("/type", s.handleType)
			r.Post("/text", s.handleText)
			r.Post("/eval", s.handleEval)
			r.Post("/headers", s.handleHeaders)
			r.Get("/cookies", s.handleGetCookies)
			r.Post("/cookies", s.handleSetCookies)
			r.Post("/back", s.handleBack)
			r.Post("/forward", s.handleForward)
			r.Post("/reload", s.handleReload)
		})
	})

	s.router = r
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// track rejects requests during shutdown, counts in-flight requests and
// records request metrics.
func (s *Server) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.shutdownMu.RLock()
		if s.isShuttingDown {
			s.shutdownMu.RUnlock()
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Server is shutting down"})
			return
		}
		s.inFlightReqs.Add(1)
		s.shutdownMu.RUnlock()
		defer s.inFlightReqs.Done()

		start := time.Now()
		ctx := tracing.NewRequestContext(r.Context(), middleware.GetReqID(r.Context()))
		r = r.WithContext(ctx)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		duration := time.Since(start)
		s.metrics.RecordHTTPRequest(r.Method, route, strconv.Itoa(status), duration)

		logger := tracing.LoggerFromContext(ctx, s.logger)
		logger.Debug().
			Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Dur("duration", duration).
			Msg("Request served")
	})
}

// Start listens on the configured address and serves until Stop
func (s *Server) Start() error {
	addr := net.JoinHostPort(s.options.Host, strconv.Itoa(s.options.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Stop
func (s *Server) Serve(ln net.Listener) error {
	s.shutdownMu.Lock()
	if s.isShuttingDown {
		s.shutdownMu.Unlock()
		return ln.Close()
	}
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.server
	s.shutdownMu.Unlock()

	s.logger.Info().
		Str("addr", ln.Addr().String()).
		Msg("Starting HTTP server")

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve HTTP: %w", err)
	}
	return nil
}

// Stop stops accepting connections and waits for in-flight requests, bounded
// by the shutdown timeout.
func (s *Server) Stop(ctx context.Context) error {
	s.shutdownMu.Lock()
	s.isShuttingDown = true
	srv := s.server
	s.shutdownMu.Unlock()

	s.logger.Info().Msg("Shutting down HTTP server")

	ctx, cancel := context.WithTimeout(ctx, s.options.ShutdownTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.inFlightReqs.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("All in-flight requests completed")
	case <-ctx.Done():
		s.logger.Warn().Msg("Shutdown timeout reached, forcing close")
	}

	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.logger.Info().Msg("HTTP server stopped")
	return nil
}
