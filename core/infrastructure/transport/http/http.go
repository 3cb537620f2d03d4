package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/hyperterse/querygate/core/infrastructure/logging"
	"github.com/hyperterse/querygate/core/infrastructure/transport/http/middleware"
)

// DefaultPort is used when neither flag, config nor PORT set one
const DefaultPort = "8080"

// Options configures the HTTP server
type Options struct {
	Port           string
	AllowedOrigins []string
	// RequestTimeout bounds each request; it should exceed the gateway execute timeout
	RequestTimeout time.Duration

	RateLimiter       middleware.RateLimiter
	RequestsPerMinute int
}

// Server represents the HTTP server
type Server struct {
	router   *chi.Mux
	server   *http.Server
	port     string
	listener net.Listener
	log      logging.Logger
}

// NewServer creates a new HTTP server with the middleware stack installed
func NewServer(opts Options) *Server {
	port := opts.Port
	if port == "" {
		port = DefaultPort
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestContext)
	r.Use(middleware.AccessLog)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(middleware.Tracing)
	r.Use(chimiddleware.Timeout(timeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if opts.RateLimiter != nil && opts.RequestsPerMinute > 0 {
		r.Use(middleware.RateLimitByIP(opts.RateLimiter, opts.RequestsPerMinute, time.Minute))
	}

	return &Server{
		router: r,
		port:   port,
		log:    logging.New("http"),
	}
}

// Router returns the chi router
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Addr returns the bound address once started
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// StartAsync binds the port and serves in the background
func (s *Server) StartAsync() error {
	s.log.Infof("Starting HTTP server on port %s", s.port)

	listener, err := net.Listen("tcp", ":"+s.port)
	if err != nil {
		return err
	}
	s.listener = listener

	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		s.log.Successf("HTTP server listening on http://%s", listener.Addr())
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Errorf("HTTP server error: %v", err)
		}
	}()

	return nil
}

// Stop stops the HTTP server gracefully
func (s *Server) Stop() error {
	s.log.Infof("Shutting down HTTP server")

	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		s.log.Errorf("Error shutting down HTTP server: %v", err)
		if closeErr := s.server.Close(); closeErr != nil {
			s.log.Errorf("Error force closing HTTP server: %v", closeErr)
		}
		return err
	}

	s.log.Infof("HTTP server stopped")
	return nil
}
