// Package mock provides a fake of the backend under test: /ping and a small
// GraphQL endpoint with the hello query and the createUser mutation.
package mock

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

type Server struct {
	router    *Router
	port      int
	delay     time.Duration
	verbose   bool
	failFirst int64
	requests  atomic.Int64

	mu     sync.Mutex
	users  map[string]*User
	nextID int
}

type Option func(*Server)

func WithPort(port int) Option {
	return func(s *Server) {
		s.port = port
	}
}

// WithDelay adds a delay to all responses
func WithDelay(delay time.Duration) Option {
	return func(s *Server) {
		s.delay = delay
	}
}

func WithVerbose(verbose bool) Option {
	return func(s *Server) {
		s.verbose = verbose
	}
}

// WithFailFirst makes the first n requests answer 503.
func WithFailFirst(n int) Option {
	return func(s *Server) {
		s.failFirst = int64(n)
	}
}

func NewServer(opts ...Option) *Server {
	s := &Server{
		router: NewRouter(),
		port:   8080,
		users:  make(map[string]*User),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router.Handle(http.MethodGet, "/ping", "ping", s.handlePing)
	s.router.Handle(http.MethodGet, "/graphql", "graphiql", s.handleGraphQLGet)
	s.router.Handle(http.MethodPost, "/graphql", "graphql", s.handleGraphQLPost)

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	n := s.requests.Add(1)

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-r.Context().Done():
			return
		}
	}

	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	defer func() {
		if s.verbose {
			log.Printf("%s %s -> %d (%s)", r.Method, r.URL.Path, rec.status, time.Since(start))
		}
	}()

	if n <= s.failFirst {
		http.Error(rec, "service warming up", http.StatusServiceUnavailable)
		return
	}

	route, pathKnown := s.router.Match(r.Method, r.URL.Path)
	if route == nil {
		if pathKnown {
			http.Error(rec, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		http.NotFound(rec, r)
		return
	}

	route.Handler(rec, r)
}

// Start serves on the configured port until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.port))
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", s.port, err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Printf("Mock backend listening on http://%s", ln.Addr())
	if s.verbose {
		for _, route := range s.router.Routes() {
			log.Printf("  %s %s (%s)", route.Method, route.Path, route.Name)
		}
	}

	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Routes() []*Route {
	return s.router.Routes()
}

// Requests returns the number of requests received so far.
func (s *Server) Requests() int64 {
	return s.requests.Load()
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "pong"})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
