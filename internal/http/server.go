package http

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	applog "crnumbers/internal/log"
	"crnumbers/internal/middleware/ratelimit"
	"crnumbers/internal/middleware/security"
	"crnumbers/internal/middleware/trace"
	"crnumbers/internal/services"
	"crnumbers/internal/storage"
	"crnumbers/internal/validation"
)

const maxBodyBytes = 1 << 20

// Dependencies are the services the handlers call into.
type Dependencies struct {
	Staging   *services.StagingService
	Finalizer *services.ReconciliationService
	Reports   *services.ReportService
	DB        storage.Pinger
	Validator *validation.Validator
	Logger    *applog.Logger
}

type Options struct {
	Addr        string
	CORSOrigins []string
	RateLimit   ratelimit.Config
}

type Server struct {
	http.Server
	deps    Dependencies
	logger  *applog.Logger
	limiter *ratelimit.Limiter

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(opts Options, deps Dependencies) *Server {
	if deps.Validator == nil {
		deps.Validator = validation.New()
	}
	s := &Server{
		deps:    deps,
		logger:  deps.Logger.WithComponent(applog.ComponentHTTP),
		limiter: ratelimit.NewLimiter(opts.RateLimit),
	}
	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(opts),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(trace.NewMiddleware(s.deps.Logger, clientIP).Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", trace.HeaderRequestID},
		ExposedHeaders: []string{"X-Total-Count", trace.HeaderRequestID},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	limited := s.limiter.Middleware(clientIP, s.handleRateLimited)

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/fields", s.handleFields)

		r.Route("/pending", func(r chi.Router) {
			r.With(limited).Post("/", s.handleCreatePending)
			r.With(limited).Post("/section", s.handleCreateSection)
			r.Get("/{date}", s.handleListPending)
		})

		r.Route("/reports", func(r chi.Router) {
			r.With(limited).Post("/", s.handleFinalize)
			r.Get("/", s.handleListReports)
			r.Get("/stats", s.handleStats)
		})
	})

	return r
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, clientIP(r),
		applog.FieldPath, r.URL.Path)
	writeMessage(w, http.StatusTooManyRequests, "Too many requests, please try again later.")
}

// Shutdown stops the rate limiter and gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// clientIP prefers proxy headers, then the connection address without its port.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first, _, _ := strings.Cut(xff, ","); strings.TrimSpace(first) != "" {
			return strings.TrimSpace(first)
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
