// Package api exposes the resolution service over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/heritage-watch/heritage-cli/internal/heritage"
)

// Config tunes the HTTP facade.
type Config struct {
	// RequestsPerSecond caps the request rate across all clients.
	// Zero disables the limiter.
	RequestsPerSecond float64
	Burst             int
	AllowedOrigins    []string
}

// Server holds the handlers' dependencies.
type Server struct {
	svc     *heritage.Service
	limiter *rate.Limiter
	cfg     Config
}

// NewServer wires the handlers to a resolution service.
func NewServer(svc *heritage.Service, cfg Config) *Server {
	s := &Server{svc: svc, cfg: cfg}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = int(cfg.RequestsPerSecond)
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return s
}

// Router mounts all routes with logging, CORS and rate limiting.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Post("/resolve", s.handleResolve)
		r.Get("/stats", s.handleStats)
	})

	return r
}

// rateLimit rejects requests over the configured rate with 429. The health
// endpoint is exempt so load balancers keep probing under load.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			writeJSON(w, http.StatusTooManyRequests, errorBody{
				ErrorCode: "RateLimited",
				Message:   "request rate limit exceeded",
				Retryable: true,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
