package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/wellbeing-foundation/registration-engine/internal/catalog"
	"github.com/wellbeing-foundation/registration-engine/internal/config"
	"github.com/wellbeing-foundation/registration-engine/internal/i18n"
	"github.com/wellbeing-foundation/registration-engine/internal/registration"
	"github.com/wellbeing-foundation/registration-engine/internal/storage"
	"github.com/wellbeing-foundation/registration-engine/pkg/client"
)

// Pinger is a dependency checked by the readiness probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators the HTTP layer drives
type Deps struct {
	Loader     *catalog.Loader
	Upstream   *client.Client
	Flows      *registration.Registry
	Ledger     storage.Repository // nil when no database is configured
	Translator *i18n.Translator
	Identity   *IdentityMiddleware
	Ready      map[string]Pinger
	Now        func() time.Time
}

// Server represents the HTTP API server
type Server struct {
	config     config.ServerConfig
	router     *chi.Mux
	loader     *catalog.Loader
	upstream   *client.Client
	flows      *registration.Registry
	ledger     storage.Repository
	translator *i18n.Translator
	identity   *IdentityMiddleware
	ready      map[string]Pinger
	now        func() time.Time
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, deps Deps) *Server {
	s := &Server{
		config:     cfg,
		loader:     deps.Loader,
		upstream:   deps.Upstream,
		flows:      deps.Flows,
		ledger:     deps.Ledger,
		translator: deps.Translator,
		identity:   deps.Identity,
		ready:      deps.Ready,
		now:        deps.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Language", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check (outside versioned API - public)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.identity.Identify)

		r.Route("/events/{slug}", func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			r.Get("/", s.handleGetEvent)
			r.Post("/registrations", s.handleCreateRegistration)
		})

		r.Route("/registrations/{id}", func(r chi.Router) {
			r.Use(s.identity.RequireUser)

			// Long-lived transition stream, no request timeout
			r.Get("/stream", s.handleStream)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(60 * time.Second))
				r.Get("/", s.handleGetRegistration)
				r.Put("/answers/{questionId}", s.handleSetAnswer)
				r.Post("/next", s.handleNext)
				r.Post("/previous", s.handlePrevious)
				r.Post("/submit", s.handleSubmit)
				r.Post("/cancel", s.handleCancelQuestionnaire)
				r.Post("/payment/success", s.handlePaymentSuccess)
				r.Post("/payment/cancel", s.handlePaymentCancel)
			})
		})

		r.With(s.identity.RequireUser, middleware.Timeout(60*time.Second)).Get("/me/enrollments", s.handleListEnrollments)
	})

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
