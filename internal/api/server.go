// Package api exposes the HTTP surface: the telephony provider's webhook
// endpoints, the admin reconciliation API, and metrics.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/voicebridge/voicebridge/internal/api/middleware"
	"github.com/voicebridge/voicebridge/internal/config"
	"github.com/voicebridge/voicebridge/internal/dispatch"
	"github.com/voicebridge/voicebridge/internal/metrics"
	"github.com/voicebridge/voicebridge/internal/route"
	"github.com/voicebridge/voicebridge/internal/twiml"
)

// Assigner runs number-to-agent reconciliation. *dispatch.Orchestrator
// satisfies it.
type Assigner interface {
	AutoAssign(ctx context.Context, req dispatch.AssignRequest) (*dispatch.AssignResult, error)
}

// CallRouter answers inbound-call webhooks. *route.Router satisfies it.
type CallRouter interface {
	Route(ctx context.Context, calledNumber string) (twiml.Response, route.Outcome)
}

// Deps are the collaborators the server dispatches into. Assigner and
// Calls are required; Directory, Metrics and Gatherer may be nil when the
// corresponding feature is not configured.
type Deps struct {
	Assigner  Assigner
	Calls     CallRouter
	Directory route.Directory
	Metrics   *metrics.Metrics
	Gatherer  prometheus.Gatherer

	// AdminSecret signs and verifies admin bearer tokens.
	AdminSecret []byte
}

// Server holds HTTP handler dependencies and the chi router.
type Server struct {
	router *chi.Mux
	cfg    *config.Config
	deps   Deps

	webhookLimiter *middleware.IPRateLimiter
	adminLimiter   *middleware.IPRateLimiter
}

// NewServer creates the HTTP handler with all routes mounted.
func NewServer(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		cfg:            cfg,
		deps:           deps,
		webhookLimiter: middleware.NewIPRateLimiter(middleware.WebhookRateLimitConfig()),
		adminLimiter:   middleware.NewIPRateLimiter(middleware.AdminRateLimitConfig()),
	}

	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops the rate limiters' background cleanup.
func (s *Server) Close() {
	s.webhookLimiter.Stop()
	s.adminLimiter.Stop()
}

// routes configures the middleware stack and mounts all route groups.
func (s *Server) routes() {
	r := s.router

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.StructuredLogger)
	r.Use(middleware.Recoverer)

	// Provider-facing webhooks. Unauthenticated: Twilio signs requests at
	// the transport level and the responses carry no secrets.
	r.Route("/twilio", func(r chi.Router) {
		r.Use(middleware.RateLimit(s.webhookLimiter))
		r.Post("/voice", s.handleVoiceWebhook)
		r.Post("/status", s.handleStatusCallback)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Operator endpoints.
		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(s.adminLimiter))
			r.Use(middleware.RequireAdminAuth(s.deps.AdminSecret))
			r.Post("/numbers/auto-assign", s.handleAutoAssign)
			r.Get("/assistants/{id}", s.handleAssistant)
		})
	})

	if s.deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{}))
	}
}

// handleHealth returns basic health status. Unauthenticated.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	provider := "not_configured"
	if s.cfg.ProviderConfigured() {
		provider = "configured"
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"provider": provider,
	})
}
