package rest

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/davidleathers/qaudit-backend/internal/infrastructure/cache"
	"github.com/davidleathers/qaudit-backend/internal/metrics"
)

// Config carries the HTTP-layer settings
type Config struct {
	Version           string
	JWTSecret         string
	CORSOrigins       []string
	RequestsPerSecond int
	BurstSize         int
	ValidateRequests  bool
}

type routerOptions struct {
	limiter  cache.RateLimiter
	registry *metrics.Registry
	checks   []HealthCheck
}

// Option configures optional router dependencies
type Option func(*routerOptions)

// WithRateLimiter shares the rate-limit window across replicas
func WithRateLimiter(l cache.RateLimiter) Option {
	return func(o *routerOptions) { o.limiter = l }
}

// WithMetrics records request metrics on the OpenTelemetry registry
func WithMetrics(r *metrics.Registry) Option {
	return func(o *routerOptions) { o.registry = r }
}

// WithHealthCheck adds a dependency probe to GET /health
func WithHealthCheck(c HealthCheck) Option {
	return func(o *routerOptions) { o.checks = append(o.checks, c) }
}

// NewRouter builds the API handler with its middleware stack
func NewRouter(svc Services, cfg Config, logger *zap.Logger, opts ...Option) (http.Handler, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if svc.Plans == nil || svc.Samples == nil || svc.Risk == nil {
		return nil, fmt.Errorf("all services are required")
	}
	var o routerOptions
	for _, opt := range opts {
		opt(&o)
	}

	h := &Handler{
		svc:      svc,
		logger:   logger,
		validate: newValidator(),
		actors:   actorResolver{secret: []byte(cfg.JWTSecret)},
		checks:   o.checks,
		version:  cfg.Version,
	}

	mux := http.NewServeMux()
	handle := func(pattern string, fn http.HandlerFunc) {
		mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rt := routeFrom(r.Context()); rt != nil {
				rt.pattern = pattern
			}
			fn(w, r)
		}))
	}

	handle("POST /plans", h.createPlan)
	handle("GET /plan/{id}", h.getPlan)
	handle("POST /plan/{id}/approve", h.transition(svc.Plans.Approve))
	handle("POST /plan/{id}/complete", h.transition(svc.Plans.Complete))
	handle("POST /plan/{id}/baseline", h.baseline)
	handle("POST /plan/{id}/generate-engagements", h.generateEngagements)
	handle("GET /plan/{id}/items", h.listItems)
	handle("POST /plan/{id}/items", h.addItem)
	handle("PUT /plan/{id}/items/{itemId}", h.updateItem)
	handle("DELETE /plan/{id}/items/{itemId}", h.deleteItem)
	handle("GET /plan/{id}/baseline/verify", h.verifyBaseline)
	handle("GET /plan/{id}/baseline/export", h.exportBaseline)

	handle("POST /audit-universe", h.createAuditUniverse)
	handle("GET /audit-universe/{id}/risk", h.riskHistory)
	handle("POST /risk/assess", h.assessRisk)

	handle("POST /samples", h.createSample)
	handle("GET /samples/recommend", h.recommendSample)
	handle("GET /samples/{id}", h.getSample)
	handle("GET /samples/{id}/verify", h.verifySample)

	handle("GET /health", h.health)
	handle("GET /metrics", promhttp.Handler().ServeHTTP)
	handle("GET /openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(openAPISpec)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, logger, errRouteNotFound)
	})

	mws := []Middleware{
		RecoveryMiddleware(logger),
		RequestIDMiddleware(),
		TracingMiddleware(),
		LoggingMiddleware(logger, &httpMetrics{registry: o.registry}),
		CORSMiddleware(cfg.CORSOrigins),
		RateLimitMiddleware(cfg.RequestsPerSecond, cfg.BurstSize, o.limiter, logger),
	}
	if cfg.ValidateRequests {
		cv, err := NewContractValidator()
		if err != nil {
			return nil, err
		}
		mws = append(mws, ContractMiddleware(cv, logger))
	}
	return chain(mux, mws...), nil
}
