// Package handlers implements the DomainHandlers (spec C10): the adapters
// over the connection pool, token service, pattern engine, feedback system,
// and regulatory monitor that the registry (C6) dispatches HTTP requests
// into. Grounded on applications/httpapi's handler packages (one file per
// resource, a thin struct holding the shared dependencies), generalized from
// that package's single-tenant handlers onto this system's resource set.
package handlers

import (
	"github.com/regulens/compliance-core/internal/database"
	"github.com/regulens/compliance-core/internal/feedback"
	"github.com/regulens/compliance-core/internal/monitor"
	"github.com/regulens/compliance-core/internal/pattern"
	"github.com/regulens/compliance-core/internal/registry"
	"github.com/regulens/compliance-core/pkg/auth"
	"github.com/regulens/compliance-core/pkg/logging"
)

// Handlers holds every dependency domain handlers are adapters over.
type Handlers struct {
	pool     *database.Pool
	tokens   *auth.Service
	patterns *pattern.Engine
	feedback *feedback.System
	monitor  *monitor.Monitor
	log      *logging.Logger
}

// New builds the Handlers aggregate.
func New(pool *database.Pool, tokens *auth.Service, patterns *pattern.Engine, fb *feedback.System, mon *monitor.Monitor, log *logging.Logger) *Handlers {
	return &Handlers{pool: pool, tokens: tokens, patterns: patterns, feedback: fb, monitor: mon, log: log}
}

// Routes returns every endpoint this package registers, grouped so
// RegisterAll can be called once from cmd/server.
func (h *Handlers) Routes() []registry.Endpoint {
	var eps []registry.Endpoint
	eps = append(eps, h.healthRoutes()...)
	eps = append(eps, h.authRoutes()...)
	eps = append(eps, h.decisionRoutes()...)
	eps = append(eps, h.knowledgeRoutes()...)
	eps = append(eps, h.memoryRoutes()...)
	eps = append(eps, h.transactionRoutes()...)
	eps = append(eps, h.fraudRoutes()...)
	eps = append(eps, h.trainingRoutes()...)
	eps = append(eps, h.simulatorRoutes()...)
	eps = append(eps, h.sourceRoutes()...)
	eps = append(eps, h.patternRoutes()...)
	eps = append(eps, h.feedbackRoutes()...)
	return eps
}
