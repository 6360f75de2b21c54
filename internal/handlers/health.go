package handlers

import (
	"net/http"

	"github.com/regulens/compliance-core/internal/registry"
)

func (h *Handlers) healthRoutes() []registry.Endpoint {
	return []registry.Endpoint{
		{Method: http.MethodGet, PathTemplate: "/api/health", Category: "health", Summary: "liveness probe", Handler: h.health},
	}
}

func (h *Handlers) health(r registry.Request) registry.Response {
	status := "ok"
	if err := h.pool.Ping(r.Ctx); err != nil {
		status = "degraded"
	}
	return registry.JSON(http.StatusOK, map[string]string{"status": status})
}
