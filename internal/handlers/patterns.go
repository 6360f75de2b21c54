package handlers

import (
	"net/http"
	"strconv"

	"github.com/regulens/compliance-core/internal/pattern"
	"github.com/regulens/compliance-core/internal/registry"
)

func (h *Handlers) patternRoutes() []registry.Endpoint {
	roles := []string{"user", "admin", "compliance_officer"}
	return []registry.Endpoint{
		{Method: http.MethodGet, PathTemplate: "/patterns", Category: "patterns", AuthRequired: true, AllowedRoles: roles, Summary: "stored + live patterns", Handler: h.getPatterns},
		{Method: http.MethodPost, PathTemplate: "/patterns/detect", Category: "patterns", AuthRequired: true, AllowedRoles: roles, Summary: "run detection for an entity", Handler: h.detectPatterns},
	}
}

// getPatterns serves spec.md §6's GET /patterns?type=&minConfidence=&limit=;
// format=csv routes through ExportPatterns (SPEC_FULL.md §3's C8 extension)
// instead of the JSON envelope.
func (h *Handlers) getPatterns(r registry.Request) registry.Response {
	if h.patterns == nil {
		return errResponse(http.StatusServiceUnavailable, "pattern engine not configured")
	}
	kind := pattern.Kind(r.QueryParam("type"))
	minConfidence := 0.0
	if v := r.QueryParam("minConfidence"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			minConfidence = f
		}
	}

	if r.QueryParam("format") == "csv" {
		data, err := h.patterns.ExportPatterns(kind, "csv")
		if err != nil {
			return errResponse(http.StatusInternalServerError, "export patterns failed")
		}
		return registry.JSON(http.StatusOK, map[string]interface{}{"format": "csv", "data": string(data)})
	}

	limit := 100
	if v := r.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	matches := h.patterns.GetPatterns(kind, minConfidence)
	if limit < len(matches) {
		matches = matches[:limit]
	}

	items := make([]map[string]interface{}, 0, len(matches))
	for _, p := range matches {
		items = append(items, map[string]interface{}{
			"id": p.ID, "name": p.Name, "description": p.Description, "kind": p.Kind,
			"confidence": p.Confidence, "impact": p.Impact, "strength": p.Strength,
			"occurrences": p.Occurrences, "discoveredAt": p.DiscoveredAt, "lastUpdated": p.LastUpdated,
		})
	}
	return registry.JSON(http.StatusOK, map[string]interface{}{"items": items})
}

type detectRequest struct {
	EntityID string `json:"entityId"`
}

// detectPatterns kicks a synchronous Analyze pass and returns 202: detection
// is fast enough to run inline, but the response shape matches an
// accepted-for-processing contract so a future async queue can swap in
// without a client-visible change.
func (h *Handlers) detectPatterns(r registry.Request) registry.Response {
	if h.patterns == nil {
		return errResponse(http.StatusServiceUnavailable, "pattern engine not configured")
	}
	var body detectRequest
	if err := decodeBody(r, &body); err != nil || body.EntityID == "" {
		return errResponse(http.StatusBadRequest, "entityId is required")
	}

	discovered := h.patterns.Analyze(body.EntityID)
	return registry.JSON(http.StatusAccepted, map[string]interface{}{
		"entityId": body.EntityID, "patternsDiscovered": len(discovered),
	})
}
