package handlers

import (
	"net/http"
	"strconv"

	"github.com/regulens/compliance-core/internal/registry"
)

func (h *Handlers) sourceRoutes() []registry.Endpoint {
	roles := []string{"user", "admin", "compliance_officer"}
	writeRoles := []string{"admin", "compliance_officer"}
	return []registry.Endpoint{
		{Method: http.MethodGet, PathTemplate: "/sources", Category: "sources", AuthRequired: true, AllowedRoles: roles, Summary: "list monitored sources", Handler: h.listSources},
		{Method: http.MethodPost, PathTemplate: "/sources/{id}/force", Category: "sources", AuthRequired: true, AllowedRoles: writeRoles, Summary: "force an out-of-band scrape cycle", Handler: h.forceSource},
		{Method: http.MethodGet, PathTemplate: "/regulatory-changes", Category: "sources", AuthRequired: true, AllowedRoles: roles, Summary: "recently seen regulatory changes", Handler: h.listRecentChanges},
	}
}

func (h *Handlers) listSources(r registry.Request) registry.Response {
	if h.monitor == nil {
		return registry.JSON(http.StatusOK, map[string]interface{}{"items": []interface{}{}})
	}
	items := make([]map[string]interface{}, 0)
	for _, src := range h.monitor.Sources() {
		items = append(items, map[string]interface{}{
			"id": src.ID, "name": src.Name, "baseUrl": src.BaseURL, "sourceType": src.SourceType,
			"active": src.Active, "quarantined": src.Quarantined, "consecutiveFailures": src.ConsecutiveFailures,
			"lastCheckedAt": src.LastCheckedAt, "backoffUntil": src.BackoffUntil,
		})
	}
	return registry.JSON(http.StatusOK, map[string]interface{}{"items": items})
}

// recentChangeRow is the handler's own sqlx scan target for one
// regulatory_changes row.
type recentChangeRow struct {
	ID         string `db:"id"`
	SourceID   string `db:"source_id"`
	Title      string `db:"title"`
	ContentURL string `db:"content_url"`
	Severity   string `db:"severity"`
	ChangeType string `db:"change_type"`
	LastSeenAt string `db:"last_seen_at"`
}

// listRecentChanges backs the operator console's "changes" command and
// spec.md's regulatory-change visibility requirement: the most recently
// seen changes across every source, newest first.
func (h *Handlers) listRecentChanges(r registry.Request) registry.Response {
	limit := 10
	if v := r.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	var rows []recentChangeRow
	err := h.pool.Raw().SelectContext(r.Ctx, &rows, `
		SELECT id, source_id, title, content_url, severity, change_type, last_seen_at::text AS last_seen_at
		FROM regulatory_changes
		ORDER BY last_seen_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return errResponse(statusFromDBErr(err), "list regulatory changes failed")
	}
	items := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		items = append(items, map[string]interface{}{
			"id": row.ID, "sourceId": row.SourceID, "title": row.Title, "contentUrl": row.ContentURL,
			"severity": row.Severity, "changeType": row.ChangeType, "lastSeenAt": row.LastSeenAt,
		})
	}
	return registry.JSON(http.StatusOK, map[string]interface{}{"items": items})
}

func (h *Handlers) forceSource(r registry.Request) registry.Response {
	if h.monitor == nil {
		return errResponse(http.StatusServiceUnavailable, "regulatory monitor not configured")
	}
	result := h.monitor.ForceCheck(r.Ctx, r.Params["id"])
	status := http.StatusOK
	if result.Err != nil {
		status = http.StatusBadGateway
	}
	body := map[string]interface{}{
		"sourceId": r.Params["id"], "inserted": result.Inserted, "duplicated": result.Duplicated, "failed": result.Failed,
	}
	if result.Err != nil {
		body["error"] = result.Err.Error()
	}
	return registry.JSON(status, body)
}
