package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/regulens/compliance-core/internal/database"
	"github.com/regulens/compliance-core/internal/registry"
)

var decisionSortWhitelist = []string{"created_at", "updated_at", "title", "status"}

func (h *Handlers) decisionRoutes() []registry.Endpoint {
	roles := []string{"user", "admin", "compliance_officer"}
	reviewRoles := []string{"admin", "compliance_officer"}
	return []registry.Endpoint{
		{Method: http.MethodGet, PathTemplate: "/decisions", Category: "decisions", AuthRequired: true, AllowedRoles: roles, Summary: "list with filter/sort/paginate", Handler: h.listDecisions},
		{Method: http.MethodGet, PathTemplate: "/decisions/{id}", Category: "decisions", AuthRequired: true, AllowedRoles: roles, Summary: "full decision", Handler: h.getDecision},
		{Method: http.MethodGet, PathTemplate: "/decisions/{id}/audit", Category: "decisions", AuthRequired: true, AllowedRoles: roles, Summary: "audit trail", Handler: h.getDecisionAudit},
		{Method: http.MethodPost, PathTemplate: "/decisions", Category: "decisions", AuthRequired: true, AllowedRoles: roles, Summary: "create", Handler: h.createDecision},
		{Method: http.MethodPost, PathTemplate: "/decisions/{id}/approve", Category: "decisions", AuthRequired: true, AllowedRoles: reviewRoles, Summary: "transition", Handler: h.approveDecision},
		{Method: http.MethodPost, PathTemplate: "/decisions/{id}/reject", Category: "decisions", AuthRequired: true, AllowedRoles: reviewRoles, Summary: "transition", Handler: h.rejectDecision},
		{Method: http.MethodDelete, PathTemplate: "/decisions/{id}", Category: "decisions", AuthRequired: true, AllowedRoles: reviewRoles, Summary: "soft delete", Handler: h.deleteDecision},
	}
}

type decisionRow struct {
	ID              string         `db:"id"`
	Title           string         `db:"title"`
	Description     string         `db:"description"`
	Category        string         `db:"category"`
	Status          string         `db:"status"`
	CreatedBy       string         `db:"created_by"`
	ApprovedBy      sql.NullString `db:"approved_by"`
	ApprovedAt      sql.NullTime   `db:"approved_at"`
	RejectionReason sql.NullString `db:"rejection_reason"`
	Deleted         bool           `db:"deleted"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func (row decisionRow) toJSON() map[string]interface{} {
	out := map[string]interface{}{
		"id": row.ID, "title": row.Title, "description": row.Description, "category": row.Category,
		"status": row.Status, "createdBy": row.CreatedBy, "createdAt": row.CreatedAt, "updatedAt": row.UpdatedAt,
	}
	if row.ApprovedBy.Valid {
		out["approvedBy"] = row.ApprovedBy.String
	}
	if row.ApprovedAt.Valid {
		out["approvedAt"] = row.ApprovedAt.Time
	}
	if row.RejectionReason.Valid {
		out["rejectionReason"] = row.RejectionReason.String
	}
	return out
}

func (h *Handlers) listDecisions(r registry.Request) registry.Response {
	limit, offset := parsePagination(r)
	sortBy, order := parseSort(r, decisionSortWhitelist, "created_at")

	qb := database.NewQueryBuilder("decisions",
		"id, title, description, category, status, created_by, approved_by, approved_at, rejection_reason, deleted, created_at, updated_at").
		Where("deleted = FALSE").
		WhereIf(r.QueryParam("status") != "", "status = ?", r.QueryParam("status")).
		WhereIf(r.QueryParam("category") != "", "category = ?", r.QueryParam("category"))

	countQuery, countArgs := qb.BuildCount()
	var total int
	if err := h.pool.Raw().GetContext(r.Ctx, &total, countQuery, countArgs...); err != nil {
		return errResponse(http.StatusInternalServerError, "count decisions failed")
	}

	query, args := qb.OrderBy(sortBy, order).Paginate(limit, offset).Build()
	var rows []decisionRow
	if err := h.pool.Raw().SelectContext(r.Ctx, &rows, query, args...); err != nil {
		return errResponse(http.StatusInternalServerError, "list decisions failed")
	}

	items := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toJSON())
	}
	return registry.JSON(http.StatusOK, paged(items, limit, offset, total))
}

func (h *Handlers) fetchDecision(r registry.Request, id string) (*decisionRow, error) {
	var row decisionRow
	err := h.pool.Raw().GetContext(r.Ctx, &row, `
		SELECT id, title, description, category, status, created_by, approved_by, approved_at, rejection_reason, deleted, created_at, updated_at
		FROM decisions WHERE id = $1 AND deleted = FALSE
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (h *Handlers) getDecision(r registry.Request) registry.Response {
	row, err := h.fetchDecision(r, r.Params["id"])
	if err != nil {
		return errResponse(http.StatusInternalServerError, "lookup decision failed")
	}
	if row == nil {
		return errResponse(http.StatusNotFound, "decision not found")
	}
	return registry.JSON(http.StatusOK, row.toJSON())
}

type createDecisionRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required"`
	Category    string `json:"category"`
}

func (h *Handlers) createDecision(r registry.Request) registry.Response {
	var body createDecisionRequest
	if err := decodeAndValidate(r, &body); err != nil {
		return errResponse(http.StatusBadRequest, "title and description are required")
	}

	id := newID("decision")
	tx, err := h.pool.Raw().BeginTxx(r.Ctx, nil)
	if err != nil {
		return errResponse(http.StatusInternalServerError, "begin transaction failed")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(r.Ctx, `
		INSERT INTO decisions (id, title, description, category, status, created_by)
		VALUES ($1, $2, $3, $4, 'draft', $5)
	`, id, body.Title, body.Description, body.Category, r.CallerID); err != nil {
		return errResponse(http.StatusInternalServerError, "create decision failed")
	}
	if _, err := tx.ExecContext(r.Ctx, `
		INSERT INTO decision_audit_log (id, decision_id, actor, action, notes)
		VALUES ($1, $2, $3, 'created', '')
	`, newID("audit"), id, r.CallerID); err != nil {
		return errResponse(http.StatusInternalServerError, "write audit row failed")
	}
	if err := tx.Commit(); err != nil {
		return errResponse(http.StatusInternalServerError, "commit decision failed")
	}

	row, err := h.fetchDecision(r, id)
	if err != nil || row == nil {
		return errResponse(http.StatusInternalServerError, "reload decision failed")
	}
	return registry.JSON(http.StatusCreated, row.toJSON())
}

func (h *Handlers) approveDecision(r registry.Request) registry.Response {
	return h.transitionDecision(r, "approved", "")
}

type rejectDecisionRequest struct {
	Reason string `json:"reason"`
}

func (h *Handlers) rejectDecision(r registry.Request) registry.Response {
	var body rejectDecisionRequest
	_ = decodeBody(r, &body)
	return h.transitionDecision(r, "rejected", body.Reason)
}

// transitionDecision applies the one-way draft/pending_review -> approved|rejected
// transition (spec.md §4.7: "one-way except by explicit review"); a decision
// already in a terminal state reports not found rather than re-applying,
// matching S4's "approve again -> 404" scenario.
func (h *Handlers) transitionDecision(r registry.Request, newStatus, reason string) registry.Response {
	id := r.Params["id"]

	result, err := h.pool.Raw().ExecContext(r.Ctx, `
		UPDATE decisions SET status = $1, approved_by = $2, approved_at = now(), rejection_reason = NULLIF($3, ''), updated_at = now()
		WHERE id = $4 AND deleted = FALSE AND status IN ('draft', 'pending_review')
	`, newStatus, r.CallerID, reason, id)
	if err != nil {
		return errResponse(http.StatusInternalServerError, "transition decision failed")
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return errResponse(http.StatusNotFound, "not found or already "+newStatus)
	}

	_, _ = h.pool.Raw().ExecContext(r.Ctx, `
		INSERT INTO decision_audit_log (id, decision_id, actor, action, notes) VALUES ($1, $2, $3, $4, $5)
	`, newID("audit"), id, r.CallerID, newStatus, reason)

	row, err := h.fetchDecision(r, id)
	if err != nil || row == nil {
		return errResponse(http.StatusInternalServerError, "reload decision failed")
	}
	return registry.JSON(http.StatusOK, row.toJSON())
}

func (h *Handlers) deleteDecision(r registry.Request) registry.Response {
	result, err := h.pool.Raw().ExecContext(r.Ctx, `UPDATE decisions SET deleted = TRUE, updated_at = now() WHERE id = $1 AND deleted = FALSE`, r.Params["id"])
	if err != nil {
		return errResponse(http.StatusInternalServerError, "delete decision failed")
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return errResponse(http.StatusNotFound, "decision not found")
	}
	return registry.Response{Status: http.StatusNoContent}
}

type auditEntry struct {
	ID         string         `db:"id" json:"id"`
	DecisionID string         `db:"decision_id" json:"decisionId"`
	Actor      string         `db:"actor" json:"actor"`
	Action     string         `db:"action" json:"action"`
	Notes      sql.NullString `db:"notes" json:"-"`
	CreatedAt  time.Time      `db:"created_at" json:"createdAt"`
}

// MarshalJSON flattens Notes to a plain string (empty when NULL) so callers
// don't need to unwrap sql.NullString on the wire.
func (a auditEntry) MarshalJSON() ([]byte, error) {
	type alias struct {
		ID         string    `json:"id"`
		DecisionID string    `json:"decisionId"`
		Actor      string    `json:"actor"`
		Action     string    `json:"action"`
		Notes      string    `json:"notes"`
		CreatedAt  time.Time `json:"createdAt"`
	}
	return json.Marshal(alias{a.ID, a.DecisionID, a.Actor, a.Action, a.Notes.String, a.CreatedAt})
}

func (h *Handlers) getDecisionAudit(r registry.Request) registry.Response {
	var rows []auditEntry
	err := h.pool.Raw().SelectContext(r.Ctx, &rows, `
		SELECT id, decision_id, actor, action, notes, created_at FROM decision_audit_log
		WHERE decision_id = $1 ORDER BY created_at ASC
	`, r.Params["id"])
	if err != nil {
		return errResponse(http.StatusInternalServerError, "load audit trail failed")
	}
	return registry.JSON(http.StatusOK, rows)
}
