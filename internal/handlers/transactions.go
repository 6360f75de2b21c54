package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/regulens/compliance-core/internal/database"
	"github.com/regulens/compliance-core/internal/registry"
)

var transactionSortWhitelist = []string{"created_at", "updated_at", "amount", "status"}

func (h *Handlers) transactionRoutes() []registry.Endpoint {
	roles := []string{"user", "admin", "compliance_officer"}
	reviewRoles := []string{"admin", "compliance_officer"}
	return []registry.Endpoint{
		{Method: http.MethodGet, PathTemplate: "/transactions", Category: "transactions", AuthRequired: true, AllowedRoles: roles, Summary: "list with filter/sort/paginate", Handler: h.listTransactions},
		{Method: http.MethodGet, PathTemplate: "/transactions/{id}", Category: "transactions", AuthRequired: true, AllowedRoles: roles, Summary: "get transaction", Handler: h.getTransaction},
		{Method: http.MethodPost, PathTemplate: "/transactions", Category: "transactions", AuthRequired: true, AllowedRoles: roles, Summary: "create", Handler: h.createTransaction},
		{Method: http.MethodPost, PathTemplate: "/transactions/{id}/approve", Category: "transactions", AuthRequired: true, AllowedRoles: reviewRoles, Summary: "transition", Handler: h.approveTransaction},
		{Method: http.MethodPost, PathTemplate: "/transactions/{id}/reject", Category: "transactions", AuthRequired: true, AllowedRoles: reviewRoles, Summary: "transition", Handler: h.rejectTransaction},
	}
}

type transactionRow struct {
	ID              string         `db:"id"`
	Reference       string         `db:"reference"`
	Amount          float64        `db:"amount"`
	Currency        string         `db:"currency"`
	Counterparty    string         `db:"counterparty"`
	Status          string         `db:"status"`
	CreatedBy       string         `db:"created_by"`
	ApprovedBy      sql.NullString `db:"approved_by"`
	ApprovedAt      sql.NullTime   `db:"approved_at"`
	RejectionReason sql.NullString `db:"rejection_reason"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func (row transactionRow) toJSON() map[string]interface{} {
	out := map[string]interface{}{
		"id": row.ID, "reference": row.Reference, "amount": row.Amount, "currency": row.Currency,
		"counterparty": row.Counterparty, "status": row.Status, "createdBy": row.CreatedBy,
		"createdAt": row.CreatedAt, "updatedAt": row.UpdatedAt,
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

func (h *Handlers) listTransactions(r registry.Request) registry.Response {
	limit, offset := parsePagination(r)
	sortBy, order := parseSort(r, transactionSortWhitelist, "created_at")

	qb := database.NewQueryBuilder("transactions",
		"id, reference, amount, currency, counterparty, status, created_by, approved_by, approved_at, rejection_reason, created_at, updated_at").
		Where("deleted = FALSE").
		WhereIf(r.QueryParam("status") != "", "status = ?", r.QueryParam("status")).
		WhereIf(r.QueryParam("counterparty") != "", "counterparty = ?", r.QueryParam("counterparty"))

	countQuery, countArgs := qb.BuildCount()
	var total int
	if err := h.pool.Raw().GetContext(r.Ctx, &total, countQuery, countArgs...); err != nil {
		return errResponse(http.StatusInternalServerError, "count transactions failed")
	}

	query, args := qb.OrderBy(sortBy, order).Paginate(limit, offset).Build()
	var rows []transactionRow
	if err := h.pool.Raw().SelectContext(r.Ctx, &rows, query, args...); err != nil {
		return errResponse(http.StatusInternalServerError, "list transactions failed")
	}

	items := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toJSON())
	}
	return registry.JSON(http.StatusOK, paged(items, limit, offset, total))
}

func (h *Handlers) fetchTransaction(r registry.Request, id string) (*transactionRow, error) {
	var row transactionRow
	err := h.pool.Raw().GetContext(r.Ctx, &row, `
		SELECT id, reference, amount, currency, counterparty, status, created_by, approved_by, approved_at, rejection_reason, created_at, updated_at
		FROM transactions WHERE id = $1 AND deleted = FALSE
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (h *Handlers) getTransaction(r registry.Request) registry.Response {
	row, err := h.fetchTransaction(r, r.Params["id"])
	if err != nil {
		return errResponse(http.StatusInternalServerError, "lookup transaction failed")
	}
	if row == nil {
		return errResponse(http.StatusNotFound, "transaction not found")
	}
	return registry.JSON(http.StatusOK, row.toJSON())
}

type createTransactionRequest struct {
	Reference    string  `json:"reference" validate:"required"`
	Amount       float64 `json:"amount" validate:"gt=0"`
	Currency     string  `json:"currency" validate:"required,len=3"`
	Counterparty string  `json:"counterparty"`
}

func (h *Handlers) createTransaction(r registry.Request) registry.Response {
	var body createTransactionRequest
	if err := decodeAndValidate(r, &body); err != nil {
		return errResponse(http.StatusBadRequest, "reference, positive amount, and a 3-letter currency are required")
	}

	id := newID("txn")
	_, err := h.pool.Raw().ExecContext(r.Ctx, `
		INSERT INTO transactions (id, reference, amount, currency, counterparty, status, created_by)
		VALUES ($1, $2, $3, $4, $5, 'pending', $6)
	`, id, body.Reference, body.Amount, body.Currency, body.Counterparty, r.CallerID)
	if err != nil {
		return errResponse(http.StatusInternalServerError, "create transaction failed")
	}

	row, err := h.fetchTransaction(r, id)
	if err != nil || row == nil {
		return errResponse(http.StatusInternalServerError, "reload transaction failed")
	}
	return registry.JSON(http.StatusCreated, row.toJSON())
}

func (h *Handlers) approveTransaction(r registry.Request) registry.Response {
	return h.transitionTransaction(r, "approved", "")
}

type rejectTransactionRequest struct {
	Reason string `json:"reason"`
}

func (h *Handlers) rejectTransaction(r registry.Request) registry.Response {
	var body rejectTransactionRequest
	_ = decodeBody(r, &body)
	return h.transitionTransaction(r, "rejected", body.Reason)
}

// transitionTransaction resolves SPEC_FULL.md §3's open question: the audit
// subject is the caller's own resolved userId, not the original's unused
// "system" literal, so approve/reject is always attributable to a real actor.
func (h *Handlers) transitionTransaction(r registry.Request, newStatus, reason string) registry.Response {
	id := r.Params["id"]

	result, err := h.pool.Raw().ExecContext(r.Ctx, `
		UPDATE transactions SET status = $1, approved_by = $2, approved_at = now(), rejection_reason = NULLIF($3, ''), updated_at = now()
		WHERE id = $4 AND deleted = FALSE AND status = 'pending'
	`, newStatus, r.CallerID, reason, id)
	if err != nil {
		return errResponse(http.StatusInternalServerError, "transition transaction failed")
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return errResponse(http.StatusNotFound, "not found or already "+newStatus)
	}

	row, err := h.fetchTransaction(r, id)
	if err != nil || row == nil {
		return errResponse(http.StatusInternalServerError, "reload transaction failed")
	}
	return registry.JSON(http.StatusOK, row.toJSON())
}
