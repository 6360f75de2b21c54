package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/regulens/compliance-core/internal/pattern"
	"github.com/regulens/compliance-core/internal/registry"
)

func (h *Handlers) fraudRoutes() []registry.Endpoint {
	roles := []string{"user", "admin", "compliance_officer"}
	writeRoles := []string{"admin", "compliance_officer"}
	return []registry.Endpoint{
		{Method: http.MethodGet, PathTemplate: "/fraud-rules", Category: "fraud", AuthRequired: true, AllowedRoles: roles, Summary: "list rules", Handler: h.listFraudRules},
		{Method: http.MethodGet, PathTemplate: "/fraud-rules/{id}", Category: "fraud", AuthRequired: true, AllowedRoles: roles, Summary: "get rule", Handler: h.getFraudRule},
		{Method: http.MethodPost, PathTemplate: "/fraud-rules", Category: "fraud", AuthRequired: true, AllowedRoles: writeRoles, Summary: "create rule", Handler: h.createFraudRule},
		{Method: http.MethodDelete, PathTemplate: "/fraud-rules/{id}", Category: "fraud", AuthRequired: true, AllowedRoles: writeRoles, Summary: "deactivate rule", Handler: h.deactivateFraudRule},
		{Method: http.MethodPost, PathTemplate: "/fraud-rules/evaluate", Category: "fraud", AuthRequired: true, AllowedRoles: roles, Summary: "evaluate a transaction against active rules", Handler: h.evaluateFraudRules},
	}
}

type fraudRuleRow struct {
	ID            string    `db:"id"`
	Name          string    `db:"name"`
	Description   string    `db:"description"`
	ConditionExpr string    `db:"condition_expr"`
	Severity      string    `db:"severity"`
	Active        bool      `db:"active"`
	CreatedBy     string    `db:"created_by"`
	CreatedAt     time.Time `db:"created_at"`
}

func (row fraudRuleRow) toJSON() map[string]interface{} {
	return map[string]interface{}{
		"id": row.ID, "name": row.Name, "description": row.Description, "condition": row.ConditionExpr,
		"severity": row.Severity, "active": row.Active, "createdBy": row.CreatedBy, "createdAt": row.CreatedAt,
	}
}

func (h *Handlers) listFraudRules(r registry.Request) registry.Response {
	limit, offset := parsePagination(r)
	var total int
	if err := h.pool.Raw().GetContext(r.Ctx, &total, `SELECT COUNT(*) FROM fraud_rules`); err != nil {
		return errResponse(http.StatusInternalServerError, "count fraud rules failed")
	}
	var rows []fraudRuleRow
	err := h.pool.Raw().SelectContext(r.Ctx, &rows, `
		SELECT id, name, description, condition_expr, severity, active, created_by, created_at
		FROM fraud_rules ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return errResponse(http.StatusInternalServerError, "list fraud rules failed")
	}
	items := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toJSON())
	}
	return registry.JSON(http.StatusOK, paged(items, limit, offset, total))
}

func (h *Handlers) fetchFraudRule(r registry.Request, id string) (*fraudRuleRow, error) {
	var row fraudRuleRow
	err := h.pool.Raw().GetContext(r.Ctx, &row, `
		SELECT id, name, description, condition_expr, severity, active, created_by, created_at FROM fraud_rules WHERE id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (h *Handlers) getFraudRule(r registry.Request) registry.Response {
	row, err := h.fetchFraudRule(r, r.Params["id"])
	if err != nil {
		return errResponse(http.StatusNotFound, "fraud rule not found")
	}
	return registry.JSON(http.StatusOK, row.toJSON())
}

type createFraudRuleRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Condition   string `json:"condition"`
	Severity    string `json:"severity"`
}

func (h *Handlers) createFraudRule(r registry.Request) registry.Response {
	var body createFraudRuleRequest
	if err := decodeBody(r, &body); err != nil || body.Name == "" || body.Condition == "" {
		return errResponse(http.StatusBadRequest, "name and condition are required")
	}
	if body.Severity == "" {
		body.Severity = "medium"
	}

	id := newID("rule")
	_, err := h.pool.Raw().ExecContext(r.Ctx, `
		INSERT INTO fraud_rules (id, name, description, condition_expr, severity, active, created_by)
		VALUES ($1, $2, $3, $4, $5, TRUE, $6)
	`, id, body.Name, body.Description, body.Condition, body.Severity, r.CallerID)
	if err != nil {
		return errResponse(http.StatusInternalServerError, "create fraud rule failed")
	}

	row, err := h.fetchFraudRule(r, id)
	if err != nil {
		return errResponse(http.StatusInternalServerError, "reload fraud rule failed")
	}
	return registry.JSON(http.StatusCreated, row.toJSON())
}

func (h *Handlers) deactivateFraudRule(r registry.Request) registry.Response {
	result, err := h.pool.Raw().ExecContext(r.Ctx, `UPDATE fraud_rules SET active = FALSE WHERE id = $1 AND active = TRUE`, r.Params["id"])
	if err != nil {
		return errResponse(http.StatusInternalServerError, "deactivate fraud rule failed")
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return errResponse(http.StatusNotFound, "fraud rule not found or already inactive")
	}
	return registry.Response{Status: http.StatusNoContent}
}

type evaluateRequest struct {
	TransactionID string `json:"transactionId"`
}

// evaluateFraudRules applies every active rule's condition to the named
// transaction and emits a fraud_evaluation PatternDataPoint so the rule
// engine's findings join the same analytic stream as scrapes and decisions
// (SPEC_FULL.md §3's fraud-rules extension).
func (h *Handlers) evaluateFraudRules(r registry.Request) registry.Response {
	var body evaluateRequest
	if err := decodeBody(r, &body); err != nil || body.TransactionID == "" {
		return errResponse(http.StatusBadRequest, "transactionId is required")
	}

	txn, err := h.fetchTransaction(r, body.TransactionID)
	if err != nil {
		return errResponse(http.StatusInternalServerError, "lookup transaction failed")
	}
	if txn == nil {
		return errResponse(http.StatusNotFound, "transaction not found")
	}

	var rules []fraudRuleRow
	if err := h.pool.Raw().SelectContext(r.Ctx, &rules, `SELECT id, name, description, condition_expr, severity, active, created_by, created_at FROM fraud_rules WHERE active = TRUE`); err != nil {
		return errResponse(http.StatusInternalServerError, "load fraud rules failed")
	}

	var triggered []map[string]interface{}
	for _, rule := range rules {
		if ruleMatches(rule.ConditionExpr, *txn) {
			triggered = append(triggered, map[string]interface{}{"ruleId": rule.ID, "name": rule.Name, "severity": rule.Severity})
		}
	}

	if h.patterns != nil {
		riskScore := float64(len(triggered)) / float64(maxInt(len(rules), 1))
		dp := pattern.NewDataPointFromEvent(txn.ID, "fraud_evaluation", severityFromCount(len(triggered)), time.Now().UTC(),
			map[string]float64{"triggered_rules": float64(len(triggered)), "risk_score": riskScore},
			map[string]string{"transaction_status": txn.Status})
		h.patterns.AddDataPoint(dp)
	}

	return registry.JSON(http.StatusOK, map[string]interface{}{
		"transactionId": txn.ID, "triggeredRules": triggered, "flagged": len(triggered) > 0,
	})
}

// ruleMatches interprets a condition_expr of the form "field op value" (e.g.
// "amount > 10000"); anything it can't parse is treated as non-matching
// rather than erroring the whole evaluation.
func ruleMatches(expr string, txn transactionRow) bool {
	fields := strings.Fields(expr)
	if len(fields) != 3 {
		return false
	}
	field, op, value := fields[0], fields[1], fields[2]

	var actual float64
	switch field {
	case "amount":
		actual = txn.Amount
	default:
		return false
	}

	threshold, err := parseFloatLoose(value)
	if err != nil {
		return false
	}
	switch op {
	case ">":
		return actual > threshold
	case ">=":
		return actual >= threshold
	case "<":
		return actual < threshold
	case "<=":
		return actual <= threshold
	case "==":
		return actual == threshold
	default:
		return false
	}
}

func parseFloatLoose(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

func severityFromCount(n int) string {
	switch {
	case n >= 3:
		return "critical"
	case n == 2:
		return "high"
	case n == 1:
		return "medium"
	default:
		return "low"
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
