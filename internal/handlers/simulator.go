package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/regulens/compliance-core/internal/pattern"
	"github.com/regulens/compliance-core/internal/registry"
)

func (h *Handlers) simulatorRoutes() []registry.Endpoint {
	roles := []string{"user", "admin"}
	return []registry.Endpoint{
		{Method: http.MethodGet, PathTemplate: "/simulator/scenarios", Category: "simulator", AuthRequired: true, AllowedRoles: roles, Summary: "list scenarios", Handler: h.listScenarios},
		{Method: http.MethodPost, PathTemplate: "/simulator/scenarios", Category: "simulator", AuthRequired: true, AllowedRoles: roles, Summary: "create scenario", Handler: h.createScenario},
		{Method: http.MethodPost, PathTemplate: "/simulator/scenarios/{id}/run", Category: "simulator", AuthRequired: true, AllowedRoles: roles, Summary: "replay scenario", Handler: h.runScenario},
	}
}

type scenarioRow struct {
	ID          string          `db:"id"`
	Name        string          `db:"name"`
	Description string          `db:"description"`
	Definition  json.RawMessage `db:"definition"`
	CreatedBy   string          `db:"created_by"`
	CreatedAt   time.Time       `db:"created_at"`
}

func (row scenarioRow) toJSON() map[string]interface{} {
	return map[string]interface{}{
		"id": row.ID, "name": row.Name, "description": row.Description,
		"definition": json.RawMessage(row.Definition), "createdBy": row.CreatedBy, "createdAt": row.CreatedAt,
	}
}

// scenarioStep is one entry in a scenario's "events" array: a single
// decision- or transaction-shaped event to replay through the pattern
// engine's scratch namespace.
type scenarioStep struct {
	EntityID   string             `json:"entityId"`
	EventType  string             `json:"eventType"`
	Severity   string             `json:"severity"`
	Numeric    map[string]float64 `json:"numeric"`
	Categorical map[string]string  `json:"categorical"`
}

type scenarioDefinition struct {
	Events []scenarioStep `json:"events"`
}

func (h *Handlers) listScenarios(r registry.Request) registry.Response {
	limit, offset := parsePagination(r)
	var total int
	if err := h.pool.Raw().GetContext(r.Ctx, &total, `SELECT COUNT(*) FROM simulator_scenarios`); err != nil {
		return errResponse(http.StatusInternalServerError, "count scenarios failed")
	}
	var rows []scenarioRow
	err := h.pool.Raw().SelectContext(r.Ctx, &rows, `
		SELECT id, name, description, definition, created_by, created_at FROM simulator_scenarios
		ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return errResponse(http.StatusInternalServerError, "list scenarios failed")
	}
	items := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toJSON())
	}
	return registry.JSON(http.StatusOK, paged(items, limit, offset, total))
}

type createScenarioRequest struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Definition  scenarioDefinition `json:"definition"`
}

func (h *Handlers) createScenario(r registry.Request) registry.Response {
	var body createScenarioRequest
	if err := decodeBody(r, &body); err != nil || body.Name == "" {
		return errResponse(http.StatusBadRequest, "name is required")
	}
	definition, err := json.Marshal(body.Definition)
	if err != nil {
		return errResponse(http.StatusInternalServerError, "marshal definition failed")
	}

	id := newID("scenario")
	_, err = h.pool.Raw().ExecContext(r.Ctx, `
		INSERT INTO simulator_scenarios (id, name, description, definition, created_by) VALUES ($1, $2, $3, $4, $5)
	`, id, body.Name, body.Description, definition, r.CallerID)
	if err != nil {
		return errResponse(http.StatusInternalServerError, "create scenario failed")
	}
	return registry.JSON(http.StatusCreated, map[string]interface{}{"id": id, "name": body.Name, "description": body.Description, "definition": body.Definition})
}

// runScenario replays a scenario's events through a scratch pattern engine
// seeded with no persisted state, so a run never mutates the real entity
// buffers (SPEC_FULL.md §3: "never mutating real entity buffers").
func (h *Handlers) runScenario(r registry.Request) registry.Response {
	var row scenarioRow
	err := h.pool.Raw().GetContext(r.Ctx, &row, `SELECT id, name, description, definition, created_by, created_at FROM simulator_scenarios WHERE id = $1`, r.Params["id"])
	if err != nil {
		return errResponse(http.StatusNotFound, "scenario not found")
	}

	var def scenarioDefinition
	if err := json.Unmarshal(row.Definition, &def); err != nil {
		return errResponse(http.StatusInternalServerError, "malformed scenario definition")
	}

	scratch := pattern.New(pattern.Config{MinOccurrences: 2, MinConfidence: 0.5}, h.log, nil)
	entities := map[string]bool{}
	for _, step := range def.Events {
		dp := pattern.NewDataPointFromEvent(step.EntityID, step.EventType, step.Severity, time.Now().UTC(), step.Numeric, step.Categorical)
		scratch.AddDataPoint(dp)
		entities[step.EntityID] = true
	}

	var discovered []pattern.Pattern
	for entityID := range entities {
		discovered = append(discovered, scratch.Analyze(entityID)...)
	}

	items := make([]map[string]interface{}, 0, len(discovered))
	for _, p := range discovered {
		items = append(items, map[string]interface{}{
			"id": p.ID, "name": p.Name, "kind": p.Kind, "confidence": p.Confidence, "strength": p.Strength,
		})
	}

	return registry.JSON(http.StatusOK, map[string]interface{}{
		"scenarioId": row.ID, "eventsReplayed": len(def.Events), "patternsDiscovered": items,
	})
}
