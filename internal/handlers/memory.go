package handlers

import (
	"encoding/json"
	"math"
	"net/http"
	"sort"

	"github.com/lib/pq"

	"github.com/regulens/compliance-core/internal/registry"
)

func (h *Handlers) memoryRoutes() []registry.Endpoint {
	roles := []string{"user", "admin"}
	return []registry.Endpoint{
		{Method: http.MethodPost, PathTemplate: "/memory/nodes", Category: "memory", AuthRequired: true, AllowedRoles: roles, Summary: "create node", Handler: h.createMemoryNode},
		{Method: http.MethodGet, PathTemplate: "/memory/nodes/{id}", Category: "memory", AuthRequired: true, AllowedRoles: roles, Summary: "get node", Handler: h.getMemoryNode},
		{Method: http.MethodDelete, PathTemplate: "/memory/nodes/{id}", Category: "memory", AuthRequired: true, AllowedRoles: roles, Summary: "delete node", Handler: h.deleteMemoryNode},
		{Method: http.MethodPost, PathTemplate: "/memory/edges", Category: "memory", AuthRequired: true, AllowedRoles: roles, Summary: "create edge", Handler: h.createMemoryEdge},
		{Method: http.MethodGet, PathTemplate: "/memory/graph/{agentId}", Category: "memory", AuthRequired: true, AllowedRoles: roles, Summary: "graph for agent", Handler: h.graphForAgentHandler},
		{Method: http.MethodGet, PathTemplate: "/memory/path", Category: "memory", AuthRequired: true, AllowedRoles: roles, Summary: "BFS path-find", Handler: h.pathFind},
		{Method: http.MethodPost, PathTemplate: "/memory/nodes/{id}/recompute-importance", Category: "memory", AuthRequired: true, AllowedRoles: roles, Summary: "recompute importance", Handler: h.recomputeImportance},
	}
}

type memoryNodeRow struct {
	ID          string  `db:"id"`
	AgentID     string  `db:"agent_id"`
	NodeType    string  `db:"node_type"`
	Content     string  `db:"content"`
	Importance  float64 `db:"importance"`
	AccessCount int     `db:"access_count"`
	Embedding   []byte  `db:"embedding"`
}

func (row memoryNodeRow) toJSON() map[string]interface{} {
	return map[string]interface{}{
		"id": row.ID, "agentId": row.AgentID, "type": row.NodeType, "content": row.Content,
		"importance": row.Importance, "accessCount": row.AccessCount,
	}
}

type memoryEdgeRow struct {
	ID       string  `db:"id"`
	SourceID string  `db:"source_id"`
	TargetID string  `db:"target_id"`
	EdgeType string  `db:"edge_type"`
	Strength float64 `db:"strength"`
}

func (row memoryEdgeRow) toJSON() map[string]interface{} {
	return map[string]interface{}{
		"id": row.ID, "sourceId": row.SourceID, "targetId": row.TargetID, "type": row.EdgeType, "strength": row.Strength,
	}
}

type createNodeRequest struct {
	AgentID string `json:"agentId"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

func (h *Handlers) createMemoryNode(r registry.Request) registry.Response {
	var body createNodeRequest
	if err := decodeBody(r, &body); err != nil || body.AgentID == "" || body.Content == "" {
		return errResponse(http.StatusBadRequest, "agentId and content are required")
	}
	embedding, _ := json.Marshal(embed(body.Content))
	id := newID("node")
	_, err := h.pool.Raw().ExecContext(r.Ctx, `
		INSERT INTO memory_nodes (id, agent_id, node_type, content, importance, access_count, embedding)
		VALUES ($1, $2, $3, $4, 0.5, 0, $5)
	`, id, body.AgentID, body.Type, body.Content, embedding)
	if err != nil {
		return errResponse(http.StatusInternalServerError, "create memory node failed")
	}
	return registry.JSON(http.StatusCreated, map[string]interface{}{"id": id, "agentId": body.AgentID, "type": body.Type, "content": body.Content, "importance": 0.5, "accessCount": 0})
}

func (h *Handlers) fetchMemoryNode(r registry.Request, id string) (*memoryNodeRow, error) {
	var row memoryNodeRow
	err := h.pool.Raw().GetContext(r.Ctx, &row, `
		SELECT id, agent_id, node_type, content, importance, access_count, embedding FROM memory_nodes WHERE id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (h *Handlers) getMemoryNode(r registry.Request) registry.Response {
	id := r.Params["id"]
	row, err := h.fetchMemoryNode(r, id)
	if err != nil {
		return errResponse(http.StatusNotFound, "memory node not found")
	}
	_, _ = h.pool.Raw().ExecContext(r.Ctx, `UPDATE memory_nodes SET access_count = access_count + 1 WHERE id = $1`, id)
	row.AccessCount++
	return registry.JSON(http.StatusOK, row.toJSON())
}

func (h *Handlers) deleteMemoryNode(r registry.Request) registry.Response {
	result, err := h.pool.Raw().ExecContext(r.Ctx, `DELETE FROM memory_edges WHERE source_id = $1 OR target_id = $1`, r.Params["id"])
	if err == nil {
		result, err = h.pool.Raw().ExecContext(r.Ctx, `DELETE FROM memory_nodes WHERE id = $1`, r.Params["id"])
	}
	if err != nil {
		return errResponse(http.StatusInternalServerError, "delete memory node failed")
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return errResponse(http.StatusNotFound, "memory node not found")
	}
	return registry.Response{Status: http.StatusNoContent}
}

type createEdgeRequest struct {
	SourceID string  `json:"sourceId"`
	TargetID string  `json:"targetId"`
	Type     string  `json:"type"`
	Strength float64 `json:"strength"`
}

func (h *Handlers) createMemoryEdge(r registry.Request) registry.Response {
	var body createEdgeRequest
	if err := decodeBody(r, &body); err != nil || body.SourceID == "" || body.TargetID == "" {
		return errResponse(http.StatusBadRequest, "sourceId and targetId are required")
	}
	if body.Strength == 0 {
		body.Strength = 0.5
	}
	id := newID("edge")
	_, err := h.pool.Raw().ExecContext(r.Ctx, `
		INSERT INTO memory_edges (id, source_id, target_id, edge_type, strength) VALUES ($1, $2, $3, $4, $5)
	`, id, body.SourceID, body.TargetID, body.Type, body.Strength)
	if err != nil {
		return errResponse(http.StatusInternalServerError, "create memory edge failed; source or target node may not exist")
	}
	return registry.JSON(http.StatusCreated, map[string]interface{}{"id": id, "sourceId": body.SourceID, "targetId": body.TargetID, "type": body.Type, "strength": body.Strength})
}

// graphForAgent caps the node set at 100, ranked by importance, and includes
// only edges whose endpoints both survive the cap, per SPEC_FULL.md's
// memory-graph extension of spec.md §4.7's read contracts.
func (h *Handlers) graphForAgent(r registry.Request, agentID string) (map[string]interface{}, error) {
	var nodes []memoryNodeRow
	err := h.pool.Raw().SelectContext(r.Ctx, &nodes, `
		SELECT id, agent_id, node_type, content, importance, access_count, embedding FROM memory_nodes
		WHERE agent_id = $1 ORDER BY importance DESC LIMIT 100
	`, agentID)
	if err != nil {
		return nil, err
	}

	nodeIDs := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		nodeIDs[n.ID] = true
	}

	var allEdges []memoryEdgeRow
	if len(nodes) > 0 {
		ids := make([]string, 0, len(nodes))
		for _, n := range nodes {
			ids = append(ids, n.ID)
		}
		err = h.pool.Raw().SelectContext(r.Ctx, &allEdges, `
			SELECT id, source_id, target_id, edge_type, strength FROM memory_edges
			WHERE source_id = ANY($1) OR target_id = ANY($1)
		`, pq.Array(ids))
		if err != nil {
			return nil, err
		}
	}

	nodeJSON := make([]map[string]interface{}, 0, len(nodes))
	maxImportance := 0.0
	for _, n := range nodes {
		if n.Importance > maxImportance {
			maxImportance = n.Importance
		}
	}
	for _, n := range nodes {
		entry := n.toJSON()
		entry["color"] = colorForNodeType(n.NodeType)
		entry["size"] = sizeForImportance(n.Importance, maxImportance)
		nodeJSON = append(nodeJSON, entry)
	}

	edgeJSON := make([]map[string]interface{}, 0, len(allEdges))
	for _, e := range allEdges {
		if nodeIDs[e.SourceID] && nodeIDs[e.TargetID] {
			edgeJSON = append(edgeJSON, e.toJSON())
		}
	}

	return map[string]interface{}{"nodes": nodeJSON, "edges": edgeJSON}, nil
}

func (h *Handlers) graphForAgentHandler(r registry.Request) registry.Response {
	graph, err := h.graphForAgent(r, r.Params["agentId"])
	if err != nil {
		return errResponse(http.StatusInternalServerError, "build graph failed")
	}
	return registry.JSON(http.StatusOK, graph)
}

// colorForNodeType and sizeForImportance are deterministic visualization
// hints computed server-side so every client renders the same graph.
func colorForNodeType(nodeType string) string {
	switch nodeType {
	case "fact":
		return "#4C9AFF"
	case "event":
		return "#F5A623"
	case "relationship":
		return "#7ED321"
	default:
		return "#9B9B9B"
	}
}

func sizeForImportance(importance, max float64) float64 {
	if max <= 0 {
		return 8
	}
	return 8 + 24*(importance/max)
}

// pathFind runs breadth-first search over the union of outbound and inbound
// edges, matching spec.md's requirement for an undirected traversal of a
// directed storage model.
func (h *Handlers) pathFind(r registry.Request) registry.Response {
	from := r.QueryParam("from")
	to := r.QueryParam("to")
	if from == "" || to == "" {
		return errResponse(http.StatusBadRequest, "from and to are required")
	}

	var edges []memoryEdgeRow
	if err := h.pool.Raw().SelectContext(r.Ctx, &edges, `SELECT id, source_id, target_id, edge_type, strength FROM memory_edges`); err != nil {
		return errResponse(http.StatusInternalServerError, "load edges failed")
	}

	adj := make(map[string][]string)
	for _, e := range edges {
		adj[e.SourceID] = append(adj[e.SourceID], e.TargetID)
		adj[e.TargetID] = append(adj[e.TargetID], e.SourceID)
	}

	path, found := bfsPath(adj, from, to)
	if !found {
		return errResponse(http.StatusNotFound, "no path between nodes")
	}
	return registry.JSON(http.StatusOK, map[string]interface{}{"path": path})
}

func bfsPath(adj map[string][]string, from, to string) ([]string, bool) {
	if from == to {
		return []string{from}, true
	}
	visited := map[string]bool{from: true}
	prev := map[string]string{}
	queue := []string{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		neighbors := append([]string(nil), adj[cur]...)
		sort.Strings(neighbors)
		for _, next := range neighbors {
			if visited[next] {
				continue
			}
			visited[next] = true
			prev[next] = cur
			if next == to {
				path := []string{to}
				for n := cur; ; n = prev[n] {
					path = append([]string{n}, path...)
					if n == from {
						break
					}
				}
				return path, true
			}
			queue = append(queue, next)
		}
	}
	return nil, false
}

// recomputeImportance blends access frequency and relationship count against
// the node's prior score (spec.md's weighted-update convention, shared with
// the pattern/feedback engines' own "blend new signal with prior" updates).
func (h *Handlers) recomputeImportance(r registry.Request) registry.Response {
	id := r.Params["id"]
	node, err := h.fetchMemoryNode(r, id)
	if err != nil {
		return errResponse(http.StatusNotFound, "memory node not found")
	}

	var relCount int
	if err := h.pool.Raw().GetContext(r.Ctx, &relCount, `
		SELECT COUNT(*) FROM memory_edges WHERE source_id = $1 OR target_id = $1
	`, id); err != nil {
		return errResponse(http.StatusInternalServerError, "count relationships failed")
	}

	normalizedAccess := 1 - math.Exp(-float64(node.AccessCount)/10.0)
	normalizedRelCount := 1 - math.Exp(-float64(relCount)/5.0)
	newImportance := 0.3*normalizedAccess + 0.4*normalizedRelCount + 0.3*node.Importance
	if newImportance > 1 {
		newImportance = 1
	}

	if _, err := h.pool.Raw().ExecContext(r.Ctx, `UPDATE memory_nodes SET importance = $1 WHERE id = $2`, newImportance, id); err != nil {
		return errResponse(http.StatusInternalServerError, "update importance failed")
	}
	return registry.JSON(http.StatusOK, map[string]interface{}{"id": id, "importance": newImportance})
}
