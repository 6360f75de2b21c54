package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/regulens/compliance-core/internal/registry"
)

func (h *Handlers) knowledgeRoutes() []registry.Endpoint {
	roles := []string{"user", "admin"}
	return []registry.Endpoint{
		{Method: http.MethodGet, PathTemplate: "/knowledge", Category: "knowledge", AuthRequired: true, AllowedRoles: roles, Summary: "list entries", Handler: h.listKnowledge},
		{Method: http.MethodGet, PathTemplate: "/knowledge/{id}", Category: "knowledge", AuthRequired: true, AllowedRoles: roles, Summary: "get entry", Handler: h.getKnowledge},
		{Method: http.MethodPost, PathTemplate: "/knowledge", Category: "knowledge", AuthRequired: true, AllowedRoles: roles, Summary: "create entry", Handler: h.createKnowledge},
		{Method: http.MethodDelete, PathTemplate: "/knowledge/{id}", Category: "knowledge", AuthRequired: true, AllowedRoles: roles, Summary: "soft delete entry", Handler: h.deleteKnowledge},
		{Method: http.MethodGet, PathTemplate: "/knowledge/search", Category: "knowledge", AuthRequired: true, AllowedRoles: roles, Summary: "search results", Handler: h.searchKnowledge},
		{Method: http.MethodPost, PathTemplate: "/knowledge/ask", Category: "knowledge", AuthRequired: true, AllowedRoles: roles, Summary: "RAG Q&A", Handler: h.askKnowledge},
	}
}

type knowledgeRow struct {
	ID        string    `db:"id"`
	Title     string    `db:"title"`
	Summary   string    `db:"summary"`
	Content   string    `db:"content"`
	Category  string    `db:"category"`
	Tokens    []byte    `db:"tokens"`
	Embedding []byte    `db:"embedding"`
	CreatedBy string    `db:"created_by"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (row knowledgeRow) toJSON() map[string]interface{} {
	return map[string]interface{}{
		"id": row.ID, "title": row.Title, "summary": row.Summary, "content": row.Content,
		"category": row.Category, "createdBy": row.CreatedBy, "createdAt": row.CreatedAt, "updatedAt": row.UpdatedAt,
	}
}

func (row knowledgeRow) tokens() []string {
	var toks []string
	_ = json.Unmarshal(row.Tokens, &toks)
	return toks
}

func (row knowledgeRow) vector() []float64 {
	var vec []float64
	_ = json.Unmarshal(row.Embedding, &vec)
	return vec
}

func (h *Handlers) listKnowledge(r registry.Request) registry.Response {
	limit, offset := parsePagination(r)
	var total int
	if err := h.pool.Raw().GetContext(r.Ctx, &total, `SELECT COUNT(*) FROM knowledge_entries WHERE deleted = FALSE`); err != nil {
		return errResponse(http.StatusInternalServerError, "count knowledge entries failed")
	}
	var rows []knowledgeRow
	err := h.pool.Raw().SelectContext(r.Ctx, &rows, `
		SELECT id, title, summary, content, category, tokens, embedding, created_by, created_at, updated_at
		FROM knowledge_entries WHERE deleted = FALSE ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return errResponse(http.StatusInternalServerError, "list knowledge entries failed")
	}
	items := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toJSON())
	}
	return registry.JSON(http.StatusOK, paged(items, limit, offset, total))
}

func (h *Handlers) fetchKnowledge(r registry.Request, id string) (*knowledgeRow, error) {
	var row knowledgeRow
	err := h.pool.Raw().GetContext(r.Ctx, &row, `
		SELECT id, title, summary, content, category, tokens, embedding, created_by, created_at, updated_at
		FROM knowledge_entries WHERE id = $1 AND deleted = FALSE
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (h *Handlers) getKnowledge(r registry.Request) registry.Response {
	row, err := h.fetchKnowledge(r, r.Params["id"])
	if err != nil {
		return errResponse(http.StatusInternalServerError, "lookup knowledge entry failed")
	}
	if row == nil {
		return errResponse(http.StatusNotFound, "knowledge entry not found")
	}
	return registry.JSON(http.StatusOK, row.toJSON())
}

type createKnowledgeRequest struct {
	Title    string `json:"title" validate:"required"`
	Summary  string `json:"summary"`
	Content  string `json:"content" validate:"required"`
	Category string `json:"category"`
}

func (h *Handlers) createKnowledge(r registry.Request) registry.Response {
	var body createKnowledgeRequest
	if err := decodeAndValidate(r, &body); err != nil {
		return errResponse(http.StatusBadRequest, "title and content are required")
	}

	corpus := body.Title + " " + body.Summary + " " + body.Content
	tokens, _ := json.Marshal(tokenize(corpus))
	embedding, _ := json.Marshal(embed(corpus))

	id := newID("kb")
	_, err := h.pool.Raw().ExecContext(r.Ctx, `
		INSERT INTO knowledge_entries (id, title, summary, content, category, tokens, embedding, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, id, body.Title, body.Summary, body.Content, body.Category, tokens, embedding, r.CallerID)
	if err != nil {
		return errResponse(http.StatusInternalServerError, "create knowledge entry failed")
	}

	row, err := h.fetchKnowledge(r, id)
	if err != nil || row == nil {
		return errResponse(http.StatusInternalServerError, "reload knowledge entry failed")
	}
	return registry.JSON(http.StatusCreated, row.toJSON())
}

func (h *Handlers) deleteKnowledge(r registry.Request) registry.Response {
	result, err := h.pool.Raw().ExecContext(r.Ctx, `UPDATE knowledge_entries SET deleted = TRUE, updated_at = now() WHERE id = $1 AND deleted = FALSE`, r.Params["id"])
	if err != nil {
		return errResponse(http.StatusInternalServerError, "delete knowledge entry failed")
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return errResponse(http.StatusNotFound, "knowledge entry not found")
	}
	return registry.Response{Status: http.StatusNoContent}
}

type scoredEntry struct {
	row   knowledgeRow
	score float64
}

// rankCorpus loads the (optionally category-filtered) corpus and scores each
// entry against q per mode, per spec.md §4.7.1's three search modes.
func (h *Handlers) rankCorpus(r registry.Request, q, mode, category string) ([]scoredEntry, error) {
	query := `SELECT id, title, summary, content, category, tokens, embedding, created_by, created_at, updated_at FROM knowledge_entries WHERE deleted = FALSE`
	args := []interface{}{}
	if category != "" {
		query += " AND category = $1"
		args = append(args, category)
	}

	var rows []knowledgeRow
	if err := h.pool.Raw().SelectContext(r.Ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	queryTokens := tokenize(q)
	queryVec := embed(q)

	scored := make([]scoredEntry, 0, len(rows))
	for _, row := range rows {
		var score float64
		switch mode {
		case "semantic":
			score = cosineSimilarity(queryVec, row.vector())
		case "keyword":
			score = tokenOverlapScore(queryTokens, row.tokens())
		default: // hybrid
			semantic := cosineSimilarity(queryVec, row.vector())
			keyword := tokenOverlapScore(queryTokens, row.tokens())
			score = 0.7*semantic + 0.3*keyword
		}
		scored = append(scored, scoredEntry{row: row, score: score})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	return scored, nil
}

func (h *Handlers) searchKnowledge(r registry.Request) registry.Response {
	q := r.QueryParam("q")
	if q == "" {
		return errResponse(http.StatusBadRequest, "q is required")
	}
	mode := r.QueryParam("type")
	if mode != "keyword" && mode != "semantic" {
		mode = "hybrid"
	}
	topK := 10
	if v := r.QueryParam("top_k"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			topK = n
		}
	}

	scored, err := h.rankCorpus(r, q, mode, r.QueryParam("category"))
	if err != nil {
		return errResponse(http.StatusInternalServerError, "search knowledge failed")
	}
	if topK < len(scored) {
		scored = scored[:topK]
	}

	items := make([]map[string]interface{}, 0, len(scored))
	for _, s := range scored {
		entry := s.row.toJSON()
		entry["score"] = s.score
		items = append(items, entry)
	}
	return registry.JSON(http.StatusOK, map[string]interface{}{"items": items})
}

type askRequest struct {
	Question string `json:"question"`
	Category string `json:"category"`
}

// askKnowledge composes the RAG pipeline spec.md §4.7.1 describes: top-k by
// hybrid search, assemble context, generate an answer, persist the session.
// The generator is a deterministic extractive stub (SPEC_FULL.md's Non-goals:
// "the web UI, chatbot, and LLM integrations remain out of scope").
func (h *Handlers) askKnowledge(r registry.Request) registry.Response {
	var body askRequest
	if err := decodeBody(r, &body); err != nil || body.Question == "" {
		return errResponse(http.StatusBadRequest, "question is required")
	}

	scored, err := h.rankCorpus(r, body.Question, "hybrid", body.Category)
	if err != nil {
		return errResponse(http.StatusInternalServerError, "rank corpus failed")
	}
	const topK = 5
	if topK < len(scored) {
		scored = scored[:topK]
	}

	var contextParts []string
	var sourceIDs []string
	for _, s := range scored {
		if s.score <= 0 {
			continue
		}
		contextParts = append(contextParts, s.row.Title+": "+s.row.Summary)
		sourceIDs = append(sourceIDs, s.row.ID)
	}
	context := strings.Join(contextParts, "\n")
	answer := extractiveGenerate(body.Question, context)

	sourceIDsJSON, _ := json.Marshal(sourceIDs)
	id := newID("qa")
	_, err = h.pool.Raw().ExecContext(r.Ctx, `
		INSERT INTO qa_sessions (id, question, context, source_ids, answer, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, body.Question, context, sourceIDsJSON, answer, r.CallerID)
	if err != nil {
		h.log.Component("knowledge").WithError(err).Warn("persist qa session failed")
	}

	return registry.JSON(http.StatusOK, map[string]interface{}{
		"id": id, "question": body.Question, "context": context, "sourceIds": sourceIDs, "answer": answer,
	})
}

// extractiveGenerate is the Generator stub: it returns the assembled context
// verbatim, untruncated, rather than synthesizing new text.
func extractiveGenerate(question, context string) string {
	if context == "" {
		return "No relevant knowledge entries were found for: " + question
	}
	return context
}
