package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/regulens/compliance-core/internal/feedback"
	"github.com/regulens/compliance-core/internal/registry"
)

func (h *Handlers) feedbackRoutes() []registry.Endpoint {
	roles := []string{"user", "admin", "compliance_officer"}
	return []registry.Endpoint{
		{Method: http.MethodPost, PathTemplate: "/feedback", Category: "feedback", AuthRequired: true, AllowedRoles: roles, Summary: "submit feedback", Handler: h.submitFeedback},
		{Method: http.MethodGet, PathTemplate: "/feedback/analysis", Category: "feedback", AuthRequired: true, AllowedRoles: roles, Summary: "analyze feedback patterns", Handler: h.feedbackAnalysis},
	}
}

type submitFeedbackRequest struct {
	Kind         string                 `json:"kind"`
	SourceEntity string                 `json:"sourceEntity"`
	TargetEntity string                 `json:"targetEntity"`
	DecisionID   string                 `json:"decisionId"`
	Context      string                 `json:"context"`
	Score        float64                `json:"score"`
	Priority     string                 `json:"priority"`
	Text         string                 `json:"text"`
	Metadata     map[string]interface{} `json:"metadata"`
}

func (h *Handlers) submitFeedback(r registry.Request) registry.Response {
	if h.feedback == nil {
		return errResponse(http.StatusServiceUnavailable, "feedback system not configured")
	}
	var body submitFeedbackRequest
	if err := decodeBody(r, &body); err != nil || body.SourceEntity == "" {
		return errResponse(http.StatusBadRequest, "sourceEntity is required")
	}
	if body.Priority == "" {
		body.Priority = string(feedback.PriorityMedium)
	}
	if body.Kind == "" {
		body.Kind = string(feedback.KindHumanExplicit)
	}

	saved := h.feedback.Submit(feedback.FeedbackData{
		Kind:         feedback.Kind(body.Kind),
		SourceEntity: body.SourceEntity,
		TargetEntity: body.TargetEntity,
		DecisionID:   body.DecisionID,
		Context:      body.Context,
		Score:        body.Score,
		Priority:     feedback.Priority(body.Priority),
		Text:         body.Text,
		Metadata:     body.Metadata,
		Timestamp:    time.Now().UTC(),
	})

	return registry.JSON(http.StatusCreated, map[string]interface{}{
		"id": saved.ID, "kind": saved.Kind, "sourceEntity": saved.SourceEntity, "targetEntity": saved.TargetEntity,
		"score": saved.Score, "priority": saved.Priority, "timestamp": saved.Timestamp,
	})
}

func (h *Handlers) feedbackAnalysis(r registry.Request) registry.Response {
	if h.feedback == nil {
		return errResponse(http.StatusServiceUnavailable, "feedback system not configured")
	}
	entityID := r.QueryParam("entity_id")
	if entityID == "" {
		return errResponse(http.StatusBadRequest, "entity_id is required")
	}
	daysBack := 30
	if v := r.QueryParam("days_back"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			daysBack = n
		}
	}

	analysis := h.feedback.AnalyzeFeedbackPatterns(entityID, daysBack)
	return registry.JSON(http.StatusOK, map[string]interface{}{
		"entityId": analysis.EntityID, "daysBack": analysis.DaysBack, "count": analysis.Count,
		"averageScore": analysis.AverageScore, "typeHistogram": analysis.TypeHistogram,
		"priorityHistogram": analysis.PriorityHistogram, "insights": analysis.Insights, "confidence": analysis.Confidence,
	})
}
