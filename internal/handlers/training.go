package handlers

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/regulens/compliance-core/internal/feedback"
	"github.com/regulens/compliance-core/internal/registry"
)

func (h *Handlers) trainingRoutes() []registry.Endpoint {
	roles := []string{"user", "admin"}
	writeRoles := []string{"admin"}
	return []registry.Endpoint{
		{Method: http.MethodGet, PathTemplate: "/training/courses", Category: "training", AuthRequired: true, AllowedRoles: roles, Summary: "list courses", Handler: h.listCourses},
		{Method: http.MethodPost, PathTemplate: "/training/courses", Category: "training", AuthRequired: true, AllowedRoles: writeRoles, Summary: "create course", Handler: h.createCourse},
		{Method: http.MethodPost, PathTemplate: "/training/courses/{id}/enroll", Category: "training", AuthRequired: true, AllowedRoles: roles, Summary: "enroll caller", Handler: h.enrollCourse},
		{Method: http.MethodPost, PathTemplate: "/training/enrollments/{id}/progress", Category: "training", AuthRequired: true, AllowedRoles: roles, Summary: "update progress", Handler: h.updateProgress},
	}
}

type courseRow struct {
	ID          string    `db:"id"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	Category    string    `db:"category"`
	CreatedBy   string    `db:"created_by"`
	CreatedAt   time.Time `db:"created_at"`
}

func (row courseRow) toJSON() map[string]interface{} {
	return map[string]interface{}{
		"id": row.ID, "title": row.Title, "description": row.Description, "category": row.Category,
		"createdBy": row.CreatedBy, "createdAt": row.CreatedAt,
	}
}

func (h *Handlers) listCourses(r registry.Request) registry.Response {
	limit, offset := parsePagination(r)
	var total int
	if err := h.pool.Raw().GetContext(r.Ctx, &total, `SELECT COUNT(*) FROM training_courses`); err != nil {
		return errResponse(http.StatusInternalServerError, "count courses failed")
	}
	var rows []courseRow
	err := h.pool.Raw().SelectContext(r.Ctx, &rows, `
		SELECT id, title, description, category, created_by, created_at FROM training_courses
		ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return errResponse(http.StatusInternalServerError, "list courses failed")
	}
	items := make([]map[string]interface{}, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toJSON())
	}
	return registry.JSON(http.StatusOK, paged(items, limit, offset, total))
}

type createCourseRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

func (h *Handlers) createCourse(r registry.Request) registry.Response {
	var body createCourseRequest
	if err := decodeBody(r, &body); err != nil || body.Title == "" {
		return errResponse(http.StatusBadRequest, "title is required")
	}
	id := newID("course")
	_, err := h.pool.Raw().ExecContext(r.Ctx, `
		INSERT INTO training_courses (id, title, description, category, created_by) VALUES ($1, $2, $3, $4, $5)
	`, id, body.Title, body.Description, body.Category, r.CallerID)
	if err != nil {
		return errResponse(http.StatusInternalServerError, "create course failed")
	}
	return registry.JSON(http.StatusCreated, map[string]interface{}{"id": id, "title": body.Title, "description": body.Description, "category": body.Category})
}

type enrollmentRow struct {
	ID          string       `db:"id"`
	CourseID    string       `db:"course_id"`
	UserID      string       `db:"user_id"`
	Progress    float64      `db:"progress"`
	Completed   bool         `db:"completed"`
	EnrolledAt  time.Time    `db:"enrolled_at"`
	CompletedAt sql.NullTime `db:"completed_at"`
}

func (row enrollmentRow) toJSON() map[string]interface{} {
	out := map[string]interface{}{
		"id": row.ID, "courseId": row.CourseID, "userId": row.UserID, "progress": row.Progress,
		"completed": row.Completed, "enrolledAt": row.EnrolledAt,
	}
	if row.CompletedAt.Valid {
		out["completedAt"] = row.CompletedAt.Time
	}
	return out
}

func (h *Handlers) enrollCourse(r registry.Request) registry.Response {
	courseID := r.Params["id"]
	var exists bool
	if err := h.pool.Raw().GetContext(r.Ctx, &exists, `SELECT EXISTS(SELECT 1 FROM training_courses WHERE id = $1)`, courseID); err != nil || !exists {
		return errResponse(http.StatusNotFound, "course not found")
	}

	id := newID("enrollment")
	_, err := h.pool.Raw().ExecContext(r.Ctx, `
		INSERT INTO training_enrollments (id, course_id, user_id, progress, completed) VALUES ($1, $2, $3, 0, FALSE)
	`, id, courseID, r.CallerID)
	if err != nil {
		return errResponse(http.StatusInternalServerError, "enroll failed")
	}
	return registry.JSON(http.StatusCreated, map[string]interface{}{"id": id, "courseId": courseID, "userId": r.CallerID, "progress": 0.0, "completed": false})
}

type progressRequest struct {
	Progress float64 `json:"progress"`
}

// updateProgress marks the enrollment completed at progress >= 1 and emits a
// performanceMetric feedback signal (SPEC_FULL.md §3: "each completion emits
// feedback of kind performanceMetric"), feeding the learner the same way a
// decision outcome does.
func (h *Handlers) updateProgress(r registry.Request) registry.Response {
	var body progressRequest
	if err := decodeBody(r, &body); err != nil {
		return errResponse(http.StatusBadRequest, "progress is required")
	}
	if body.Progress < 0 {
		body.Progress = 0
	}
	if body.Progress > 1 {
		body.Progress = 1
	}
	completed := body.Progress >= 1

	id := r.Params["id"]
	var result sql.Result
	var err error
	if completed {
		result, err = h.pool.Raw().ExecContext(r.Ctx, `
			UPDATE training_enrollments SET progress = $1, completed = TRUE, completed_at = now() WHERE id = $2 AND user_id = $3
		`, body.Progress, id, r.CallerID)
	} else {
		result, err = h.pool.Raw().ExecContext(r.Ctx, `
			UPDATE training_enrollments SET progress = $1 WHERE id = $2 AND user_id = $3
		`, body.Progress, id, r.CallerID)
	}
	if err != nil {
		return errResponse(http.StatusInternalServerError, "update progress failed")
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return errResponse(http.StatusNotFound, "enrollment not found")
	}

	var row enrollmentRow
	if err := h.pool.Raw().GetContext(r.Ctx, &row, `
		SELECT id, course_id, user_id, progress, completed, enrolled_at, completed_at FROM training_enrollments WHERE id = $1
	`, id); err != nil {
		return errResponse(http.StatusInternalServerError, "reload enrollment failed")
	}

	if completed && h.feedback != nil {
		h.feedback.Submit(feedback.FeedbackData{
			ID:           newID("feedback"),
			Kind:         feedback.KindPerformanceMetric,
			SourceEntity: row.UserID,
			TargetEntity: row.CourseID,
			Score:        1.0,
			Priority:     feedback.PriorityMedium,
			Timestamp:    time.Now().UTC(),
			Metadata:     map[string]interface{}{"enrollment_id": row.ID},
		})
	}

	return registry.JSON(http.StatusOK, row.toJSON())
}
