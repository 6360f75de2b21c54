package handlers

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/regulens/compliance-core/internal/database"
	"github.com/regulens/compliance-core/internal/registry"
)

func newTestHandlers(t *testing.T) (*Handlers, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sqlxDB := sqlx.NewDb(db, "postgres")
	pool := database.NewPool(sqlxDB, 1)
	return New(pool, nil, nil, nil, nil, nil), mock
}

func decisionColumns() []string {
	return []string{"id", "title", "description", "category", "status", "created_by", "approved_by", "approved_at", "rejection_reason", "deleted", "created_at", "updated_at"}
}

func TestCreateDecisionPersistsAndReturnsTheRow(t *testing.T) {
	h, mock := newTestHandlers(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO decisions").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO decision_audit_log").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()
	mock.ExpectQuery("SELECT id, title, description").WillReturnRows(
		sqlmock.NewRows(decisionColumns()).AddRow(
			"decision_1", "Block payment", "suspicious amount", "fraud", "draft", "alice",
			nil, nil, nil, false, time.Now(), time.Now(),
		),
	)

	resp := h.createDecision(registry.Request{
		Ctx:      context.Background(),
		CallerID: "alice",
		Body:     []byte(`{"title":"Block payment","description":"suspicious amount","category":"fraud"}`),
	})

	require.Equal(t, 201, resp.Status)
	body, ok := resp.Body.(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "draft", body["status"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateDecisionRejectsMissingFields(t *testing.T) {
	h, _ := newTestHandlers(t)

	resp := h.createDecision(registry.Request{
		Ctx:  context.Background(),
		Body: []byte(`{"title":""}`),
	})

	require.Equal(t, 400, resp.Status)
}

func TestGetDecisionNotFound(t *testing.T) {
	h, mock := newTestHandlers(t)

	mock.ExpectQuery("SELECT id, title, description").WillReturnError(sql.ErrNoRows)

	resp := h.getDecision(registry.Request{Ctx: context.Background(), Params: map[string]string{"id": "missing"}})
	require.Equal(t, 404, resp.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApproveDecisionFromDraftReturnsUpdatedRow(t *testing.T) {
	h, mock := newTestHandlers(t)

	mock.ExpectExec("UPDATE decisions SET status").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO decision_audit_log").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT id, title, description").WillReturnRows(
		sqlmock.NewRows(decisionColumns()).AddRow(
			"decision_1", "t", "d", "c", "approved", "alice",
			"reviewer", time.Now(), nil, false, time.Now(), time.Now(),
		),
	)

	resp := h.approveDecision(registry.Request{Ctx: context.Background(), CallerID: "reviewer", Params: map[string]string{"id": "decision_1"}})
	require.Equal(t, 200, resp.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApproveDecisionAlreadyTerminalIs404(t *testing.T) {
	h, mock := newTestHandlers(t)

	mock.ExpectExec("UPDATE decisions SET status").WillReturnResult(sqlmock.NewResult(0, 0))

	resp := h.approveDecision(registry.Request{Ctx: context.Background(), CallerID: "reviewer", Params: map[string]string{"id": "decision_1"}})
	require.Equal(t, 404, resp.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}
