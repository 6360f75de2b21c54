package database

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/regulens/compliance-core/internal/monitor"
)

func TestMonitorStoreUpsertChangeReportsFreshInsert(t *testing.T) {
	pool, mock := newTestStorePool(t)
	store := NewMonitorStore(pool)

	mock.ExpectQuery("INSERT INTO regulatory_changes").WillReturnRows(
		sqlmock.NewRows([]string{"inserted"}).AddRow(true),
	)

	inserted, err := store.UpsertChange(context.Background(), "sec_edgar", "hash-1", monitor.CandidateChange{
		Title: "New disclosure rule", URL: "https://example.com/a", ClassifiedSeverity: "high", ChangeType: "rule_change",
	})

	require.NoError(t, err)
	require.True(t, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMonitorStoreUpsertChangeReportsDuplicate(t *testing.T) {
	pool, mock := newTestStorePool(t)
	store := NewMonitorStore(pool)

	mock.ExpectQuery("INSERT INTO regulatory_changes").WillReturnRows(
		sqlmock.NewRows([]string{"inserted"}).AddRow(false),
	)

	inserted, err := store.UpsertChange(context.Background(), "fca_uk", "hash-2", monitor.CandidateChange{
		Title: "Repeat notice", URL: "https://example.com/b", ClassifiedSeverity: "low", ChangeType: "guidance",
	})

	require.NoError(t, err)
	require.False(t, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}
