package database

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/regulens/compliance-core/internal/pattern"
)

func newTestStorePool(t *testing.T) (*Pool, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPool(sqlx.NewDb(db, "postgres"), 1), mock
}

func TestPatternStoreSavePatternUpsertsOnConflict(t *testing.T) {
	pool, mock := newTestStorePool(t)
	store := NewPatternStore(pool)

	mock.ExpectExec("INSERT INTO detected_patterns").WillReturnResult(sqlmock.NewResult(1, 1))

	p := pattern.Pattern{
		ID:           "pat_1",
		Kind:         pattern.KindDecision,
		Name:         "approve decision pattern",
		Description:  "recurring",
		Confidence:   pattern.ConfidenceHigh,
		Impact:       pattern.ImpactMedium,
		Strength:     0.8,
		Occurrences:  12,
		DiscoveredAt: time.Now(),
		LastUpdated:  time.Now(),
	}

	err := store.SavePattern(context.Background(), p)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPatternStoreSaveDataPointDefaultsNilRawDataToEmptyObject(t *testing.T) {
	pool, mock := newTestStorePool(t)
	store := NewPatternStore(pool)

	mock.ExpectExec("INSERT INTO pattern_data_points").
		WithArgs(sqlmock.AnyArg(), "entity-1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), []byte("{}")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	dp := pattern.DataPoint{EntityID: "entity-1", Timestamp: time.Now()}
	err := store.SaveDataPoint(context.Background(), dp)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
