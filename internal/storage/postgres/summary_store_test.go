package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"biobank-trait-report/internal/domain"
	"biobank-trait-report/internal/storage"
)

func testRecords(runID string) []*domain.SummaryRecord {
	return []*domain.SummaryRecord{
		{RunID: runID, Measurement: "glucose", Biobank: "AoU", Descriptor: domain.OverallDescriptor,
			Sex: domain.SexAll, Position: 0, Count: 40, Mean: ptr(5.5), Median: ptr(5.0), Std: ptr(1.2),
			Min: ptr(3.9), Max: ptr(8.1), CreatedAt: 1700000000000},
		{RunID: runID, Measurement: "glucose", Biobank: "AoU", Descriptor: "site", Stratum: "A",
			Label: "A\nN_obs=30\nN=25", Sex: domain.SexMale, Position: 1, Count: 14, Mean: ptr(5.1),
			Median: ptr(5.0), Std: ptr(0.9), Min: ptr(3.9), Max: ptr(7.0), CreatedAt: 1700000000000},
		{RunID: runID, Measurement: "glucose", Biobank: "AoU", Descriptor: "site", Stratum: "B",
			Label: "B\nN_obs=10\nN=8", Sex: domain.SexAll, Position: 2, Suppressed: true,
			CreatedAt: 1700000000000},
	}
}

func TestSummaryStore_InsertAndGetByRun(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSummaryStore(pool)

	require.NoError(t, store.InsertBulk(ctx, testRecords("run-1")))

	got, err := store.GetByRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, domain.OverallDescriptor, got[0].Descriptor)
	require.NotNil(t, got[0].Mean)
	assert.InDelta(t, 5.5, *got[0].Mean, 0.0001)
	assert.Equal(t, "A\nN_obs=30\nN=25", got[1].Label)
	assert.True(t, got[2].Suppressed)
	assert.Nil(t, got[2].Mean)
	assert.Equal(t, int64(1700000000000), got[2].CreatedAt)
}

func TestSummaryStore_GetByRunDescriptor(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSummaryStore(pool)
	require.NoError(t, store.InsertBulk(ctx, testRecords("run-1")))

	got, err := store.GetByRunDescriptor(ctx, "run-1", "site")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].Stratum)
	assert.Equal(t, "B", got[1].Stratum)

	_, err = store.GetByRunDescriptor(ctx, "run-1", "smoking")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestSummaryStore_DuplicateRun(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSummaryStore(pool)
	require.NoError(t, store.InsertBulk(ctx, testRecords("run-1")))

	err := store.InsertBulk(ctx, testRecords("run-1"))
	assert.True(t, errors.Is(err, storage.ErrDuplicateKey))

	got, err := store.GetByRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, got, 3, "failed batch must not leave partial rows")
}

func TestSummaryStore_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := NewSummaryStore(pool).GetByRun(context.Background(), "missing")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}
