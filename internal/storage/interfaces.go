package storage

import (
	"context"

	"biobank-trait-report/internal/domain"
)

// SummaryStore provides access to archived summary rows.
// Records are keyed by (run_id, descriptor, stratum, sex).
type SummaryStore interface {
	// InsertBulk adds all records of a run atomically. Fails the entire batch
	// with ErrDuplicateKey if any key already exists or repeats in the batch.
	InsertBulk(ctx context.Context, records []*domain.SummaryRecord) error

	// GetByRun retrieves all records of a run ordered by position.
	// Returns ErrNotFound if the run has no records.
	GetByRun(ctx context.Context, runID string) ([]*domain.SummaryRecord, error)

	// GetByRunDescriptor retrieves the records of one descriptor of a run
	// ordered by position. Returns ErrNotFound if there are none.
	GetByRunDescriptor(ctx context.Context, runID, descriptor string) ([]*domain.SummaryRecord, error)
}

// ValidateRecord checks the fields every store requires.
func ValidateRecord(r *domain.SummaryRecord) error {
	if r == nil || r.RunID == "" || r.Descriptor == "" || r.Sex == "" {
		return ErrInvalidInput
	}
	return nil
}

// RecordKey returns the composite key of a record.
func RecordKey(r *domain.SummaryRecord) string {
	return r.RunID + "\x00" + r.Descriptor + "\x00" + r.Stratum + "\x00" + r.Sex
}
