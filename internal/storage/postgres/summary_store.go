package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"biobank-trait-report/internal/domain"
	"biobank-trait-report/internal/storage"
)

// SummaryStore implements storage.SummaryStore using PostgreSQL.
type SummaryStore struct {
	pool *Pool
}

// NewSummaryStore creates a new SummaryStore.
func NewSummaryStore(pool *Pool) *SummaryStore {
	return &SummaryStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SummaryStore = (*SummaryStore)(nil)

const summaryColumns = `run_id, measurement, biobank, descriptor, stratum, label, sex, position,
	count, suppressed, mean, median, std, min, max, created_at`

// InsertBulk adds all records atomically. Fails entire batch on any duplicate.
func (s *SummaryStore) InsertBulk(ctx context.Context, records []*domain.SummaryRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if err := storage.ValidateRecord(r); err != nil {
			return err
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO summary_rows (` + summaryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	for _, r := range records {
		_, err := tx.Exec(ctx, query,
			r.RunID,
			r.Measurement,
			r.Biobank,
			r.Descriptor,
			r.Stratum,
			r.Label,
			r.Sex,
			r.Position,
			r.Count,
			r.Suppressed,
			r.Mean,
			r.Median,
			r.Std,
			r.Min,
			r.Max,
			r.CreatedAt,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert summary row in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByRun retrieves all records of a run ordered by position.
func (s *SummaryStore) GetByRun(ctx context.Context, runID string) ([]*domain.SummaryRecord, error) {
	query := `
		SELECT ` + summaryColumns + `
		FROM summary_rows
		WHERE run_id = $1
		ORDER BY position ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get summary rows by run: %w", err)
	}
	defer rows.Close()

	return scanSummaryRecords(rows)
}

// GetByRunDescriptor retrieves the records of one descriptor of a run ordered by position.
func (s *SummaryStore) GetByRunDescriptor(ctx context.Context, runID, descriptor string) ([]*domain.SummaryRecord, error) {
	query := `
		SELECT ` + summaryColumns + `
		FROM summary_rows
		WHERE run_id = $1 AND descriptor = $2
		ORDER BY position ASC
	`

	rows, err := s.pool.Query(ctx, query, runID, descriptor)
	if err != nil {
		return nil, fmt.Errorf("get summary rows by descriptor: %w", err)
	}
	defer rows.Close()

	return scanSummaryRecords(rows)
}

// scanSummaryRecords scans rows into records. No rows is ErrNotFound.
func scanSummaryRecords(rows pgx.Rows) ([]*domain.SummaryRecord, error) {
	var records []*domain.SummaryRecord

	for rows.Next() {
		var r domain.SummaryRecord
		err := rows.Scan(
			&r.RunID,
			&r.Measurement,
			&r.Biobank,
			&r.Descriptor,
			&r.Stratum,
			&r.Label,
			&r.Sex,
			&r.Position,
			&r.Count,
			&r.Suppressed,
			&r.Mean,
			&r.Median,
			&r.Std,
			&r.Min,
			&r.Max,
			&r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan summary row: %w", err)
		}
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate summary rows: %w", err)
	}
	if len(records) == 0 {
		return nil, storage.ErrNotFound
	}
	return records, nil
}
