package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"biobank-trait-report/internal/domain"
	"biobank-trait-report/internal/storage"
)

// SummaryStore implements storage.SummaryStore using ClickHouse.
type SummaryStore struct {
	conn *Conn
}

// NewSummaryStore creates a new SummaryStore.
func NewSummaryStore(conn *Conn) *SummaryStore {
	return &SummaryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SummaryStore = (*SummaryStore)(nil)

const summaryColumns = `run_id, measurement, biobank, descriptor, stratum, label, sex, position,
	count, suppressed, mean, median, std, min, max, created_at`

// InsertBulk adds all records in one batch. MergeTree does not enforce keys,
// so duplicates within the batch or against stored runs are rejected first.
func (s *SummaryStore) InsertBulk(ctx context.Context, records []*domain.SummaryRecord) error {
	if len(records) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(records))
	runs := make(map[string]struct{})
	for _, r := range records {
		if err := storage.ValidateRecord(r); err != nil {
			return err
		}
		key := storage.RecordKey(r)
		if _, exists := seen[key]; exists {
			return storage.ErrDuplicateKey
		}
		seen[key] = struct{}{}
		runs[r.RunID] = struct{}{}
	}

	for runID := range runs {
		existing, err := s.existingKeys(ctx, runID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		for key := range existing {
			if _, clash := seen[key]; clash {
				return storage.ErrDuplicateKey
			}
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO summary_rows (`+summaryColumns+`)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range records {
		err = batch.Append(
			r.RunID, r.Measurement, r.Biobank, r.Descriptor, r.Stratum, r.Label, r.Sex, int64(r.Position),
			int64(r.Count), r.Suppressed, r.Mean, r.Median, r.Std, r.Min, r.Max, r.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByRun retrieves all records of a run ordered by position.
func (s *SummaryStore) GetByRun(ctx context.Context, runID string) ([]*domain.SummaryRecord, error) {
	query := `
		SELECT ` + summaryColumns + `
		FROM summary_rows
		WHERE run_id = ?
		ORDER BY position ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query summary rows by run: %w", err)
	}
	defer rows.Close()

	return scanSummaryRecords(rows)
}

// GetByRunDescriptor retrieves the records of one descriptor of a run ordered by position.
func (s *SummaryStore) GetByRunDescriptor(ctx context.Context, runID, descriptor string) ([]*domain.SummaryRecord, error) {
	query := `
		SELECT ` + summaryColumns + `
		FROM summary_rows
		WHERE run_id = ? AND descriptor = ?
		ORDER BY position ASC
	`

	rows, err := s.conn.Query(ctx, query, runID, descriptor)
	if err != nil {
		return nil, fmt.Errorf("query summary rows by descriptor: %w", err)
	}
	defer rows.Close()

	return scanSummaryRecords(rows)
}

// existingKeys returns the record keys already stored for a run.
func (s *SummaryStore) existingKeys(ctx context.Context, runID string) (map[string]struct{}, error) {
	rows, err := s.conn.Query(ctx, `SELECT descriptor, stratum, sex FROM summary_rows WHERE run_id = ?`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make(map[string]struct{})
	for rows.Next() {
		r := domain.SummaryRecord{RunID: runID}
		if err := rows.Scan(&r.Descriptor, &r.Stratum, &r.Sex); err != nil {
			return nil, err
		}
		keys[storage.RecordKey(&r)] = struct{}{}
	}
	return keys, rows.Err()
}

// scanSummaryRecords scans rows into records. No rows is ErrNotFound.
func scanSummaryRecords(rows driver.Rows) ([]*domain.SummaryRecord, error) {
	var records []*domain.SummaryRecord

	for rows.Next() {
		var r domain.SummaryRecord
		var position, count int64

		err := rows.Scan(
			&r.RunID, &r.Measurement, &r.Biobank, &r.Descriptor, &r.Stratum, &r.Label, &r.Sex, &position,
			&count, &r.Suppressed, &r.Mean, &r.Median, &r.Std, &r.Min, &r.Max, &r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan summary row: %w", err)
		}
		r.Position = int(position)
		r.Count = int(count)
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
