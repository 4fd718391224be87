package memory

import (
	"context"
	"sort"
	"sync"

	"biobank-trait-report/internal/domain"
	"biobank-trait-report/internal/storage"
)

// SummaryStore is an in-memory implementation of storage.SummaryStore.
type SummaryStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SummaryRecord // keyed by storage.RecordKey
}

// NewSummaryStore creates a new in-memory summary store.
func NewSummaryStore() *SummaryStore {
	return &SummaryStore{
		data: make(map[string]*domain.SummaryRecord),
	}
}

// InsertBulk adds multiple records atomically. Fails entire batch on any duplicate.
func (s *SummaryStore) InsertBulk(_ context.Context, records []*domain.SummaryRecord) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(records))

	// First pass: validate and check duplicates (existing + intra-batch)
	for _, r := range records {
		if err := storage.ValidateRecord(r); err != nil {
			return err
		}
		key := storage.RecordKey(r)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, r := range records {
		s.data[storage.RecordKey(r)] = cloneRecord(r)
	}
	return nil
}

// GetByRun retrieves all records of a run ordered by position.
func (s *SummaryStore) GetByRun(_ context.Context, runID string) ([]*domain.SummaryRecord, error) {
	return s.collect(func(r *domain.SummaryRecord) bool {
		return r.RunID == runID
	})
}

// GetByRunDescriptor retrieves the records of one descriptor of a run ordered by position.
func (s *SummaryStore) GetByRunDescriptor(_ context.Context, runID, descriptor string) ([]*domain.SummaryRecord, error) {
	return s.collect(func(r *domain.SummaryRecord) bool {
		return r.RunID == runID && r.Descriptor == descriptor
	})
}

func (s *SummaryStore) collect(match func(*domain.SummaryRecord) bool) ([]*domain.SummaryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SummaryRecord
	for _, r := range s.data {
		if match(r) {
			result = append(result, cloneRecord(r))
		}
	}
	if len(result) == 0 {
		return nil, storage.ErrNotFound
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Position < result[j].Position
	})
	return result, nil
}

// cloneRecord copies a record including its nullable statistics.
func cloneRecord(r *domain.SummaryRecord) *domain.SummaryRecord {
	c := *r
	c.Mean = cloneFloat(r.Mean)
	c.Median = cloneFloat(r.Median)
	c.Std = cloneFloat(r.Std)
	c.Min = cloneFloat(r.Min)
	c.Max = cloneFloat(r.Max)
	return &c
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

var _ storage.SummaryStore = (*SummaryStore)(nil)
