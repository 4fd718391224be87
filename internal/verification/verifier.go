// Package verification checks archived summary rows against a fresh computation.
// A run ID is a content hash of the inputs, so an archived run recomputed from
// the same inputs must reproduce every archived row.
package verification

import (
	"context"
	"errors"
	"fmt"
	"math"

	"biobank-trait-report/internal/domain"
	"biobank-trait-report/internal/storage"
)

// FloatTolerance is the tolerance for statistic comparisons.
const FloatTolerance = 1e-7

// FieldDivergence represents a mismatch between archived and recomputed values.
type FieldDivergence struct {
	Field    string      // field name
	Expected interface{} // archived value
	Actual   interface{} // recomputed value
}

// VerificationResult contains the result of verifying a single summary row.
type VerificationResult struct {
	Key         domain.StratumKey
	Match       bool
	Divergences []FieldDivergence
}

// VerificationReport contains results for one run.
type VerificationReport struct {
	RunID         string
	TotalRows     int                 // recomputed rows checked
	MatchedRows   int                 // rows that matched
	DivergentRows int                 // rows present in both with divergences
	Missing       []domain.StratumKey // recomputed rows absent from the archive
	Unexpected    []domain.StratumKey // archived rows not recomputed
	Results       []VerificationResult
}

// OK reports whether the archive reproduces the computation exactly.
func (r *VerificationReport) OK() bool {
	return r.DivergentRows == 0 && len(r.Missing) == 0 && len(r.Unexpected) == 0
}

// ArchiveVerifier compares archived runs with recomputed summary rows.
type ArchiveVerifier struct {
	store storage.SummaryStore
}

// NewArchiveVerifier creates a verifier reading from store.
func NewArchiveVerifier(store storage.SummaryStore) *ArchiveVerifier {
	return &ArchiveVerifier{store: store}
}

// VerifyRun loads the archived rows of runID and compares them with computed.
func (v *ArchiveVerifier) VerifyRun(ctx context.Context, runID string, computed []*domain.SummaryRecord) (*VerificationReport, error) {
	stored, err := v.store.GetByRun(ctx, runID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load archived run: %w", err)
	}

	byKey := make(map[domain.StratumKey]*domain.SummaryRecord, len(stored))
	for _, r := range stored {
		byKey[r.Key()] = r
	}

	report := &VerificationReport{RunID: runID, TotalRows: len(computed)}
	seen := make(map[domain.StratumKey]struct{}, len(computed))
	for _, c := range computed {
		key := c.Key()
		seen[key] = struct{}{}

		s, ok := byKey[key]
		if !ok {
			report.Missing = append(report.Missing, key)
			continue
		}

		divergences := CompareSummaryRecords(s, c)
		result := VerificationResult{Key: key, Match: len(divergences) == 0, Divergences: divergences}
		if result.Match {
			report.MatchedRows++
		} else {
			report.DivergentRows++
		}
		report.Results = append(report.Results, result)
	}

	for _, s := range stored {
		if _, ok := seen[s.Key()]; !ok {
			report.Unexpected = append(report.Unexpected, s.Key())
		}
	}
	return report, nil
}

// CompareSummaryRecords compares two records of the same stratum and returns
// divergences. CreatedAt is not compared.
func CompareSummaryRecords(stored, computed *domain.SummaryRecord) []FieldDivergence {
	var divergences []FieldDivergence
	add := func(field string, expected, actual interface{}) {
		divergences = append(divergences, FieldDivergence{Field: field, Expected: expected, Actual: actual})
	}

	if stored.Measurement != computed.Measurement {
		add("Measurement", stored.Measurement, computed.Measurement)
	}
	if stored.Biobank != computed.Biobank {
		add("Biobank", stored.Biobank, computed.Biobank)
	}
	if stored.Label != computed.Label {
		add("Label", stored.Label, computed.Label)
	}
	if stored.Position != computed.Position {
		add("Position", stored.Position, computed.Position)
	}
	if stored.Count != computed.Count {
		add("Count", stored.Count, computed.Count)
	}
	if stored.Suppressed != computed.Suppressed {
		add("Suppressed", stored.Suppressed, computed.Suppressed)
	}

	stats := []struct {
		field            string
		stored, computed *float64
	}{
		{"Mean", stored.Mean, computed.Mean},
		{"Median", stored.Median, computed.Median},
		{"Std", stored.Std, computed.Std},
		{"Min", stored.Min, computed.Min},
		{"Max", stored.Max, computed.Max},
	}
	for _, s := range stats {
		if !floatPtrEquals(s.stored, s.computed) {
			add(s.field, s.stored, s.computed)
		}
	}

	return divergences
}

// floatEquals compares two float64 values within FloatTolerance.
func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= FloatTolerance
}

// floatPtrEquals compares two *float64 values within FloatTolerance.
// Returns true if both are nil, or both are non-nil and equal.
func floatPtrEquals(a, b *float64) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return floatEquals(*a, *b)
}
