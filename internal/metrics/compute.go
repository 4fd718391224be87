package metrics

import (
	"math"

	"github.com/montanaflynn/stats"

	"biobank-trait-report/internal/domain"
)

// computeStats calculates descriptive statistics over the non-missing values.
// All fields are rounded to 2 decimals. With no non-missing values every field
// is undefined; with a single value the sample standard deviation is undefined.
func computeStats(values []float64) domain.Stats {
	present := nonMissing(values)
	if len(present) == 0 {
		return domain.UndefinedStats()
	}

	data := stats.Float64Data(present)

	mean, err := data.Mean()
	if err != nil {
		mean = math.NaN()
	}
	median, err := data.Median()
	if err != nil {
		median = math.NaN()
	}
	minV, err := data.Min()
	if err != nil {
		minV = math.NaN()
	}
	maxV, err := data.Max()
	if err != nil {
		maxV = math.NaN()
	}

	std := math.NaN()
	if len(present) >= 2 {
		if s, err := stats.StandardDeviationSample(data); err == nil {
			std = s
		}
	}

	return domain.Stats{
		Mean:   round2(mean),
		Median: round2(median),
		Std:    round2(std),
		Min:    round2(minV),
		Max:    round2(maxV),
	}
}

// nonMissing returns values without NaNs.
func nonMissing(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// hasValues reports whether any row carries a non-missing trait value.
func hasValues(rows []domain.MeasurementRow) bool {
	for _, r := range rows {
		if !math.IsNaN(r.Value) {
			return true
		}
	}
	return false
}

// round2 rounds half away from zero to 2 decimals. NaN stays NaN.
func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return math.Round(v*100) / 100
}

// countParticipants returns the number of distinct participant identifiers.
func countParticipants(rows []domain.MeasurementRow) int {
	seen := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		seen[r.ParticipantID] = struct{}{}
	}
	return len(seen)
}

// filterSex returns rows matching sex; SexAll returns rows unchanged.
func filterSex(rows []domain.MeasurementRow, sex string) []domain.MeasurementRow {
	if sex == domain.SexAll {
		return rows
	}
	var out []domain.MeasurementRow
	for _, r := range rows {
		if r.Sex == sex {
			out = append(out, r)
		}
	}
	return out
}

// values extracts trait values.
func values(rows []domain.MeasurementRow) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.Value
	}
	return out
}
