package domain

import (
	"math"
	"strconv"
)

// OverallDescriptor marks summary rows computed over the whole dataset.
const OverallDescriptor = "overall"

// SuppressedCount replaces the count of a suppressed stratum.
const SuppressedCount = "Nobs <20"

// StratumKey uniquely identifies one summary row.
type StratumKey struct {
	Descriptor string // OverallDescriptor for unstratified rows
	Stratum    string // raw stratum value, empty for overall rows
	Sex        string // SexMale | SexFemale | SexAll
}

// Stats holds descriptive statistics of the trait. NaN marks an undefined value.
type Stats struct {
	Mean   float64
	Median float64
	Std    float64 // sample (N-1) estimator
	Min    float64
	Max    float64
}

// UndefinedStats returns Stats with every field undefined.
func UndefinedStats() Stats {
	nan := math.NaN()
	return Stats{Mean: nan, Median: nan, Std: nan, Min: nan, Max: nan}
}

// Values returns the statistics in table column order.
func (s Stats) Values() []float64 {
	return []float64{s.Mean, s.Median, s.Std, s.Min, s.Max}
}

// SummaryRow is the descriptive summary of one (descriptor, stratum, sex) slice.
// A suppressed row carries no count and no statistics.
type SummaryRow struct {
	Key        StratumKey
	Count      int
	Stats      Stats
	Suppressed bool
}

// CountText returns the count as displayed in tables.
func (r SummaryRow) CountText() string {
	if r.Suppressed {
		return SuppressedCount
	}
	return strconv.Itoa(r.Count)
}

// FormatStat formats a statistic for display with two decimals, "NA" when undefined.
func FormatStat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "NA"
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
