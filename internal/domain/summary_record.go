package domain

import "math"

// SummaryRecord is one archived summary row of a run.
// Corresponds to the summary_rows table.
type SummaryRecord struct {
	RunID       string   // deterministic run identifier
	Measurement string   // trait name
	Biobank     string   // AoU | UKBB
	Descriptor  string   // OverallDescriptor for unstratified rows
	Stratum     string   // raw stratum value, empty for overall rows
	Label       string   // display label, empty for overall rows
	Sex         string   // Male | Female | ALL
	Position    int      // row order within the run
	Count       int      // 0 when suppressed
	Suppressed  bool     // count shown as SuppressedCount
	Mean        *float64 // NULL when undefined or suppressed
	Median      *float64
	Std         *float64
	Min         *float64
	Max         *float64
	CreatedAt   int64 // record creation timestamp (ms)
}

// NewSummaryRecord converts a summary row into its archived form.
func NewSummaryRecord(runID, measurement string, biobank Biobank, position int, row SummaryRow, label string, createdAt int64) *SummaryRecord {
	return &SummaryRecord{
		RunID:       runID,
		Measurement: measurement,
		Biobank:     biobank.String(),
		Descriptor:  row.Key.Descriptor,
		Stratum:     row.Key.Stratum,
		Label:       label,
		Sex:         row.Key.Sex,
		Position:    position,
		Count:       row.Count,
		Suppressed:  row.Suppressed,
		Mean:        nullable(row.Stats.Mean),
		Median:      nullable(row.Stats.Median),
		Std:         nullable(row.Stats.Std),
		Min:         nullable(row.Stats.Min),
		Max:         nullable(row.Stats.Max),
		CreatedAt:   createdAt,
	}
}

// Key returns the stratum key of the record.
func (r *SummaryRecord) Key() StratumKey {
	return StratumKey{Descriptor: r.Descriptor, Stratum: r.Stratum, Sex: r.Sex}
}

// SummaryRow converts the record back into a summary row.
func (r *SummaryRecord) SummaryRow() SummaryRow {
	return SummaryRow{
		Key:        r.Key(),
		Count:      r.Count,
		Suppressed: r.Suppressed,
		Stats: Stats{
			Mean:   value(r.Mean),
			Median: value(r.Median),
			Std:    value(r.Std),
			Min:    value(r.Min),
			Max:    value(r.Max),
		},
	}
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func value(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}
