package metrics

import (
	"fmt"
	"log"

	"biobank-trait-report/internal/domain"
	"biobank-trait-report/internal/suppression"
)

// EmptyStratumWarning records a slice without any non-missing value. The row
// is still emitted with undefined statistics.
type EmptyStratumWarning struct {
	Key domain.StratumKey
}

func (w EmptyStratumWarning) String() string {
	if w.Key.Descriptor == domain.OverallDescriptor {
		return fmt.Sprintf("empty stratum: overall sex=%s", w.Key.Sex)
	}
	return fmt.Sprintf("empty stratum: %s=%q sex=%s", w.Key.Descriptor, w.Key.Stratum, w.Key.Sex)
}

// Result holds every summary row of one aggregation run.
type Result struct {
	Overall       []domain.SummaryRow
	Descriptors   []string // declared order
	PerDescriptor map[string][]domain.SummaryRow
	Warnings      []EmptyStratumWarning
}

// SuppressedStrata returns the number of suppressed rows across all descriptors.
func (r *Result) SuppressedStrata() int {
	n := 0
	for _, rows := range r.PerDescriptor {
		for _, row := range rows {
			if row.Suppressed {
				n++
			}
		}
	}
	return n
}

// Aggregator computes overall and per-descriptor summary rows.
type Aggregator struct {
	biobank domain.Biobank
	logger  *log.Logger
}

// NewAggregator creates an aggregator applying the suppression rule of biobank.
func NewAggregator(biobank domain.Biobank) *Aggregator {
	return &Aggregator{
		biobank: biobank,
		logger:  log.Default(),
	}
}

// WithLogger sets the logger used for empty stratum warnings.
func (a *Aggregator) WithLogger(logger *log.Logger) *Aggregator {
	if logger != nil {
		a.logger = logger
	}
	return a
}

// Aggregate computes all summary rows from the raw measurement rows.
// Every descriptor is aggregated from the same untouched rows.
func (a *Aggregator) Aggregate(rows []domain.MeasurementRow, descriptors []string) *Result {
	res := &Result{
		Descriptors:   append([]string(nil), descriptors...),
		PerDescriptor: make(map[string][]domain.SummaryRow, len(descriptors)),
	}

	var warnings []EmptyStratumWarning
	res.Overall = a.overall(rows, &warnings)
	for _, d := range descriptors {
		res.PerDescriptor[d] = a.stratify(rows, d, &warnings)
	}

	for _, w := range warnings {
		a.logger.Printf("WARN: %s", w)
	}
	res.Warnings = warnings
	return res
}

// Overall computes the Male, Female and ALL rows over the full dataset.
// These rows are never suppressed.
func (a *Aggregator) Overall(rows []domain.MeasurementRow) []domain.SummaryRow {
	var warnings []EmptyStratumWarning
	return a.overall(rows, &warnings)
}

// Stratify computes three rows (Male, Female, ALL) per distinct value of descriptor,
// in first-appearance order.
func (a *Aggregator) Stratify(rows []domain.MeasurementRow, descriptor string) []domain.SummaryRow {
	var warnings []EmptyStratumWarning
	return a.stratify(rows, descriptor, &warnings)
}

func (a *Aggregator) overall(rows []domain.MeasurementRow, warnings *[]EmptyStratumWarning) []domain.SummaryRow {
	out := make([]domain.SummaryRow, 0, len(domain.Sexes))
	for _, sex := range domain.Sexes {
		key := domain.StratumKey{Descriptor: domain.OverallDescriptor, Sex: sex}
		slice := filterSex(rows, sex)
		row := summarize(key, slice)
		if !hasValues(slice) {
			*warnings = append(*warnings, EmptyStratumWarning{Key: key})
		}
		out = append(out, row)
	}
	return out
}

func (a *Aggregator) stratify(rows []domain.MeasurementRow, descriptor string, warnings *[]EmptyStratumWarning) []domain.SummaryRow {
	strata, groups := groupByStratum(rows, descriptor)

	out := make([]domain.SummaryRow, 0, len(strata)*len(domain.Sexes))
	for _, value := range strata {
		slice := groups[value]

		// Decided once per stratum value, independent of the sex split
		suppress := suppression.ShouldSuppress(a.biobank, countParticipants(slice))

		for _, sex := range domain.Sexes {
			key := domain.StratumKey{Descriptor: descriptor, Stratum: value, Sex: sex}
			sexSlice := filterSex(slice, sex)
			row := summarize(key, sexSlice)
			if suppress {
				row = suppression.Apply(row)
			} else if !hasValues(sexSlice) {
				*warnings = append(*warnings, EmptyStratumWarning{Key: key})
			}
			out = append(out, row)
		}
	}
	return out
}

// summarize builds the summary row of one slice.
func summarize(key domain.StratumKey, rows []domain.MeasurementRow) domain.SummaryRow {
	return domain.SummaryRow{
		Key:   key,
		Count: len(rows),
		Stats: computeStats(values(rows)),
	}
}

// groupByStratum partitions rows by raw descriptor value, preserving first-appearance order.
func groupByStratum(rows []domain.MeasurementRow, descriptor string) ([]string, map[string][]domain.MeasurementRow) {
	var order []string
	groups := make(map[string][]domain.MeasurementRow)
	for _, r := range rows {
		v := r.Descriptors[descriptor]
		if _, exists := groups[v]; !exists {
			order = append(order, v)
		}
		groups[v] = append(groups[v], r)
	}
	return order, groups
}
