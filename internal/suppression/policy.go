// Package suppression implements the minimum-cohort-size disclosure rule.
package suppression

import "biobank-trait-report/internal/domain"

// MinCohortSize is the smallest distinct-participant count AoU strata may disclose.
const MinCohortSize = 20

// ShouldSuppress reports whether statistics for a stratum with the given
// number of distinct participants must be withheld.
// Only AoU strata are subject to the rule; unstratified rows never call this.
func ShouldSuppress(biobank domain.Biobank, distinctParticipants int) bool {
	return biobank == domain.BiobankAoU && distinctParticipants < MinCohortSize
}

// Apply returns row with the suppression marker set and all values withheld.
func Apply(row domain.SummaryRow) domain.SummaryRow {
	return domain.SummaryRow{
		Key:        row.Key,
		Stats:      domain.UndefinedStats(),
		Suppressed: true,
	}
}
