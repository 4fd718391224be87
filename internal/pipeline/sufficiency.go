package pipeline

import (
	"fmt"
	"math"
	"sort"

	"biobank-trait-report/internal/domain"
	"biobank-trait-report/internal/suppression"
)

// MaxMissingShare is the highest tolerated share of missing trait values.
const MaxMissingShare = 0.5

// SufficiencyCheck represents one data sufficiency criterion.
type SufficiencyCheck struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// SufficiencyResult contains all checks. Failing checks never stop a run;
// they are logged so the analyst can judge the report.
type SufficiencyResult struct {
	Checks  []SufficiencyCheck
	AllPass bool
	Errors  []string // per-item details of failing checks
}

// CheckSufficiency runs the input sufficiency checks over validated rows.
func CheckSufficiency(rows []domain.MeasurementRow, descriptors []string) *SufficiencyResult {
	result := &SufficiencyResult{
		Checks:  make([]SufficiencyCheck, 0, 4),
		AllPass: true,
		Errors:  []string{},
	}

	add := func(check SufficiencyCheck, errs []string) {
		result.Checks = append(result.Checks, check)
		if !check.Pass {
			result.AllPass = false
			result.Errors = append(result.Errors, errs...)
		}
	}

	add(checkParticipants(rows), nil)
	add(checkMissingValues(rows), nil)
	add(checkSexValues(rows))
	add(checkStrata(rows, descriptors))

	return result
}

// checkParticipants: participants with a recorded value >= minimum cohort size.
func checkParticipants(rows []domain.MeasurementRow) SufficiencyCheck {
	seen := make(map[string]struct{})
	for _, r := range rows {
		if !math.IsNaN(r.Value) {
			seen[r.ParticipantID] = struct{}{}
		}
	}
	return SufficiencyCheck{
		Name:      "Participants with a recorded value",
		Threshold: fmt.Sprintf(">= %d", suppression.MinCohortSize),
		Actual:    fmt.Sprintf("%d", len(seen)),
		Pass:      len(seen) >= suppression.MinCohortSize,
	}
}

// checkMissingValues: share of missing trait values <= MaxMissingShare.
func checkMissingValues(rows []domain.MeasurementRow) SufficiencyCheck {
	missing := 0
	for _, r := range rows {
		if math.IsNaN(r.Value) {
			missing++
		}
	}
	share := 0.0
	if len(rows) > 0 {
		share = float64(missing) / float64(len(rows))
	}
	return SufficiencyCheck{
		Name:      "Missing trait values",
		Threshold: fmt.Sprintf("<= %.0f%%", MaxMissingShare*100),
		Actual:    fmt.Sprintf("%.1f%% (%d of %d)", share*100, missing, len(rows)),
		Pass:      len(rows) > 0 && share <= MaxMissingShare,
	}
}

// checkSexValues: rows outside Male/Female only contribute to ALL rows.
func checkSexValues(rows []domain.MeasurementRow) (SufficiencyCheck, []string) {
	other := make(map[string]int)
	total := 0
	for _, r := range rows {
		if r.Sex != domain.SexMale && r.Sex != domain.SexFemale {
			other[r.Sex]++
			total++
		}
	}

	errs := make([]string, 0, len(other))
	for _, v := range sortedKeys(other) {
		errs = append(errs, fmt.Sprintf("sex value %q on %d rows counted only in %s", v, other[v], domain.SexAll))
	}
	return SufficiencyCheck{
		Name:      "Rows with unrecognized sex",
		Threshold: "== 0",
		Actual:    fmt.Sprintf("%d", total),
		Pass:      total == 0,
	}, errs
}

// checkStrata: every descriptor splits the data into at least two strata.
func checkStrata(rows []domain.MeasurementRow, descriptors []string) (SufficiencyCheck, []string) {
	var errs []string
	for _, d := range descriptors {
		strata := make(map[string]struct{})
		for _, r := range rows {
			strata[r.Descriptors[d]] = struct{}{}
		}
		if len(strata) < 2 {
			errs = append(errs, fmt.Sprintf("descriptor %s has %d stratum", d, len(strata)))
		}
	}
	return SufficiencyCheck{
		Name:      "Descriptors with a single stratum",
		Threshold: "== 0",
		Actual:    fmt.Sprintf("%d", len(errs)),
		Pass:      len(errs) == 0,
	}, errs
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
