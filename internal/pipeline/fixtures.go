package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"biobank-trait-report/internal/domain"
)

// Fixture file names written by WriteFixtures.
const (
	FixtureDataFile        = "fixture_measurements.tsv"
	FixtureDescriptorsFile = "fixture_descriptors.tsv"
)

// Fixture column names.
const (
	FixtureValueColumn = "glucose_mmol"
	FixtureSexColumn   = "sex_at_birth"
)

// fixtureSites lists site strata with their participant counts. Site C stays
// below the AoU minimum cohort size.
var fixtureSites = []struct {
	name         string
	participants int
}{
	{"Site A", 48},
	{"Site B", 30},
	{"Site C", 12},
}

var fixtureSmoking = []string{
	"Never smoked",
	"Participant reported current smoker",
	"Former smoker",
}

// FixtureRows returns the deterministic demo measurement table. Every third
// participant has a repeat measurement and every 17th value is missing.
func FixtureRows() *domain.Table {
	columns := []string{domain.DefaultParticipantIDColumn, FixtureValueColumn, FixtureSexColumn, "site", "smoking_status"}

	var rows [][]string
	pid := 0
	for _, site := range fixtureSites {
		for i := 0; i < site.participants; i++ {
			pid++
			sex := domain.SexMale
			if pid%2 == 0 {
				sex = domain.SexFemale
			}
			smoking := fixtureSmoking[pid%len(fixtureSmoking)]
			if pid%29 == 0 {
				smoking = ""
			}

			visits := 1
			if pid%3 == 0 {
				visits = 2
			}
			for v := 0; v < visits; v++ {
				rows = append(rows, []string{
					fmt.Sprintf("P%04d", pid),
					fixtureValue(pid, v),
					sex,
					site.name,
					smoking,
				})
			}
		}
	}
	return domain.NewTable(columns, rows)
}

func fixtureValue(pid, visit int) string {
	if (pid+visit)%17 == 0 {
		return "NA"
	}
	v := 4.2 + float64((pid*37+visit*11)%31)/10
	return strconv.FormatFloat(v, 'f', 1, 64)
}

// FixtureDescriptors returns the descriptor table matching FixtureRows.
func FixtureDescriptors() domain.DescriptorTable {
	return domain.DescriptorTable{
		{Name: "site", Description: "Recruitment site where the sample was collected."},
		{Name: "smoking_status", Description: "Self-reported smoking status at enrollment."},
	}
}

// WriteFixtures writes the demo measurement and descriptor tables as
// tab-separated files into dir and returns their paths.
func WriteFixtures(dir string) (dataPath, descriptorPath string, err error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", "", fmt.Errorf("create fixture dir: %w", err)
	}

	dataPath = filepath.Join(dir, FixtureDataFile)
	if err := os.WriteFile(dataPath, []byte(tsv(FixtureRows())), 0644); err != nil {
		return "", "", fmt.Errorf("write %s: %w", FixtureDataFile, err)
	}

	desc := FixtureDescriptors()
	descriptions := make([]string, len(desc))
	for i, d := range desc {
		descriptions[i] = d.Description
	}
	descTable := domain.NewTable(desc.Names(), [][]string{descriptions})

	descriptorPath = filepath.Join(dir, FixtureDescriptorsFile)
	if err := os.WriteFile(descriptorPath, []byte(tsv(descTable)), 0644); err != nil {
		return "", "", fmt.Errorf("write %s: %w", FixtureDescriptorsFile, err)
	}
	return dataPath, descriptorPath, nil
}

// tsv renders a table without quoting. Fixture cells never contain tabs or newlines.
func tsv(t *domain.Table) string {
	var sb strings.Builder
	sb.WriteString(strings.Join(t.Columns, "\t"))
	sb.WriteString("\n")
	for _, row := range t.Rows {
		sb.WriteString(strings.Join(row, "\t"))
		sb.WriteString("\n")
	}
	return sb.String()
}
