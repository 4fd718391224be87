package domain

// ArtifactKind classifies a persisted pipeline output.
type ArtifactKind string

const (
	ArtifactPlot     ArtifactKind = "plot"
	ArtifactTable    ArtifactKind = "table"
	ArtifactWorkbook ArtifactKind = "workbook"
	ArtifactDocument ArtifactKind = "document"
)

// Artifact is a named output produced by one stage and consumed by a later one.
type Artifact struct {
	Kind ArtifactKind
	Name string // deterministic file name
	Path string // location on disk
}

// PlotName returns the deterministic density plot file name.
// An empty descriptor names the overall plot.
func PlotName(measurement, descriptor string) string {
	if descriptor == "" {
		return measurement + "_distplot.png"
	}
	return measurement + "_" + descriptor + "_distplot.png"
}

// TableName returns the deterministic statistics table file name.
// An empty descriptor names the overall table.
func TableName(measurement, descriptor string) string {
	if descriptor == "" {
		return measurement + "_table.tsv"
	}
	return measurement + "_" + descriptor + "_table.tsv"
}

// WorkbookName returns the companion workbook file name.
func WorkbookName(measurement string) string {
	return measurement + "_tables.xlsx"
}
