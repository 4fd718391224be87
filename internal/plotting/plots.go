// Package plotting renders density plots of the trait.
//
// Each call writes one PNG under a deterministic name and returns the
// artifact describing it. Callers pass the returned artifacts on to report
// assembly; nothing here holds figure state between calls.
package plotting

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"biobank-trait-report/internal/dataset"
	"biobank-trait-report/internal/domain"
	"biobank-trait-report/internal/labels"
)

// MaxFacetColumns is the number of facets per row in a stratified plot.
const MaxFacetColumns = 6

var (
	overallWidth  = 6 * vg.Inch
	overallHeight = 4 * vg.Inch
	facetWidth    = 4 * vg.Inch
	facetHeight   = 3.5 * vg.Inch

	fillColor = color.NRGBA{R: 31, G: 119, B: 180, A: 160}
)

// Facet is one panel of a stratified plot.
type Facet struct {
	Label        string    // stratum label used as the panel title
	Values       []float64 // trait values, NaN for missing
	Participants int       // distinct participants, used for ordering
}

// Facets groups the trait values of a relabeled table by stratum label.
// Facets come back in label first-appearance order.
func Facets(relabeled *domain.Table, valueColumn string, l *labels.Labels) ([]Facet, error) {
	descIdx, ok := relabeled.ColumnIndex(l.Descriptor)
	if !ok {
		return nil, fmt.Errorf("column %s not found", l.Descriptor)
	}
	valueIdx, ok := relabeled.ColumnIndex(valueColumn)
	if !ok {
		return nil, fmt.Errorf("column %s not found", valueColumn)
	}

	facets := make([]Facet, len(l.Order))
	byText := make(map[string]int, len(l.Order))
	for i, lbl := range l.Order {
		facets[i] = Facet{Label: lbl.Text, Participants: lbl.Participants}
		byText[lbl.Text] = i
	}

	for i := range relabeled.Rows {
		text := relabeled.Cell(i, descIdx)
		fi, ok := byText[text]
		if !ok {
			return nil, fmt.Errorf("row %d: %s value %q has no label", i+1, l.Descriptor, text)
		}
		v, err := dataset.ParseValue(relabeled.Cell(i, valueIdx))
		if err != nil {
			return nil, &dataset.ValueParseError{Row: i + 1, Column: valueColumn, Raw: relabeled.Cell(i, valueIdx)}
		}
		facets[fi].Values = append(facets[fi].Values, v)
	}
	return facets, nil
}

// OrderFacets returns facets sorted by participant count descending.
// Ties keep their input order.
func OrderFacets(facets []Facet) []Facet {
	out := append([]Facet(nil), facets...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Participants > out[j].Participants
	})
	return out
}

// Overall writes the density plot of every recorded value.
func Overall(values []float64, measurement string, biobank domain.Biobank, dir string) (domain.Artifact, error) {
	p := densityPlot(values)
	p.Title.Text = fmt.Sprintf("all %s measurements in %s", measurement, biobank)
	p.X.Label.Text = measurement
	p.Y.Label.Text = "Density"

	img := vgimg.New(overallWidth, overallHeight)
	p.Draw(draw.New(img))

	return writePNG(img, dir, domain.PlotName(measurement, ""))
}

// Stratified writes one faceted density plot for a descriptor, one panel per
// stratum. Panels are ordered by participant count descending and wrap after
// MaxFacetColumns. Each panel scales its own axes.
func Stratified(facets []Facet, measurement, descriptor, dir string) (domain.Artifact, error) {
	ordered := OrderFacets(facets)

	cols := len(ordered)
	if cols > MaxFacetColumns {
		cols = MaxFacetColumns
	}
	if cols == 0 {
		cols = 1
	}
	rows := (len(ordered) + cols - 1) / cols
	if rows == 0 {
		rows = 1
	}

	img := vgimg.New(vg.Length(cols)*facetWidth, vg.Length(rows)*facetHeight)
	dc := draw.New(img)
	tiles := draw.Tiles{
		Rows:      rows,
		Cols:      cols,
		PadX:      4 * vg.Millimeter,
		PadY:      4 * vg.Millimeter,
		PadTop:    2 * vg.Millimeter,
		PadBottom: 2 * vg.Millimeter,
		PadLeft:   2 * vg.Millimeter,
		PadRight:  2 * vg.Millimeter,
	}

	if len(ordered) == 0 {
		p := plot.New()
		p.Title.Text = fmt.Sprintf("no %s strata", descriptor)
		p.Draw(tiles.At(dc, 0, 0))
	}
	for i, f := range ordered {
		p := densityPlot(f.Values)
		p.Title.Text = f.Label
		p.X.Label.Text = measurement
		p.Draw(tiles.At(dc, i%cols, i/cols))
	}

	return writePNG(img, dir, domain.PlotName(measurement, descriptor))
}

// densityPlot builds a filled KDE plot. Values that cannot produce a curve
// leave the panel empty.
func densityPlot(values []float64) *plot.Plot {
	p := plot.New()

	curve, ok := KDE(values)
	if !ok {
		return p
	}

	xys := make(plotter.XYs, len(curve.X))
	for i := range curve.X {
		xys[i].X = curve.X[i]
		xys[i].Y = curve.Y[i]
	}
	line, err := plotter.NewLine(xys)
	if err != nil {
		return p
	}
	line.FillColor = fillColor
	line.LineStyle.Color = fillColor
	line.LineStyle.Width = vg.Points(0.5)

	p.Add(line)
	p.Y.Min = 0
	return p
}

func writePNG(img *vgimg.Canvas, dir, name string) (domain.Artifact, error) {
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("create %s: %w", name, err)
	}

	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(f); err != nil {
		f.Close()
		return domain.Artifact{}, fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return domain.Artifact{}, fmt.Errorf("close %s: %w", name, err)
	}

	return domain.Artifact{Kind: domain.ArtifactPlot, Name: name, Path: path}, nil
}
