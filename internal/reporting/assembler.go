package reporting

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"time"

	"biobank-trait-report/internal/domain"
)

// Figure widths of the overview and the faceted descriptor plots.
const (
	OverviewFigureWidth   = "3.5in"
	DescriptorFigureWidth = "7in"
)

// MissingArtifactError reports an artifact that is referenced by the report
// but absent on disk.
type MissingArtifactError struct {
	Artifact domain.Artifact
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("missing %s artifact %s at %s", e.Artifact.Kind, e.Artifact.Name, e.Artifact.Path)
}

// Assembler builds report documents from finished artifacts.
type Assembler struct {
	now    func() time.Time
	logger *log.Logger
}

// NewAssembler creates a new report assembler.
func NewAssembler() *Assembler {
	return &Assembler{
		now:    func() time.Time { return time.Now().UTC() },
		logger: log.Default(),
	}
}

// WithClock sets a custom clock function for deterministic output.
func (a *Assembler) WithClock(now func() time.Time) *Assembler {
	a.now = now
	return a
}

// WithLogger sets the logger.
func (a *Assembler) WithLogger(logger *log.Logger) *Assembler {
	if logger != nil {
		a.logger = logger
	}
	return a
}

// Assemble lays out the overview followed by one subsection per descriptor,
// in the given order. Page breaks separate the overview from the first
// descriptor and consecutive descriptors; none follows the last section.
// Tables are read back from their artifacts. Any missing artifact aborts
// assembly with a MissingArtifactError.
func (a *Assembler) Assemble(ov Overview, sections []Section) (*Document, error) {
	doc := &Document{
		Title:       ov.Measurement,
		GeneratedAt: a.now(),
	}

	overallTable, err := a.readTable(ov.Table)
	if err != nil {
		return nil, err
	}
	if err := requireArtifact(ov.Plot); err != nil {
		return nil, err
	}

	doc.Blocks = append(doc.Blocks,
		Block{Kind: BlockSection, Text: ov.Measurement},
		Block{Kind: BlockParagraph, Text: ov.Description},
		Block{
			Kind:     BlockFigure,
			Text:     "Distribution of all recorded values for all participants",
			Artifact: ov.Plot,
			Width:    OverviewFigureWidth,
		},
		Block{
			Kind:     BlockTable,
			Text:     fmt.Sprintf("Table of all recorded %s values", ov.Measurement),
			Artifact: ov.Table,
			Table:    overallTable,
		},
	)

	for _, s := range sections {
		if err := requireArtifact(s.Plot); err != nil {
			return nil, err
		}
		table, err := a.readTable(s.Table)
		if err != nil {
			return nil, err
		}

		name := s.Descriptor.Name
		doc.Blocks = append(doc.Blocks,
			Block{Kind: BlockPageBreak},
			Block{Kind: BlockSubsection, Text: name},
			Block{Kind: BlockParagraph, Text: s.Descriptor.Description},
			Block{
				Kind:     BlockFigure,
				Text:     fmt.Sprintf("Distribution of recorded %s values for all participants stratified by %s", ov.Measurement, name),
				Artifact: s.Plot,
				Width:    DescriptorFigureWidth,
			},
			Block{
				Kind:     BlockTable,
				Text:     fmt.Sprintf("Table of recorded %s values for participants stratified by %s", ov.Measurement, name),
				Artifact: s.Table,
				Table:    table,
			},
		)
	}

	a.logger.Printf("Assembled report %s: %d sections, %d blocks", ov.Measurement, len(sections)+1, len(doc.Blocks))
	return doc, nil
}

func (a *Assembler) readTable(art domain.Artifact) (*domain.Table, error) {
	if err := requireArtifact(art); err != nil {
		return nil, err
	}
	t, err := ReadTSV(art.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", art.Name, err)
	}
	return t, nil
}

func requireArtifact(art domain.Artifact) error {
	if art.Path == "" {
		return &MissingArtifactError{Artifact: art}
	}
	if _, err := os.Stat(art.Path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &MissingArtifactError{Artifact: art}
		}
		return fmt.Errorf("stat %s: %w", art.Name, err)
	}
	return nil
}
