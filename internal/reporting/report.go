package reporting

import (
	"time"

	"biobank-trait-report/internal/domain"
)

// BlockKind identifies the type of a document block.
type BlockKind int

const (
	BlockSection BlockKind = iota
	BlockSubsection
	BlockParagraph
	BlockFigure
	BlockTable
	BlockPageBreak
)

func (k BlockKind) String() string {
	switch k {
	case BlockSection:
		return "section"
	case BlockSubsection:
		return "subsection"
	case BlockParagraph:
		return "paragraph"
	case BlockFigure:
		return "figure"
	case BlockTable:
		return "table"
	case BlockPageBreak:
		return "pagebreak"
	}
	return "unknown"
}

// Block is one element of an assembled document.
type Block struct {
	Kind     BlockKind
	Text     string          // heading or paragraph text, caption for figures and tables
	Artifact domain.Artifact // figure and table blocks
	Width    string          // figure width
	Table    *domain.Table   // table contents read back from Artifact
}

// Document is an ordered, renderer-independent report.
type Document struct {
	Title       string
	GeneratedAt time.Time
	Blocks      []Block
}

// Kinds returns the block kinds in document order.
func (d *Document) Kinds() []BlockKind {
	kinds := make([]BlockKind, len(d.Blocks))
	for i, b := range d.Blocks {
		kinds[i] = b.Kind
	}
	return kinds
}

// Overview binds the overall artifacts to the report's first section.
type Overview struct {
	Measurement string
	Description string
	Plot        domain.Artifact
	Table       domain.Artifact
}

// Section binds one descriptor to its plot and table artifacts.
type Section struct {
	Descriptor domain.Descriptor
	Plot       domain.Artifact
	Table      domain.Artifact
}
