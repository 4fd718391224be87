package domain

// Biobank identifies the source biobank of a measurement table.
type Biobank string

const (
	BiobankAoU  Biobank = "AoU"
	BiobankUKBB Biobank = "UKBB"
)

// String returns the string representation of Biobank.
func (b Biobank) String() string {
	return string(b)
}

// IsValid checks if the biobank is one of the supported identifiers.
func (b Biobank) IsValid() bool {
	return b == BiobankAoU || b == BiobankUKBB
}

// Sex categories used to split every stratum.
const (
	SexMale   = "Male"
	SexFemale = "Female"
	SexAll    = "ALL" // no sex filter
)

// Sexes is the fixed per-stratum row order.
var Sexes = []string{SexMale, SexFemale, SexAll}

// DefaultParticipantIDColumn is the conventional participant identifier column.
const DefaultParticipantIDColumn = "person_id"
