package domain

// MeasurementRow is one observation of the trait.
type MeasurementRow struct {
	ParticipantID string
	Value         float64 // NaN when missing
	Sex           string
	Descriptors   map[string]string // descriptor name -> stratum value
}

// Columns names the input table columns a report is built from.
type Columns struct {
	Value         string
	Sex           string
	ParticipantID string
	Descriptors   []string
}

// Descriptor is one stratification column together with its report prose.
type Descriptor struct {
	Name        string
	Description string
}

// DescriptorTable lists descriptors in declared order.
type DescriptorTable []Descriptor

// Names returns descriptor names in declared order.
func (d DescriptorTable) Names() []string {
	names := make([]string, len(d))
	for i, desc := range d {
		names[i] = desc.Name
	}
	return names
}
