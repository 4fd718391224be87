package dataset

import (
	"fmt"

	"biobank-trait-report/internal/domain"
)

// LoadDescriptors reads a descriptor table: a header of descriptor names and
// exactly one data row holding each descriptor's description.
func LoadDescriptors(path string, sep rune) (domain.DescriptorTable, error) {
	t, err := Load(path, sep)
	if err != nil {
		return nil, err
	}
	return Descriptors(t)
}

// Descriptors converts a loaded descriptor table into declared-order descriptors.
func Descriptors(t *domain.Table) (domain.DescriptorTable, error) {
	if t.Len() != 1 {
		return nil, fmt.Errorf("descriptor table must have exactly one data row, got %d", t.Len())
	}

	seen := make(map[string]struct{}, len(t.Columns))
	descriptors := make(domain.DescriptorTable, 0, len(t.Columns))
	for i, name := range t.Columns {
		if name == "" {
			return nil, fmt.Errorf("descriptor table column %d has an empty name", i+1)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("descriptor %q declared twice", name)
		}
		seen[name] = struct{}{}

		descriptors = append(descriptors, domain.Descriptor{
			Name:        name,
			Description: t.Cell(0, i),
		})
	}
	return descriptors, nil
}
