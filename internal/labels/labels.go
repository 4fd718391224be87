// Package labels derives display labels for strata.
//
// A label is the raw stratum value wrapped to 20 characters per line,
// followed by the observation and distinct participant counts:
//
//	<value>\nN_obs=<rows>\nN=<participants>
//
// Labels are a display transform only. They are built from the raw table
// and substituted into copies, never into the table aggregation reads.
package labels

import (
	"fmt"
	"strconv"
	"strings"

	"biobank-trait-report/internal/domain"
)

// WrapWidth is the maximum number of characters per label line.
const WrapWidth = 20

// Label is the display label of one stratum.
type Label struct {
	Raw          string // raw stratum value
	Text         string // display label
	Observations int    // rows in the stratum
	Participants int    // distinct participant identifiers in the stratum
}

// Labels maps raw stratum values of one descriptor to their labels,
// in first-appearance order.
type Labels struct {
	Descriptor string
	Order      []Label
	byRaw      map[string]int
}

// Lookup returns the label of a raw stratum value.
func (l *Labels) Lookup(raw string) (Label, bool) {
	i, ok := l.byRaw[raw]
	if !ok {
		return Label{}, false
	}
	return l.Order[i], true
}

// Text returns the display text of raw, or raw itself when unlabeled.
func (l *Labels) Text(raw string) string {
	if lbl, ok := l.Lookup(raw); ok {
		return lbl.Text
	}
	return raw
}

// Build derives one label per distinct raw value of descriptor.
// Distinct raw values always yield distinct labels: the count suffix parses
// unambiguously from the end and Wrap is injective.
func Build(t *domain.Table, descriptor, participantColumn string) (*Labels, error) {
	descIdx, ok := t.ColumnIndex(descriptor)
	if !ok {
		return nil, fmt.Errorf("column %s not found", descriptor)
	}
	pidIdx, ok := t.ColumnIndex(participantColumn)
	if !ok {
		return nil, fmt.Errorf("column %s not found", participantColumn)
	}

	type tally struct {
		rows         int
		participants map[string]struct{}
	}
	var order []string
	tallies := make(map[string]*tally)
	for i := range t.Rows {
		raw := domain.NormalizeStratum(t.Cell(i, descIdx))
		tl, exists := tallies[raw]
		if !exists {
			tl = &tally{participants: make(map[string]struct{})}
			tallies[raw] = tl
			order = append(order, raw)
		}
		tl.rows++
		tl.participants[t.Cell(i, pidIdx)] = struct{}{}
	}

	l := &Labels{
		Descriptor: descriptor,
		Order:      make([]Label, 0, len(order)),
		byRaw:      make(map[string]int, len(order)),
	}
	for _, raw := range order {
		tl := tallies[raw]
		l.byRaw[raw] = len(l.Order)
		l.Order = append(l.Order, Label{
			Raw:          raw,
			Text:         Format(raw, tl.rows, len(tl.participants)),
			Observations: tl.rows,
			Participants: len(tl.participants),
		})
	}
	return l, nil
}

// Apply returns a copy of t with every raw value of the labeled descriptor
// replaced by its label. t is not modified.
func Apply(t *domain.Table, l *Labels) (*domain.Table, error) {
	descIdx, ok := t.ColumnIndex(l.Descriptor)
	if !ok {
		return nil, fmt.Errorf("column %s not found", l.Descriptor)
	}

	out := t.Clone()
	for i, row := range out.Rows {
		if descIdx >= len(row) {
			continue
		}
		raw := domain.NormalizeStratum(row[descIdx])
		if lbl, ok := l.Lookup(raw); ok {
			out.Rows[i][descIdx] = lbl.Text
		}
	}
	return out, nil
}

// Format builds the label text of a raw value.
func Format(raw string, observations, participants int) string {
	return Wrap(raw) + "\nN_obs=" + strconv.Itoa(observations) + "\nN=" + strconv.Itoa(participants)
}

// Wrap splits values longer than WrapWidth characters into WrapWidth-wide
// chunks joined by a hyphen and a line break.
func Wrap(raw string) string {
	runes := []rune(raw)
	if len(runes) <= WrapWidth {
		return raw
	}
	var chunks []string
	for start := 0; start < len(runes); start += WrapWidth {
		end := start + WrapWidth
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return strings.Join(chunks, "-\n")
}

// ParseCounts recovers the observation and participant counts from a label.
func ParseCounts(label string) (observations, participants int, err error) {
	lines := strings.Split(label, "\n")
	if len(lines) < 3 {
		return 0, 0, fmt.Errorf("label %q has no count suffix", label)
	}

	obsLine, nLine := lines[len(lines)-2], lines[len(lines)-1]
	if !strings.HasPrefix(obsLine, "N_obs=") || !strings.HasPrefix(nLine, "N=") {
		return 0, 0, fmt.Errorf("label %q has no count suffix", label)
	}

	observations, err = strconv.Atoi(strings.TrimPrefix(obsLine, "N_obs="))
	if err != nil {
		return 0, 0, fmt.Errorf("parse N_obs in %q: %w", label, err)
	}
	participants, err = strconv.Atoi(strings.TrimPrefix(nLine, "N="))
	if err != nil {
		return 0, 0, fmt.Errorf("parse N in %q: %w", label, err)
	}
	return observations, participants, nil
}
