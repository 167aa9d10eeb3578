package expt

import (
	"fmt"
	"github.com/google/go-cmp/cmp"
	"strings"
)

// Difference between two result tables at one row and column.
type Difference struct {
	Row   int
	ID    int
	Field Field
	A, B  string
}

func (d Difference) String() string {
	return fmt.Sprintf("row %d (experiment %d) %s: %q != %q", d.Row, d.ID, d.Field, d.A, d.B)
}

// Compare checks two tables row for row. The prose of each document is ignored and text cells are
// compared with whitespace normalised. A row missing from one side is reported against the id column.
func Compare(a, b *Report) []Difference {
	var diffs []Difference
	n := max(len(a.Experiments), len(b.Experiments))
	for i := 0; i < n; i++ {
		switch {
		case i >= len(a.Experiments):
			e := b.Experiments[i]
			diffs = append(diffs, Difference{Row: i + 1, ID: e.ID, Field: FieldID, A: "", B: e.Format(FieldID)})
		case i >= len(b.Experiments):
			e := a.Experiments[i]
			diffs = append(diffs, Difference{Row: i + 1, ID: e.ID, Field: FieldID, A: e.Format(FieldID), B: ""})
		default:
			ea, eb := a.Experiments[i], b.Experiments[i]
			for _, f := range Fields {
				if !sameValue(ea, eb, f) {
					diffs = append(diffs, Difference{Row: i + 1, ID: ea.ID, Field: f, A: ea.Format(f), B: eb.Format(f)})
				}
			}
		}
	}
	return diffs
}

// Equal is true if the two tables have identical content.
func Equal(a, b *Report) bool {
	return len(Compare(a, b)) == 0
}

// Diff returns a line based description of the differences between the two tables.
func Diff(a, b *Report) string {
	return cmp.Diff(a.Experiments, b.Experiments, cmp.Transformer("normalise", normalise))
}

func sameValue(a, b Experiment, f Field) bool {
	if f.Numeric() {
		return a.Value(f) == b.Value(f)
	}
	return normalise(a.Format(f)) == normalise(b.Format(f))
}

func normalise(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
