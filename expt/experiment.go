// Package expt holds the experiment records reported for a classification network, checks them and
// plans further hyperparameter sweeps.
package expt

import (
	"fmt"
	"go.uber.org/multierr"
	"math"
	"strconv"
	"strings"
)

// Field identifies one column of a results table.
type Field int

const (
	FieldID Field = iota
	FieldArchitecture
	FieldHidden
	FieldDropout
	FieldAccuracy
	FieldLoss
	FieldRemarks
)

// Fields lists all columns in their default table order.
var Fields = []Field{FieldID, FieldArchitecture, FieldHidden, FieldDropout, FieldAccuracy, FieldLoss, FieldRemarks}

var fieldNames = []string{"id", "architecture", "hidden", "dropout", "accuracy", "loss", "remarks"}

// Default column headings used when rendering a table.
var fieldHeadings = []string{"Experiment", "Architecture", "Hidden Layer", "Dropout", "Accuracy", "Loss", "Remarks"}

func (f Field) String() string {
	if f < 0 || int(f) >= len(fieldNames) {
		return "field(" + strconv.Itoa(int(f)) + ")"
	}
	return fieldNames[f]
}

// Heading returns the default column heading.
func (f Field) Heading() string {
	if f < 0 || int(f) >= len(fieldHeadings) {
		return f.String()
	}
	return fieldHeadings[f]
}

// Numeric is true for columns holding numbers.
func (f Field) Numeric() bool {
	return f != FieldArchitecture && f != FieldRemarks
}

// ParseField looks up a field by name.
func ParseField(name string) (Field, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, s := range fieldNames {
		if s == name {
			return Field(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownField, name)
}

// Experiment is one row of a results table: the settings of a single training run and the metrics it reported.
type Experiment struct {
	ID           int
	Architecture string
	Hidden       int
	Dropout      float64
	Accuracy     float64
	Loss         float64
	Remarks      string
}

// Validate checks each value lies in its permitted range. All failures are returned combined.
func (e Experiment) Validate() error {
	var err error
	bad := func(format string, args ...interface{}) {
		msg := fmt.Sprintf(format, args...)
		err = multierr.Append(err, fmt.Errorf("experiment %d: %s: %w", e.ID, msg, ErrOutOfRange))
	}
	if e.ID < 1 {
		bad("id %d must be >= 1", e.ID)
	}
	if e.Hidden < 0 {
		bad("hidden width %d must be >= 0", e.Hidden)
	}
	if !inUnit(e.Dropout) {
		bad("dropout %v not in [0,1]", e.Dropout)
	}
	if !inUnit(e.Accuracy) {
		bad("accuracy %v not in [0,1]", e.Accuracy)
	}
	if math.IsNaN(e.Loss) || math.IsInf(e.Loss, 0) || e.Loss < 0 {
		bad("loss %v must be finite and >= 0", e.Loss)
	}
	return err
}

func inUnit(x float64) bool {
	return !math.IsNaN(x) && x >= 0 && x <= 1
}

// Value returns the raw value of the given column.
func (e Experiment) Value(f Field) interface{} {
	switch f {
	case FieldID:
		return e.ID
	case FieldArchitecture:
		return e.Architecture
	case FieldHidden:
		return e.Hidden
	case FieldDropout:
		return e.Dropout
	case FieldAccuracy:
		return e.Accuracy
	case FieldLoss:
		return e.Loss
	case FieldRemarks:
		return e.Remarks
	}
	return nil
}

// Format returns the column value as table text, metrics to 4 decimal places.
func (e Experiment) Format(f Field) string {
	switch f {
	case FieldDropout:
		return strconv.FormatFloat(e.Dropout, 'f', -1, 64)
	case FieldAccuracy:
		return fmt.Sprintf("%.4f", e.Accuracy)
	case FieldLoss:
		return fmt.Sprintf("%.4f", e.Loss)
	default:
		return fmt.Sprint(e.Value(f))
	}
}

func (e Experiment) String() string {
	return fmt.Sprintf("experiment %d: %s hidden=%d dropout=%s accuracy=%.4f loss=%.4f",
		e.ID, e.Architecture, e.Hidden, e.Format(FieldDropout), e.Accuracy, e.Loss)
}

// less orders by the given column. Text columns compare case-insensitively.
func less(a, b Experiment, f Field) bool {
	switch f {
	case FieldID:
		return a.ID < b.ID
	case FieldHidden:
		return a.Hidden < b.Hidden
	case FieldDropout:
		return a.Dropout < b.Dropout
	case FieldAccuracy:
		return a.Accuracy < b.Accuracy
	case FieldLoss:
		return a.Loss < b.Loss
	default:
		return strings.ToLower(a.Format(f)) < strings.ToLower(b.Format(f))
	}
}
