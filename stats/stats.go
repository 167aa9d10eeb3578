// Package stats summarises experiment metrics.
package stats

import (
	"fmt"
	"github.com/jnb666/trafficsigns/expt"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"html/template"
	"math"
	"sort"
)

// Average is a running mean and standard deviation of one metric, e.g. the accuracy recorded for an
// experiment by each imported report. See http://www.johndcook.com/blog/standard_deviation/
type Average struct {
	Count, Mean float64
	Var, StdDev float64
	oldM, oldV  float64
}

// Add includes another value.
func (s *Average) Add(x float64) {
	s.Count++
	if s.Count == 1 {
		s.oldM, s.Mean = x, x
		s.Var, s.oldV = 0, 0
		return
	}
	s.Mean = s.oldM + (x-s.oldM)/s.Count
	s.Var = s.oldV + (x-s.oldM)*(x-s.Mean)
	s.oldM, s.oldV = s.Mean, s.Var
	s.StdDev = math.Sqrt(s.Var / (s.Count - 1))
}

// Of returns the average of one field over the rows.
func Of(rows []expt.Experiment, field expt.Field) Average {
	var avg Average
	for _, e := range rows {
		if x, ok := e.Value(field).(float64); ok {
			avg.Add(x)
		}
	}
	return avg
}

// String formats the mean to the precision of the table, with the spread if it shows at that precision.
func (s Average) String() string {
	return s.format("±")
}

func (s Average) HTML() template.HTML {
	return template.HTML(s.format("&PlusMinus;"))
}

func (s Average) format(pm string) string {
	if s.Count == 0 {
		return "-"
	}
	if s.StdDev < 0.00005 {
		return fmt.Sprintf("%.4f", s.Mean)
	}
	return fmt.Sprintf("%.4f%s%.4f", s.Mean, pm, s.StdDev)
}

// Field summarises one metric column.
type Field struct {
	Min, Max     float64
	Mean, StdDev float64
	MinID, MaxID int
}

func (f Field) String() string {
	return fmt.Sprintf("min=%.4f (#%d) max=%.4f (#%d) mean=%.4f sd=%.4f", f.Min, f.MinID, f.Max, f.MaxID, f.Mean, f.StdDev)
}

// Summary of the accuracy and loss columns of a results table.
type Summary struct {
	Count    int
	Accuracy Field
	Loss     Field
}

// Summarize computes the summary over the rows, which must not be empty.
func Summarize(rows []expt.Experiment) (Summary, error) {
	if len(rows) == 0 {
		return Summary{}, expt.ErrEmpty
	}
	acc := make([]float64, len(rows))
	loss := make([]float64, len(rows))
	for i, e := range rows {
		acc[i], loss[i] = e.Accuracy, e.Loss
	}
	return Summary{
		Count:    len(rows),
		Accuracy: summarize(rows, acc),
		Loss:     summarize(rows, loss),
	}, nil
}

func summarize(rows []expt.Experiment, x []float64) Field {
	imin, imax := floats.MinIdx(x), floats.MaxIdx(x)
	f := Field{Min: x[imin], Max: x[imax], MinID: rows[imin].ID, MaxID: rows[imax].ID}
	if len(x) > 1 {
		f.Mean, f.StdDev = stat.MeanStdDev(x, nil)
	} else {
		f.Mean = x[0]
	}
	return f
}

// Rank returns the experiment ids best first: highest accuracy or lowest loss. Other fields rank
// in descending order. Equal values keep table order.
func Rank(rows []expt.Experiment, field expt.Field) []int {
	ix := make([]int, len(rows))
	for i := range ix {
		ix[i] = i
	}
	val := func(i int) float64 {
		switch v := rows[i].Value(field).(type) {
		case int:
			return float64(v)
		case float64:
			return v
		}
		return 0
	}
	sort.SliceStable(ix, func(i, j int) bool {
		if field == expt.FieldLoss {
			return val(ix[i]) < val(ix[j])
		}
		return val(ix[i]) > val(ix[j])
	})
	ids := make([]int, len(ix))
	for i, k := range ix {
		ids[i] = rows[k].ID
	}
	return ids
}
