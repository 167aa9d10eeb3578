package expt

import (
	"fmt"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/floats"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var (
	claimRegexp    = regexp.MustCompile(`(?i)\bexperiment\s*(?:(?:#|no\.?|number)\s*)?(\d+)`)
	accuracyRegexp = regexp.MustCompile(`(?i)\baccuracy\D{0,24}?(\d+(?:\.\d+)?)\s*(%?)`)
	lossRegexp     = regexp.MustCompile(`(?i)\bloss\D{0,24}?(\d+(?:\.\d+)?)\s*(%?)`)
)

// Report is a results document: prose around a table of experiments.
type Report struct {
	Title       string
	Intro       string
	Links       []string
	Columns     []Field
	Headers     []string
	Experiments []Experiment
	Conclusion  string
	Source      string
	Digest      string
}

// Best holds the rows with the highest accuracy and the lowest loss.
type Best struct {
	Accuracy Experiment
	Loss     Experiment
}

// Consistent is true when one experiment has both the best accuracy and the best loss.
func (b Best) Consistent() bool {
	return b.Accuracy.ID == b.Loss.ID
}

// Claim is the best experiment named in the conclusion, with any metrics quoted alongside it.
// The tolerances are half a unit in the last digit quoted, so "96.2%" matches 0.9619.
type Claim struct {
	ID          int
	Accuracy    float64
	Loss        float64
	AccuracyTol float64
	LossTol     float64
	HasAccuracy bool
	HasLoss     bool
}

// Name returns the title if set, else the source path.
func (r *Report) Name() string {
	if r.Title != "" {
		return r.Title
	}
	return r.Source
}

// Validate checks every row plus the table as a whole: ids must be unique and run 1..n in table order.
func (r *Report) Validate() error {
	if len(r.Experiments) == 0 {
		return ErrEmpty
	}
	var err error
	seen := make(map[int]bool)
	for i, e := range r.Experiments {
		err = multierr.Append(err, e.Validate())
		if seen[e.ID] {
			err = multierr.Append(err, fmt.Errorf("row %d: %w: %d", i+1, ErrDuplicateID, e.ID))
		}
		seen[e.ID] = true
		if e.ID != i+1 {
			err = multierr.Append(err, fmt.Errorf("row %d: %w: id is %d", i+1, ErrOrder, e.ID))
		}
	}
	return err
}

// Get returns the experiment with the given id.
func (r *Report) Get(id int) (Experiment, error) {
	for _, e := range r.Experiments {
		if e.ID == id {
			return e, nil
		}
	}
	return Experiment{}, fmt.Errorf("%w: %d", ErrUnknownID, id)
}

// Values returns one numeric column as a float slice.
func (r *Report) Values(f Field) []float64 {
	vals := make([]float64, len(r.Experiments))
	for i, e := range r.Experiments {
		switch v := e.Value(f).(type) {
		case int:
			vals[i] = float64(v)
		case float64:
			vals[i] = v
		default:
			vals[i] = math.NaN()
		}
	}
	return vals
}

// Best finds the maximum accuracy and minimum loss rows. Ties go to the earliest row.
func (r *Report) Best() (Best, error) {
	if len(r.Experiments) == 0 {
		return Best{}, ErrEmpty
	}
	acc := floats.MaxIdx(r.Values(FieldAccuracy))
	loss := floats.MinIdx(r.Values(FieldLoss))
	return Best{Accuracy: r.Experiments[acc], Loss: r.Experiments[loss]}, nil
}

// Claim extracts the experiment the conclusion names as best.
func (r *Report) Claim() (Claim, bool) {
	m := claimRegexp.FindStringSubmatch(r.Conclusion)
	if m == nil {
		return Claim{}, false
	}
	c := Claim{}
	c.ID, _ = strconv.Atoi(m[1])
	rest := r.Conclusion[strings.Index(r.Conclusion, m[0]):]
	c.Accuracy, c.AccuracyTol, c.HasAccuracy = quoted(accuracyRegexp, rest)
	c.Loss, c.LossTol, c.HasLoss = quoted(lossRegexp, rest)
	return c, true
}

// quoted returns the first matching value and the rounding error implied by its precision.
func quoted(re *regexp.Regexp, text string) (x, tol float64, ok bool) {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, false
	}
	x, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, 0, false
	}
	decimals := 0
	if _, frac, found := strings.Cut(m[1], "."); found {
		decimals = len(frac)
	}
	tol = 0.5*math.Pow(10, -float64(decimals)) + 1e-9
	if m[2] == "%" {
		x /= 100
		tol /= 100
	}
	return x, tol, true
}

// CheckClaim verifies that the experiment named in the conclusion has both the highest accuracy and the
// lowest loss, and that any metrics quoted with it agree with the table.
func (r *Report) CheckClaim() error {
	c, ok := r.Claim()
	if !ok {
		return ErrNoClaim
	}
	e, err := r.Get(c.ID)
	if err != nil {
		return err
	}
	best, err := r.Best()
	if err != nil {
		return err
	}
	var errs error
	if e.Accuracy < best.Accuracy.Accuracy {
		errs = multierr.Append(errs, fmt.Errorf("%w: experiment %d accuracy %.4f < experiment %d accuracy %.4f",
			ErrClaimMismatch, c.ID, e.Accuracy, best.Accuracy.ID, best.Accuracy.Accuracy))
	}
	if e.Loss > best.Loss.Loss {
		errs = multierr.Append(errs, fmt.Errorf("%w: experiment %d loss %.4f > experiment %d loss %.4f",
			ErrClaimMismatch, c.ID, e.Loss, best.Loss.ID, best.Loss.Loss))
	}
	if c.HasAccuracy && math.Abs(c.Accuracy-e.Accuracy) > c.AccuracyTol {
		errs = multierr.Append(errs, fmt.Errorf("%w: quoted accuracy %.4f but table has %.4f",
			ErrClaimMismatch, c.Accuracy, e.Accuracy))
	}
	if c.HasLoss && math.Abs(c.Loss-e.Loss) > c.LossTol {
		errs = multierr.Append(errs, fmt.Errorf("%w: quoted loss %.4f but table has %.4f",
			ErrClaimMismatch, c.Loss, e.Loss))
	}
	return errs
}

// Sorted returns a copy of the experiments ordered by the given column.
func (r *Report) Sorted(f Field, desc bool) []Experiment {
	rows := append([]Experiment{}, r.Experiments...)
	sort.SliceStable(rows, func(i, j int) bool {
		if desc {
			return less(rows[j], rows[i], f)
		}
		return less(rows[i], rows[j], f)
	})
	return rows
}

// NextID returns the id following the last experiment.
func (r *Report) NextID() int {
	id := 0
	for _, e := range r.Experiments {
		if e.ID > id {
			id = e.ID
		}
	}
	return id + 1
}
