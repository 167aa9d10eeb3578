package web

import (
	"github.com/jnb666/trafficsigns/expt"
	"go.uber.org/multierr"
	"html/template"
	"net/http"
	"strconv"
)

type DiffPage struct {
	*Templates
	ledger *Ledger
}

type diffData struct {
	*Templates
	A, B    int
	Docs    []Link
	TitleA  string
	TitleB  string
	Diffs   []expt.Difference
	Text    string
	Enough  bool
	Compare bool
}

// Base data for handler function to compare two result tables
func NewDiffPage(t *Templates, ledger *Ledger) *DiffPage {
	return &DiffPage{Templates: t, ledger: ledger}
}

// Handler function for the diff template. Query parameters a and b select the reports, default first two.
func (p *DiffPage) Base() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		reports := p.ledger.Reports()
		d := &diffData{Templates: p.Clone().Select("/diff"), A: 0, B: 1}
		d.Heading = template.HTML("compare results")
		if v, err := strconv.Atoi(r.FormValue("a")); err == nil {
			d.A = v
		}
		if v, err := strconv.Atoi(r.FormValue("b")); err == nil {
			d.B = v
		}
		for i, rep := range reports {
			d.Docs = append(d.Docs, Link{Name: rep.Name(), Url: strconv.Itoa(i)})
		}
		d.Enough = len(reports) >= 2
		if d.A >= 0 && d.A < len(reports) && d.B >= 0 && d.B < len(reports) && d.A != d.B {
			a, b := reports[d.A], reports[d.B]
			d.Compare = true
			d.TitleA, d.TitleB = a.Name(), b.Name()
			d.Diffs = expt.Compare(a, b)
			d.Text = expt.Diff(a, b)
		}
		p.Exec(w, "diff", d)
	}
}

func splitErrors(err error) []string {
	var list []string
	for _, e := range multierr.Errors(err) {
		list = append(list, e.Error())
	}
	return list
}
