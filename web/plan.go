package web

import (
	"fmt"
	"github.com/jnb666/trafficsigns/expt"
	"go.uber.org/zap"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"sync"
)

type PlanPage struct {
	*Templates
	conf   expt.Config
	name   string
	ledger *Ledger
	sync.Mutex
}

type Field struct {
	Name  string
	Value string
	Error string
}

type planData struct {
	*Templates
	Fields       []Field
	Architecture string
	Runs         int
	Planned      []expt.Experiment
	Rows         [][]string
	Headings     []string
	Error        string
	Saved        bool
}

// Base data for handler functions to plan a hyperparameter sweep from a base config saved as name.
func NewPlanPage(t *Templates, ledger *Ledger, conf expt.Config, name string) *PlanPage {
	p := &PlanPage{Templates: t, conf: conf, name: name, ledger: ledger}
	p.AddOption(Link{Name: "plan", Url: "/plan", Submit: true})
	return p
}

// Handler function for the plan template. Each field takes a comma separated list of values; POST
// generates one planned row per combination.
func (p *PlanPage) Base() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		p.Lock()
		defer p.Unlock()
		d := &planData{Templates: p.Clone().Select("/plan"), Runs: 1}
		d.Heading = template.HTML("plan sweep: " + template.HTMLEscapeString(p.conf.Name))
		d.Fields = getFields(p.conf)
		d.Architecture = p.conf.Architecture()
		for _, f := range expt.Fields {
			d.Headings = append(d.Headings, f.Heading())
		}
		if r.Method == http.MethodPost {
			if err := r.ParseForm(); err != nil {
				p.logError(w, err)
				return
			}
			p.plan(r, d)
		}
		p.Exec(w, "plan", d)
	}
}

func (p *PlanPage) plan(r *http.Request, d *planData) {
	var params []expt.TuneParams
	base := p.conf
	haveErrors := false
	for i, fld := range d.Fields {
		val := strings.TrimSpace(r.Form.Get(fld.Name))
		d.Fields[i].Value = val
		if val == "" {
			continue
		}
		tp, err := expt.ParseTune(fld.Name + "=" + val)
		if err == nil {
			// validate every value against the field type
			for _, v := range tp.Values {
				if _, err = base.SetString(fld.Name, v); err != nil {
					break
				}
			}
		}
		if err != nil {
			d.Fields[i].Error = "invalid syntax"
			haveErrors = true
			continue
		}
		if len(tp.Values) == 1 {
			base, _ = base.SetString(fld.Name, tp.Values[0])
		} else {
			params = append(params, tp)
		}
	}
	if n, err := strconv.Atoi(r.Form.Get("runs")); err == nil && n > 0 {
		d.Runs = n
	}
	if haveErrors {
		return
	}
	configs, err := expt.Plan(base, params, d.Runs)
	if err != nil {
		d.Error = err.Error()
		return
	}
	var rep *expt.Report
	if reports := p.ledger.Reports(); len(reports) > 0 {
		rep = reports[0]
	}
	d.Planned = expt.Pending(rep, configs)
	for _, e := range d.Planned {
		row := make([]string, len(expt.Fields))
		for i, f := range expt.Fields {
			row[i] = e.Format(f)
		}
		d.Rows = append(d.Rows, row)
	}
	d.Architecture = base.Architecture()
	p.log.Info("planned sweep", zap.Int("runs", len(configs)), zap.Stringers("params", params))
	if r.Form.Get("save") != "" {
		if err := base.Save(p.name); err != nil {
			d.Error = fmt.Sprintf("save %s: %v", p.name, err)
			return
		}
		p.conf = base
		d.Saved = true
	}
}

func getFields(conf expt.Config) []Field {
	var flds []Field
	for _, key := range conf.Fields() {
		flds = append(flds, Field{Name: key, Value: fmt.Sprint(conf.Get(key))})
	}
	return flds
}
