package web

import (
	"bytes"
	"fmt"
	"github.com/gorilla/mux"
	"github.com/jnb666/trafficsigns/expt"
	"github.com/jnb666/trafficsigns/stats"
	"go.uber.org/zap"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/vgsvg"
	"html/template"
	"math"
	"net/http"
	"net/url"
	"strconv"
)

const (
	plotWidth  = 480
	plotHeight = 300
)

type ResultsPage struct {
	*Templates
	ledger *Ledger
}

// Data for one rendering of the results template.
type resultsData struct {
	*Templates
	Doc      int
	Docs     []Link
	Report   *expt.Report
	Columns  []Column
	Rows     [][]string
	BestID   int
	Summary  stats.Summary
	Means    []template.HTML
	Loaded   string
	Problems []string
	Accuracy template.HTML
	Loss     template.HTML
}

type Column struct {
	Name    string
	Heading string
	Numeric bool
	Url     string
	Sorted  string
}

// Base data for handler functions to view the results tables
func NewResultsPage(t *Templates, ledger *Ledger) *ResultsPage {
	return &ResultsPage{Templates: t, ledger: ledger}
}

// Handler function for the results template. The sort order is kept in the session.
func (p *ResultsPage) Base() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, _ := strconv.Atoi(mux.Vars(r)["doc"])
		rep, ok := p.ledger.Report(doc)
		if !ok {
			http.NotFound(w, r)
			return
		}
		sess := p.session(r)
		if field := r.FormValue("sort"); field != "" {
			if _, err := expt.ParseField(field); err == nil {
				sess.Values["sort"] = field
				sess.Values["desc"] = r.FormValue("desc") == "1"
				if err := sess.Save(r, w); err != nil {
					p.log.Warn("session save", zap.Error(err))
				}
			}
		}
		sortField, _ := sess.Values["sort"].(string)
		desc, _ := sess.Values["desc"].(bool)

		base := "/results/" + strconv.Itoa(doc)
		d := &resultsData{Templates: p.Clone().Select("/results"), Doc: doc, Report: rep}
		d.Heading = template.HTML(template.HTMLEscapeString(rep.Name()))
		for i, other := range p.ledger.Reports() {
			d.Docs = append(d.Docs, Link{Name: other.Name(), Url: "/results/" + strconv.Itoa(i), Selected: i == doc})
		}
		rows := rep.Experiments
		if f, err := expt.ParseField(sortField); err == nil {
			rows = rep.Sorted(f, desc)
		}
		for _, f := range expt.Fields {
			col := Column{Name: f.String(), Heading: f.Heading(), Numeric: f.Numeric()}
			q := url.Values{"sort": {f.String()}}
			if f.String() == sortField {
				col.Sorted = "asc"
				if desc {
					col.Sorted = "desc"
				} else {
					q.Set("desc", "1")
				}
			}
			col.Url = base + "?" + q.Encode()
			d.Columns = append(d.Columns, col)
		}
		for _, e := range rows {
			row := make([]string, len(expt.Fields))
			for i, f := range expt.Fields {
				row[i] = e.Format(f)
			}
			d.Rows = append(d.Rows, row)
		}
		d.Problems = problems(rep)
		if best, err := rep.Best(); err == nil && best.Consistent() {
			d.BestID = best.Accuracy.ID
		}
		d.Summary, _ = stats.Summarize(rep.Experiments)
		for _, f := range expt.Fields {
			if f == expt.FieldAccuracy || f == expt.FieldLoss {
				d.Means = append(d.Means, stats.Of(rows, f).HTML())
			} else {
				d.Means = append(d.Means, "")
			}
		}
		d.Loaded = p.ledger.Loaded().Format("2006-01-02 15:04:05")
		var err error
		if d.Accuracy, err = metricPlot(rep, expt.FieldAccuracy, plotWidth, plotHeight); err != nil {
			p.logError(w, err)
			return
		}
		if d.Loss, err = metricPlot(rep, expt.FieldLoss, plotWidth, plotHeight); err != nil {
			p.logError(w, err)
			return
		}
		p.Exec(w, "results", d)
	}
}

// Handler function for a standalone SVG plot of one metric
func (p *ResultsPage) Plot() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		doc, _ := strconv.Atoi(vars["doc"])
		rep, ok := p.ledger.Report(doc)
		if !ok {
			http.NotFound(w, r)
			return
		}
		field, err := expt.ParseField(vars["metric"])
		if err != nil {
			http.NotFound(w, r)
			return
		}
		svg, err := metricPlot(rep, field, plotWidth, plotHeight)
		if err != nil {
			p.logError(w, err)
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Write([]byte(svg))
	}
}

// problems lists validation and claim failures as text.
func problems(rep *expt.Report) []string {
	var list []string
	if err := rep.Validate(); err != nil {
		list = append(list, splitErrors(err)...)
	}
	if err := rep.CheckClaim(); err != nil {
		list = append(list, splitErrors(err)...)
	}
	return list
}

// metricPlot draws the metric against experiment id as an inline SVG.
func metricPlot(rep *expt.Report, field expt.Field, width, height int) (template.HTML, error) {
	plt := newPlot()
	plt.Title.Text = field.Heading()
	plt.X.Label.Text = "experiment"
	ix := 0
	if field == expt.FieldLoss {
		ix = 1
	}
	line, points, err := newLinePlot(rep.Experiments, field, ix)
	if err != nil {
		return "", err
	}
	plt.Add(line, points)
	plt.Legend.Add(field.String(), line)
	return writePlot(plt, width, height)
}

func newPlot() *plot.Plot {
	p := plot.New()
	p.X.Padding, p.Y.Padding = 0, 0
	p.X.Tick.Label.Font.Size = vg.Points(10)
	p.Y.Tick.Label.Font.Size = vg.Points(10)
	p.Legend.Top = true
	p.Legend.TextStyle.Font.Size = vg.Points(12)
	p.Add(plotter.NewGrid())
	return p
}

func writePlot(p *plot.Plot, w, h int) (template.HTML, error) {
	var buf bytes.Buffer
	writer, err := p.WriterTo(vg.Inch*vg.Length(w)/vgsvg.DPI, vg.Inch*vg.Length(h)/vgsvg.DPI, "svg")
	if err != nil {
		return "", fmt.Errorf("error writing plot: %w", err)
	}
	if _, err = writer.WriteTo(&buf); err != nil {
		return "", fmt.Errorf("error writing plot: %w", err)
	}
	return template.HTML(buf.String()), nil
}

func newLinePlot(rows []expt.Experiment, field expt.Field, ix int) (linePlot, *plotter.Scatter, error) {
	var pts plotter.XYs
	xmin, xmax := math.Inf(1), math.Inf(-1)
	ymin, ymax := math.Inf(1), math.Inf(-1)
	for _, e := range rows {
		y, _ := e.Value(field).(float64)
		pts = append(pts, plotter.XY{X: float64(e.ID), Y: y})
		xmin, xmax = math.Min(xmin, float64(e.ID)), math.Max(xmax, float64(e.ID))
		ymin, ymax = math.Min(ymin, y), math.Max(ymax, y)
	}
	if len(pts) == 0 {
		xmin, xmax, ymin, ymax = 0, 1, 0, 1
	}
	// pad the y range so the points are not drawn on the axes
	pad := math.Max((ymax-ymin)*0.1, 0.005)
	l, s, err := plotter.NewLinePoints(pts)
	if err != nil {
		return linePlot{}, nil, err
	}
	l.Width = 2
	l.Color = plotutil.Color(ix)
	s.GlyphStyle.Color = plotutil.Color(ix)
	s.GlyphStyle.Shape = plotutil.Shape(ix)
	return linePlot{Line: l, xmin: xmin, xmax: xmax, ymin: math.Max(0, ymin-pad), ymax: ymax + pad}, s, nil
}

// modified plotter.Line with a fixed scale
type linePlot struct {
	*plotter.Line
	xmin, xmax, ymin, ymax float64
}

func (l linePlot) DataRange() (xmin, xmax, ymin, ymax float64) {
	return l.xmin, l.xmax, l.ymin, l.ymax
}
