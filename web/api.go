package web

import (
	"encoding/json"
	"github.com/jnb666/trafficsigns/expt"
	"github.com/jnb666/trafficsigns/stats"
	"net/http"
)

// JSON summary of one report.
type ReportInfo struct {
	Title       string            `json:"title"`
	Source      string            `json:"source"`
	Digest      string            `json:"digest"`
	Links       []string          `json:"links,omitempty"`
	Experiments []expt.Experiment `json:"experiments"`
	BestID      int               `json:"best_id,omitempty"`
	Summary     stats.Summary     `json:"summary"`
	Problems    []string          `json:"problems,omitempty"`
}

// Handler function returning all reports as JSON.
func (p *ResultsPage) API() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		var list []ReportInfo
		for _, rep := range p.ledger.Reports() {
			info := ReportInfo{
				Title:       rep.Title,
				Source:      rep.Source,
				Digest:      rep.Digest,
				Links:       rep.Links,
				Experiments: rep.Experiments,
				Problems:    problems(rep),
			}
			if best, err := rep.Best(); err == nil && best.Consistent() {
				info.BestID = best.Accuracy.ID
			}
			info.Summary, _ = stats.Summarize(rep.Experiments)
			list = append(list, info)
		}
		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(list); err != nil {
			p.logError(w, err)
		}
	}
}
