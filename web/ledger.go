// Package web has a browser interface for viewing, comparing and planning experiment results.
package web

import (
	"context"
	"github.com/jnb666/trafficsigns/expt"
	"github.com/jnb666/trafficsigns/report"
	"go.uber.org/zap"
	"sync"
	"time"
)

// Ledger holds the current parsed version of each report file.
type Ledger struct {
	paths   []string
	reports []*expt.Report
	loaded  time.Time
	log     *zap.Logger
	sync.Mutex
}

// Create a new ledger and load the reports
func NewLedger(ctx context.Context, paths []string, log *zap.Logger) (*Ledger, error) {
	l := &Ledger{paths: paths, log: log}
	if err := l.Reload(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

// Reload parses all of the files again. On error the previous reports are kept.
func (l *Ledger) Reload(ctx context.Context) error {
	reports, err := report.LoadAll(ctx, l.log, l.paths)
	if err != nil {
		l.log.Error("reload failed", zap.Error(err))
		return err
	}
	l.Lock()
	l.reports = reports
	l.loaded = time.Now()
	l.Unlock()
	l.log.Info("reports loaded", zap.Int("count", len(reports)))
	return nil
}

// Paths returns the report files.
func (l *Ledger) Paths() []string {
	return append([]string{}, l.paths...)
}

// Reports returns the current reports. They must not be modified.
func (l *Ledger) Reports() []*expt.Report {
	l.Lock()
	defer l.Unlock()
	return append([]*expt.Report{}, l.reports...)
}

// Report returns the report with index i.
func (l *Ledger) Report(i int) (*expt.Report, bool) {
	l.Lock()
	defer l.Unlock()
	if i < 0 || i >= len(l.reports) {
		return nil, false
	}
	return l.reports[i], true
}

// Loaded returns the time of the last successful reload.
func (l *Ledger) Loaded() time.Time {
	l.Lock()
	defer l.Unlock()
	return l.loaded
}
