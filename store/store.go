// Package store keeps a persistent ledger of imported results documents in SQLite.
package store

import (
	"context"
	"errors"
	"fmt"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/jnb666/trafficsigns/expt"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"sort"
	"strings"
	"time"
)

var (
	ErrNotFound = errors.New("document not found")
	ErrNoDigest = errors.New("report has no digest")
)

// Document is one imported results file, keyed by the digest of its content.
type Document struct {
	Digest     string `gorm:"primaryKey;type:text"`
	Source     string
	Title      string
	Intro      string
	Conclusion string
	Links      string
	Columns    string
	Headers    string
	Batch      string    `gorm:"index"`
	ImportedAt time.Time `gorm:"index"`
	Results    []Result  `gorm:"foreignKey:Digest;references:Digest;constraint:OnDelete:CASCADE"`
}

// Result is one table row of a document.
type Result struct {
	ID           uint   `gorm:"primaryKey"`
	Digest       string `gorm:"index;not null"`
	Position     int
	Experiment   int `gorm:"index"`
	Architecture string
	Hidden       int
	Dropout      float64
	Accuracy     float64
	Loss         float64
	Remarks      string
}

// Entry is one experiment as recorded in a particular document.
type Entry struct {
	Document   Document
	Experiment expt.Experiment
}

// Imported reports the outcome of importing one document.
type Imported struct {
	Document
	Created bool
}

// Store wraps the database connection.
type Store struct {
	db  *gorm.DB
	log *zap.Logger
}

// Open the database at path, creating the tables if needed.
func Open(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err = db.AutoMigrate(&Document{}, &Result{}); err != nil {
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	log.Debug("database connection established", zap.String("path", path))
	return &Store{db: db, log: log}, nil
}

// Close the underlying connection.
func (s *Store) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}

// Import a single report in a new batch.
func (s *Store) Import(ctx context.Context, r *expt.Report) (Imported, error) {
	res, err := s.ImportAll(ctx, []*expt.Report{r})
	if err != nil {
		return Imported{}, err
	}
	return res[0], nil
}

// ImportAll adds the reports under a common batch id. A report whose digest is already present is left
// unchanged and returned with Created false.
func (s *Store) ImportAll(ctx context.Context, reports []*expt.Report) ([]Imported, error) {
	batch := uuid.NewString()
	now := time.Now().UTC()
	var res []Imported
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, r := range reports {
			if r.Digest == "" {
				return fmt.Errorf("%s: %w", r.Name(), ErrNoDigest)
			}
			var doc Document
			err := tx.First(&doc, "digest = ?", r.Digest).Error
			if err == nil {
				res = append(res, Imported{Document: doc})
				continue
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			doc = newDocument(r, batch, now)
			if err = tx.Create(&doc).Error; err != nil {
				return fmt.Errorf("%s: %w", r.Name(), err)
			}
			res = append(res, Imported{Document: doc, Created: true})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, doc := range res {
		s.log.Info("import", zap.String("source", doc.Source), zap.String("digest", doc.Digest),
			zap.Bool("created", doc.Created), zap.String("batch", doc.Batch))
	}
	return res, nil
}

func newDocument(r *expt.Report, batch string, now time.Time) Document {
	cols := make([]string, len(r.Columns))
	for i, f := range r.Columns {
		cols[i] = f.String()
	}
	doc := Document{
		Digest:     r.Digest,
		Source:     r.Source,
		Title:      r.Title,
		Intro:      r.Intro,
		Conclusion: r.Conclusion,
		Links:      strings.Join(r.Links, "\n"),
		Columns:    strings.Join(cols, "\n"),
		Headers:    strings.Join(r.Headers, "\n"),
		Batch:      batch,
		ImportedAt: now,
	}
	for i, e := range r.Experiments {
		doc.Results = append(doc.Results, Result{
			Digest:       r.Digest,
			Position:     i + 1,
			Experiment:   e.ID,
			Architecture: e.Architecture,
			Hidden:       e.Hidden,
			Dropout:      e.Dropout,
			Accuracy:     e.Accuracy,
			Loss:         e.Loss,
			Remarks:      e.Remarks,
		})
	}
	return doc
}

// Documents lists all imported documents, oldest first.
func (s *Store) Documents(ctx context.Context) ([]Document, error) {
	var docs []Document
	err := s.db.WithContext(ctx).Order("imported_at, source").Find(&docs).Error
	return docs, err
}

// Results returns the rows recorded for one document in table order.
func (s *Store) Results(ctx context.Context, digest string) ([]Result, error) {
	var results []Result
	err := s.db.WithContext(ctx).Where("digest = ?", digest).Order("position").Find(&results).Error
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, digest)
	}
	return results, nil
}

// Report loads a document back into a report.
func (s *Store) Report(ctx context.Context, digest string) (*expt.Report, error) {
	var doc Document
	err := s.db.WithContext(ctx).Preload("Results", func(db *gorm.DB) *gorm.DB {
		return db.Order("position")
	}).First(&doc, "digest = ?", digest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, digest)
	}
	if err != nil {
		return nil, err
	}
	return doc.Report()
}

// Report converts the stored document back to a report.
func (d Document) Report() (*expt.Report, error) {
	r := &expt.Report{
		Title:      d.Title,
		Intro:      d.Intro,
		Conclusion: d.Conclusion,
		Links:      split(d.Links),
		Headers:    split(d.Headers),
		Source:     d.Source,
		Digest:     d.Digest,
	}
	for _, name := range split(d.Columns) {
		f, err := expt.ParseField(name)
		if err != nil {
			return nil, err
		}
		r.Columns = append(r.Columns, f)
	}
	for _, res := range d.Results {
		r.Experiments = append(r.Experiments, res.Record())
	}
	return r, nil
}

// Record converts the row back to an experiment record.
func (r Result) Record() expt.Experiment {
	return expt.Experiment{
		ID:           r.Experiment,
		Architecture: r.Architecture,
		Hidden:       r.Hidden,
		Dropout:      r.Dropout,
		Accuracy:     r.Accuracy,
		Loss:         r.Loss,
		Remarks:      r.Remarks,
	}
}

// History returns the given experiment as recorded by each document, oldest import first.
func (s *Store) History(ctx context.Context, id int) ([]Entry, error) {
	var results []Result
	db := s.db.WithContext(ctx)
	if err := db.Where("experiment = ?", id).Find(&results).Error; err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %d", expt.ErrUnknownID, id)
	}
	digests := make([]string, len(results))
	for i, r := range results {
		digests[i] = r.Digest
	}
	var docs []Document
	if err := db.Where("digest IN ?", digests).Find(&docs).Error; err != nil {
		return nil, err
	}
	byDigest := make(map[string]Document)
	for _, d := range docs {
		byDigest[d.Digest] = d
	}
	entries := make([]Entry, len(results))
	for i, r := range results {
		entries[i] = Entry{Document: byDigest[r.Digest], Experiment: r.Record()}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Document.ImportedAt.Before(entries[j].Document.ImportedAt)
	})
	return entries, nil
}

// Delete removes a document and its results.
func (s *Store) Delete(ctx context.Context, digest string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("digest = ?", digest).Delete(&Result{}).Error; err != nil {
			return err
		}
		res := tx.Where("digest = ?", digest).Delete(&Document{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, digest)
		}
		return nil
	})
}

func split(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
