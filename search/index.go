package search

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/berdachuk/medexpertmatch/core"
	"github.com/berdachuk/medexpertmatch/storage"
)

const (
	DefaultK1            = 1.2
	DefaultB             = 0.75
	DefaultVerbatimBoost = 0.3
)

type document struct {
	terms  map[string]int
	length int
}

// Index is a BM25 keyword index over doctor documents. It is safe for
// concurrent use; writes take an exclusive lock.
type Index struct {
	mu       sync.RWMutex
	docs     map[string]*document
	df       map[string]int
	totalLen int

	k1      float64
	b       float64
	boost   float64
	monitor Monitor
	logger  *slog.Logger
}

// Option configures an Index.
type Option func(*Index) error

// WithBM25 sets the term saturation (k1 >= 0) and length normalization (0 <= b <= 1).
func WithBM25(k1, b float64) Option {
	return func(ix *Index) error {
		if k1 < 0 || b < 0 || b > 1 || math.IsNaN(k1) || math.IsNaN(b) {
			return fmt.Errorf("%w: k1=%v b=%v", ErrInvalidParameter, k1, b)
		}
		ix.k1, ix.b = k1, b
		return nil
	}
}

// WithVerbatimBoost sets the bonus for documents containing all query terms.
func WithVerbatimBoost(boost float64) Option {
	return func(ix *Index) error {
		if boost < 0 || math.IsNaN(boost) {
			return fmt.Errorf("%w: boost=%v", ErrInvalidParameter, boost)
		}
		ix.boost = boost
		return nil
	}
}

func WithMonitor(m Monitor) Option {
	return func(ix *Index) error {
		if m == nil {
			m = &noopMonitor{}
		}
		ix.monitor = m
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(ix *Index) error {
		if logger == nil {
			logger = slog.Default()
		}
		ix.logger = logger
		return nil
	}
}

// NewIndex creates an empty index.
func NewIndex(opts ...Option) (*Index, error) {
	ix := &Index{
		docs:    make(map[string]*document),
		df:      make(map[string]int),
		k1:      DefaultK1,
		b:       DefaultB,
		boost:   DefaultVerbatimBoost,
		monitor: &noopMonitor{},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(ix); err != nil {
			return nil, err
		}
	}
	ix.logger = ix.logger.With("component", "keyword-index")
	return ix, nil
}

// AddText appends text to a doctor's document.
func (ix *Index) AddText(doctorID, text string) {
	tokens := tokenizeAndFilter(text)
	if len(tokens) == 0 {
		return
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	doc, ok := ix.docs[doctorID]
	if !ok {
		doc = &document{terms: make(map[string]int)}
		ix.docs[doctorID] = doc
	}
	for _, t := range tokens {
		if doc.terms[t] == 0 {
			ix.df[t]++
		}
		doc.terms[t]++
	}
	doc.length += len(tokens)
	ix.totalLen += len(tokens)
}

// AddDoctor indexes a doctor's specialties and certifications.
func (ix *Index) AddDoctor(d *core.Doctor) {
	for _, s := range d.Specialties {
		ix.AddText(d.ID, s)
	}
	for _, c := range d.Certifications {
		ix.AddText(d.ID, c)
	}
}

// AddTreatedCase indexes the text and codes of a case the doctor handled.
func (ix *Index) AddTreatedCase(doctorID string, c *core.Case) {
	ix.AddText(doctorID, c.SearchText())
	for _, code := range c.ICD10Codes {
		ix.AddText(doctorID, code)
	}
}

// Len returns the number of indexed doctors.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.docs)
}

// Load indexes every doctor and every case referenced by experience records.
func Load(ctx context.Context, repos *storage.Repositories, opts ...Option) (*Index, error) {
	if repos == nil || repos.Doctors == nil {
		return nil, ErrDoctorRepositoryRequired
	}
	ix, err := NewIndex(opts...)
	if err != nil {
		return nil, err
	}

	doctors, err := repos.Doctors.ListDoctors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list doctors: %w", err)
	}
	for _, d := range doctors {
		ix.AddDoctor(d)
	}

	if repos.Experiences == nil || repos.Cases == nil {
		return ix, nil
	}
	records, err := repos.Experiences.ListExperiences(ctx)
	if err != nil {
		return nil, fmt.Errorf("list experience: %w", err)
	}
	cases, err := repos.Cases.ListCases(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	byID := make(map[string]*core.Case, len(cases))
	for _, c := range cases {
		byID[core.NormalizeCaseID(c.ID)] = c
	}
	for _, rec := range records {
		if c, ok := byID[core.NormalizeCaseID(rec.CaseID)]; ok {
			ix.AddTreatedCase(rec.DoctorID, c)
		}
	}
	ix.logger.Info("keyword index loaded", "doctors", ix.Len(), "records", len(records))
	return ix, nil
}

// Scores returns the raw BM25 score of the case text against each doctor
// that has a document. Unindexed doctors are omitted.
func (ix *Index) Scores(ctx context.Context, c *core.Case, doctorIDs []string) (map[string]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	terms := uniqueTerms(tokenizeAndFilter(c.SearchText() + " " + c.RequiredSpecialty))
	ix.monitor.Start(c.ID, terms)

	out := make(map[string]float64, len(doctorIDs))
	if len(terms) == 0 {
		ix.monitor.Finish(c.ID, out)
		return out, nil
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	n := float64(len(ix.docs))
	if n == 0 {
		ix.monitor.Finish(c.ID, out)
		return out, nil
	}
	avgLen := float64(ix.totalLen) / n

	for _, id := range doctorIDs {
		doc, ok := ix.docs[id]
		if !ok {
			continue
		}
		var score float64
		for _, t := range terms {
			tf := float64(doc.terms[t])
			if tf == 0 {
				continue
			}
			df := float64(ix.df[t])
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			norm := 1 - ix.b + ix.b*float64(doc.length)/avgLen
			score += idf * tf * (ix.k1 + 1) / (tf + ix.k1*norm)
		}
		if containsAllTerms(doc.terms, terms) {
			score += ix.boost
			ix.monitor.VerbatimHit(c.ID, id)
		}
		out[id] = score
	}
	ix.monitor.Finish(c.ID, out)
	return out, nil
}
