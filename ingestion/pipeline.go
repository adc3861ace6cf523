package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/berdachuk/medexpertmatch/ai"
	"github.com/berdachuk/medexpertmatch/core"
	"github.com/berdachuk/medexpertmatch/storage"
)

// DefaultBatchSize is the number of cases enriched per worker task.
const DefaultBatchSize = 50

// Pipeline orchestrates the ingestion and enrichment of medical cases.
type Pipeline struct {
	cases      storage.CaseRepository
	vectors    storage.VectorIndex
	embedder   ai.Embedder
	analyzer   ai.CaseAnalyzer
	describer  Describer
	pool       *ants.Pool
	batchSize  int
	onError    func(caseIDs []string, err error)
	processors []processor
	pending    sync.WaitGroup
	released   atomic.Bool
	logger     *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent processing.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if p.pool != nil {
			p.pool.Release()
		}
		p.pool = pool
		return nil
	}
}

// WithBatchSize sets how many cases one worker task enriches.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		p.batchSize = size
		return nil
	}
}

// WithEmbedder enables case embeddings. The vector index comes from the
// repositories passed to NewPipeline.
func WithEmbedder(e ai.Embedder) Option {
	return func(p *Pipeline) error {
		p.embedder = e
		return nil
	}
}

// WithAnalyzer enables inference of missing triage fields.
func WithAnalyzer(a ai.CaseAnalyzer) Option {
	return func(p *Pipeline) error {
		p.analyzer = a
		return nil
	}
}

// WithDescriber sets how abstracts are written for cases without one.
func WithDescriber(d Describer) Option {
	return func(p *Pipeline) error {
		p.describer = d
		return nil
	}
}

// WithErrorHandler is called with the IDs of a batch whose enrichment failed.
func WithErrorHandler(fn func(caseIDs []string, err error)) Option {
	return func(p *Pipeline) error {
		p.onError = fn
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline over repos.
func NewPipeline(repos *storage.Repositories, opts ...Option) (*Pipeline, error) {
	if repos == nil || repos.Cases == nil {
		return nil, ErrCaseRepositoryRequired
	}

	p := &Pipeline{
		cases:     repos.Cases,
		vectors:   repos.Vectors,
		batchSize: DefaultBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			p.Release()
			return nil, err
		}
	}
	if p.embedder != nil && p.vectors == nil {
		p.Release()
		return nil, ErrVectorIndexRequired
	}
	if p.pool == nil {
		pool, err := ants.NewPool(max(runtime.NumCPU()/2, 1))
		if err != nil {
			return nil, err
		}
		p.pool = pool
	}
	p.logger = p.logger.With("component", "ingestion")

	if p.analyzer != nil || p.describer != nil {
		p.processors = append(p.processors, &analysisProcessor{
			cases:     p.cases,
			analyzer:  p.analyzer,
			describer: p.describer,
			logger:    p.logger.With("processor", "analysis"),
		})
	}
	if p.embedder != nil {
		p.processors = append(p.processors, &embeddingProcessor{
			vectors:  p.vectors,
			embedder: p.embedder,
			logger:   p.logger.With("processor", "embeddings"),
		})
	}
	return p, nil
}

// IngestOptions holds optional parameters for ingestion.
type IngestOptions struct {
	// SubmittedAt is used for cases without a submission time.
	// Default is the current time.
	SubmittedAt time.Time
}

// Ingest validates and stores cases, then enriches them asynchronously.
// Case IDs are normalized. Nothing is stored when any case is invalid.
func (p *Pipeline) Ingest(ctx context.Context, cases []*core.Case, opts *IngestOptions) error {
	if p.released.Load() {
		return ErrPipelineReleased
	}
	if opts == nil {
		opts = &IngestOptions{}
	}
	submitted := opts.SubmittedAt
	if submitted.IsZero() {
		submitted = time.Now().UTC()
	}

	for i, c := range cases {
		if err := core.ValidateCase(c); err != nil {
			return fmt.Errorf("case %d: %w", i, err)
		}
	}
	stored := make([]*core.Case, len(cases))
	for i, c := range cases {
		cp := *c
		cp.ID = core.NormalizeCaseID(c.ID)
		if cp.SubmittedAt.IsZero() {
			cp.SubmittedAt = submitted
		}
		stored[i] = &cp
	}
	if len(stored) == 0 {
		return nil
	}
	if err := p.cases.PutCases(ctx, stored...); err != nil {
		return err
	}
	p.logger.Info("cases stored", "cases", len(stored))

	if len(p.processors) == 0 {
		return nil
	}
	taskCtx := context.WithoutCancel(ctx)
	for start := 0; start < len(stored); start += p.batchSize {
		batch := stored[start:min(start+p.batchSize, len(stored))]
		p.pending.Add(1)
		if err := p.pool.Submit(func() {
			defer p.pending.Done()
			p.enrich(taskCtx, batch)
		}); err != nil {
			p.pending.Done()
			p.fail(batch, err)
		}
	}
	return nil
}

func (p *Pipeline) enrich(ctx context.Context, batch []*core.Case) {
	for _, proc := range p.processors {
		if err := proc.process(ctx, batch); err != nil {
			p.fail(batch, err)
		}
	}
}

func (p *Pipeline) fail(batch []*core.Case, err error) {
	ids := make([]string, len(batch))
	for i, c := range batch {
		ids[i] = c.ID
	}
	p.logger.Error("error enriching cases", "cases", len(ids), "err", err)
	if p.onError != nil {
		p.onError(ids, err)
	}
}

// Wait blocks until every submitted batch has been processed.
func (p *Pipeline) Wait() {
	p.pending.Wait()
}

// Release waits for pending work and releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.released.Swap(true) {
		return
	}
	p.pending.Wait()
	if p.pool != nil {
		p.pool.Release()
	}
}
