package signals

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/errgroup"

	"github.com/berdachuk/medexpertmatch/core"
	"github.com/berdachuk/medexpertmatch/graph"
)

// Config bounds collection time and concurrency.
type Config struct {
	// RequestTimeout is the shared deadline of one Collect call.
	RequestTimeout time.Duration `yaml:"requestTimeout"`
	// Per-source timeouts, each capped by the shared deadline.
	EmbeddingTimeout  time.Duration `yaml:"embeddingTimeout"`
	GraphTimeout      time.Duration `yaml:"graphTimeout"`
	LexicalTimeout    time.Duration `yaml:"lexicalTimeout"`
	ExperienceTimeout time.Duration `yaml:"experienceTimeout"`
	// BatchSize is the number of candidates sent to a source per call.
	BatchSize int `yaml:"batchSize"`
}

// DefaultConfig returns a 10s request deadline, 3s per source and batches of 100.
func DefaultConfig() Config {
	return Config{
		RequestTimeout:    10 * time.Second,
		EmbeddingTimeout:  3 * time.Second,
		GraphTimeout:      3 * time.Second,
		LexicalTimeout:    3 * time.Second,
		ExperienceTimeout: 3 * time.Second,
		BatchSize:         100,
	}
}

func (c Config) timeout(k Kind) time.Duration {
	switch k {
	case KindEmbedding:
		return c.EmbeddingTimeout
	case KindGraph:
		return c.GraphTimeout
	case KindLexical:
		return c.LexicalTimeout
	case KindExperience:
		return c.ExperienceTimeout
	}
	return 0
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if c.EmbeddingTimeout <= 0 {
		c.EmbeddingTimeout = d.EmbeddingTimeout
	}
	if c.GraphTimeout <= 0 {
		c.GraphTimeout = d.GraphTimeout
	}
	if c.LexicalTimeout <= 0 {
		c.LexicalTimeout = d.LexicalTimeout
	}
	if c.ExperienceTimeout <= 0 {
		c.ExperienceTimeout = d.ExperienceTimeout
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	return c
}

// Observer is notified after every source call.
type Observer interface {
	ProviderCall(kind Kind, elapsed time.Duration, err error)
}

type noopObserver struct{}

func (noopObserver) ProviderCall(Kind, time.Duration, error) {}

// Collector fetches raw signals for a case from up to four sources in
// parallel. Source calls run on a bounded worker pool. A failing or slow
// source marks its signal unavailable; it never fails the collection.
type Collector struct {
	embedding  EmbeddingSource
	graph      GraphSource
	lexical    LexicalSource
	experience ExperienceSource
	pool       *ants.Pool
	cfg        Config
	observer   Observer
	logger     *slog.Logger
}

// Option configures a Collector.
type Option func(*Collector) error

// WithEmbeddingSource sets the embedding similarity source.
func WithEmbeddingSource(s EmbeddingSource) Option {
	return func(c *Collector) error {
		c.embedding = s
		return nil
	}
}

// WithGraphSource sets the graph path source.
func WithGraphSource(s GraphSource) Option {
	return func(c *Collector) error {
		c.graph = s
		return nil
	}
}

// WithLexicalSource sets the keyword source.
func WithLexicalSource(s LexicalSource) Option {
	return func(c *Collector) error {
		c.lexical = s
		return nil
	}
}

// WithExperienceSource sets the experience record source.
func WithExperienceSource(s ExperienceSource) Option {
	return func(c *Collector) error {
		c.experience = s
		return nil
	}
}

// WithConfig sets timeouts and batch size. Zero fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(c *Collector) error {
		c.cfg = cfg.withDefaults()
		return nil
	}
}

// WithPoolSize sets the maximum number of concurrent source calls.
// Default is runtime.NumCPU(), with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(c *Collector) error {
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		if c.pool != nil {
			c.pool.Release()
		}
		c.pool = pool
		return nil
	}
}

// WithObserver sets a hook called after every source call.
func WithObserver(o Observer) Option {
	return func(c *Collector) error {
		if o == nil {
			o = noopObserver{}
		}
		c.observer = o
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Collector) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// NewCollector creates a collector. Sources left unset are reported unavailable.
func NewCollector(opts ...Option) (*Collector, error) {
	c := &Collector{
		cfg:      DefaultConfig(),
		observer: noopObserver{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			c.Release()
			return nil, err
		}
	}
	if c.pool == nil {
		size := runtime.NumCPU()
		if size < 1 {
			size = 1
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return nil, err
		}
		c.pool = pool
	}
	c.logger = c.logger.With("component", "signal-collector")
	return c, nil
}

// Release stops the worker pool.
func (c *Collector) Release() {
	if c.pool != nil {
		c.pool.Release()
	}
}

type batchResult struct {
	ids []string
	val any
	err error
}

// Collect gathers raw signals for every candidate. The returned Candidates
// follow the order of doctorIDs. The error is non-nil only when ctx was
// already done before collection started.
func (c *Collector) Collect(ctx context.Context, cs *core.Case, doctorIDs []string) (*Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	unique := uniqueIDs(doctorIDs)
	out := &Collection{CaseID: cs.ID, Candidates: make([]Raw, len(doctorIDs))}
	for i, id := range doctorIDs {
		out.Candidates[i].DoctorID = id
	}

	// Each source writes its own slot; slots are read after Wait.
	var results [NumKinds][]batchResult
	var g errgroup.Group
	for _, kind := range AllKinds {
		call := c.sourceCall(kind, cs)
		if call == nil {
			continue
		}
		g.Go(func() error {
			results[kind] = c.runBatches(reqCtx, kind, unique, call)
			return nil
		})
	}
	_ = g.Wait()

	index := make(map[string][]int, len(doctorIDs))
	for i, id := range doctorIDs {
		index[id] = append(index[id], i)
	}

	for _, kind := range AllKinds {
		status := ProviderStatus{Kind: kind, Available: true}
		if c.sourceCall(kind, cs) == nil {
			status.Available = false
			status.Err = &ProviderUnavailableError{Provider: kind.String(), CaseID: cs.ID, Err: ErrSourceNotConfigured}
		}
		for _, res := range results[kind] {
			if res.err != nil {
				if status.Available {
					status.Available = false
					status.Err = &ProviderUnavailableError{Provider: kind.String(), CaseID: cs.ID, Err: res.err}
				}
				continue
			}
			c.apply(kind, res, index, out.Candidates)
		}
		out.Providers[kind] = status
		if !status.Available {
			c.logger.Warn("signal unavailable, continuing degraded",
				"case", cs.ID, "provider", kind.String(), "error", status.Err)
		}
	}
	return out, nil
}

type sourceFunc func(ctx context.Context, ids []string) (any, error)

func (c *Collector) sourceCall(kind Kind, cs *core.Case) sourceFunc {
	switch kind {
	case KindEmbedding:
		if c.embedding != nil {
			return func(ctx context.Context, ids []string) (any, error) { return c.embedding.Similarity(ctx, cs, ids) }
		}
	case KindGraph:
		if c.graph != nil {
			return func(ctx context.Context, ids []string) (any, error) { return c.graph.Paths(ctx, cs, ids) }
		}
	case KindLexical:
		if c.lexical != nil {
			return func(ctx context.Context, ids []string) (any, error) { return c.lexical.Scores(ctx, cs, ids) }
		}
	case KindExperience:
		if c.experience != nil {
			return func(ctx context.Context, ids []string) (any, error) { return c.experience.FindByDoctorIDs(ctx, ids) }
		}
	}
	return nil
}

// runBatches splits ids into batches and runs them on the pool. A batch's
// timeout starts when a worker picks it up, and the worker is released at that
// timeout even when the source ignores its context. Waiting for a free worker
// is bounded by the request deadline in ctx.
func (c *Collector) runBatches(ctx context.Context, kind Kind, ids []string, call sourceFunc) []batchResult {
	batches := chunk(ids, c.cfg.BatchSize)
	chans := make([]chan batchResult, len(batches))

	for i, batch := range batches {
		ch := make(chan batchResult, 1)
		chans[i] = ch
		task := func() { ch <- c.callBatch(ctx, kind, batch, call) }
		// Submit blocks while the pool is saturated; keep waiting cancellable.
		go func() {
			if err := c.pool.Submit(task); err != nil {
				ch <- batchResult{ids: batch, err: err}
			}
		}()
	}

	out := make([]batchResult, len(batches))
	for i, ch := range chans {
		select {
		case res := <-ch:
			out[i] = res
		case <-ctx.Done():
			out[i] = batchResult{ids: batches[i], err: ctx.Err()}
		}
	}
	return out
}

// callBatch runs one source call under the kind's timeout. The call itself
// runs on its own goroutine so an abandoned call never pins a pool worker.
func (c *Collector) callBatch(ctx context.Context, kind Kind, batch []string, call sourceFunc) batchResult {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.timeout(kind))
	defer cancel()
	if err := callCtx.Err(); err != nil {
		return batchResult{ids: batch, err: err}
	}

	start := time.Now()
	done := make(chan batchResult, 1)
	go func() {
		v, err := call(callCtx, batch)
		done <- batchResult{ids: batch, val: v, err: err}
	}()

	var res batchResult
	select {
	case res = <-done:
	case <-callCtx.Done():
		res = batchResult{ids: batch, err: callCtx.Err()}
	}
	c.observer.ProviderCall(kind, time.Since(start), res.err)
	return res
}

func (c *Collector) apply(kind Kind, res batchResult, index map[string][]int, raws []Raw) {
	for _, id := range res.ids {
		for _, i := range index[id] {
			r := &raws[i]
			switch kind {
			case KindEmbedding:
				if sims, _ := res.val.(map[string]float64); sims != nil {
					if v, ok := sims[id]; ok {
						r.Cosine = v
						r.Available[kind] = true
					}
				}
			case KindGraph:
				paths, _ := res.val.(map[string]graph.Path)
				r.Path = paths[id]
				r.Available[kind] = true
			case KindLexical:
				scores, _ := res.val.(map[string]float64)
				r.Lexical = scores[id]
				r.Available[kind] = true
			case KindExperience:
				records, _ := res.val.(map[string][]core.ExperienceRecord)
				r.Experience = records[id]
				r.Available[kind] = true
			}
		}
	}
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func chunk(ids []string, size int) [][]string {
	if len(ids) == 0 {
		return nil
	}
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		out = append(out, ids[start:end])
	}
	return out
}
