// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package medexpertmatch wires the doctor-matching engine from a single
// configuration: repositories, signal sources, models and the matching
// services built on them.
package medexpertmatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/berdachuk/medexpertmatch/ai"
	"github.com/berdachuk/medexpertmatch/ai/openai"
	"github.com/berdachuk/medexpertmatch/cache"
	"github.com/berdachuk/medexpertmatch/config"
	"github.com/berdachuk/medexpertmatch/core"
	"github.com/berdachuk/medexpertmatch/graph"
	"github.com/berdachuk/medexpertmatch/graph/age"
	"github.com/berdachuk/medexpertmatch/ingestion"
	"github.com/berdachuk/medexpertmatch/matching"
	"github.com/berdachuk/medexpertmatch/metrics"
	"github.com/berdachuk/medexpertmatch/reembed"
	"github.com/berdachuk/medexpertmatch/resilience"
	"github.com/berdachuk/medexpertmatch/scoring"
	"github.com/berdachuk/medexpertmatch/search"
	"github.com/berdachuk/medexpertmatch/signals"
	"github.com/berdachuk/medexpertmatch/storage"
	"github.com/berdachuk/medexpertmatch/storage/badger"
	"github.com/berdachuk/medexpertmatch/storage/postgres"
)

// Engine owns every component built from a Config.
type Engine struct {
	cfg    *config.Config
	repos  *storage.Repositories
	pg     *postgres.Store
	ageDB  *age.Client
	redis  *redis.Client
	logger *slog.Logger

	provider  ai.Provider
	guard     *resilience.Guard
	embedder  ai.Embedder
	uncached  ai.Embedder
	clock     func() time.Time
	generator ai.TextGenerator
	analyzer  ai.CaseAnalyzer
	recorder  *metrics.Recorder

	mu          sync.RWMutex
	collector   *signals.Collector
	matcher     *matching.Matcher
	prioritizer *matching.Prioritizer
	router      *matching.Router
	closed      bool
}

// Option configures Open.
type Option func(*engineOptions) error

type engineOptions struct {
	repos    *storage.Repositories
	provider ai.Provider
	recorder *metrics.Recorder
	clock    func() time.Time
	logger   *slog.Logger
}

// WithRepositories uses repos instead of opening the configured storage.
// The engine takes ownership and closes them.
func WithRepositories(repos *storage.Repositories) Option {
	return func(o *engineOptions) error {
		o.repos = repos
		return nil
	}
}

// WithProvider uses provider instead of the configured model endpoints,
// regardless of ai.enabled.
func WithProvider(provider ai.Provider) Option {
	return func(o *engineOptions) error {
		o.provider = provider
		return nil
	}
}

// WithRecorder reports engine activity to Prometheus.
func WithRecorder(r *metrics.Recorder) Option {
	return func(o *engineOptions) error {
		o.recorder = r
		return nil
	}
}

// WithClock overrides the time source of the matcher.
func WithClock(now func() time.Time) Option {
	return func(o *engineOptions) error {
		o.clock = now
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *engineOptions) error {
		o.logger = logger
		return nil
	}
}

// Open builds an engine from cfg. The keyword index and the in-memory graph
// are derived from what is stored at open time and rebuilt by Seed.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &engineOptions{}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	if o.clock == nil {
		o.clock = time.Now
	}

	e := &Engine{cfg: cfg, recorder: o.recorder, clock: o.clock, logger: o.logger.With("component", "engine")}
	if err := e.open(ctx, o); err != nil {
		e.Close()
		return nil, err
	}
	e.logger.Info("engine ready",
		"storage", cfg.Storage.Backend,
		"graph", cfg.Graph.Backend,
		"lexical", cfg.Lexical.Backend,
		"models", e.provider != nil)
	return e, nil
}

func (e *Engine) open(ctx context.Context, o *engineOptions) error {
	if err := e.openStorage(ctx, o.repos); err != nil {
		return err
	}
	if err := e.openModels(o.provider); err != nil {
		return err
	}
	if e.cfg.Graph.Backend == config.GraphAGE {
		client, err := age.Connect(ctx, e.cfg.Graph.DSN, age.WithGraphName(e.cfg.Graph.Name), age.WithLogger(o.logger))
		if err != nil {
			return fmt.Errorf("connect graph: %w", err)
		}
		e.ageDB = client
		if err := client.EnsureGraph(ctx); err != nil {
			return fmt.Errorf("ensure graph: %w", err)
		}
	}
	return e.wire(ctx)
}

func (e *Engine) openStorage(ctx context.Context, repos *storage.Repositories) error {
	if repos != nil {
		e.repos = repos
		return nil
	}
	switch e.cfg.Storage.Backend {
	case config.BackendPostgres:
		store, err := postgres.Open(ctx, e.cfg.Storage.DSN,
			postgres.WithMaxConns(e.cfg.Storage.MaxConns), postgres.WithLogger(e.logger))
		if err != nil {
			return err
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return err
		}
		e.pg = store
		e.repos = store.Repositories()
	default:
		var err error
		if e.cfg.Storage.InMemory {
			e.repos, err = badger.NewMemoryRepositories()
		} else {
			e.repos, err = badger.Open(e.cfg.Storage.Path)
		}
		if err != nil {
			return fmt.Errorf("open badger store: %w", err)
		}
	}
	return nil
}

// openModels wraps the provider's services in one guard so retries, the
// in-flight bound and the rate limit are shared across them.
func (e *Engine) openModels(provider ai.Provider) error {
	if provider == nil && e.cfg.AI.Enabled {
		aiCfg := e.cfg.AI.Config
		p, err := openai.NewProvider(&aiCfg)
		if err != nil {
			return fmt.Errorf("open model provider: %w", err)
		}
		provider = p
	}
	if provider == nil {
		e.embedder = disabledEmbedder{}
		return nil
	}
	e.provider = provider

	rc := e.cfg.Resilience
	guard, err := resilience.NewGuard("models",
		resilience.WithPolicy(rc.Retry),
		resilience.WithLimiter(resilience.NewLimiter(rc.MaxInFlight, rc.RPS, rc.Burst)),
		resilience.WithLogger(e.logger))
	if err != nil {
		return err
	}
	e.guard = guard

	embedder, err := ai.NewGuardedEmbedder(provider.Embedder(), guard)
	if err != nil {
		return err
	}
	e.embedder, e.uncached = embedder, embedder
	if e.generator, err = ai.NewGuardedGenerator(provider.Generator(), guard); err != nil {
		return err
	}
	if e.analyzer, err = ai.NewGuardedAnalyzer(provider.Analyzer(), guard); err != nil {
		return err
	}

	if addr := e.cfg.Cache.RedisAddr; addr != "" {
		e.redis = redis.NewClient(&redis.Options{Addr: addr})
		cacheOpts := []cache.Option{
			cache.WithNamespace(e.cfg.Cache.Namespace),
			cache.WithTTL(e.cfg.Cache.TTL),
			cache.WithLogger(e.logger),
		}
		if e.recorder != nil {
			cacheOpts = append(cacheOpts, cache.WithObserver(e.recorder))
		}
		cached, err := cache.NewEmbeddingCache(e.redis, embedder, cacheOpts...)
		if err != nil {
			return err
		}
		e.embedder = cached
	}
	return nil
}

// wire builds the signal sources and the services on top of them.
func (e *Engine) wire(ctx context.Context) error {
	graphSrc, err := e.graphSource(ctx)
	if err != nil {
		return err
	}
	lexical, err := e.lexicalSource(ctx)
	if err != nil {
		return err
	}
	embedding, err := signals.NewEmbeddingAdapter(e.embedder, e.repos.Vectors,
		signals.WithStoredVectors(e.repos.Vectors), signals.WithEmbeddingLogger(e.logger))
	if err != nil {
		return err
	}

	collectorOpts := []signals.Option{
		signals.WithEmbeddingSource(embedding),
		signals.WithGraphSource(graphSrc),
		signals.WithLexicalSource(lexical),
		signals.WithExperienceSource(e.repos.Experiences),
		signals.WithConfig(e.cfg.Collector),
		signals.WithLogger(e.logger),
	}
	if e.recorder != nil {
		collectorOpts = append(collectorOpts, signals.WithObserver(e.recorder))
	}
	collector, err := signals.NewCollector(collectorOpts...)
	if err != nil {
		return err
	}

	fuser, err := scoring.NewFuser(
		scoring.WithWeights(e.cfg.Fusion.Weights),
		scoring.WithNotableThreshold(e.cfg.Fusion.NotableThreshold))
	if err != nil {
		collector.Release()
		return err
	}
	matcherOpts := []matching.Option{
		matching.WithFuser(fuser),
		matching.WithExperienceConfig(e.cfg.Experience),
		matching.WithClock(e.clock),
		matching.WithLogger(e.logger),
	}
	if e.generator != nil {
		matcherOpts = append(matcherOpts, matching.WithEnhancer(matching.NewLLMEnhancer(e.generator, e.guard, e.logger)))
	}
	if e.recorder != nil {
		matcherOpts = append(matcherOpts, matching.WithMonitor(e.recorder))
	}
	matcher, err := matching.NewMatcher(e.repos, collector, matcherOpts...)
	if err != nil {
		collector.Release()
		return err
	}
	prioritizer, err := matching.NewPrioritizer(e.repos.Cases,
		matching.WithPriorityConfig(e.cfg.Priority), matching.WithPrioritizerLogger(e.logger))
	if err != nil {
		collector.Release()
		return err
	}
	router, err := matching.NewRouter(e.repos.Facilities,
		matching.WithRouteConfig(e.cfg.Route), matching.WithRouterLogger(e.logger))
	if err != nil {
		collector.Release()
		return err
	}

	e.mu.Lock()
	old := e.collector
	e.collector, e.matcher, e.prioritizer, e.router = collector, matcher, prioritizer, router
	e.mu.Unlock()
	if old != nil {
		old.Release()
	}
	return nil
}

func (e *Engine) graphSource(ctx context.Context) (signals.GraphSource, error) {
	if e.ageDB != nil {
		return graph.NewCypherSource(e.ageDB, graph.WithCypherLogger(e.logger))
	}
	mem, err := graph.NewMemory(graph.WithMaxHops(e.cfg.Graph.MaxHops), graph.WithMemoryLogger(e.logger))
	if err != nil {
		return nil, err
	}
	ds, err := datasetFrom(ctx, e.repos)
	if err != nil {
		return nil, err
	}
	if err := graph.Build(ctx, mem, ds); err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}
	return mem, nil
}

func (e *Engine) lexicalSource(ctx context.Context) (signals.LexicalSource, error) {
	if e.cfg.Lexical.Backend == config.LexicalPostgres && e.pg != nil {
		return e.pg.Lexical(), nil
	}
	opts := []search.Option{
		search.WithBM25(e.cfg.Lexical.K1, e.cfg.Lexical.B),
		search.WithVerbatimBoost(e.cfg.Lexical.VerbatimBoost),
		search.WithLogger(e.logger),
	}
	if e.recorder != nil {
		opts = append(opts, search.WithMonitor(e.recorder))
	}
	return search.Load(ctx, e.repos, opts...)
}

// Repositories returns the engine's repositories.
func (e *Engine) Repositories() *storage.Repositories { return e.repos }

// Config returns the configuration the engine was opened with.
func (e *Engine) Config() *config.Config { return e.cfg }

// Seed stores ds and rebuilds the graph and keyword index from the store.
func (e *Engine) Seed(ctx context.Context, ds graph.Dataset) error {
	if err := e.check(); err != nil {
		return err
	}
	if err := storeDataset(ctx, e.repos, ds); err != nil {
		return err
	}
	if e.ageDB != nil {
		if err := graph.Build(ctx, e.ageDB, ds); err != nil {
			return fmt.Errorf("build graph: %w", err)
		}
	}
	e.logger.Info("dataset stored",
		"doctors", len(ds.Doctors),
		"cases", len(ds.Cases),
		"experiences", len(ds.Experiences),
		"facilities", len(ds.Facilities))
	return e.wire(ctx)
}

// Match ranks doctors for a stored case.
func (e *Engine) Match(ctx context.Context, caseID string, opts matching.MatchOptions) (*matching.Result, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	e.mu.RLock()
	m := e.matcher
	e.mu.RUnlock()
	return m.MatchByID(ctx, caseID, opts)
}

// Prioritize orders stored cases by urgency, complexity and wait. An empty
// caseIDs prioritizes every stored case.
func (e *Engine) Prioritize(ctx context.Context, caseIDs []string) ([]scoring.CasePriority, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	e.mu.RLock()
	p := e.prioritizer
	e.mu.RUnlock()
	return p.Prioritize(ctx, caseIDs, e.clock())
}

// Route ranks facilities for a stored case.
func (e *Engine) Route(ctx context.Context, caseID string, opts matching.RoutingOptions) (*matching.RouteResult, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	c, err := e.repos.Cases.GetCase(ctx, core.NormalizeCaseID(caseID))
	if err != nil {
		return nil, err
	}
	e.mu.RLock()
	r := e.router
	e.mu.RUnlock()
	return r.Route(ctx, c, opts)
}

// NewIngestionPipeline creates a pipeline that analyzes, describes and embeds
// cases with the engine's models. Without models cases get the template
// description and no vector. The caller must Release it.
func (e *Engine) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	base := []ingestion.Option{
		ingestion.WithPoolSize(e.cfg.Ingestion.Workers),
		ingestion.WithBatchSize(e.cfg.Ingestion.BatchSize),
		ingestion.WithLogger(e.logger),
	}
	descOpts := []matching.DescriptionOption{matching.WithDescriptionLogger(e.logger)}
	if e.provider != nil {
		base = append(base, ingestion.WithEmbedder(e.embedder), ingestion.WithAnalyzer(e.analyzer))
		descOpts = append(descOpts, matching.WithGenerator(e.generator), matching.WithDescriptionGuard(e.guard))
	}
	describer, err := matching.NewDescriptionGenerator(descOpts...)
	if err != nil {
		return nil, err
	}
	base = append(base, ingestion.WithDescriber(describer))
	return ingestion.NewPipeline(e.repos, append(base, opts...)...)
}

// NewReembedder creates a reembedder over the stored cases. It bypasses the
// embedding cache so vectors come from the current model. progress receives
// the progress line.
func (e *Engine) NewReembedder(cfg *reembed.Config, progress io.Writer) (*reembed.Reembedder, error) {
	if err := e.check(); err != nil {
		return nil, err
	}
	if e.provider == nil {
		return nil, ErrModelsDisabled
	}
	return reembed.NewReembedder(e.repos, e.uncached, cfg, progress)
}

func (e *Engine) check() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrClosed
	}
	return nil
}

// Close releases every component. It is safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	collector := e.collector
	e.mu.Unlock()

	if collector != nil {
		collector.Release()
	}
	var errs []error
	if e.provider != nil {
		if err := e.provider.Close(); err != nil {
			e.logger.Error("error closing model provider", "err", err)
			errs = append(errs, err)
		}
	}
	if e.redis != nil {
		if err := e.redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if e.ageDB != nil {
		e.ageDB.Close()
	}
	if e.repos != nil {
		if err := e.repos.Close(); err != nil {
			e.logger.Error("error closing repositories", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// disabledEmbedder leaves the embedding signal to stored vectors only.
type disabledEmbedder struct{}

func (disabledEmbedder) EmbedText(context.Context, string) ([]float32, error) {
	return nil, ErrModelsDisabled
}

func (disabledEmbedder) EmbedTexts(context.Context, []string) ([][]float32, error) {
	return nil, ErrModelsDisabled
}
