package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/berdachuk/medexpertmatch/ai"
	"github.com/berdachuk/medexpertmatch/graph"
	"github.com/berdachuk/medexpertmatch/matching"
	"github.com/berdachuk/medexpertmatch/resilience"
	"github.com/berdachuk/medexpertmatch/scoring"
	"github.com/berdachuk/medexpertmatch/search"
	"github.com/berdachuk/medexpertmatch/signals"
)

// Storage backends.
const (
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
)

// Graph backends.
const (
	GraphMemory = "memory"
	GraphAGE    = "age"
)

// Lexical backends.
const (
	LexicalBM25     = "bm25"
	LexicalPostgres = "postgres"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete engine configuration.
type Config struct {
	LogLevel   string                   `yaml:"logLevel"`
	Storage    StorageConfig            `yaml:"storage"`
	Graph      GraphConfig              `yaml:"graph"`
	Lexical    LexicalConfig            `yaml:"lexical"`
	AI         AIConfig                 `yaml:"ai"`
	Cache      CacheConfig              `yaml:"cache"`
	Resilience ResilienceConfig         `yaml:"resilience"`
	Collector  signals.Config           `yaml:"collector"`
	Fusion     FusionConfig             `yaml:"fusion"`
	Experience scoring.ExperienceConfig `yaml:"experience"`
	Priority   scoring.PriorityConfig   `yaml:"priority"`
	Route      scoring.RouteConfig      `yaml:"route"`
	Match      matching.MatchOptions    `yaml:"match"`
	Routing    matching.RoutingOptions  `yaml:"routing"`
	Ingestion  IngestionConfig          `yaml:"ingestion"`
	Metrics    MetricsConfig            `yaml:"metrics"`
}

// StorageConfig selects the repository backend.
type StorageConfig struct {
	Backend  string `yaml:"backend"`
	Path     string `yaml:"path"`     // badger directory
	InMemory bool   `yaml:"inMemory"` // badger only
	DSN      string `yaml:"dsn"`      // postgres
	MaxConns int    `yaml:"maxConns"`
}

// GraphConfig selects the graph source.
type GraphConfig struct {
	Backend string `yaml:"backend"`
	DSN     string `yaml:"dsn"`
	Name    string `yaml:"name"`
	MaxHops int    `yaml:"maxHops"`
}

// LexicalConfig selects the keyword source.
type LexicalConfig struct {
	Backend       string  `yaml:"backend"`
	K1            float64 `yaml:"k1"`
	B             float64 `yaml:"b"`
	VerbatimBoost float64 `yaml:"verbatimBoost"`
}

// AIConfig configures the model endpoints. With Enabled false no model is
// called: embeddings come from stored vectors and text from templates.
type AIConfig struct {
	Enabled   bool `yaml:"enabled"`
	ai.Config `yaml:",inline"`
}

// CacheConfig configures the Redis embedding cache. An empty address
// disables it.
type CacheConfig struct {
	RedisAddr string        `yaml:"redisAddr"`
	Namespace string        `yaml:"namespace"`
	TTL       time.Duration `yaml:"ttl"`
}

// ResilienceConfig bounds model calls.
type ResilienceConfig struct {
	Retry       resilience.Policy `yaml:"retry"`
	MaxInFlight int               `yaml:"maxInFlight"`
	RPS         float64           `yaml:"rps"`
	Burst       int               `yaml:"burst"`
}

// FusionConfig holds the signal weights and the rationale threshold.
type FusionConfig struct {
	Weights          scoring.Weights `yaml:"weights"`
	NotableThreshold float64         `yaml:"notableThreshold"`
}

// IngestionConfig sizes the ingestion worker pool.
type IngestionConfig struct {
	Workers   int `yaml:"workers"`
	BatchSize int `yaml:"batchSize"`
}

// MetricsConfig exposes Prometheus metrics. An empty address disables them.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns a configuration for a local badger store, an in-memory
// graph and a BM25 keyword index, with models disabled.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Storage:  StorageConfig{Backend: BackendBadger, Path: "./data", MaxConns: 10},
		Graph:    GraphConfig{Backend: GraphMemory, Name: "medexpertmatch_graph", MaxHops: graph.DefaultMaxHops},
		Lexical: LexicalConfig{
			Backend:       LexicalBM25,
			K1:            search.DefaultK1,
			B:             search.DefaultB,
			VerbatimBoost: search.DefaultVerbatimBoost,
		},
		AI:         AIConfig{Config: *ai.DefaultConfig()},
		Cache:      CacheConfig{Namespace: "default", TTL: 7 * 24 * time.Hour},
		Resilience: ResilienceConfig{Retry: resilience.DefaultPolicy(), MaxInFlight: 4},
		Collector:  signals.DefaultConfig(),
		Fusion:     FusionConfig{Weights: scoring.DefaultWeights(), NotableThreshold: scoring.DefaultNotableThreshold},
		Experience: scoring.DefaultExperienceConfig(),
		Priority:   scoring.DefaultPriorityConfig(),
		Route:      scoring.DefaultRouteConfig(),
		Match:      matching.DefaultMatchOptions(),
		Routing:    matching.DefaultRoutingOptions(),
		Ingestion:  IngestionConfig{Workers: 4, BatchSize: 50},
	}
}

// Load reads a YAML file over the defaults and validates the result.
// An empty path returns the validated defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read decodes YAML from r over the defaults and validates the result.
// Unknown keys are rejected.
func Read(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section. Fusion weights are checked here so a bad
// configuration fails at startup.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendBadger:
		if c.Storage.Path == "" && !c.Storage.InMemory {
			return invalid("storage.path is required for badger")
		}
	case BackendPostgres:
		if c.Storage.DSN == "" {
			return invalid("storage.dsn is required for postgres")
		}
	default:
		return invalid("unknown storage.backend %q", c.Storage.Backend)
	}

	switch c.Graph.Backend {
	case GraphMemory:
	case GraphAGE:
		if c.Graph.DSN == "" {
			return invalid("graph.dsn is required for age")
		}
	default:
		return invalid("unknown graph.backend %q", c.Graph.Backend)
	}

	switch c.Lexical.Backend {
	case LexicalBM25:
	case LexicalPostgres:
		if c.Storage.Backend != BackendPostgres {
			return invalid("lexical.backend postgres requires storage.backend postgres")
		}
	default:
		return invalid("unknown lexical.backend %q", c.Lexical.Backend)
	}

	if c.AI.Enabled {
		if err := c.AI.Config.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	if err := c.Resilience.Retry.Validate(); err != nil {
		return fmt.Errorf("%w: resilience.retry: %w", ErrInvalidConfig, err)
	}
	if err := c.Fusion.Weights.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Fusion.NotableThreshold < 0 || c.Fusion.NotableThreshold > 1 {
		return invalid("fusion.notableThreshold must be within [0,1]")
	}
	if err := c.Priority.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.Route.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.Match.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.Routing.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Ingestion.Workers < 1 {
		return invalid("ingestion.workers must be at least 1")
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "error":
	default:
		return invalid("unknown logLevel %q", c.LogLevel)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
