package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/berdachuk/medexpertmatch/cache"
	"github.com/berdachuk/medexpertmatch/matching"
	"github.com/berdachuk/medexpertmatch/search"
	"github.com/berdachuk/medexpertmatch/signals"
)

const namespace = "medexpertmatch"

// Recorder exports engine activity as Prometheus metrics. One Recorder
// serves as the collector observer, the cache observer, the keyword index
// monitor and the matcher monitor.
type Recorder struct {
	gatherer prometheus.Gatherer

	providerCalls       *prometheus.CounterVec
	providerDuration    *prometheus.HistogramVec
	providerUnavailable *prometheus.CounterVec

	matchRequests   *prometheus.CounterVec
	matchCandidates prometheus.Histogram
	matchResults    prometheus.Histogram
	matchDuration   prometheus.Histogram

	cacheLookups *prometheus.CounterVec

	lexicalQueries  prometheus.Counter
	lexicalTerms    prometheus.Histogram
	lexicalVerbatim prometheus.Counter
	lexicalHits     prometheus.Histogram
}

var (
	_ signals.Observer = (*Recorder)(nil)
	_ cache.Observer   = (*Recorder)(nil)
	_ search.Monitor   = (*Recorder)(nil)
	_ matching.Monitor = (*Recorder)(nil)
)

// NewRecorder registers the engine metrics on reg. A nil reg uses the
// default Prometheus registry.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	var gatherer prometheus.Gatherer = prometheus.DefaultGatherer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	f := promauto.With(reg)

	return &Recorder{
		gatherer: gatherer,

		providerCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_calls_total",
			Help:      "Total number of signal source calls",
		}, []string{"provider", "result"}),
		providerDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_call_duration_seconds",
			Help:      "Signal source call duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"provider"}),
		providerUnavailable: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_unavailable_total",
			Help:      "Total number of match requests that ran without a signal",
		}, []string{"provider"}),

		matchRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "match_requests_total",
			Help:      "Total number of match requests by outcome",
		}, []string{"outcome"}),
		matchCandidates: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "match_candidates",
			Help:      "Doctors left after the hard filters",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		}),
		matchResults: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "match_results",
			Help:      "Matches persisted per request",
			Buckets:   []float64{0, 1, 2, 5, 10, 20},
		}),
		matchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "match_duration_seconds",
			Help:      "Match request duration in seconds",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),

		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_lookups_total",
			Help:      "Embedding cache lookups by result",
		}, []string{"result"}),

		lexicalQueries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lexical_queries_total",
			Help:      "Total number of keyword scoring queries",
		}),
		lexicalTerms: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lexical_query_terms",
			Help:      "Distinct terms per keyword query",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
		}),
		lexicalVerbatim: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lexical_verbatim_hits_total",
			Help:      "Doctors whose profile contained every query term",
		}),
		lexicalHits: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lexical_scored_doctors",
			Help:      "Doctors with a keyword score per query",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		}),
	}
}

// Handler serves the metrics gathered from the recorder's registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}

// ProviderCall implements signals.Observer.
func (r *Recorder) ProviderCall(kind signals.Kind, elapsed time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.providerCalls.WithLabelValues(kind.String(), result).Inc()
	r.providerDuration.WithLabelValues(kind.String()).Observe(elapsed.Seconds())
}

// CacheLookup implements cache.Observer.
func (r *Recorder) CacheLookup(hits, misses int) {
	if hits > 0 {
		r.cacheLookups.WithLabelValues("hit").Add(float64(hits))
	}
	if misses > 0 {
		r.cacheLookups.WithLabelValues("miss").Add(float64(misses))
	}
}

// Start implements search.Monitor.
func (r *Recorder) Start(_ string, terms []string) {
	r.lexicalQueries.Inc()
	r.lexicalTerms.Observe(float64(len(terms)))
}

// VerbatimHit implements search.Monitor.
func (r *Recorder) VerbatimHit(_, _ string) {
	r.lexicalVerbatim.Inc()
}

// Finish implements search.Monitor.
func (r *Recorder) Finish(_ string, scores map[string]float64) {
	r.lexicalHits.Observe(float64(len(scores)))
}

// OnCandidates implements matching.Monitor.
func (r *Recorder) OnCandidates(_ string, count int) {
	r.matchCandidates.Observe(float64(count))
}

// OnProvider implements matching.Monitor.
func (r *Recorder) OnProvider(_ string, st signals.ProviderStatus) {
	if !st.Available {
		r.providerUnavailable.WithLabelValues(st.Kind.String()).Inc()
	}
}

// OnRanked implements matching.Monitor.
func (r *Recorder) OnRanked(_ string, count int, elapsed time.Duration) {
	outcome := "ranked"
	if count == 0 {
		outcome = "empty"
	}
	r.matchRequests.WithLabelValues(outcome).Inc()
	r.matchResults.Observe(float64(count))
	r.matchDuration.Observe(elapsed.Seconds())
}
