package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berdachuk/medexpertmatch/signals"
)

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	return NewRecorder(prometheus.NewRegistry())
}

func TestRecorder_ProviderCall(t *testing.T) {
	r := newTestRecorder(t)
	r.ProviderCall(signals.KindGraph, 20*time.Millisecond, nil)
	r.ProviderCall(signals.KindGraph, time.Second, errors.New("timeout"))
	r.ProviderCall(signals.KindLexical, time.Millisecond, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.providerCalls.WithLabelValues("graph", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.providerCalls.WithLabelValues("graph", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.providerCalls.WithLabelValues("lexical", "ok")))
	assert.Equal(t, 2, testutil.CollectAndCount(r.providerDuration))
}

func TestRecorder_MatchMonitor(t *testing.T) {
	r := newTestRecorder(t)
	r.OnCandidates("c1", 4)
	r.OnProvider("c1", signals.ProviderStatus{Kind: signals.KindEmbedding, Available: false})
	r.OnProvider("c1", signals.ProviderStatus{Kind: signals.KindGraph, Available: true})
	r.OnRanked("c1", 4, 30*time.Millisecond)
	r.OnRanked("c2", 0, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.providerUnavailable.WithLabelValues("embedding")))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.providerUnavailable.WithLabelValues("graph")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.matchRequests.WithLabelValues("ranked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.matchRequests.WithLabelValues("empty")))
}

func TestRecorder_CacheAndLexical(t *testing.T) {
	r := newTestRecorder(t)
	r.CacheLookup(3, 1)
	r.CacheLookup(0, 2)
	assert.Equal(t, 3.0, testutil.ToFloat64(r.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.cacheLookups.WithLabelValues("miss")))

	r.Start("c1", []string{"chest", "pain"})
	r.VerbatimHit("c1", "A")
	r.Finish("c1", map[string]float64{"A": 2.1, "B": 0.4})
	assert.Equal(t, 1.0, testutil.ToFloat64(r.lexicalQueries))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.lexicalVerbatim))
}

func TestRecorder_Handler(t *testing.T) {
	r := newTestRecorder(t)
	r.OnRanked("c1", 2, time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `medexpertmatch_match_requests_total{outcome="ranked"} 1`))
}
