package matching

import (
	"time"

	"github.com/berdachuk/medexpertmatch/signals"
)

// Monitor observes match requests. Implementations must be safe for
// concurrent use.
type Monitor interface {
	// OnCandidates is called with the number of doctors left after the hard filters.
	OnCandidates(caseID string, count int)
	// OnProvider is called once per signal source after collection.
	OnProvider(caseID string, status signals.ProviderStatus)
	// OnRanked is called with the persisted ranking size and the total latency.
	OnRanked(caseID string, count int, elapsed time.Duration)
}

type noopMonitor struct{}

func (noopMonitor) OnCandidates(string, int) {}
func (noopMonitor) OnProvider(string, signals.ProviderStatus) {}
func (noopMonitor) OnRanked(string, int, time.Duration) {}
