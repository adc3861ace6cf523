package search

// Monitor provides hooks to observe keyword scoring.
type Monitor interface {
	Start(caseID string, terms []string)
	VerbatimHit(caseID, doctorID string)
	Finish(caseID string, scores map[string]float64)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string, _ []string)             {}
func (n *noopMonitor) VerbatimHit(_, _ string)                {}
func (n *noopMonitor) Finish(_ string, _ map[string]float64) {}
