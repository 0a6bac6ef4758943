package search

import "time"

// Monitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type Monitor interface {
	Start(query string, requested Mode)
	AfterTextRanking(hits int)
	AfterSemanticRanking(hits int, err error)
	Finish(requested, effective Mode, total int, elapsed time.Duration)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string, _ Mode)                   {}
func (n *noopMonitor) AfterTextRanking(_ int)                   {}
func (n *noopMonitor) AfterSemanticRanking(_ int, _ error)      {}
func (n *noopMonitor) Finish(_, _ Mode, _ int, _ time.Duration) {}
