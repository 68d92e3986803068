package router

import "github.com/poiesic/deepsearch/core"

// RouteMonitor provides hooks to observe one pass through the routing
// pipeline. Implement this interface to track intermediate decisions;
// CorpusEmpty and BelowQuorum distinguish the two reasons a query leaves the
// corpus path.
type RouteMonitor interface {
	Start(query string)
	MemoryHit(response string, similarity float64)
	MemoryMiss()
	CorpusEmpty()
	BelowQuorum(hits []core.Hit)
	CorpusSelected(hits []core.Hit)
	RetrievalFailed(err error)
	QueryRewritten(results []core.RewriteResult, finalQuery string)
	AnswerGenerated(provider string)
	Evaluated(result *core.EvaluationResult)
	MemoryAdmitted(id core.ID)
	Finish(result *core.RouteResult)
}

// noopMonitor is a no-op implementation of RouteMonitor
type noopMonitor struct{}

var _ RouteMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                                   {}
func (n *noopMonitor) MemoryHit(_ string, _ float64)                    {}
func (n *noopMonitor) MemoryMiss()                                      {}
func (n *noopMonitor) CorpusEmpty()                                     {}
func (n *noopMonitor) BelowQuorum(_ []core.Hit)                         {}
func (n *noopMonitor) CorpusSelected(_ []core.Hit)                      {}
func (n *noopMonitor) RetrievalFailed(_ error)                          {}
func (n *noopMonitor) QueryRewritten(_ []core.RewriteResult, _ string)  {}
func (n *noopMonitor) AnswerGenerated(_ string)                         {}
func (n *noopMonitor) Evaluated(_ *core.EvaluationResult)               {}
func (n *noopMonitor) MemoryAdmitted(_ core.ID)                         {}
func (n *noopMonitor) Finish(_ *core.RouteResult)                       {}
