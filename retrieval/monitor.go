package retrieval

import "github.com/somnolabs/oneiro/core"

// RetrievalMonitor provides hooks to observe the retrieval process.
// Implement this interface to track which tiers ran and what they found.
type RetrievalMonitor interface {
	Start(query string, themeCodes []string)
	TierSkipped(method Method, reason error)
	AfterThemeTier(fragments []*core.Fragment)
	AfterSemanticTier(hits []core.FragmentHit)
	AfterLexicalTier(fragments []*core.Fragment)
	Finish(result *Result)
}

// noopMonitor is a no-op implementation of RetrievalMonitor
type noopMonitor struct{}

var _ RetrievalMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string, _ []string)             {}
func (n *noopMonitor) TierSkipped(_ Method, _ error)          {}
func (n *noopMonitor) AfterThemeTier(_ []*core.Fragment)      {}
func (n *noopMonitor) AfterSemanticTier(_ []core.FragmentHit) {}
func (n *noopMonitor) AfterLexicalTier(_ []*core.Fragment)    {}
func (n *noopMonitor) Finish(_ *Result)                       {}
