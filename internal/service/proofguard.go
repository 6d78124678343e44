package service

import (
	"sync"

	"github.com/peerlane/relay/internal/domain"
)

// ProofGuard is a process-local in-flight set keyed by trade id. Settlement
// proof generation is expensive and must run at most once per trade at a
// time; a second request for the same trade is rejected rather than queued.
type ProofGuard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewProofGuard creates an empty guard.
func NewProofGuard() *ProofGuard {
	return &ProofGuard{inFlight: make(map[string]struct{})}
}

// TryAcquire marks the trade as having a proof in flight. It returns
// domain.ErrProofInProgress when the trade is already marked.
func (g *ProofGuard) TryAcquire(tradeID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.inFlight[tradeID]; busy {
		return domain.ErrProofInProgress
	}
	g.inFlight[tradeID] = struct{}{}
	return nil
}

// Release clears the in-flight mark. Safe to call for trades never acquired.
func (g *ProofGuard) Release(tradeID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, tradeID)
}

// InFlight reports the number of trades currently marked.
func (g *ProofGuard) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.inFlight)
}
