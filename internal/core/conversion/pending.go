package conversion

import (
	"sync"

	"github.com/SscSPs/mma_ledger/internal/core/domain"
)

// PendingTracker records which rate keys have a lookup in flight.
type PendingTracker struct {
	mu      sync.Mutex
	pending map[domain.RateKey]struct{}
}

// NewPendingTracker returns a tracker with nothing in flight.
func NewPendingTracker() *PendingTracker {
	return &PendingTracker{pending: make(map[domain.RateKey]struct{})}
}

// IsPending reports whether a lookup for key is in flight.
func (p *PendingTracker) IsPending(key domain.RateKey) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.pending[key]
	return ok
}

// MarkPending flags key as in flight. It returns false, and changes nothing,
// when the key was already flagged; only the caller that gets true may dispatch.
func (p *PendingTracker) MarkPending(key domain.RateKey) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.pending[key]; ok {
		return false
	}
	p.pending[key] = struct{}{}
	return true
}

// ClearPending drops the in-flight flag for key.
func (p *PendingTracker) ClearPending(key domain.RateKey) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.pending, key)
}

// Len returns the number of keys in flight.
func (p *PendingTracker) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}
