// Package proxypool loads third-party proxy lists and hands candidates out in
// round-robin order. A pool is owned by a single run and never pre-checks
// liveness: dead entries are skipped by the caller, not removed.
package proxypool

import (
	"sync"

	"github.com/JakeFAU/distro-catalog-crawler/internal/catalog"
)

// Pool is a fixed set of proxy candidates with a rotating cursor.
type Pool struct {
	mu         sync.Mutex
	candidates []catalog.ProxyCandidate
	cursor     int
}

// New builds a Pool over a copy of candidates.
func New(candidates []catalog.ProxyCandidate) *Pool {
	return &Pool{candidates: append([]catalog.ProxyCandidate(nil), candidates...)}
}

// Next returns the candidate under the cursor and advances it. An empty pool
// returns false, signaling the caller to go direct.
func (p *Pool) Next() (catalog.ProxyCandidate, bool) {
	if p == nil {
		return catalog.ProxyCandidate{}, false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.candidates) == 0 {
		return catalog.ProxyCandidate{}, false
	}
	c := p.candidates[p.cursor]
	p.cursor = (p.cursor + 1) % len(p.candidates)
	return c, true
}

// Len reports the number of candidates.
func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.candidates)
}

// Candidates returns a copy of the pool contents in rotation order.
func (p *Pool) Candidates() []catalog.ProxyCandidate {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]catalog.ProxyCandidate(nil), p.candidates...)
}
