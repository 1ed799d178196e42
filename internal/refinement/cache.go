package refinement

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/reportvc/internal/domain"
)

// ProposalCache holds unresolved proposals keyed by their server-issued
// handle. Proposals are ephemeral: they live here only until resolved or
// until the TTL expires.
type ProposalCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	handles map[uuid.UUID]cachedProposal
}

type cachedProposal struct {
	proposal  domain.RefinementProposal
	expiresAt time.Time
}

// NewProposalCache creates a cache whose entries expire after ttl.
func NewProposalCache(ttl time.Duration) *ProposalCache {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &ProposalCache{
		ttl:     ttl,
		now:     time.Now,
		handles: map[uuid.UUID]cachedProposal{},
	}
}

// Put stores a proposal under its handle.
func (c *ProposalCache) Put(proposal domain.RefinementProposal) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepLocked()
	c.handles[proposal.Handle] = cachedProposal{
		proposal:  proposal,
		expiresAt: c.now().Add(c.ttl),
	}
}

// Get returns the proposal for a handle, if present and unexpired.
func (c *ProposalCache) Get(handle uuid.UUID) (domain.RefinementProposal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.handles[handle]
	if !ok || c.now().After(entry.expiresAt) {
		delete(c.handles, handle)
		return domain.RefinementProposal{}, false
	}
	return entry.proposal, true
}

// Remove drops a handle once its proposal reaches a terminal status.
func (c *ProposalCache) Remove(handle uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handles, handle)
}

func (c *ProposalCache) sweepLocked() {
	now := c.now()
	for handle, entry := range c.handles {
		if now.After(entry.expiresAt) {
			delete(c.handles, handle)
		}
	}
}
