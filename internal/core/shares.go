package core

import (
	"sync"
	"time"

	"homewarp/internal/metrics"
	"homewarp/pkg/domain"
)

// ShareRequest is a pending offer from owner to share a named home with
// the target player holding it.
type ShareRequest struct {
	Owner     domain.PlayerID
	OwnerName string
	HomeName  string
	CreatedAt time.Time
}

// PendingShareRegistry holds at most one live share request per target
// player. Requests expire after the configured TTL; expiry is detected
// lazily on every read, so the periodic sweep is housekeeping only.
type PendingShareRegistry struct {
	mu       sync.Mutex
	requests map[domain.PlayerID]ShareRequest
	ttl      time.Duration
	metrics  *metrics.Set
	nowFn    func() time.Time
}

// NewPendingShareRegistry constructs a registry with the given request
// TTL. Zero or negative falls back to five minutes. m may be nil.
func NewPendingShareRegistry(ttl time.Duration, m *metrics.Set) *PendingShareRegistry {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PendingShareRegistry{
		requests: make(map[domain.PlayerID]ShareRequest),
		ttl:      ttl,
		metrics:  m,
		nowFn:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateRequest stores a new request for target unless a live one already
// occupies the slot. Returns false on conflict.
func (r *PendingShareRegistry) CreateRequest(owner domain.PlayerID, ownerName, homeName string, target domain.PlayerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.nowFn()
	if existing, ok := r.requests[target]; ok && !r.expired(existing, now) {
		r.metrics.ShareOutcome(metrics.ShareConflict)
		return false
	}
	r.requests[target] = ShareRequest{
		Owner:     owner,
		OwnerName: ownerName,
		HomeName:  homeName,
		CreatedAt: now,
	}
	r.metrics.ShareOutcome(metrics.ShareCreated)
	return true
}

// Request returns the live request held by target, lazily removing a
// stale one.
func (r *PendingShareRegistry) Request(target domain.PlayerID) (ShareRequest, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.take(target, false)
}

// Accept removes and returns the live request held by target. Acceptance
// does not mutate the home store; the caller invokes ShareHome with the
// returned owner and home name.
func (r *PendingShareRegistry) Accept(target domain.PlayerID) (ShareRequest, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.take(target, true)
	if ok {
		r.metrics.ShareOutcome(metrics.ShareAccepted)
	}
	return req, ok
}

// Decline removes and returns the live request held by target.
func (r *PendingShareRegistry) Decline(target domain.PlayerID) (ShareRequest, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.take(target, true)
	if ok {
		r.metrics.ShareOutcome(metrics.ShareDeclined)
	}
	return req, ok
}

// CleanupExpired sweeps stale entries. Correctness never depends on its
// cadence since every read also expires lazily.
func (r *PendingShareRegistry) CleanupExpired() {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.nowFn()
	for target, req := range r.requests {
		if r.expired(req, now) {
			delete(r.requests, target)
			r.metrics.ShareOutcome(metrics.ShareExpired)
		}
	}
}

// take returns target's request, deleting stale entries and, when remove
// is set, live ones too. Callers hold the mutex.
func (r *PendingShareRegistry) take(target domain.PlayerID, remove bool) (ShareRequest, bool) {
	req, ok := r.requests[target]
	if !ok {
		return ShareRequest{}, false
	}
	if r.expired(req, r.nowFn()) {
		delete(r.requests, target)
		r.metrics.ShareOutcome(metrics.ShareExpired)
		return ShareRequest{}, false
	}
	if remove {
		delete(r.requests, target)
	}
	return req, true
}

// expired applies a strict TTL boundary: a request is live through
// exactly ttl and stale beyond it.
func (r *PendingShareRegistry) expired(req ShareRequest, now time.Time) bool {
	return now.Sub(req.CreatedAt) > r.ttl
}
