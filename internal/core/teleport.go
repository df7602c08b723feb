package core

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"homewarp/internal/metrics"
	"homewarp/pkg/domain"
)

// movementCancelDistanceSq is the squared distance a player may drift
// during warmup. Strictly greater cancels; exactly this value does not.
const movementCancelDistanceSq = 0.25

// TeleportExecutor performs the actual player relocation. It is trusted to
// return quickly; the engine places no timeout on it.
type TeleportExecutor interface {
	Execute(id domain.PlayerID, destination domain.Home) domain.TeleportResult
}

// Notifier delivers short player-facing messages.
type Notifier interface {
	Notify(id domain.PlayerID, message string)
}

// PendingTeleport is the in-flight state tracked during warmup. The
// destination is a snapshot taken at request time; later mutation of the
// underlying home does not affect it.
type PendingTeleport struct {
	Player      domain.PlayerID
	Owner       domain.PlayerID
	Destination domain.Home
	From        domain.Location
	StartedAt   time.Time
	Warmup      time.Duration
}

type pendingEntry struct {
	PendingTeleport
	token TimerToken
}

// TeleportScheduler runs the warmup state machine: Idle, WarmupPending,
// then Completed or Cancelled back to Idle, with at most one non-idle
// state per player. Presence in the pending map at removal time is the
// sole arbiter between a firing warmup callback and a cancellation, which
// makes both paths idempotent under concurrency.
type TeleportScheduler struct {
	mu      sync.Mutex
	pending map[domain.PlayerID]*pendingEntry

	homes    *HomeStore
	perms    PermissionResolver
	timers   TimerService
	executor TeleportExecutor
	notifier Notifier
	cfg      Config
	logger   *slog.Logger
	metrics  *metrics.Set
	nowFn    func() time.Time
}

// NewTeleportScheduler wires the state machine to its collaborators.
// logger and m may be nil.
func NewTeleportScheduler(homes *HomeStore, perms PermissionResolver, timers TimerService, executor TeleportExecutor, notifier Notifier, cfg Config, logger *slog.Logger, m *metrics.Set) *TeleportScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if perms == nil {
		perms = NoGrants{}
	}
	return &TeleportScheduler{
		pending:  make(map[domain.PlayerID]*pendingEntry),
		homes:    homes,
		perms:    perms,
		timers:   timers,
		executor: executor,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		nowFn:    func() time.Time { return time.Now().UTC() },
	}
}

// RequestTeleport starts a teleport of id to the owner's home destination,
// superseding any pending one. With zero warmup (or a bypass grant) the
// teleport executes immediately and the return value reports success; with
// a positive warmup the request is accepted, a timer is registered, and
// the return value is true.
func (t *TeleportScheduler) RequestTeleport(id, owner domain.PlayerID, destination domain.Home, from domain.Location) bool {
	t.CancelPending(id)

	warmup := t.cfg.TeleportWarmup
	if t.perms.HasGrant(id, GrantBypassWarmup) {
		warmup = 0
	}
	if warmup <= 0 {
		return t.execute(id, owner, destination).Success()
	}

	t.notifier.Notify(id, fmt.Sprintf("Teleporting in %d seconds, don't move!", int(warmup.Seconds())))

	t.mu.Lock()
	entry := &pendingEntry{PendingTeleport: PendingTeleport{
		Player:      id,
		Owner:       owner,
		Destination: destination,
		From:        from,
		StartedAt:   t.nowFn(),
		Warmup:      warmup,
	}}
	t.pending[id] = entry
	entry.token = t.timers.Schedule(warmup, func() { t.fire(id, entry) })
	t.mu.Unlock()
	return true
}

// fire completes a warmup. Removal from the pending map decides whether
// the teleport still happens; a concurrent cancellation that removed the
// entry first turns this into a no-op. The entry identity check keeps a
// stale timer from a superseded request away from its successor.
func (t *TeleportScheduler) fire(id domain.PlayerID, entry *pendingEntry) {
	t.mu.Lock()
	current, ok := t.pending[id]
	if ok && current == entry {
		delete(t.pending, id)
	} else {
		ok = false
	}
	t.mu.Unlock()
	if !ok {
		return
	}
	t.execute(id, entry.Owner, entry.Destination)
}

// execute relocates the player, reports the outcome, and on success
// records the teleport for cooldown tracking and stamps the home's
// last-used time.
func (t *TeleportScheduler) execute(id, owner domain.PlayerID, destination domain.Home) domain.TeleportResult {
	result := t.executor.Execute(id, destination)
	t.notifier.Notify(id, result.Message())
	t.metrics.TeleportResult(string(result))
	if result.Success() {
		t.homes.RecordTeleport(id)
		t.homes.TouchHome(owner, destination.Name())
	} else {
		t.logger.Debug("teleport failed", "player", id, "home", destination.Name(), "result", result)
	}
	return result
}

// CheckMovement cancels the player's pending teleport when they strayed
// more than half a block from the warmup start position. A world change
// counts as movement. Returns whether a cancellation happened. Safe to
// call repeatedly and concurrently with the warmup firing.
func (t *TeleportScheduler) CheckMovement(id domain.PlayerID, current domain.Location) bool {
	if !t.cfg.CancelOnMove {
		return false
	}
	t.mu.Lock()
	entry, ok := t.pending[id]
	if ok {
		moved := current.World != entry.From.World ||
			current.DistanceSquared(entry.From) > movementCancelDistanceSq
		if !moved {
			t.mu.Unlock()
			return false
		}
		delete(t.pending, id)
		entry.token.Cancel()
	}
	t.mu.Unlock()
	if !ok {
		return false
	}
	t.report(id, domain.ResultCancelledMoved)
	return true
}

// CancelOnDamage cancels the player's pending teleport because they took
// damage, when damage cancellation is enabled.
func (t *TeleportScheduler) CancelOnDamage(id domain.PlayerID) bool {
	if !t.cfg.CancelOnDamage {
		return false
	}
	if !t.remove(id) {
		return false
	}
	t.report(id, domain.ResultCancelledDamage)
	return true
}

// CancelManual cancels the player's pending teleport at their own request.
func (t *TeleportScheduler) CancelManual(id domain.PlayerID) bool {
	if !t.remove(id) {
		return false
	}
	t.report(id, domain.ResultCancelledManual)
	return true
}

// CancelPending silently drops any pending teleport for the player. Used
// on disconnect and when a new request supersedes an old one. Idempotent.
func (t *TeleportScheduler) CancelPending(id domain.PlayerID) {
	t.remove(id)
}

// remove drops the pending entry and cancels its timer, reporting whether
// an entry was present.
func (t *TeleportScheduler) remove(id domain.PlayerID) bool {
	t.mu.Lock()
	entry, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
		entry.token.Cancel()
	}
	t.mu.Unlock()
	return ok
}

func (t *TeleportScheduler) report(id domain.PlayerID, result domain.TeleportResult) {
	t.notifier.Notify(id, result.Message())
	t.metrics.TeleportResult(string(result))
}

// HasPending reports whether the player has a teleport in warmup.
func (t *TeleportScheduler) HasPending(id domain.PlayerID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.pending[id]
	return ok
}

// Pending returns a copy of the player's in-flight teleport state.
func (t *TeleportScheduler) Pending(id domain.PlayerID) (PendingTeleport, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.pending[id]
	if !ok {
		return PendingTeleport{}, false
	}
	return entry.PendingTeleport, true
}
