// Package core implements the home/teleport engine: the authoritative
// in-memory cache of player home collections, the share-request registry,
// and the teleport warmup state machine.
package core

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"homewarp/internal/metrics"
	"homewarp/pkg/domain"
)

// HomeStore is the authoritative in-memory cache of per-player home
// collections. Persistence is asynchronous and best effort: a failed save
// is logged and dropped, and the cache stays the source of truth.
//
// The cache map is the sole synchronization primitive. Single operations
// are atomic per player, but multi-call sequences are not transactional:
// two concurrent SetHome calls for the same new name race last-write-wins.
type HomeStore struct {
	mu      sync.RWMutex
	players map[domain.PlayerID]*domain.PlayerHomes

	storage domain.Store
	perms   PermissionResolver
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Set

	nowFn func() time.Time
	saves sync.WaitGroup
}

// NewHomeStore constructs a store over the given persistence backend and
// permission resolver. logger and m may be nil.
func NewHomeStore(storage domain.Store, perms PermissionResolver, cfg Config, logger *slog.Logger, m *metrics.Set) *HomeStore {
	if logger == nil {
		logger = slog.Default()
	}
	if perms == nil {
		perms = NoGrants{}
	}
	return &HomeStore{
		players: make(map[domain.PlayerID]*domain.PlayerHomes),
		storage: storage,
		perms:   perms,
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
}

// Load fetches the player's persisted snapshot, or starts an empty
// collection, refreshes the username, and installs the result into the
// cache. Concurrent loads for the same player race last-write-wins; callers
// load once per connect. Persistence failures degrade to an empty
// collection rather than failing the connect.
func (s *HomeStore) Load(ctx context.Context, id domain.PlayerID, username string) *domain.PlayerHomes {
	var collection *domain.PlayerHomes
	snapshot, ok, err := s.storage.Load(ctx, id)
	switch {
	case err != nil:
		s.logger.Error("load player homes", "player", id, "err", err)
		collection = domain.NewPlayerHomes(id, username)
	case ok:
		collection = domain.PlayerHomesFromSnapshot(snapshot)
		collection.SetUsername(username)
	default:
		collection = domain.NewPlayerHomes(id, username)
	}

	s.mu.Lock()
	s.players[id] = collection
	s.metrics.SetCachedPlayers(len(s.players))
	s.mu.Unlock()
	return collection
}

// Unload removes the player from the cache after a final asynchronous
// persist. Subsequent reads return empty results until the player loads
// again.
func (s *HomeStore) Unload(id domain.PlayerID) {
	s.mu.Lock()
	collection, ok := s.players[id]
	if ok {
		delete(s.players, id)
	}
	s.metrics.SetCachedPlayers(len(s.players))
	s.mu.Unlock()
	if ok {
		s.persistAsync(collection.Snapshot())
	}
}

// SetHome installs a home for the player. An existing home with the same
// lowercase name is overwritten unconditionally; a new name is admitted
// only while the player's count is below the resolved limit. Returns false
// when the player has no cached collection or the limit is reached.
func (s *HomeStore) SetHome(id domain.PlayerID, home domain.Home) bool {
	return s.setHome(id, home, false)
}

// SetHomeBypassingLimit installs a home without the limit check. Used for
// system-generated homes such as bed sync and migration imports.
func (s *HomeStore) SetHomeBypassingLimit(id domain.PlayerID, home domain.Home) {
	s.setHome(id, home, true)
}

func (s *HomeStore) setHome(id domain.PlayerID, home domain.Home, bypassLimit bool) bool {
	s.mu.Lock()
	collection, ok := s.players[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	if _, exists := collection.Home(home.Name()); !exists && !bypassLimit {
		// The limit applies only to creating new names, never to overwrite.
		if limit := s.homeLimit(id); limit >= 0 && collection.Len() >= limit {
			s.mu.Unlock()
			return false
		}
	}
	collection.Set(home)
	snapshot := collection.Snapshot()
	s.mu.Unlock()
	s.persistAsync(snapshot)
	return true
}

// GetHome looks up one of the player's homes by name, case-insensitively.
func (s *HomeStore) GetHome(id domain.PlayerID, name string) (domain.Home, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	collection, ok := s.players[id]
	if !ok {
		return domain.Home{}, false
	}
	return collection.Home(name)
}

// Homes returns the player's homes sorted by name. Empty when the player
// is not cached.
func (s *HomeStore) Homes(id domain.PlayerID) []domain.Home {
	s.mu.RLock()
	defer s.mu.RUnlock()
	collection, ok := s.players[id]
	if !ok {
		return nil
	}
	return collection.List()
}

// DeleteHome removes a home by name, reporting whether it existed.
func (s *HomeStore) DeleteHome(id domain.PlayerID, name string) bool {
	s.mu.Lock()
	collection, ok := s.players[id]
	if !ok || !collection.Delete(name) {
		s.mu.Unlock()
		return false
	}
	snapshot := collection.Snapshot()
	s.mu.Unlock()
	s.persistAsync(snapshot)
	return true
}

// TouchHome stamps a home's last-used time. No-op when the owner or home
// is gone; an in-flight teleport keeps working from its own snapshot.
func (s *HomeStore) TouchHome(owner domain.PlayerID, name string) {
	s.mu.Lock()
	collection, ok := s.players[owner]
	if !ok {
		s.mu.Unlock()
		return
	}
	home, ok := collection.Home(name)
	if !ok {
		s.mu.Unlock()
		return
	}
	collection.Set(home.WithLastUsed(s.nowFn()))
	snapshot := collection.Snapshot()
	s.mu.Unlock()
	s.persistAsync(snapshot)
}

// HomeLimit resolves the player's home limit: the unlimited grant wins
// (-1), then an explicit numeric grant, then the configured default.
func (s *HomeStore) HomeLimit(id domain.PlayerID) int {
	return s.homeLimit(id)
}

func (s *HomeStore) homeLimit(id domain.PlayerID) int {
	if s.perms.HasGrant(id, GrantUnlimitedHomes) {
		return -1
	}
	return s.perms.NumericGrant(id, GrantLimitPrefix, s.cfg.DefaultHomeLimit)
}

// RemainingCooldown returns how long the player must still wait before the
// next teleport: zero with a bypass grant, zero if they never teleported,
// else the configured cooldown minus the elapsed time.
func (s *HomeStore) RemainingCooldown(id domain.PlayerID) time.Duration {
	if s.perms.HasGrant(id, GrantBypassCooldown) {
		return 0
	}
	s.mu.RLock()
	collection, ok := s.players[id]
	var last time.Time
	if ok {
		last = collection.LastTeleport()
	}
	s.mu.RUnlock()
	if !ok || last.IsZero() {
		return 0
	}
	remaining := s.cfg.TeleportCooldown - s.nowFn().Sub(last)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RecordTeleport stamps the player's last successful teleport time.
func (s *HomeStore) RecordTeleport(id domain.PlayerID) {
	s.mu.Lock()
	collection, ok := s.players[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	collection.SetLastTeleport(s.nowFn())
	snapshot := collection.Snapshot()
	s.mu.Unlock()
	s.persistAsync(snapshot)
}

// ShareHome adds target to the share set of the owner's named home.
// Rejects a missing home and self-sharing.
func (s *HomeStore) ShareHome(owner domain.PlayerID, name string, target domain.PlayerID) bool {
	if owner == target {
		return false
	}
	s.mu.Lock()
	collection, ok := s.players[owner]
	if !ok {
		s.mu.Unlock()
		return false
	}
	home, ok := collection.Home(name)
	if !ok {
		s.mu.Unlock()
		return false
	}
	collection.Set(home.WithSharedPlayer(target))
	snapshot := collection.Snapshot()
	s.mu.Unlock()
	s.persistAsync(snapshot)
	return true
}

// UnshareHome removes target from the share set. Rejects when the home is
// not currently shared with target.
func (s *HomeStore) UnshareHome(owner domain.PlayerID, name string, target domain.PlayerID) bool {
	s.mu.Lock()
	collection, ok := s.players[owner]
	if !ok {
		s.mu.Unlock()
		return false
	}
	home, ok := collection.Home(name)
	if !ok || !home.IsSharedWith(target) {
		s.mu.Unlock()
		return false
	}
	collection.Set(home.WithoutSharedPlayer(target))
	snapshot := collection.Snapshot()
	s.mu.Unlock()
	s.persistAsync(snapshot)
	return true
}

// SharedHome returns the owner's named home when requester may use it:
// either requester is in its share set, or requester holds the staff
// teleport-to-others grant.
func (s *HomeStore) SharedHome(requester, owner domain.PlayerID, name string) (domain.Home, bool) {
	home, ok := s.GetHome(owner, name)
	if !ok {
		return domain.Home{}, false
	}
	if home.IsSharedWith(requester) || s.perms.HasGrant(requester, GrantTeleportOthers) {
		return home, true
	}
	return domain.Home{}, false
}

// HomesSharedWith collects, per cached owner, the homes shared with
// target. Target's own homes are never included. Iteration is weakly
// consistent; this runs only for interactive listings.
func (s *HomeStore) HomesSharedWith(target domain.PlayerID) map[domain.PlayerID][]domain.Home {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[domain.PlayerID][]domain.Home)
	for owner, collection := range s.players {
		if owner == target {
			continue
		}
		for _, home := range collection.List() {
			if home.IsSharedWith(target) {
				out[owner] = append(out[owner], home)
			}
		}
	}
	return out
}

// FindPlayerByName resolves a currently cached (online) player by display
// username, case-insensitively. Offline players cannot be share targets.
func (s *HomeStore) FindPlayerByName(name string) (domain.PlayerID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for id, collection := range s.players {
		if strings.EqualFold(collection.Username(), name) {
			return id, true
		}
	}
	return domain.NilPlayerID, false
}

// Username returns the cached display name for a player.
func (s *HomeStore) Username(id domain.PlayerID) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	collection, ok := s.players[id]
	if !ok {
		return "", false
	}
	return collection.Username(), true
}

// Snapshots returns serializable copies of every cached collection, for
// exporters and full-state inspection.
func (s *HomeStore) Snapshots() []domain.PlayerHomesSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.PlayerHomesSnapshot, 0, len(s.players))
	for _, collection := range s.players {
		out = append(out, collection.Snapshot())
	}
	return out
}

// Shutdown persists every cached collection, waits for all in-flight
// saves, and shuts the persistence backend down. ctx bounds the wait.
func (s *HomeStore) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	snapshots := make([]domain.PlayerHomesSnapshot, 0, len(s.players))
	for _, collection := range s.players {
		snapshots = append(snapshots, collection.Snapshot())
	}
	s.players = make(map[domain.PlayerID]*domain.PlayerHomes)
	s.metrics.SetCachedPlayers(0)
	s.mu.Unlock()

	for _, snapshot := range snapshots {
		if err := s.storage.Save(ctx, snapshot); err != nil {
			s.logger.Error("save player homes on shutdown", "player", snapshot.PlayerID, "err", err)
			s.metrics.SaveFailure()
		}
	}

	done := make(chan struct{})
	go func() {
		s.saves.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.storage.Shutdown(ctx)
}

// persistAsync fires a best-effort background save. Failures are logged
// and counted, never surfaced to the caller, and not retried.
func (s *HomeStore) persistAsync(snapshot domain.PlayerHomesSnapshot) {
	s.saves.Add(1)
	go func() {
		defer s.saves.Done()
		if err := s.storage.Save(context.Background(), snapshot); err != nil {
			s.logger.Error("save player homes", "player", snapshot.PlayerID, "err", err)
			s.metrics.SaveFailure()
		}
	}()
}
