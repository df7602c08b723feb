package core

import (
	"log/slog"

	"homewarp/pkg/domain"
)

// Grant nodes consulted by the engine. Explicit grants always win over
// configuration defaults.
const (
	// GrantUnlimitedHomes lifts the home count limit entirely.
	GrantUnlimitedHomes = "homes.limit.unlimited"
	// GrantLimitPrefix prefixes numeric per-player home limit grants.
	GrantLimitPrefix = "homes.limit."
	// GrantBypassWarmup teleports the holder without a warmup delay.
	GrantBypassWarmup = "homes.bypass.warmup"
	// GrantBypassCooldown exempts the holder from the teleport cooldown.
	GrantBypassCooldown = "homes.bypass.cooldown"
	// GrantTeleportOthers lets staff reach homes not shared with them.
	GrantTeleportOthers = "homes.teleport.others"
)

// PermissionResolver answers grant queries for players. Implementations
// wrap whatever permission system the host game server provides.
type PermissionResolver interface {
	// HasGrant reports whether the player holds the named grant.
	HasGrant(id domain.PlayerID, node string) bool
	// NumericGrant resolves the highest numeric grant under prefix,
	// falling back to the supplied default when none is held.
	NumericGrant(id domain.PlayerID, prefix string, fallback int) int
}

// NoGrants is the resolver used when no permission system is attached:
// nobody holds any grant, so configuration defaults apply to everyone.
type NoGrants struct{}

// HasGrant always reports false.
func (NoGrants) HasGrant(domain.PlayerID, string) bool { return false }

// NumericGrant always returns the fallback.
func (NoGrants) NumericGrant(_ domain.PlayerID, _ string, fallback int) int { return fallback }

// StaticResolver resolves grants from fixed maps. Intended for tests and
// standalone deployments without a live permission system.
type StaticResolver struct {
	Grants map[domain.PlayerID]map[string]bool
	Limits map[domain.PlayerID]int
}

// HasGrant reports membership in the static grant map.
func (r *StaticResolver) HasGrant(id domain.PlayerID, node string) bool {
	return r.Grants[id][node]
}

// NumericGrant returns the static limit for the player, else fallback.
func (r *StaticResolver) NumericGrant(id domain.PlayerID, _ string, fallback int) int {
	if n, ok := r.Limits[id]; ok {
		return n
	}
	return fallback
}

// FailOpen wraps a resolver so that panics from a misbehaving permission
// backend degrade to permissive defaults instead of crashing the request
// path. Availability wins over strictness here: a player without a
// reachable permission system still gets the configured defaults.
type FailOpen struct {
	Next   PermissionResolver
	Logger *slog.Logger
}

// HasGrant delegates, reporting false when the backend is absent or panics.
func (f FailOpen) HasGrant(id domain.PlayerID, node string) (held bool) {
	if f.Next == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			f.logFailure(node, r)
			held = false
		}
	}()
	return f.Next.HasGrant(id, node)
}

// NumericGrant delegates, returning the fallback when the backend is
// absent or panics.
func (f FailOpen) NumericGrant(id domain.PlayerID, prefix string, fallback int) (n int) {
	if f.Next == nil {
		return fallback
	}
	defer func() {
		if r := recover(); r != nil {
			f.logFailure(prefix, r)
			n = fallback
		}
	}()
	return f.Next.NumericGrant(id, prefix, fallback)
}

func (f FailOpen) logFailure(node string, cause any) {
	if f.Logger == nil {
		return
	}
	f.Logger.Warn("permission resolver failed, using defaults", "node", node, "cause", cause)
}
