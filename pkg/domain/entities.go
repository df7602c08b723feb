// Package domain defines the core value types of the home/teleport engine:
// player identity, world locations, immutable home records, and the
// per-player aggregate the engine caches while a player is online.
package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PlayerID uniquely identifies a player account.
type PlayerID = uuid.UUID

// NilPlayerID is the zero player identifier.
var NilPlayerID = uuid.Nil

// EntityType identifies the kind of record referenced by an error or change.
type EntityType string

// Supported entity type identifiers.
const (
	// EntityPlayer identifies a cached player collection.
	EntityPlayer EntityType = "player"
	// EntityHome identifies a named home record.
	EntityHome EntityType = "home"
	// EntityShareRequest identifies a pending share request.
	EntityShareRequest EntityType = "share_request"
)

// Location is an immutable position in a game world: world identifier,
// coordinates, and view orientation. It is passed by value; the WithX
// methods return modified copies.
type Location struct {
	World string  `json:"world"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Yaw   float32 `json:"yaw"`
	Pitch float32 `json:"pitch"`
}

// WithOrientation returns a copy with updated yaw and pitch.
func (l Location) WithOrientation(yaw, pitch float32) Location {
	l.Yaw = yaw
	l.Pitch = pitch
	return l
}

// DistanceSquared returns the squared straight-line distance to other,
// ignoring orientation and world. Callers comparing positions across
// worlds must check the world identifiers themselves.
func (l Location) DistanceSquared(other Location) float64 {
	dx := l.X - other.X
	dy := l.Y - other.Y
	dz := l.Z - other.Z
	return dx*dx + dy*dy + dz*dz
}

// Home is an immutable named location. The display name preserves its
// original casing while lookups use the lowercase form (Key). All updates
// are copy-on-write: the receiver is never modified.
type Home struct {
	name      string
	location  Location
	createdAt time.Time
	lastUsed  time.Time
	shared    map[PlayerID]struct{}
}

// NewHome constructs a home record with an empty share set.
func NewHome(name string, location Location, createdAt time.Time) Home {
	return Home{
		name:      name,
		location:  location,
		createdAt: createdAt,
		lastUsed:  createdAt,
	}
}

// Name returns the display name with its original casing.
func (h Home) Name() string { return h.name }

// Key returns the lowercase lookup key for the home.
func (h Home) Key() string { return strings.ToLower(h.name) }

// Location returns the stored destination.
func (h Home) Location() Location { return h.location }

// CreatedAt returns the creation timestamp.
func (h Home) CreatedAt() time.Time { return h.createdAt }

// LastUsed returns the last teleport-use timestamp.
func (h Home) LastUsed() time.Time { return h.lastUsed }

// WithLocation returns a copy pointing at the given location.
func (h Home) WithLocation(location Location) Home {
	h.location = location
	return h
}

// WithLastUsed returns a copy stamped with the given use time.
func (h Home) WithLastUsed(t time.Time) Home {
	h.lastUsed = t
	return h
}

// WithSharedPlayer returns a copy whose share set includes id.
func (h Home) WithSharedPlayer(id PlayerID) Home {
	shared := make(map[PlayerID]struct{}, len(h.shared)+1)
	for k := range h.shared {
		shared[k] = struct{}{}
	}
	shared[id] = struct{}{}
	h.shared = shared
	return h
}

// WithoutSharedPlayer returns a copy whose share set excludes id.
func (h Home) WithoutSharedPlayer(id PlayerID) Home {
	if _, ok := h.shared[id]; !ok {
		return h
	}
	shared := make(map[PlayerID]struct{}, len(h.shared)-1)
	for k := range h.shared {
		if k != id {
			shared[k] = struct{}{}
		}
	}
	h.shared = shared
	return h
}

// IsSharedWith reports whether the home is shared with id.
func (h Home) IsSharedWith(id PlayerID) bool {
	_, ok := h.shared[id]
	return ok
}

// SharedWith returns the share set as a sorted slice copy. Never nil.
func (h Home) SharedWith() []PlayerID {
	out := make([]PlayerID, 0, len(h.shared))
	for id := range h.shared {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// SharedCount returns the number of players the home is shared with.
func (h Home) SharedCount() int { return len(h.shared) }

// PlayerHomes is the mutable per-player aggregate owned by the home store
// while a player is online. It is not internally synchronized; the owning
// store serializes access.
type PlayerHomes struct {
	id           PlayerID
	username     string
	homes        map[string]Home
	lastTeleport time.Time
}

// NewPlayerHomes constructs an empty collection for a player.
func NewPlayerHomes(id PlayerID, username string) *PlayerHomes {
	return &PlayerHomes{
		id:       id,
		username: username,
		homes:    make(map[string]Home),
	}
}

// ID returns the owning player identifier.
func (p *PlayerHomes) ID() PlayerID { return p.id }

// Username returns the display username recorded at connect time.
func (p *PlayerHomes) Username() string { return p.username }

// SetUsername refreshes the display username (players can rename between
// connections).
func (p *PlayerHomes) SetUsername(name string) { p.username = name }

// Home looks up a home by name, case-insensitively.
func (p *PlayerHomes) Home(name string) (Home, bool) {
	h, ok := p.homes[strings.ToLower(name)]
	return h, ok
}

// Set installs or replaces a home under its lowercase key.
func (p *PlayerHomes) Set(h Home) { p.homes[h.Key()] = h }

// Delete removes a home by name, case-insensitively, reporting whether it
// existed.
func (p *PlayerHomes) Delete(name string) bool {
	key := strings.ToLower(name)
	if _, ok := p.homes[key]; !ok {
		return false
	}
	delete(p.homes, key)
	return true
}

// Len returns the number of homes in the collection.
func (p *PlayerHomes) Len() int { return len(p.homes) }

// List returns the homes sorted by lookup key.
func (p *PlayerHomes) List() []Home {
	out := make([]Home, 0, len(p.homes))
	for _, h := range p.homes {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// LastTeleport returns the timestamp of the player's last successful
// teleport, zero if they never teleported.
func (p *PlayerHomes) LastTeleport() time.Time { return p.lastTeleport }

// SetLastTeleport records a successful teleport time.
func (p *PlayerHomes) SetLastTeleport(t time.Time) { p.lastTeleport = t }
