package domain

import (
	"context"
	"time"
)

// HomeSnapshot is the serializable form of a Home used by persistence
// drivers and exporters.
type HomeSnapshot struct {
	Name       string     `json:"name"`
	Location   Location   `json:"location"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsed   time.Time  `json:"last_used"`
	SharedWith []PlayerID `json:"shared_with,omitempty"`
}

// PlayerHomesSnapshot is the serializable form of a player's collection.
type PlayerHomesSnapshot struct {
	PlayerID     PlayerID       `json:"player_id"`
	Username     string         `json:"username"`
	Homes        []HomeSnapshot `json:"homes,omitempty"`
	LastTeleport time.Time      `json:"last_teleport,omitzero"`
}

// Snapshot converts the home to its serializable form.
func (h Home) Snapshot() HomeSnapshot {
	return HomeSnapshot{
		Name:       h.name,
		Location:   h.location,
		CreatedAt:  h.createdAt,
		LastUsed:   h.lastUsed,
		SharedWith: h.SharedWith(),
	}
}

// HomeFromSnapshot rebuilds an immutable home from its serialized form.
func HomeFromSnapshot(s HomeSnapshot) Home {
	h := Home{
		name:      s.Name,
		location:  s.Location,
		createdAt: s.CreatedAt,
		lastUsed:  s.LastUsed,
	}
	if len(s.SharedWith) > 0 {
		h.shared = make(map[PlayerID]struct{}, len(s.SharedWith))
		for _, id := range s.SharedWith {
			h.shared[id] = struct{}{}
		}
	}
	return h
}

// Snapshot produces a deep, serializable copy of the collection.
func (p *PlayerHomes) Snapshot() PlayerHomesSnapshot {
	out := PlayerHomesSnapshot{
		PlayerID:     p.id,
		Username:     p.username,
		LastTeleport: p.lastTeleport,
	}
	for _, h := range p.List() {
		out.Homes = append(out.Homes, h.Snapshot())
	}
	return out
}

// PlayerHomesFromSnapshot rebuilds a collection from its serialized form.
func PlayerHomesFromSnapshot(s PlayerHomesSnapshot) *PlayerHomes {
	p := NewPlayerHomes(s.PlayerID, s.Username)
	p.lastTeleport = s.LastTeleport
	for _, hs := range s.Homes {
		p.Set(HomeFromSnapshot(hs))
	}
	return p
}

// Store is the asynchronous persistence collaborator for player home
// collections. The engine treats it as best effort: the in-memory cache
// remains the source of truth and failed writes are logged, not retried.
type Store interface {
	// Init prepares the backing storage (schema creation, connectivity).
	Init(ctx context.Context) error
	// Shutdown releases the backing storage after in-flight work drains.
	Shutdown(ctx context.Context) error
	// Load fetches a player's snapshot. The boolean reports presence.
	Load(ctx context.Context, id PlayerID) (PlayerHomesSnapshot, bool, error)
	// Save upserts a player's snapshot.
	Save(ctx context.Context, snapshot PlayerHomesSnapshot) error
	// Delete removes a player's snapshot. Absent rows are not an error.
	Delete(ctx context.Context, id PlayerID) error
}
