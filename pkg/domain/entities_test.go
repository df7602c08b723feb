package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestHomeSharingCopyOnWrite(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	home := NewHome("Base", Location{World: "overworld", X: 1, Y: 64, Z: -3}, created)
	if got := home.SharedCount(); got != 0 {
		t.Fatalf("new home shared count = %d, want 0", got)
	}
	if home.SharedWith() == nil {
		t.Fatal("SharedWith must never be nil")
	}

	friend := uuid.New()
	shared := home.WithSharedPlayer(friend)
	if !shared.IsSharedWith(friend) {
		t.Fatal("copy should be shared with friend")
	}
	if home.IsSharedWith(friend) {
		t.Fatal("original must not be mutated by WithSharedPlayer")
	}

	unshared := shared.WithoutSharedPlayer(friend)
	if unshared.IsSharedWith(friend) {
		t.Fatal("WithoutSharedPlayer should remove the player")
	}
	if !shared.IsSharedWith(friend) {
		t.Fatal("original must not be mutated by WithoutSharedPlayer")
	}
	if got, want := unshared.SharedCount(), home.SharedCount(); got != want {
		t.Fatalf("share set after add+remove = %d entries, want %d", got, want)
	}
}

func TestHomeKeyPreservesDisplayCasing(t *testing.T) {
	home := NewHome("MyBase", Location{World: "overworld"}, time.Now())
	if got := home.Key(); got != "mybase" {
		t.Fatalf("key = %q, want %q", got, "mybase")
	}
	if got := home.Name(); got != "MyBase" {
		t.Fatalf("display name = %q, want original casing preserved", got)
	}
}

func TestPlayerHomesCaseInsensitiveLookup(t *testing.T) {
	p := NewPlayerHomes(uuid.New(), "steve")
	p.Set(NewHome("Castle", Location{World: "overworld"}, time.Now()))

	if _, ok := p.Home("CASTLE"); !ok {
		t.Fatal("lookup should be case-insensitive")
	}
	if p.Len() != 1 {
		t.Fatalf("len = %d, want 1", p.Len())
	}

	// Same lowercase key overwrites rather than duplicating.
	p.Set(NewHome("castle", Location{World: "nether"}, time.Now()))
	if p.Len() != 1 {
		t.Fatalf("overwrite should keep len 1, got %d", p.Len())
	}
	home, _ := p.Home("Castle")
	if home.Location().World != "nether" {
		t.Fatalf("overwrite did not replace the record: world = %q", home.Location().World)
	}

	if !p.Delete("cAsTlE") {
		t.Fatal("delete should be case-insensitive")
	}
	if p.Delete("castle") {
		t.Fatal("second delete should report missing")
	}
}

func TestPlayerHomesSnapshotRoundTrip(t *testing.T) {
	id := uuid.New()
	friend := uuid.New()
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	p := NewPlayerHomes(id, "alex")
	p.Set(NewHome("Base", Location{World: "overworld", X: 10, Y: 70, Z: 10, Yaw: 90}, created).WithSharedPlayer(friend))
	p.SetLastTeleport(created.Add(time.Hour))

	restored := PlayerHomesFromSnapshot(p.Snapshot())
	if restored.ID() != id || restored.Username() != "alex" {
		t.Fatalf("identity lost: %v %q", restored.ID(), restored.Username())
	}
	if !restored.LastTeleport().Equal(created.Add(time.Hour)) {
		t.Fatalf("last teleport lost: %v", restored.LastTeleport())
	}
	home, ok := restored.Home("base")
	if !ok {
		t.Fatal("home lost in round trip")
	}
	if home.Name() != "Base" {
		t.Fatalf("display casing lost: %q", home.Name())
	}
	if !home.IsSharedWith(friend) {
		t.Fatal("share set lost in round trip")
	}
}

func TestLocationDistanceSquared(t *testing.T) {
	a := Location{World: "overworld", X: 0, Y: 64, Z: 0}
	b := Location{World: "overworld", X: 0.3, Y: 64, Z: 0.4}
	if got := a.DistanceSquared(b); got != 0.25 {
		t.Fatalf("distance squared = %v, want 0.25", got)
	}
}

func TestTeleportResultMessages(t *testing.T) {
	results := []TeleportResult{
		ResultSuccess, ResultCancelledMoved, ResultCancelledDamage,
		ResultCancelledManual, ResultWorldNotFound, ResultUnsafeLocation,
	}
	seen := make(map[string]TeleportResult)
	for _, r := range results {
		msg := r.Message()
		if msg == "" {
			t.Fatalf("result %s has no message", r)
		}
		if prev, dup := seen[msg]; dup {
			t.Fatalf("results %s and %s share message %q", prev, r, msg)
		}
		seen[msg] = r
	}
	if !ResultSuccess.Success() {
		t.Fatal("ResultSuccess.Success() = false")
	}
	if ResultCancelledMoved.Success() {
		t.Fatal("cancelled result reports success")
	}
}
