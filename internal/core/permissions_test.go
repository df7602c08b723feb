package core

import (
	"testing"

	"github.com/google/uuid"

	"homewarp/pkg/domain"
)

type panickyResolver struct{}

func (panickyResolver) HasGrant(domain.PlayerID, string) bool {
	panic("backend gone")
}

func (panickyResolver) NumericGrant(domain.PlayerID, string, int) int {
	panic("backend gone")
}

func TestFailOpenRecoversPanics(t *testing.T) {
	f := FailOpen{Next: panickyResolver{}, Logger: testLogger()}
	id := uuid.New()

	if f.HasGrant(id, GrantBypassWarmup) {
		t.Fatal("panicking backend must deny grants")
	}
	if got := f.NumericGrant(id, GrantLimitPrefix, 3); got != 3 {
		t.Fatalf("panicking backend must fall back, got %d", got)
	}
}

func TestFailOpenWithoutBackend(t *testing.T) {
	f := FailOpen{}
	if f.HasGrant(uuid.New(), GrantUnlimitedHomes) {
		t.Fatal("nil backend must deny grants")
	}
	if got := f.NumericGrant(uuid.New(), GrantLimitPrefix, 7); got != 7 {
		t.Fatalf("nil backend fallback = %d", got)
	}
}

func TestFailOpenDelegates(t *testing.T) {
	id := uuid.New()
	f := FailOpen{Next: &StaticResolver{
		Grants: map[domain.PlayerID]map[string]bool{id: {GrantBypassCooldown: true}},
		Limits: map[domain.PlayerID]int{id: 12},
	}}
	if !f.HasGrant(id, GrantBypassCooldown) {
		t.Fatal("grant lost through the wrapper")
	}
	if got := f.NumericGrant(id, GrantLimitPrefix, 3); got != 12 {
		t.Fatalf("numeric grant = %d", got)
	}
}
