package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"homewarp/internal/infra/persistence/memory"
	"homewarp/pkg/domain"
)

type fakeTimer struct {
	delay     time.Duration
	fn        func()
	cancelled bool
}

func (t *fakeTimer) Cancel() { t.cancelled = true }

// fakeTimers captures scheduled callbacks so tests fire or abandon them
// explicitly.
type fakeTimers struct {
	scheduled []*fakeTimer
}

func (f *fakeTimers) Schedule(delay time.Duration, fn func()) TimerToken {
	timer := &fakeTimer{delay: delay, fn: fn}
	f.scheduled = append(f.scheduled, timer)
	return timer
}

func (f *fakeTimers) last(t *testing.T) *fakeTimer {
	t.Helper()
	if len(f.scheduled) == 0 {
		t.Fatal("no timer scheduled")
	}
	return f.scheduled[len(f.scheduled)-1]
}

type fakeExecutor struct {
	result domain.TeleportResult
	calls  int
	lastTo domain.Home
}

func (e *fakeExecutor) Execute(_ domain.PlayerID, destination domain.Home) domain.TeleportResult {
	e.calls++
	e.lastTo = destination
	return e.result
}

type fakeNotifier struct {
	messages []string
}

func (n *fakeNotifier) Notify(_ domain.PlayerID, message string) {
	n.messages = append(n.messages, message)
}

type teleportFixture struct {
	store     *HomeStore
	scheduler *TeleportScheduler
	timers    *fakeTimers
	executor  *fakeExecutor
	notifier  *fakeNotifier
}

func newTeleportFixture(t *testing.T, perms PermissionResolver, cfg Config) *teleportFixture {
	t.Helper()
	f := &teleportFixture{
		store:    NewHomeStore(memory.NewStore(), perms, cfg, testLogger(), nil),
		timers:   &fakeTimers{},
		executor: &fakeExecutor{result: domain.ResultSuccess},
		notifier: &fakeNotifier{},
	}
	f.scheduler = NewTeleportScheduler(f.store, perms, f.timers, f.executor, f.notifier, cfg, testLogger(), nil)
	return f
}

func (f *teleportFixture) loadWithHome(t *testing.T, id domain.PlayerID, name string) domain.Home {
	t.Helper()
	f.store.Load(context.Background(), id, "steve")
	home := domain.NewHome(name, loc("overworld", 100, 64, 100), time.Now().Add(-time.Hour))
	if !f.store.SetHome(id, home) {
		t.Fatalf("seeding home %q failed", name)
	}
	return home
}

func TestRequestTeleportWithWarmup(t *testing.T) {
	f := newTeleportFixture(t, nil, DefaultConfig())
	player := uuid.New()
	home := f.loadWithHome(t, player, "base")

	if !f.scheduler.RequestTeleport(player, player, home, loc("overworld", 0, 64, 0)) {
		t.Fatal("request rejected")
	}
	if f.executor.calls != 0 {
		t.Fatal("executor must not run during warmup")
	}
	if !f.scheduler.HasPending(player) {
		t.Fatal("no pending teleport after request")
	}
	if len(f.notifier.messages) == 0 || !strings.Contains(f.notifier.messages[0], "don't move") {
		t.Fatalf("missing warmup notification: %v", f.notifier.messages)
	}

	timer := f.timers.last(t)
	if timer.delay != DefaultConfig().TeleportWarmup {
		t.Fatalf("warmup scheduled for %v", timer.delay)
	}
	timer.fn()

	if f.executor.calls != 1 {
		t.Fatalf("executor calls = %d, want 1", f.executor.calls)
	}
	if f.executor.lastTo.Name() != "base" {
		t.Fatalf("teleported to %q", f.executor.lastTo.Name())
	}
	if f.scheduler.HasPending(player) {
		t.Fatal("pending state must clear after firing")
	}
	if f.store.RemainingCooldown(player) <= 0 {
		t.Fatal("successful teleport must start the cooldown")
	}
	if home, _ := f.store.GetHome(player, "base"); !home.LastUsed().After(home.CreatedAt()) {
		t.Fatal("successful teleport must stamp last-used")
	}
}

func TestBypassWarmupExecutesImmediately(t *testing.T) {
	player := uuid.New()
	perms := &StaticResolver{Grants: map[domain.PlayerID]map[string]bool{
		player: {GrantBypassWarmup: true},
	}}
	f := newTeleportFixture(t, perms, DefaultConfig())
	home := f.loadWithHome(t, player, "base")

	if !f.scheduler.RequestTeleport(player, player, home, loc("overworld", 0, 64, 0)) {
		t.Fatal("immediate teleport reported failure")
	}
	if f.executor.calls != 1 {
		t.Fatalf("executor calls = %d, want 1", f.executor.calls)
	}
	if len(f.timers.scheduled) != 0 {
		t.Fatal("bypass must not schedule a timer")
	}
	if f.scheduler.HasPending(player) {
		t.Fatal("bypass must leave no pending state")
	}
}

func TestZeroWarmupConfigExecutesImmediately(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TeleportWarmup = 0
	f := newTeleportFixture(t, nil, cfg)
	player := uuid.New()
	home := f.loadWithHome(t, player, "base")

	if !f.scheduler.RequestTeleport(player, player, home, loc("overworld", 0, 64, 0)) {
		t.Fatal("immediate teleport reported failure")
	}
	if f.executor.calls != 1 || len(f.timers.scheduled) != 0 {
		t.Fatalf("calls=%d timers=%d, want 1 and 0", f.executor.calls, len(f.timers.scheduled))
	}
}

func TestMovementCancelBoundary(t *testing.T) {
	f := newTeleportFixture(t, nil, DefaultConfig())
	player := uuid.New()
	home := f.loadWithHome(t, player, "base")
	start := loc("overworld", 0, 64, 0)
	f.scheduler.RequestTeleport(player, player, home, start)

	// Exactly half a block of drift is tolerated.
	if f.scheduler.CheckMovement(player, loc("overworld", 0.3, 64, 0.4)) {
		t.Fatal("drift of exactly 0.5 blocks must not cancel")
	}
	if !f.scheduler.HasPending(player) {
		t.Fatal("pending lost without a cancel")
	}

	if !f.scheduler.CheckMovement(player, loc("overworld", 0.6, 64, 0)) {
		t.Fatal("drift beyond 0.5 blocks must cancel")
	}
	if f.scheduler.HasPending(player) {
		t.Fatal("pending must clear on cancel")
	}
	if !f.timers.last(t).cancelled {
		t.Fatal("warmup timer must be cancelled")
	}
	if f.executor.calls != 0 {
		t.Fatal("cancelled teleport must not execute")
	}
	last := f.notifier.messages[len(f.notifier.messages)-1]
	if last != domain.ResultCancelledMoved.Message() {
		t.Fatalf("player told %q", last)
	}
}

func TestWorldChangeCountsAsMovement(t *testing.T) {
	f := newTeleportFixture(t, nil, DefaultConfig())
	player := uuid.New()
	home := f.loadWithHome(t, player, "base")
	f.scheduler.RequestTeleport(player, player, home, loc("overworld", 0, 64, 0))

	if !f.scheduler.CheckMovement(player, loc("nether", 0, 64, 0)) {
		t.Fatal("same coordinates in another world must cancel")
	}
}

func TestMovementCancelDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CancelOnMove = false
	f := newTeleportFixture(t, nil, cfg)
	player := uuid.New()
	home := f.loadWithHome(t, player, "base")
	f.scheduler.RequestTeleport(player, player, home, loc("overworld", 0, 64, 0))

	if f.scheduler.CheckMovement(player, loc("overworld", 500, 64, 500)) {
		t.Fatal("movement cancel disabled in config")
	}
	if !f.scheduler.HasPending(player) {
		t.Fatal("pending must survive")
	}
}

func TestDamageCancel(t *testing.T) {
	f := newTeleportFixture(t, nil, DefaultConfig())
	player := uuid.New()
	home := f.loadWithHome(t, player, "base")
	f.scheduler.RequestTeleport(player, player, home, loc("overworld", 0, 64, 0))

	if !f.scheduler.CancelOnDamage(player) {
		t.Fatal("damage must cancel a pending teleport")
	}
	if f.scheduler.CancelOnDamage(player) {
		t.Fatal("second damage cancel must be a no-op")
	}

	cfg := DefaultConfig()
	cfg.CancelOnDamage = false
	f = newTeleportFixture(t, nil, cfg)
	player = uuid.New()
	home = f.loadWithHome(t, player, "base")
	f.scheduler.RequestTeleport(player, player, home, loc("overworld", 0, 64, 0))
	if f.scheduler.CancelOnDamage(player) {
		t.Fatal("damage cancel disabled in config")
	}
}

func TestManualCancel(t *testing.T) {
	f := newTeleportFixture(t, nil, DefaultConfig())
	player := uuid.New()
	home := f.loadWithHome(t, player, "base")
	f.scheduler.RequestTeleport(player, player, home, loc("overworld", 0, 64, 0))

	if !f.scheduler.CancelManual(player) {
		t.Fatal("manual cancel found nothing")
	}
	if f.scheduler.CancelManual(player) {
		t.Fatal("nothing left to cancel")
	}
	last := f.notifier.messages[len(f.notifier.messages)-1]
	if last != domain.ResultCancelledManual.Message() {
		t.Fatalf("player told %q", last)
	}
}

func TestCancelledTimerFiringIsNoOp(t *testing.T) {
	f := newTeleportFixture(t, nil, DefaultConfig())
	player := uuid.New()
	home := f.loadWithHome(t, player, "base")
	f.scheduler.RequestTeleport(player, player, home, loc("overworld", 0, 64, 0))

	timer := f.timers.last(t)
	f.scheduler.CancelManual(player)
	// Simulates the race where the timer pops before Cancel lands.
	timer.fn()

	if f.executor.calls != 0 {
		t.Fatal("cancelled warmup must never execute")
	}
}

func TestNewRequestSupersedesPending(t *testing.T) {
	f := newTeleportFixture(t, nil, DefaultConfig())
	player := uuid.New()
	f.store.Load(context.Background(), player, "steve")
	first := domain.NewHome("first", loc("overworld", 10, 64, 10), time.Now())
	second := domain.NewHome("second", loc("nether", -10, 50, -10), time.Now())
	f.store.SetHomeBypassingLimit(player, first)
	f.store.SetHomeBypassingLimit(player, second)

	f.scheduler.RequestTeleport(player, player, first, loc("overworld", 0, 64, 0))
	staleTimer := f.timers.last(t)
	f.scheduler.RequestTeleport(player, player, second, loc("overworld", 0, 64, 0))

	if !staleTimer.cancelled {
		t.Fatal("superseded warmup timer must be cancelled")
	}
	pending, ok := f.scheduler.Pending(player)
	if !ok || pending.Destination.Name() != "second" {
		t.Fatalf("pending = %+v ok=%v, want second", pending, ok)
	}

	// A stale callback that raced past Cancel must not complete the
	// successor's warmup early.
	staleTimer.fn()
	if f.executor.calls != 0 {
		t.Fatal("stale timer fired the new teleport")
	}

	f.timers.last(t).fn()
	if f.executor.calls != 1 || f.executor.lastTo.Name() != "second" {
		t.Fatalf("calls=%d to=%q, want 1 to second", f.executor.calls, f.executor.lastTo.Name())
	}
}

func TestFailedTeleportRecordsNoCooldown(t *testing.T) {
	f := newTeleportFixture(t, nil, DefaultConfig())
	f.executor.result = domain.ResultUnsafeLocation
	player := uuid.New()
	home := f.loadWithHome(t, player, "base")

	f.scheduler.RequestTeleport(player, player, home, loc("overworld", 0, 64, 0))
	f.timers.last(t).fn()

	if f.executor.calls != 1 {
		t.Fatalf("executor calls = %d, want 1", f.executor.calls)
	}
	if got := f.store.RemainingCooldown(player); got != 0 {
		t.Fatalf("failed teleport started a %v cooldown", got)
	}
	if home, _ := f.store.GetHome(player, "base"); !home.LastUsed().Equal(home.CreatedAt()) {
		t.Fatal("failed teleport must not stamp last-used")
	}
	last := f.notifier.messages[len(f.notifier.messages)-1]
	if last != domain.ResultUnsafeLocation.Message() {
		t.Fatalf("player told %q", last)
	}
}
