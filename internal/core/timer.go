package core

import "time"

// TimerToken cancels a scheduled callback. Cancel is idempotent and safe
// to call concurrently with the callback firing; whether the callback ran
// is arbitrated by the caller's own state, not by the token.
type TimerToken interface {
	Cancel()
}

// TimerService registers deferred callbacks. Implementations must invoke
// the callback asynchronously, never from inside Schedule.
type TimerService interface {
	Schedule(delay time.Duration, fn func()) TimerToken
}

// SystemTimers schedules callbacks on the runtime timer heap.
type SystemTimers struct{}

type systemToken struct {
	timer *time.Timer
}

func (t systemToken) Cancel() { t.timer.Stop() }

// Schedule runs fn after delay on its own goroutine.
func (SystemTimers) Schedule(delay time.Duration, fn func()) TimerToken {
	return systemToken{timer: time.AfterFunc(delay, fn)}
}
