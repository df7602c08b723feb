package domain

// TeleportResult is the outcome of a teleport attempt. Every value maps to
// exactly one short player-facing message; internal diagnostics never reach
// the player.
type TeleportResult string

// Teleport outcomes reported by executors and the warmup state machine.
const (
	// ResultSuccess indicates the player arrived at the destination.
	ResultSuccess TeleportResult = "success"
	// ResultCancelledMoved indicates the warmup was broken by movement.
	ResultCancelledMoved TeleportResult = "cancelled_moved"
	// ResultCancelledDamage indicates the warmup was broken by damage.
	ResultCancelledDamage TeleportResult = "cancelled_damage"
	// ResultCancelledManual indicates the player cancelled the warmup.
	ResultCancelledManual TeleportResult = "cancelled_manual"
	// ResultWorldNotFound indicates the destination world is not loaded.
	ResultWorldNotFound TeleportResult = "world_not_found"
	// ResultUnsafeLocation indicates the destination would harm the player.
	ResultUnsafeLocation TeleportResult = "unsafe_location"
)

// Success reports whether the result is a completed teleport.
func (r TeleportResult) Success() bool { return r == ResultSuccess }

// Message returns the player-facing notification for the result.
func (r TeleportResult) Message() string {
	switch r {
	case ResultSuccess:
		return "Teleported."
	case ResultCancelledMoved:
		return "Teleport cancelled: you moved."
	case ResultCancelledDamage:
		return "Teleport cancelled: you took damage."
	case ResultCancelledManual:
		return "Teleport cancelled."
	case ResultWorldNotFound:
		return "That home's world is not available."
	case ResultUnsafeLocation:
		return "That home is not safe to teleport to."
	default:
		return "Teleport failed."
	}
}
