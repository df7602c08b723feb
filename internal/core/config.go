package core

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the engine's tunable behavior. Values are read from the
// environment; the zero environment yields the documented defaults.
type Config struct {
	// DefaultHomeLimit applies when a player holds no explicit limit grant.
	// Negative means unlimited.
	DefaultHomeLimit int `env:"HOMEWARP_DEFAULT_HOME_LIMIT" envDefault:"3"`
	// TeleportWarmup is the delay between requesting and executing a
	// teleport. Zero executes immediately.
	TeleportWarmup time.Duration `env:"HOMEWARP_TELEPORT_WARMUP" envDefault:"5s"`
	// TeleportCooldown is the minimum time between successful teleports.
	TeleportCooldown time.Duration `env:"HOMEWARP_TELEPORT_COOLDOWN" envDefault:"30s"`
	// CancelOnMove breaks a pending warmup when the player moves more than
	// half a block from the start position.
	CancelOnMove bool `env:"HOMEWARP_CANCEL_ON_MOVE" envDefault:"true"`
	// CancelOnDamage breaks a pending warmup when the player takes damage.
	CancelOnDamage bool `env:"HOMEWARP_CANCEL_ON_DAMAGE" envDefault:"true"`
	// ShareRequestTTL bounds how long a share request stays acceptable.
	ShareRequestTTL time.Duration `env:"HOMEWARP_SHARE_REQUEST_TTL" envDefault:"5m"`
	// ListenAddr is the HTTP listen address of the admin surface.
	ListenAddr string `env:"HOMEWARP_LISTEN_ADDR" envDefault:":8080"`
}

// DefaultConfig returns the configuration used when no environment
// overrides are present.
func DefaultConfig() Config {
	return Config{
		DefaultHomeLimit: 3,
		TeleportWarmup:   5 * time.Second,
		TeleportCooldown: 30 * time.Second,
		CancelOnMove:     true,
		CancelOnDamage:   true,
		ShareRequestTTL:  5 * time.Minute,
		ListenAddr:       ":8080",
	}
}

// LoadConfig parses configuration from environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
