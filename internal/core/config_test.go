package core

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Fatalf("zero environment should yield defaults, got %+v", cfg)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("HOMEWARP_DEFAULT_HOME_LIMIT", "-1")
	t.Setenv("HOMEWARP_TELEPORT_WARMUP", "2s")
	t.Setenv("HOMEWARP_CANCEL_ON_MOVE", "false")
	t.Setenv("HOMEWARP_SHARE_REQUEST_TTL", "90s")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DefaultHomeLimit != -1 {
		t.Fatalf("home limit = %d", cfg.DefaultHomeLimit)
	}
	if cfg.TeleportWarmup != 2*time.Second {
		t.Fatalf("warmup = %v", cfg.TeleportWarmup)
	}
	if cfg.CancelOnMove {
		t.Fatal("cancel on move should be disabled")
	}
	if cfg.ShareRequestTTL != 90*time.Second {
		t.Fatalf("ttl = %v", cfg.ShareRequestTTL)
	}

	t.Setenv("HOMEWARP_TELEPORT_WARMUP", "not-a-duration")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("malformed duration must error")
	}
}
