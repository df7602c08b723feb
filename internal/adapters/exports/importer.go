package exports

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"homewarp/internal/core"
	"homewarp/pkg/domain"
)

// legacyFile is the flat JSON layout older home plugins wrote: one object
// per player keyed by UUID string.
type legacyFile map[string]legacyPlayer

type legacyPlayer struct {
	Username string                `json:"username"`
	Homes    map[string]legacyHome `json:"homes"`
}

type legacyHome struct {
	World  string   `json:"world"`
	X      float64  `json:"x"`
	Y      float64  `json:"y"`
	Z      float64  `json:"z"`
	Yaw    float32  `json:"yaw"`
	Pitch  float32  `json:"pitch"`
	Shared []string `json:"shared,omitempty"`
}

// ImportSummary reports what a legacy import did.
type ImportSummary struct {
	Players int `json:"players"`
	Homes   int `json:"homes"`
	Skipped int `json:"skipped"`
}

// ImportLegacy reads a legacy flat-JSON homes file and installs its homes
// through the limit-bypassing path, so imports never fail on count.
// Malformed entries are skipped and counted rather than aborting the run.
// Intended to run at startup before players connect; it loads and unloads
// each player around the writes.
func ImportLegacy(ctx context.Context, r io.Reader, homes *core.HomeStore) (ImportSummary, error) {
	var file legacyFile
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return ImportSummary{}, fmt.Errorf("decode legacy file: %w", err)
	}

	var summary ImportSummary
	now := time.Now().UTC()
	for rawID, player := range file {
		id, err := uuid.Parse(rawID)
		if err != nil {
			summary.Skipped++
			continue
		}
		username := player.Username
		if username == "" {
			username = rawID
		}
		homes.Load(ctx, id, username)
		imported := false
		for name, h := range player.Homes {
			if strings.TrimSpace(name) == "" || h.World == "" {
				summary.Skipped++
				continue
			}
			home := domain.NewHome(name, domain.Location{
				World: h.World, X: h.X, Y: h.Y, Z: h.Z, Yaw: h.Yaw, Pitch: h.Pitch,
			}, now)
			for _, shared := range h.Shared {
				sharedID, err := uuid.Parse(shared)
				if err != nil {
					continue
				}
				home = home.WithSharedPlayer(sharedID)
			}
			homes.SetHomeBypassingLimit(id, home)
			summary.Homes++
			imported = true
		}
		if imported {
			summary.Players++
		}
		homes.Unload(id)
	}
	return summary, nil
}
