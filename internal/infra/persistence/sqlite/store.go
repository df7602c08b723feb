// Package sqlite persists player home snapshots to an embedded SQLite
// database, one JSON payload row per player.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"homewarp/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.Store = (*Store)(nil)

// Store is a snapshotting SQLite-backed persistence driver.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the database file at path. Empty path
// defaults to ./homewarp.db.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "homewarp.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Init creates the players table.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS players (
		player_id TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		return fmt.Errorf("create players table: %w", err)
	}
	return nil
}

// Shutdown closes the database.
func (s *Store) Shutdown(context.Context) error {
	return s.db.Close()
}

// Load fetches and decodes the snapshot row for id.
func (s *Store) Load(ctx context.Context, id domain.PlayerID) (domain.PlayerHomesSnapshot, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM players WHERE player_id = ?`, id.String()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.PlayerHomesSnapshot{}, false, nil
	}
	if err != nil {
		return domain.PlayerHomesSnapshot{}, false, fmt.Errorf("select player: %w", err)
	}
	var snapshot domain.PlayerHomesSnapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return domain.PlayerHomesSnapshot{}, false, fmt.Errorf("decode player %s: %w", id, err)
	}
	return snapshot, true, nil
}

// Save upserts the encoded snapshot.
func (s *Store) Save(ctx context.Context, snapshot domain.PlayerHomesSnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode player %s: %w", snapshot.PlayerID, err)
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO players (player_id, payload) VALUES (?, ?)
		ON CONFLICT(player_id) DO UPDATE SET payload = excluded.payload`,
		snapshot.PlayerID.String(), payload); err != nil {
		return fmt.Errorf("upsert player: %w", err)
	}
	return nil
}

// Delete removes the snapshot row for id.
func (s *Store) Delete(ctx context.Context, id domain.PlayerID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM players WHERE player_id = ?`, id.String()); err != nil {
		return fmt.Errorf("delete player: %w", err)
	}
	return nil
}
