// Package postgres persists player home snapshots to PostgreSQL with the
// same one-JSON-row-per-player schema as the sqlite driver.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"homewarp/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.Store = (*Store)(nil)

const defaultDSN = "postgres://localhost/homewarp?sslmode=disable"

// Store is a PostgreSQL-backed persistence driver.
type Store struct {
	db *sql.DB
}

// NewStore opens a connection pool for the given DSN (falls back to a
// local default).
func NewStore(dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return &Store{db: db}, nil
}

// Init verifies connectivity and creates the players table.
func (s *Store) Init(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS players (
		player_id TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`); err != nil {
		return fmt.Errorf("create players table: %w", err)
	}
	return nil
}

// Shutdown closes the pool.
func (s *Store) Shutdown(context.Context) error {
	return s.db.Close()
}

// Load fetches and decodes the snapshot row for id.
func (s *Store) Load(ctx context.Context, id domain.PlayerID) (domain.PlayerHomesSnapshot, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM players WHERE player_id = $1`, id.String()).Scan(&payload)
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
	if _, err := s.db.ExecContext(ctx, `INSERT INTO players (player_id, payload) VALUES ($1, $2)
		ON CONFLICT (player_id) DO UPDATE SET payload = EXCLUDED.payload`,
		snapshot.PlayerID.String(), payload); err != nil {
		return fmt.Errorf("upsert player: %w", err)
	}
	return nil
}

// Delete removes the snapshot row for id.
func (s *Store) Delete(ctx context.Context, id domain.PlayerID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM players WHERE player_id = $1`, id.String()); err != nil {
		return fmt.Errorf("delete player: %w", err)
	}
	return nil
}
