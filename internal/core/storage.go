package core

import (
	"fmt"
	"os"

	"homewarp/internal/infra/persistence/memory"
	"homewarp/internal/infra/persistence/postgres"
	"homewarp/internal/infra/persistence/sqlite"
	"homewarp/pkg/domain"
)

// StorageDriver identifies a concrete persistence implementation.
type StorageDriver string

const (
	StorageMemory   StorageDriver = "memory"   // in-memory only (tests / ephemeral)
	StorageSQLite   StorageDriver = "sqlite"   // embedded sqlite file
	StoragePostgres StorageDriver = "postgres" // PostgreSQL server
)

// OpenPersistentStore selects a persistence backend using environment
// variables. Defaults to sqlite when unset.
//
//	HOMEWARP_STORAGE_DRIVER: memory|sqlite|postgres (default sqlite)
//	HOMEWARP_SQLITE_PATH: path to sqlite file (default ./homewarp.db)
//	HOMEWARP_POSTGRES_DSN: postgres DSN when driver=postgres
func OpenPersistentStore() (domain.Store, error) {
	driver := os.Getenv("HOMEWARP_STORAGE_DRIVER")
	if driver == "" {
		driver = string(StorageSQLite)
	}
	switch StorageDriver(driver) {
	case StorageMemory:
		return memory.NewStore(), nil
	case StorageSQLite:
		return sqlite.NewStore(os.Getenv("HOMEWARP_SQLITE_PATH"))
	case StoragePostgres:
		return postgres.NewStore(os.Getenv("HOMEWARP_POSTGRES_DSN"))
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
