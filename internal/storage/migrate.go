package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"spendbot/internal/log"
)

//go:embed migrations/*.sql
var ledgerSchema embed.FS

// migrateLedgerSchema creates or upgrades the ledger_users and ledger_entries
// tables in the SQLite file at dbPath and returns the resulting schema version.
// Running it against an up to date file changes nothing.
func migrateLedgerSchema(dbPath string, logger *log.Logger) (uint, error) {
	// migrate closes the handle it is given, so it gets its own.
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return 0, fmt.Errorf("open ledger database for migration: %w", err)
	}
	defer conn.Close()

	target, err := sqlite.WithInstance(conn, &sqlite.Config{})
	if err != nil {
		return 0, fmt.Errorf("attach ledger database to migrator: %w", err)
	}
	source, err := iofs.New(ledgerSchema, "migrations")
	if err != nil {
		return 0, fmt.Errorf("load embedded ledger schema: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", target)
	if err != nil {
		return 0, fmt.Errorf("prepare ledger schema migration: %w", err)
	}
	defer m.Close()

	err = m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
	case err != nil:
		return 0, fmt.Errorf("apply ledger schema migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("read ledger schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("ledger schema version %d is dirty", version)
	}
	logger.Debug("Ledger schema ready", "path", dbPath, "schema_version", version)
	return version, nil
}
