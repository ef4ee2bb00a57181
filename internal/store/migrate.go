package store

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/matheus3301/wpp-puppet/internal/store/migrations"
)

// MigrateResult reports the schema version of a namespace file and whether
// this call moved it.
type MigrateResult struct {
	Version uint
	Changed bool
}

// ErrDirtySchema is returned for a namespace file whose last migration
// did not finish. Such a file is never served.
var ErrDirtySchema = errors.New("namespace schema is dirty")

// Migrate brings the namespace file up to the latest entries schema.
func (db *DB) Migrate() (*MigrateResult, error) {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("load migrations: %w", err)
	}
	driver, err := sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	if err != nil {
		return nil, fmt.Errorf("migration driver for %s: %w", db.path, err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return nil, fmt.Errorf("migration instance for %s: %w", db.path, err)
	}

	res := &MigrateResult{Changed: true}
	if err := m.Up(); errors.Is(err, migrate.ErrNoChange) {
		res.Changed = false
	} else if err != nil {
		return nil, fmt.Errorf("migrate %s: %w", db.path, err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return nil, fmt.Errorf("schema version of %s: %w", db.path, err)
	}
	if dirty {
		return nil, fmt.Errorf("%s at version %d: %w", db.path, version, ErrDirtySchema)
	}
	res.Version = version
	return res, nil
}
