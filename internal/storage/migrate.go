package storage

import (
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/pkg/errors"
)

// DefaultMigrationsSource is relative to the repository root.
const DefaultMigrationsSource = "file://migrations"

// RunMigrations applies every pending up migration from source. An already
// up-to-date schema is not an error.
func RunMigrations(connStr, source string) error {
	m, err := migrate.New(source, connStr)
	if err != nil {
		return errors.Wrap(err, "failed to initialize migrations")
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "failed to apply migrations")
	}
	return nil
}
