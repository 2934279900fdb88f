// Package migrate walks the database schema using the SQL files compiled into
// the binary via golang-migrate.
package migrate

import (
	"errors"
	"fmt"

	"property-platform/access-core/internal/db"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Directions accepted by Run.
const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

// Run applies all pending migrations (up) or unwinds them completely (down),
// then reports the schema version left behind. Version 0 means an empty
// schema. Already being at the target is a clean no-op.
func Run(dsn, direction string) (uint, error) {
	if dsn == "" {
		return 0, errors.New("migrate: database DSN is empty")
	}
	if direction != DirectionUp && direction != DirectionDown {
		return 0, fmt.Errorf("migrate: unknown direction %q (want up or down)", direction)
	}

	src, err := iofs.New(db.Migrations, "migrations")
	if err != nil {
		return 0, fmt.Errorf("migrate: load embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return 0, fmt.Errorf("migrate: connect: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	walk := m.Up
	if direction == DirectionDown {
		walk = m.Down
	}
	if err := walk(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, err
	}

	version, _, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("migrate: read version: %w", err)
	}
	return version, nil
}
