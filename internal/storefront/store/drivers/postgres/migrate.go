package postgres

import (
	"errors"

	"github.com/aussiebroadwan/storefront/internal/storefront/store/drivers/postgres/migrations"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// ApplyMigrations applies the embedded schema and catalogue seed over a
// separate migrate connection.
func (s *Store) ApplyMigrations() error {
	src, err := iofs.New(migrations.Migrations, ".")
	if err != nil {
		return err
	}

	instance, err := migrate.NewWithSourceInstance("iofs", src, migrateURL(s.url))
	if err != nil {
		return err
	}
	defer instance.Close()

	if err := instance.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
