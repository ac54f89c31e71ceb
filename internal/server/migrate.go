package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/mohammad-safakhou/civicnav/migrations"
)

// Migrate applies archive migrations. An empty dir uses the migrations
// embedded in the binary; otherwise dir is a source URL such as
// file://migrations.
func Migrate(dir, dsn, direction string, steps int) error {
	if strings.TrimSpace(dsn) == "" {
		return errors.New("migrate: postgres dsn required")
	}
	if direction != "up" && direction != "down" {
		return fmt.Errorf("unknown direction: %s", direction)
	}
	var (
		m   *migrate.Migrate
		err error
	)
	if strings.TrimSpace(dir) == "" {
		src, serr := iofs.New(migrations.FS, ".")
		if serr != nil {
			return fmt.Errorf("open embedded migrations: %w", serr)
		}
		m, err = migrate.NewWithSourceInstance("iofs", src, dsn)
	} else {
		m, err = migrate.New(dir, dsn)
	}
	if err != nil {
		return err
	}
	defer m.Close()

	switch direction {
	case "up":
		if steps > 0 {
			err = m.Steps(steps)
		} else {
			err = m.Up()
		}
	default:
		if steps > 0 {
			err = m.Steps(-steps)
		} else {
			err = m.Down()
		}
	}
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}
