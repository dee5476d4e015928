package migrations

import (
	"database/sql"
	"embed"
	"log/slog"

	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
)

//go:embed postgres/*.sql sqlite/*.sql
var embedMigrations embed.FS

// Run выполняет все миграции для драйвера "postgres" или "sqlite".
func Run(db *sql.DB, driver string) error {
	dialect, dir := "postgres", "postgres"
	if driver == "sqlite" {
		dialect, dir = "sqlite3", "sqlite"
	}

	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect(dialect); err != nil {
		return errors.Wrap(err, "set migration dialect")
	}

	if err := goose.Up(db, dir); err != nil {
		return errors.Wrap(err, "run migrations")
	}
	version, err := goose.GetDBVersion(db)
	if err != nil {
		return errors.Wrap(err, "get migration version")
	}
	slog.Debug("migrations applied", "dialect", dialect, "version", version)
	return nil
}
