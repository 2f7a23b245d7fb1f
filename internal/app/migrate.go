package app

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/pawcall/pawcall/migrations"
)

// runMigrations applies pending schema migrations through goose. It opens a
// short-lived database/sql connection; the pgx pool used for serving is
// created separately.
func runMigrations(dsn string) error {
	const op = "app.runMigrations"

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
