package db

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// RunMigrations applies all pending goose migrations from dir against
// the gateway database. It opens its own short-lived connection so it
// can run before the pool exists.
func RunMigrations(databaseURL, dir string) error {
	conn, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer conn.Close()

	if err := conn.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	if err := goose.Up(conn, dir); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}
