package middleware

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// stubDB implements core.DB with per-query callbacks.
type stubDB struct {
	queryRow func(sql string, args []any) pgx.Row
	exec     func(sql string, args []any) (pgconn.CommandTag, error)
}

func (db *stubDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if db.exec == nil {
		return pgconn.CommandTag{}, errors.New("unexpected Exec")
	}
	return db.exec(sql, args)
}

func (db *stubDB) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	return nil, errors.New("unexpected Query")
}

func (db *stubDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	return db.queryRow(sql, args)
}

func (db *stubDB) Begin(_ context.Context) (pgx.Tx, error) {
	return nil, errors.New("unexpected Begin")
}

type stubRow struct {
	scan func(dest ...any) error
}

func (r stubRow) Scan(dest ...any) error { return r.scan(dest...) }
