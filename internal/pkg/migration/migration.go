// Package migration applies embedded goose SQL migrations to postgres.
package migration

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// goose keeps its base FS and dialect in package state.
var mu sync.Mutex

// gooseUp is replaced in tests.
var gooseUp = func(ctx context.Context, db *sql.DB, dir string) error {
	return goose.UpContext(ctx, db, dir)
}

// Up applies every pending migration found at the root of fsys.
func Up(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	return up(ctx, db, fsys)
}

func up(ctx context.Context, db *sql.DB, fsys fs.FS) error {
	mu.Lock()
	defer mu.Unlock()

	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("migration: set dialect: %w", err)
	}

	if err := gooseUp(ctx, db, "."); err != nil {
		return fmt.Errorf("migration: up: %w", err)
	}

	return nil
}
