// Package sqlite opens an embedded database/sql handle for local and
// test deployments of the schema version store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/tracelight-labs/tracelight-go/internal/platform/env"
)

type Config struct {
	Path string
}

func ConfigFromEnv() (Config, error) {
	cfg := Config{
		Path: env.String("SCHEMA_SQLITE_PATH", "tracelight.db"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Path == "" {
		return errors.New("SCHEMA_SQLITE_PATH is required")
	}
	return nil
}

// Open opens the database and applies the pragmas a single-writer
// append-only store needs. Writers are limited to one connection so
// compare-and-append transactions serialize instead of failing on busy.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return db, nil
}

// OpenMemory opens a private in-memory database, used by tests.
func OpenMemory(ctx context.Context) (*sql.DB, error) {
	return Open(ctx, Config{Path: "file:tracelight?mode=memory&cache=shared"})
}
