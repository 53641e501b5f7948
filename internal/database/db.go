package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"ndta-news/pipeline/internal/database/migrations"
)

// DB represents the database connection
type DB struct {
	*sqlx.DB
}

// NewDB opens the document store, applies pending migrations and checks the
// connection.
func NewDB(cfg *Config) (*DB, error) {
	dir := filepath.Dir(cfg.DBPath)
	if dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory for database: %w", err)
		}
	}

	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = defaultMaxIdleConns
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = defaultMaxOpenConns
	}

	// WAL lets the dashboard read while a CLI stage writes.
	dsn := fmt.Sprintf("%s?_journal=WAL&_synchronous=NORMAL&_busy_timeout=%d&_foreign_keys=on",
		cfg.DBPath, cfg.BusyTimeoutMS)
	if cfg.ReadOnly {
		dsn += "&mode=ro"
	}
	log.Debug().Str("path", cfg.DBPath).Str("mode", modeStr(cfg.ReadOnly)).Msg("Opening database")

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pragmas := []string{
		fmt.Sprintf("PRAGMA cache_size = %d;", cfg.CacheSizeKB),
		"PRAGMA temp_store = MEMORY;",
	}
	if cfg.ReadOnly {
		pragmas = append(pragmas, "PRAGMA query_only = ON;")
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			log.Warn().Err(err).Str("pragma", pragma).Str("mode", modeStr(cfg.ReadOnly)).Msg("Failed to set PRAGMA")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if !cfg.ReadOnly {
		all, err := migrations.Load(migrations.Files, ".")
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to load migrations: %w", err)
		}
		if err := migrations.Up(ctx, db.DB, all); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping db (%s): %w", modeStr(cfg.ReadOnly), err)
	}

	log.Debug().Str("mode", modeStr(cfg.ReadOnly)).Msg("Database connection successful")
	return &DB{db}, nil
}

// Helper for logging
func modeStr(readOnly bool) string {
	if readOnly {
		return "read-only"
	}
	return "read-write"
}
