package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// Files holds the schema migrations shipped with the binary.
//
//go:embed *.sql
var Files embed.FS

// Migration is one numbered schema change.
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// Load reads every NNN_name.up.sql / NNN_name.down.sql pair from dir inside
// fsys and returns them ordered by version.
func Load(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	byVersion := make(map[int]*Migration)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}

		var version int
		var rest string
		if _, err := fmt.Sscanf(name, "%d_%s", &version, &rest); err != nil {
			log.Warn().Err(err).Str("file", name).Msg("Skipping invalid migration file")
			continue
		}

		content, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", name, err)
		}

		m, ok := byVersion[version]
		if !ok {
			m = &Migration{Version: version}
			byVersion[version] = m
		}
		switch {
		case strings.HasSuffix(rest, ".up.sql"):
			m.Name = strings.TrimSuffix(rest, ".up.sql")
			m.Up = string(content)
		case strings.HasSuffix(rest, ".down.sql"):
			m.Down = string(content)
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.Up == "" {
			return nil, fmt.Errorf("migration %d has no up script", m.Version)
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })

	log.Debug().Int("count", len(out)).Msg("Loaded migrations")
	return out, nil
}

// Up applies every migration not yet recorded in the migrations table, each
// in its own transaction.
func Up(ctx context.Context, db *sql.DB, migrations []Migration) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := appliedVersions(ctx, db, "SELECT version FROM migrations")
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		log.Info().Int("version", m.Version).Str("name", m.Name).Msg("Running migration")
		if err := inTx(ctx, db, m.Up, "INSERT INTO migrations (version) VALUES (?)", m.Version); err != nil {
			return fmt.Errorf("migration %d: %w", m.Version, err)
		}
	}
	return nil
}

// Down rolls back the last n applied migrations, newest first.
func Down(ctx context.Context, db *sql.DB, migrations []Migration, n int) error {
	applied, err := appliedVersions(ctx, db, "SELECT version FROM migrations ORDER BY version DESC LIMIT ?", n)
	if err != nil {
		return err
	}

	versions := make([]int, 0, len(applied))
	for v := range applied {
		versions = append(versions, v)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(versions)))

	for _, version := range versions {
		var down string
		for _, m := range migrations {
			if m.Version == version {
				down = m.Down
				break
			}
		}
		if down == "" {
			log.Warn().Int("version", version).Msg("No down migration found, skipping")
			continue
		}

		log.Info().Int("version", version).Msg("Rolling back migration")
		if err := inTx(ctx, db, down, "DELETE FROM migrations WHERE version = ?", version); err != nil {
			return fmt.Errorf("rollback %d: %w", version, err)
		}
	}
	return nil
}

func appliedVersions(ctx context.Context, db *sql.DB, query string, args ...any) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func inTx(ctx context.Context, db *sql.DB, script, record string, version int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("failed to execute script: %w", err)
	}
	if _, err := tx.ExecContext(ctx, record, version); err != nil {
		return fmt.Errorf("failed to record version: %w", err)
	}
	return tx.Commit()
}
