// Package sqlite is the embedded-database snapshot store. Schema is managed
// by embedded migrations.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/nextlevelbuilder/agentchat/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func init() {
	store.Register(store.BackendSQLite, func(cfg store.Config) (store.SnapshotStore, error) {
		return Open(cfg.Path)
	})
}

// Store persists snapshots in one sqlite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database and applies migrations.
func Open(path string) (*Store, error) {
	if path == "" {
		path = "agentchat.db"
	}
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Save upserts a snapshot.
func (s *Store) Save(ctx context.Context, name string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (name, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		name, data, time.Now().UTC())
	return err
}

// Load reads a snapshot by name.
func (s *Store) Load(ctx context.Context, name string) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM snapshots WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return data, err
}

// List returns metadata for all snapshots, newest first.
func (s *Store) List(ctx context.Context) ([]store.SnapshotInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, length(data), updated_at FROM snapshots ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.SnapshotInfo
	for rows.Next() {
		var info store.SnapshotInfo
		if err := rows.Scan(&info.Name, &info.Bytes, &info.Updated); err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// Delete removes a snapshot; missing rows are not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE name = ?`, name)
	return err
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }
