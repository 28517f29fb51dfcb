// Package store persists exported conversation snapshots. The core only
// produces and consumes opaque snapshot bytes; the on-disk shape is owned
// here.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a named snapshot does not exist.
var ErrNotFound = errors.New("snapshot not found")

// SnapshotInfo is lightweight metadata for listing.
type SnapshotInfo struct {
	Name    string    `json:"name"`
	Bytes   int64     `json:"bytes"`
	Updated time.Time `json:"updated"`
}

// SnapshotStore persists named conversation snapshots.
type SnapshotStore interface {
	Save(ctx context.Context, name string, data []byte) error
	Load(ctx context.Context, name string) ([]byte, error)
	List(ctx context.Context) ([]SnapshotInfo, error)
	Delete(ctx context.Context, name string) error
	Close() error
}

// Config selects and parameterizes a backend.
type Config struct {
	Backend string `json:"backend"` // "file" (default) or "sqlite"
	Dir     string `json:"dir,omitempty"`
	Path    string `json:"path,omitempty"` // sqlite database file
}

// Backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// OpenFunc constructs a backend from its config.
type OpenFunc func(Config) (SnapshotStore, error)

// backends is populated by backend packages in init; the factory lives here
// so callers pick a backend by name without importing every driver.
var backends = map[string]OpenFunc{}

// Register installs a backend constructor. Called from backend package
// init; not safe for concurrent use.
func Register(name string, fn OpenFunc) { backends[name] = fn }

// Open creates the configured snapshot store.
func Open(cfg Config) (SnapshotStore, error) {
	backend := cfg.Backend
	if backend == "" {
		backend = BackendFile
	}
	fn, ok := backends[backend]
	if !ok {
		return nil, fmt.Errorf("unknown snapshot store backend %q", backend)
	}
	return fn(cfg)
}
