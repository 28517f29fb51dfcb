// Package file is the default snapshot store: one JSON file per snapshot,
// written atomically via temp file + rename.
package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/nextlevelbuilder/agentchat/internal/store"
)

func init() {
	store.Register(store.BackendFile, func(cfg store.Config) (store.SnapshotStore, error) {
		return New(cfg.Dir)
	})
}

// Store keeps snapshots under one directory.
type Store struct {
	dir string
}

// New creates the directory if needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(name string) (string, error) {
	filename := sanitizeFilename(name)
	if filename == "" || !filepath.IsLocal(filename) {
		return "", os.ErrInvalid
	}
	return filepath.Join(s.dir, filename+".json"), nil
}

// Save writes the snapshot atomically: temp file → fsync → rename.
func (s *Store) Save(_ context.Context, name string, data []byte) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, "snapshot-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := true
	defer func() {
		if cleanup {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}
	cleanup = false
	return nil
}

// Load reads a snapshot by name.
func (s *Store) Load(_ context.Context, name string) ([]byte, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, store.ErrNotFound
	}
	return data, err
}

// List returns metadata for every stored snapshot.
func (s *Store) List(_ context.Context) ([]store.SnapshotInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	var out []store.SnapshotInfo
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, store.SnapshotInfo{
			Name:    strings.TrimSuffix(e.Name(), ".json"),
			Bytes:   info.Size(),
			Updated: info.ModTime(),
		})
	}
	return out, nil
}

// Delete removes a snapshot; missing snapshots are not an error.
func (s *Store) Delete(_ context.Context, name string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Close is a no-op for the file backend.
func (s *Store) Close() error { return nil }

func sanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return strings.Trim(b.String(), ".")
}
