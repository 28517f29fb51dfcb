package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/nextlevelbuilder/agentchat/internal/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveLoadUpsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, "a", []byte("v1")); err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, "a", []byte("v2")); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.Load(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "v2" {
		t.Errorf("Load = %s, want v2", got)
	}
}

func TestLoadMissing(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Load(context.Background(), "ghost")
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	s.Save(ctx, "one", []byte("111"))
	s.Save(ctx, "two", []byte("22"))

	infos, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 2 {
		t.Fatalf("List = %d, want 2", len(infos))
	}
	for _, info := range infos {
		if info.Bytes == 0 {
			t.Errorf("info %s has zero size", info.Name)
		}
	}

	if err := s.Delete(ctx, "one"); err != nil {
		t.Fatal(err)
	}
	infos, _ = s.List(ctx)
	if len(infos) != 1 {
		t.Errorf("List after delete = %+v", infos)
	}
}
