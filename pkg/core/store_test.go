package core

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
)

func newTestStore(t *testing.T, mutate func(*Config)) *Store {
	t.Helper()

	config := DefaultConfig()
	config.Path = filepath.Join(t.TempDir(), "test.db")
	if mutate != nil {
		mutate(&config)
	}

	s, err := Open(context.Background(), config)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustExec(t *testing.T, db *sql.DB, query string, args ...any) {
	t.Helper()
	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}

func mustWKB(t *testing.T, g orb.Geometry) []byte {
	t.Helper()
	data, err := wkb.Marshal(g)
	if err != nil {
		t.Fatalf("wkb.Marshal() error = %v", err)
	}
	return data
}

// createFeatures creates features(id INTEGER PRIMARY KEY, name TEXT, geom BLOB)
// holding one row per blob, with ids starting at 1.
func createFeatures(t *testing.T, db *sql.DB, blobs ...[]byte) {
	t.Helper()
	mustExec(t, db, `CREATE TABLE features (id INTEGER PRIMARY KEY, name TEXT, geom BLOB)`)
	for i, b := range blobs {
		mustExec(t, db, `INSERT INTO features (id, name, geom) VALUES (?, ?, ?)`, i+1, "f", b)
	}
}

func TestStoreLifecycle(t *testing.T) {
	s := newTestStore(t, nil)
	ctx := context.Background()

	if s.DB() == nil {
		t.Fatal("DB() = nil after Open")
	}
	if err := s.Init(ctx); err != nil {
		t.Errorf("second Init() error = %v", err)
	}
	if got, want := s.IndexPath(), s.Config().Path+".index"; got != want {
		t.Errorf("IndexPath() = %q, want %q", got, want)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	if _, err := s.ListTables(ctx); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("ListTables() after Close error = %v, want ErrStoreClosed", err)
	}
	if _, err := s.BuildSpatialIndex(ctx, BuildRequest{Table: "t", GeometryField: "g", KeyField: "k"}); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("BuildSpatialIndex() after Close error = %v, want ErrStoreClosed", err)
	}
	if err := s.Init(ctx); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("Init() after Close error = %v, want ErrStoreClosed", err)
	}
}

func TestStoreNotInitialized(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "x.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := s.ListTables(context.Background()); err == nil {
		t.Error("ListTables() before Init succeeded")
	}
}

func TestNewWithConfigRejectsInvalid(t *testing.T) {
	_, err := NewWithConfig(Config{})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("NewWithConfig(empty) error = %v, want ErrInvalidConfig", err)
	}
	var se *StoreError
	if !errors.As(err, &se) || se.Op != "init" {
		t.Errorf("error = %v, want *StoreError with op init", err)
	}
}

func TestReadOnlyStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ro.db")

	rw := newTestStore(t, func(c *Config) { c.Path = path })
	createFeatures(t, rw.DB(), mustWKB(t, orb.Point{1, 1}))
	rw.Close()

	ro := newTestStore(t, func(c *Config) {
		c.Path = path
		c.ReadOnly = true
	})
	if _, err := ro.DB().Exec(`INSERT INTO features (id) VALUES (99)`); err == nil {
		t.Error("insert into read-only store succeeded")
	}

	tables, err := ro.ListTables(context.Background())
	if err != nil {
		t.Fatalf("ListTables() error = %v", err)
	}
	if len(tables) != 1 || tables[0] != "features" {
		t.Errorf("ListTables() = %v, want [features]", tables)
	}
}

func TestStorePathWithURIDelimiters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "maps?v=2#draft 100%.db")

	s := newTestStore(t, func(c *Config) { c.Path = path })
	createFeatures(t, s.DB(), mustWKB(t, orb.Point{1, 1}))

	res, err := s.BuildSpatialIndex(context.Background(), BuildRequest{
		Table: "features", GeometryField: "geom", KeyField: "id",
	})
	if err != nil {
		t.Fatalf("BuildSpatialIndex() error = %v", err)
	}
	if !res.Built {
		t.Fatal("BuildSpatialIndex() built nothing")
	}

	for _, p := range []string{path, path + ".index"} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("stat %q: %v", p, err)
		}
	}
}

func TestFileURI(t *testing.T) {
	q := url.Values{}
	q.Set("mode", "ro")
	if got, want := fileURI("/tmp/a?b#c%d.db", q), "file:/tmp/a%3Fb%23c%25d.db?mode=ro"; got != want {
		t.Errorf("fileURI() = %q, want %q", got, want)
	}
}
