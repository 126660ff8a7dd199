package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
)

// IndexArtifact is the object that holds a spatial index table: either a
// separate database file or the source database itself.
type IndexArtifact interface {
	// Exists reports whether the artifact is present before a build
	Exists(ctx context.Context) (bool, error)
	// Connect returns a dedicated connection for writing and a release func
	Connect(ctx context.Context) (*sql.Conn, func() error, error)
	// Remove deletes an artifact created by a failed or empty build
	Remove(ctx context.Context) error
	String() string
}

// FileArtifact keeps the index in its own database file
type FileArtifact struct {
	Path        string
	BusyTimeout time.Duration
}

// Exists reports whether the index file is present
func (a *FileArtifact) Exists(ctx context.Context) (bool, error) {
	_, err := os.Stat(a.Path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// Connect opens (creating if needed) the index file with synchronous=OFF
func (a *FileArtifact) Connect(ctx context.Context) (*sql.Conn, func() error, error) {
	db, err := sql.Open("sqlite", indexDSN(a.Path, a.BusyTimeout, false))
	if err != nil {
		return nil, nil, err
	}
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	release := func() error {
		return errors.Join(conn.Close(), db.Close())
	}
	return conn, release, nil
}

// Remove deletes the index file and any journal left next to it
func (a *FileArtifact) Remove(ctx context.Context) error {
	var errs []error
	for _, p := range []string{a.Path, a.Path + "-journal", a.Path + "-wal", a.Path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *FileArtifact) String() string {
	return "file:" + a.Path
}

// TableArtifact keeps the index as a table of the source database
type TableArtifact struct {
	DB    *sql.DB
	Table string
}

// Exists reports whether the index table is present in the catalog
func (a *TableArtifact) Exists(ctx context.Context) (bool, error) {
	var n int
	err := a.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`,
		Dequote(a.Table)).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Connect takes a pooled connection and switches it to synchronous=OFF
// until release restores the previous setting.
func (a *TableArtifact) Connect(ctx context.Context) (*sql.Conn, func() error, error) {
	conn, err := a.DB.Conn(ctx)
	if err != nil {
		return nil, nil, err
	}

	var prev int
	if err := conn.QueryRowContext(ctx, "PRAGMA synchronous").Scan(&prev); err != nil {
		conn.Close()
		return nil, nil, err
	}
	if _, err := conn.ExecContext(ctx, "PRAGMA synchronous=OFF"); err != nil {
		conn.Close()
		return nil, nil, err
	}

	release := func() error {
		_, err := conn.ExecContext(context.Background(), fmt.Sprintf("PRAGMA synchronous=%d", prev))
		return errors.Join(err, conn.Close())
	}
	return conn, release, nil
}

// Remove drops the index table if a failed build left it behind
func (a *TableArtifact) Remove(ctx context.Context) error {
	_, err := a.DB.ExecContext(ctx, "DROP TABLE IF EXISTS "+QuoteIdentifier(a.Table))
	return err
}

func (a *TableArtifact) String() string {
	return "table:" + Dequote(a.Table)
}
