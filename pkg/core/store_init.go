package core

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Init opens the source database
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return wrapError("init", ErrStoreClosed)
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", sourceDSN(s.config))
	if err != nil {
		return wrapError("init", fmt.Errorf("failed to open database: %w", err))
	}

	// Readers only need a handful of connections; builds take a dedicated one.
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(2 * time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return wrapError("init", fmt.Errorf("failed to open database: %w", err))
	}

	s.db = db

	s.logger.Info("database opened", "path", s.config.Path, "read_only", s.config.ReadOnly)

	return nil
}

// Open creates and initializes a store in one step
func Open(ctx context.Context, config Config) (*Store, error) {
	s, err := NewWithConfig(config)
	if err != nil {
		return nil, err
	}
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// sourceDSN builds the modernc.org/sqlite DSN for the source database.
// _pragma values are applied to every pooled connection.
func sourceDSN(c Config) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", c.BusyTimeoutMS))
	if c.ReadOnly {
		q.Set("mode", "ro")
	}
	return fileURI(c.Path, q)
}

// indexDSN builds the DSN for a separate index database. Writers run with
// synchronous=OFF.
func indexDSN(path string, busyTimeout time.Duration, readOnly bool) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeout.Milliseconds()))
	if readOnly {
		q.Set("mode", "ro")
	} else {
		q.Add("_pragma", "synchronous(OFF)")
	}
	return fileURI(path, q)
}

var uriPathEscaper = strings.NewReplacer("%", "%25", "?", "%3F", "#", "%23")

// fileURI renders path as an SQLite file: URI. SQLite decodes %XX escapes in
// the path, so characters that would end it are escaped.
func fileURI(path string, q url.Values) string {
	return "file:" + uriPathEscaper.Replace(path) + "?" + q.Encode()
}
