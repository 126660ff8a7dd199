package core

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/liliang-cn/sqgeo/pkg/geo"

	_ "modernc.org/sqlite" // SQLite driver
)

// Store owns the connection to a source database and performs catalog
// listing, schema introspection, spatial index builds and extent resolution
// against it. Calls are synchronous; a Store is not meant to run two builds
// at once.
type Store struct {
	db      *sql.DB
	config  Config
	mu      sync.RWMutex
	closed  bool
	logger  Logger
	decoder *geo.Decoder
	builder *SpatialIndexBuilder
}

// New creates a store for the database at path with default configuration
func New(path string) (*Store, error) {
	config := DefaultConfig()
	config.Path = path

	return NewWithConfig(config)
}

// NewWithConfig creates a store with custom configuration. Call Init before use.
func NewWithConfig(config Config) (*Store, error) {
	if err := config.Validate(); err != nil {
		return nil, wrapError("init", err)
	}

	logger := config.Logger
	if logger == nil {
		logger = NopLogger()
	}

	decoder := geo.NewDecoder(geo.DecoderOptions{AllowMultiple: config.MultipleGeometries})

	return &Store{
		config:  config,
		logger:  logger,
		decoder: decoder,
		builder: NewSpatialIndexBuilder(decoder, logger),
	}, nil
}

// DB returns the underlying database handle, nil before Init
func (s *Store) DB() *sql.DB {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db
}

// Config returns the store configuration
func (s *Store) Config() Config {
	return s.config
}

// Decoder returns the geometry decoder shared by scans and builds
func (s *Store) Decoder() *geo.Decoder {
	return s.decoder
}

// Logger returns the store logger
func (s *Store) Logger() Logger {
	return s.logger
}

// IndexPath returns where file-backed spatial indexes are written
func (s *Store) IndexPath() string {
	return s.config.resolvedIndexPath()
}

// ready returns the open handle or an error naming op
func (s *Store) ready(op string) (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, wrapError(op, ErrStoreClosed)
	}
	if s.db == nil {
		return nil, wrapError(op, fmt.Errorf("store not initialized"))
	}
	return s.db, nil
}
