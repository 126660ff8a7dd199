package sqgeo

import (
	"context"
	"fmt"

	"github.com/liliang-cn/sqgeo/pkg/core"
)

// DB is an open geometry database
type DB struct {
	store *core.Store
}

// Option is a functional option applied to the configuration before opening
type Option func(*core.Config)

// WithLogger sets the logger used by the store
func WithLogger(l core.Logger) Option {
	return func(c *core.Config) {
		c.Logger = l
	}
}

// WithIndexInStore keeps spatial indexes inside the source database
func WithIndexInStore() Option {
	return func(c *core.Config) {
		c.IndexInStore = true
	}
}

// WithMetadataTable names the table the extent resolver consults
func WithMetadataTable(table string) Option {
	return func(c *core.Config) {
		c.MetadataTable = table
	}
}

// WithMultipleGeometries indexes each member of a collection separately
func WithMultipleGeometries() Option {
	return func(c *core.Config) {
		c.MultipleGeometries = true
	}
}

// Open opens the database described by config
func Open(ctx context.Context, config core.Config, opts ...Option) (*DB, error) {
	for _, opt := range opts {
		opt(&config)
	}

	store, err := core.NewWithConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	return &DB{store: store}, nil
}

// OpenPath opens the database at path with the default configuration
func OpenPath(ctx context.Context, path string, opts ...Option) (*DB, error) {
	config := core.DefaultConfig()
	config.Path = path
	return Open(ctx, config, opts...)
}

// Store returns the underlying core store
func (db *DB) Store() *core.Store {
	return db.store
}

// Close closes the database
func (db *DB) Close() error {
	return db.store.Close()
}

// Tables lists the user tables and views of the database
func (db *DB) Tables(ctx context.Context) ([]string, error) {
	return db.store.ListTables(ctx)
}

// Describe introspects a table or SELECT statement
func (db *DB) Describe(ctx context.Context, table string) (*core.TableDescriptor, error) {
	return db.store.Introspect(ctx, core.IntrospectRequest{Query: table})
}
