package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/hujson"
)

// Config represents configuration options for a geometry store
type Config struct {
	Path               string `json:"path"`                     // Source database file path
	IndexPath          string `json:"index_path,omitempty"`     // Index database path, default <path>.index
	IndexInStore       bool   `json:"index_in_store"`           // Keep index tables inside the source database
	UseSpatialIndex    bool   `json:"use_spatial_index"`        // Consult index tables when resolving extents
	MetadataTable      string `json:"metadata_table,omitempty"` // Table holding f_table_name/xmin/ymin/xmax/ymax rows
	MultipleGeometries bool   `json:"multiple_geometries"`      // Split collections into one shape per member
	ReadOnly           bool   `json:"read_only"`                // Open the source database read-only
	BusyTimeoutMS      int    `json:"busy_timeout_ms"`          // How long to wait on a locked database
	LogLevel           string `json:"log_level,omitempty"`      // Used by LoggerFromConfig

	Logger Logger `json:"-"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{
		UseSpatialIndex: true,
		BusyTimeoutMS:   5000,
		LogLevel:        "info",
	}
}

// Validate checks the configuration for missing or contradictory values
func (c Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("%w: database path cannot be empty", ErrInvalidConfig)
	}
	if c.BusyTimeoutMS < 0 {
		return fmt.Errorf("%w: busy timeout must be non-negative", ErrInvalidConfig)
	}
	if c.ReadOnly && c.IndexInStore {
		return fmt.Errorf("%w: in-store index requires a writable database", ErrInvalidConfig)
	}
	if !c.IndexInStore && c.resolvedIndexPath() == c.Path {
		return fmt.Errorf("%w: index path must differ from database path", ErrInvalidConfig)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

func (c Config) resolvedIndexPath() string {
	if c.IndexPath != "" {
		return c.IndexPath
	}
	return IndexPathFor(c.Path)
}

func (c Config) busyTimeout() time.Duration {
	return time.Duration(c.BusyTimeoutMS) * time.Millisecond
}

// LoggerFromConfig returns c.Logger, or a stderr logger at c.LogLevel
func LoggerFromConfig(c Config) (Logger, error) {
	if c.Logger != nil {
		return c.Logger, nil
	}
	level, err := ParseLogLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	return NewStdLogger(level), nil
}

// LoadConfigFile reads a JSON-with-comments config file on top of
// DefaultConfig. Relative paths inside the file are resolved against the
// file's directory.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is intentionally user-controlled
	if err != nil {
		return Config{}, fmt.Errorf("%w: read %s: %w", ErrInvalidConfig, path, err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}

	dir := filepath.Dir(path)
	if cfg.Path != "" && !filepath.IsAbs(cfg.Path) {
		cfg.Path = filepath.Join(dir, cfg.Path)
	}
	if cfg.IndexPath != "" && !filepath.IsAbs(cfg.IndexPath) {
		cfg.IndexPath = filepath.Join(dir, cfg.IndexPath)
	}
	return cfg, nil
}

// ParseConfig decodes JSONC (comments and trailing commas allowed) over DefaultConfig
func ParseConfig(data []byte) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("%w: invalid JSONC: %w", ErrInvalidConfig, err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return cfg, nil
}
