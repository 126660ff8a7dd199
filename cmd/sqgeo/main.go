package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/liliang-cn/sqgeo"
	"github.com/liliang-cn/sqgeo/pkg/core"
)

// globalOptions holds the persistent flags shared by every command
type globalOptions struct {
	dbPath       string
	configPath   string
	indexPath    string
	indexInStore bool
	metadata     string
	multi        bool
	readOnly     bool
	logLevel     string
	verbose      bool
	jsonOut      bool
	output       string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:           "sqgeo",
		Short:         "CLI tool for geometry tables in SQLite",
		Long:          `A command-line interface for inspecting geometry tables, building spatial indexes and computing extents in SQLite databases.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.dbPath, "db", "d", "", "Database file path")
	flags.StringVarP(&opts.configPath, "config", "c", "", "Configuration file (JSON with comments)")
	flags.StringVar(&opts.indexPath, "index-path", "", "Spatial index database path (default <db>.index)")
	flags.BoolVar(&opts.indexInStore, "index-in-store", false, "Keep spatial indexes inside the source database")
	flags.StringVar(&opts.metadata, "metadata", "", "Table holding per-table extents")
	flags.BoolVar(&opts.multi, "multi", false, "Index each member of a geometry collection separately")
	flags.BoolVar(&opts.readOnly, "read-only", false, "Open the source database read-only")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose output")
	flags.BoolVar(&opts.jsonOut, "json", false, "Output as JSON")
	flags.StringVarP(&opts.output, "output", "o", "", "Write JSON output to this file")

	rootCmd.AddCommand(
		newTablesCmd(opts),
		newDescribeCmd(opts),
		newIndexCmd(opts),
		newExtentCmd(opts),
	)
	return rootCmd
}

func newTablesCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List user tables and views",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			tables, err := db.Tables(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list tables: %w", err)
			}

			return opts.emit(cmd, tables, func(w io.Writer) {
				for _, t := range tables {
					fmt.Fprintln(w, t)
				}
			})
		},
	}
}

func newDescribeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "describe <table|query>",
		Short: "Show the columns, geometry field and key field of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			desc, err := db.Describe(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to describe %s: %w", args[0], err)
			}
			if !desc.Found && !desc.FoundTable {
				return fmt.Errorf("%w: %s", sqgeo.ErrTableNotFound, args[0])
			}

			return opts.emit(cmd, desc, func(w io.Writer) {
				fmt.Fprintf(w, "Table: %s\n", desc.Table)
				fmt.Fprintf(w, "  Geometry field: %s\n", orNone(desc.GeometryField))
				fmt.Fprintf(w, "  Key field: %s\n", orNone(desc.KeyField))
				fmt.Fprintf(w, "  Columns:\n")
				for _, c := range desc.Columns {
					fmt.Fprintf(w, "    %-20s %-8s %s\n", c.Name, c.Type, c.Role)
				}
			})
		},
	}
}

func newIndexCmd(opts *globalOptions) *cobra.Command {
	var geometryField, keyField string
	var drop bool

	cmd := &cobra.Command{
		Use:   "index <table|query>",
		Short: "Build or drop the spatial index of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmd.Context()
			table := args[0]

			if drop {
				if geometryField == "" {
					return fmt.Errorf("--geometry-field is required with --drop")
				}
				if err := db.Store().DropSpatialIndex(ctx, core.TableFromSQL(table), geometryField); err != nil {
					return fmt.Errorf("failed to drop index: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Spatial index %s dropped\n",
					core.IndexTableName(core.TableFromSQL(table), geometryField))
				return nil
			}

			layer, err := db.Layer(ctx, sqgeo.LayerOptions{
				Table:         table,
				GeometryField: geometryField,
				KeyField:      keyField,
				NoExtent:      true,
			})
			if err != nil {
				return err
			}

			res, err := db.Store().BuildSpatialIndex(ctx, core.BuildRequest{
				Table:         table,
				GeometryTable: layer.GeometryTable,
				GeometryField: layer.GeometryField,
				KeyField:      layer.KeyField,
			})
			if err != nil {
				return fmt.Errorf("failed to build index: %w", err)
			}

			return opts.emit(cmd, res, func(w io.Writer) {
				if !res.Built {
					fmt.Fprintf(w, "No spatial index built for %s: no indexable rows (%d skipped)\n", layer.GeometryTable, res.Skipped)
					return
				}
				fmt.Fprintf(w, "Spatial index %s built\n", res.IndexTable)
				fmt.Fprintf(w, "  Records: %d\n", res.Records)
				fmt.Fprintf(w, "  Skipped: %d\n", res.Skipped)
				fmt.Fprintf(w, "  Duration: %s\n", res.Duration)
			})
		},
	}

	cmd.Flags().StringVar(&geometryField, "geometry-field", "", "Geometry column (detected when empty)")
	cmd.Flags().StringVar(&keyField, "key-field", "", "Integer key column (detected when empty)")
	cmd.Flags().BoolVar(&drop, "drop", false, "Drop the index instead of building it")
	return cmd
}

func newExtentCmd(opts *globalOptions) *cobra.Command {
	var geometryField, keyField string
	var autoIndex bool

	cmd := &cobra.Command{
		Use:   "extent <table|query>",
		Short: "Compute the extent of a geometry table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer db.Close()

			layer, err := db.Layer(cmd.Context(), sqgeo.LayerOptions{
				Table:         args[0],
				GeometryField: geometryField,
				KeyField:      keyField,
				AutoIndex:     autoIndex,
			})
			if err != nil {
				return err
			}

			return opts.emit(cmd, layer, func(w io.Writer) {
				if !layer.Extent.Known() {
					fmt.Fprintf(w, "Extent of %s: unknown\n", layer.GeometryTable)
					return
				}
				e := layer.Extent.Extent
				fmt.Fprintf(w, "Extent of %s (%s): %g %g %g %g\n",
					layer.GeometryTable, layer.Extent.Source, e.MinX, e.MinY, e.MaxX, e.MaxY)
			})
		},
	}

	cmd.Flags().StringVar(&geometryField, "geometry-field", "", "Geometry column (detected when empty)")
	cmd.Flags().StringVar(&keyField, "key-field", "", "Integer key column (detected when empty)")
	cmd.Flags().BoolVar(&autoIndex, "auto-index", false, "Build the spatial index first when missing")
	return cmd
}

// config layers the flags that were set over the config file or defaults
func (o *globalOptions) config(cmd *cobra.Command) (core.Config, error) {
	cfg := core.DefaultConfig()
	if o.configPath != "" {
		loaded, err := core.LoadConfigFile(o.configPath)
		if err != nil {
			return core.Config{}, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if o.dbPath != "" {
		cfg.Path = o.dbPath
	}
	if o.indexPath != "" {
		cfg.IndexPath = o.indexPath
	}
	if flags.Changed("index-in-store") {
		cfg.IndexInStore = o.indexInStore
	}
	if o.metadata != "" {
		cfg.MetadataTable = o.metadata
	}
	if flags.Changed("multi") {
		cfg.MultipleGeometries = o.multi
	}
	if flags.Changed("read-only") {
		cfg.ReadOnly = o.readOnly
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.verbose {
		cfg.LogLevel = "debug"
	}

	if cfg.Path == "" {
		return core.Config{}, fmt.Errorf("database path not specified (use --db or --config)")
	}

	level, err := core.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return core.Config{}, err
	}
	cfg.Logger = core.NewLogger(cmd.ErrOrStderr(), level)
	return cfg, nil
}

func (o *globalOptions) open(cmd *cobra.Command) (*sqgeo.DB, error) {
	cfg, err := o.config(cmd)
	if err != nil {
		return nil, err
	}
	db, err := sqgeo.Open(cmd.Context(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// emit prints v as JSON when --json or --output is set and as text otherwise.
// --output replaces the file atomically.
func (o *globalOptions) emit(cmd *cobra.Command, v any, text func(io.Writer)) error {
	if !o.jsonOut && o.output == "" {
		text(cmd.OutOrStdout())
		return nil
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	data = append(data, '\n')

	if o.output == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := atomic.WriteFile(o.output, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write %s: %w", o.output, err)
	}
	return nil
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		log.SetFlags(0)
		log.Print(err)
		os.Exit(1)
	}
}
