package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/isaac/internal/config"
	"github.com/roach88/isaac/internal/ir"
	"github.com/roach88/isaac/internal/isaac"
	"github.com/roach88/isaac/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the isaac CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "isaac",
		Version: ir.LibraryVersion,
		Short:   "isaac - versioned terminology chronicles",
		Long: `Inspect, merge and query serialized terminology chronicles.

Chronicle files are read in the EXTERNAL format, where stamps and
component references are spelled out as UUIDs, so they can move between
runtimes.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to an isaac configuration file")

	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewMergeCommand(opts))
	cmd.AddCommand(NewLatestCommand(opts))
	cmd.AddCommand(NewConfigCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// loadConfig returns the configuration named by --config, or the default.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	if o.ConfigPath == "" {
		return config.Default(), nil
	}
	return config.Load(o.ConfigPath)
}

// newLogger returns a text logger on w: Debug with --verbose, otherwise
// the configured level.
func (o *RootOptions) newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	level := cfg.Log.SlogLevel()
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// newRuntime builds a runtime for file commands. Chronicle files carry
// their own data, so the runtime always uses an in-memory store whatever
// the configured backend.
func (o *RootOptions) newRuntime(cmd *cobra.Command) (*isaac.Runtime, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := o.newLogger(cfg, cmd.ErrOrStderr())
	rt, err := isaac.New(cfg,
		isaac.WithLogger(logger),
		isaac.WithRegisterer(prometheus.NewRegistry()),
		isaac.WithStore(store.NewMemory(nil, logger)),
	)
	if err != nil {
		return nil, err
	}
	logger.Debug("runtime configured", "config", o.ConfigPath, "paths", len(cfg.Paths))
	return rt, nil
}

// newFormatter returns the formatter for cmd's output streams.
func (o *RootOptions) newFormatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
