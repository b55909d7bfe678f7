package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/isaac/internal/config"
)

// ConfigCheckResult is the outcome of validating a configuration file.
type ConfigCheckResult struct {
	File   string             `json:"file"`
	Valid  bool               `json:"valid"`
	Errors []ConfigFieldError `json:"errors,omitempty"`
}

// ConfigFieldError is one invalid setting.
type ConfigFieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// NewConfigCommand creates the config command and its subcommands.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Validate and show isaac configuration",
	}
	cmd.AddCommand(newConfigValidateCommand(rootOpts))
	cmd.AddCommand(newConfigShowCommand(rootOpts))
	return cmd
}

func newConfigValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a configuration file",
		Long: `Check a configuration file against the schema and its path references.

Exit codes:
  0 - Valid
  1 - Invalid
  2 - Command error (unreadable file)

Examples:
  isaac config validate isaac.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigValidate(rootOpts, args[0], cmd)
		},
	}
}

func runConfigValidate(opts *RootOptions, file string, cmd *cobra.Command) error {
	formatter := opts.newFormatter(cmd)

	data, err := os.ReadFile(file)
	if err != nil {
		return formatter.Fail("failed to read config", err)
	}

	result := ConfigCheckResult{File: file, Valid: true}
	if _, err := config.Parse(data); err != nil {
		result.Valid = false
		result.Errors = fieldErrors(err)
	}

	if opts.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		w := formatter.Writer
		if result.Valid {
			fmt.Fprintf(w, "✓ %s is valid\n", file)
		} else {
			fmt.Fprintf(w, "✗ %s is invalid\n", file)
			for _, e := range result.Errors {
				fmt.Fprintf(w, "  %s: %s\n", e.Field, e.Message)
			}
		}
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("%s: %d configuration error(s)", file, len(result.Errors)))
	}
	return nil
}

// fieldErrors flattens a joined validation error. Errors that are not
// validation errors, such as YAML syntax errors, are reported against the
// whole file.
func fieldErrors(err error) []ConfigFieldError {
	var out []ConfigFieldError
	var walk func(error)
	walk = func(err error) {
		if joined, ok := err.(interface{ Unwrap() []error }); ok {
			for _, e := range joined.Unwrap() {
				walk(e)
			}
			return
		}
		var ve *config.ValidationError
		if errors.As(err, &ve) {
			out = append(out, ConfigFieldError{Field: ve.Field, Message: ve.Message})
			return
		}
		out = append(out, ConfigFieldError{Field: "config", Message: err.Error()})
	}
	walk(err)
	return out
}

func newConfigShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long: `Print the configuration commands run with: the --config file over the
defaults, or the defaults alone.

Examples:
  isaac config show
  isaac config show --config isaac.yaml --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(rootOpts, cmd)
		},
	}
}

func runConfigShow(opts *RootOptions, cmd *cobra.Command) error {
	formatter := opts.newFormatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return formatter.Fail("failed to load config", err)
	}

	if opts.Format == "json" {
		return formatter.Success(cfg)
	}
	enc := yaml.NewEncoder(formatter.Writer)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return WrapExitError(ExitCommandError, "failed to encode config", err)
	}
	return enc.Close()
}
