package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/isaac/internal/ir"
)

// LatestOptions holds flags for the latest command.
type LatestOptions struct {
	*RootOptions
	Path       string
	Time       int64
	Precedence string
	Statuses   []string
}

// LatestResult is the latest version set of a chronicle under a coordinate.
type LatestResult struct {
	Coordinate    CoordinateView `json:"coordinate"`
	Contradiction bool           `json:"contradiction"`
	Chronicle     *ChronicleView `json:"chronicle"`
}

// CoordinateView is a stamp coordinate by name.
type CoordinateView struct {
	Path       string   `json:"path"`
	Time       string   `json:"time"`
	Precedence string   `json:"precedence"`
	Statuses   []string `json:"statuses,omitempty"`
}

// NewLatestCommand creates the latest command.
func NewLatestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LatestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "latest <file>",
		Short: "Show the latest versions of a chronicle on a path",
		Long: `Compute the latest versions of a serialized chronicle as seen from a
path at a point in time.

More than one latest version means the visible versions contradict each
other; all of them are listed.

Examples:
  isaac latest aspirin.chronicle --path development
  isaac latest aspirin.chronicle --path master --time 1700000000000
  isaac latest aspirin.chronicle --precedence TIME --status ACTIVE`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLatest(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Path, "path", "", "viewing path name (default: the configured default path)")
	cmd.Flags().Int64Var(&opts.Time, "time", ir.TimeMax, "time horizon in epoch milliseconds (default: everything, including uncommitted)")
	cmd.Flags().StringVar(&opts.Precedence, "precedence", "PATH", "precedence for unrelated branches (PATH|TIME)")
	cmd.Flags().StringSliceVar(&opts.Statuses, "status", nil, "allowed statuses (default: all but CANCELED)")

	return cmd
}

func runLatest(opts *LatestOptions, file string, cmd *cobra.Command) error {
	formatter := opts.newFormatter(cmd)

	precedence, err := ir.ParsePrecedence(opts.Precedence)
	if err != nil {
		_ = formatter.Error(ErrCodeInvalidFlag, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid --precedence", err)
	}
	allowed := make([]ir.Status, 0, len(opts.Statuses))
	for _, name := range opts.Statuses {
		s, err := ir.ParseStatus(name)
		if err != nil {
			_ = formatter.Error(ErrCodeInvalidFlag, err.Error(), nil)
			return WrapExitError(ExitCommandError, "invalid --status", err)
		}
		allowed = append(allowed, s)
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return formatter.Fail("failed to load config", err)
	}
	rt, err := opts.newRuntime(cmd)
	if err != nil {
		return formatter.Fail("failed to create runtime", err)
	}
	defer rt.Close()

	path := opts.Path
	if path == "" {
		path = cfg.Defaults.Path
	}
	coord, err := rt.Coordinate(path, opts.Time, precedence, allowed...)
	if err != nil {
		return formatter.Fail("invalid coordinate", err)
	}

	c, data, err := readChronicleFile(rt, file)
	if err != nil {
		return formatter.Fail("failed to read chronicle", err)
	}
	latest, err := c.LatestVersion(coord)
	if err != nil {
		return formatter.Fail("failed to compute latest versions", err)
	}
	view, err := newChronicleView(rt, file, data, c, latest)
	if err != nil {
		return formatter.Fail("failed to render chronicle", err)
	}

	result := LatestResult{
		Coordinate: CoordinateView{
			Path:       path,
			Time:       ir.FormatTime(opts.Time),
			Precedence: precedence.String(),
			Statuses:   opts.Statuses,
		},
		Contradiction: len(latest) > 1,
		Chronicle:     view,
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	w := formatter.Writer
	fmt.Fprintf(w, "latest on %s at %s (%s precedence)\n", path, result.Coordinate.Time, result.Coordinate.Precedence)
	if len(latest) == 0 {
		fmt.Fprintln(w, "  no visible versions")
	}
	if result.Contradiction {
		fmt.Fprintf(w, "  %d versions contradict each other\n", len(latest))
	}
	view.writeText(w)
	return nil
}
