package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/isaac/internal/chronicle"
	"github.com/roach88/isaac/internal/ir"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Canonical bool
}

// CanonicalSummary is the canonical JSON rendering of a chronicle as read
// into the runtime, with its digest.
type CanonicalSummary struct {
	Digest  string `json:"digest"`
	Summary string `json:"summary"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Show the contents of a serialized chronicle",
		Long: `Read a serialized chronicle and print its identity and every version.

Stamps are shown with UUIDs for authors and modules and configured names
for paths. INTERNAL-mode files only make sense inside the runtime that
wrote them; their stamps cannot be resolved here.

Examples:
  isaac inspect aspirin.chronicle
  isaac inspect aspirin.chronicle --format json
  isaac inspect aspirin.chronicle --canonical`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Canonical, "canonical", false, "print the canonical JSON summary and its digest")

	return cmd
}

func runInspect(opts *InspectOptions, file string, cmd *cobra.Command) error {
	formatter := opts.newFormatter(cmd)

	rt, err := opts.newRuntime(cmd)
	if err != nil {
		return formatter.Fail("failed to create runtime", err)
	}
	defer rt.Close()

	c, data, err := readChronicleFile(rt, file)
	if err != nil {
		return formatter.Fail("failed to read chronicle", err)
	}
	formatter.VerboseLog("Read %d bytes from %s", len(data), file)

	if opts.Canonical {
		return writeCanonical(opts, formatter, c)
	}

	view, err := newChronicleView(rt, file, data, c, c.VersionList())
	if err != nil {
		return formatter.Fail("failed to render chronicle", err)
	}

	if opts.Format == "json" {
		return formatter.Success(view)
	}
	view.writeText(formatter.Writer)
	return nil
}

// writeCanonical prints the canonical summary of c. Its nids are those of
// this process, so the digest only compares chronicles read the same way.
func writeCanonical(opts *InspectOptions, formatter *OutputFormatter, c *chronicle.Chronicle) error {
	summary, err := c.Summary()
	if err != nil {
		return formatter.Fail("failed to summarize chronicle", err)
	}
	canonical, err := ir.MarshalCanonical(summary)
	if err != nil {
		return formatter.Fail("failed to render summary", err)
	}
	result := CanonicalSummary{
		Digest:  ir.SummaryDigest(canonical).String(),
		Summary: string(canonical),
	}
	if opts.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "%s\n%s\n", result.Summary, result.Digest)
	return nil
}
