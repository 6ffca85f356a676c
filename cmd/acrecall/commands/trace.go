package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/54b3r/acrecall/internal/plugin"
)

// NewTraceCmd constructs the `acrecall trace` command, which links test
// files to the acceptance criteria they cover.
func NewTraceCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "trace <test file>...",
		Short: "Build a test-to-requirement traceability matrix",
		Long: `Link each test file to the stored acceptance criteria, requirements, and
flows it is most similar to, then list the acceptance criteria no test covers.

Example:
  acrecall trace tests/*.spec.ts`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			tests := make([]plugin.TestCase, 0, len(args))
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("trace: read %q: %w", path, err)
				}
				tests = append(tests, plugin.TestCase{Name: filepath.Base(path), Code: string(data)})
			}

			p, cleanup, err := openPlugin(ctx)
			if err != nil {
				return fmt.Errorf("trace: %w", err)
			}
			defer cleanup()

			m, err := p.GenerateTraceMatrix(ctx, tests)
			if err != nil {
				return fmt.Errorf("trace: %w", err)
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, m)
			}
			for _, row := range m.Rows {
				fmt.Fprintln(out, row.Test)
				if len(row.Links) == 0 {
					fmt.Fprintln(out, "  (no linked records)")
				}
				for _, l := range row.Links {
					fmt.Fprintf(out, "  [%.3f] %s  %s\n", l.Score, l.RecordID, l.Text)
				}
			}
			fmt.Fprintf(out, "\ncoverage: %.1f%%\n", m.Coverage*100)
			for _, id := range m.Uncovered {
				fmt.Fprintf(out, "uncovered: %s\n", id)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the matrix as JSON")

	return cmd
}
