package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewAnalyzeCmd constructs the `acrecall analyze` command, which explains a
// failed test run from its log.
func NewAnalyzeCmd() *cobra.Command {
	var logFile string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Suggest a cause and fix for a failed test run",
		Long: `Analyze a test failure log and receive a likely cause, a suggested fix, and
whether a retry (and how long a wait) is worth trying. The analysis is
grounded on the most similar stored records and is a heuristic, not a
verified diagnosis.

You can pipe the log directly or provide a file.

Examples:
  npx playwright test 2>&1 | acrecall analyze
  acrecall analyze --file test-output.log`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			errorLog, err := readInput(logFile)
			if err != nil {
				return fmt.Errorf("analyze: %w", err)
			}
			if strings.TrimSpace(errorLog) == "" {
				return errors.New("analyze: no log given, pipe one in or use --file")
			}

			p, cleanup, err := openPlugin(ctx)
			if err != nil {
				return fmt.Errorf("analyze: %w", err)
			}
			defer cleanup()

			res, err := p.AnalyzeFailure(ctx, errorLog)
			if err != nil {
				return fmt.Errorf("analyze: %w", err)
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, res)
			}
			fmt.Fprintf(out, "cause:      %s\n", res.Cause)
			fmt.Fprintf(out, "suggestion: %s\n", res.Suggestion)
			if res.Retry {
				fmt.Fprintf(out, "retry:      yes, after %dms\n", res.WaitMs)
			} else {
				fmt.Fprintln(out, "retry:      no")
			}
			for _, r := range res.SimilarFailures {
				fmt.Fprintf(out, "similar:    [%.3f] %s\n", r.Score, r.Record.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&logFile, "file", "f", "", "Path to the failure log (default: stdin)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the analysis as JSON")

	return cmd
}

// NewWaitCmd constructs the `acrecall wait` command.
func NewWaitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "wait <selector>",
		Short: "Estimate how long to wait for an element, in milliseconds",
		Long: `Ask the generation provider how long a UI test should wait for the element
matched by selector. Prints 5000 when no usable estimate is returned.

Example:
  acrecall wait "#checkout-button"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			p, cleanup, err := openPlugin(ctx)
			if err != nil {
				return fmt.Errorf("wait: %w", err)
			}
			defer cleanup()

			ms, err := p.EstimateWaitTime(ctx, args[0])
			if err != nil {
				return fmt.Errorf("wait: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), ms)
			return nil
		},
	}
}
