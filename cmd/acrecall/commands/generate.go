package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewGenerateCmd constructs the `acrecall generate` command, which writes a
// UI test for an acceptance criterion using similar stored records as
// examples.
func NewGenerateCmd() *cobra.Command {
	var testContext string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "generate <acceptance criterion>",
		Short: "Generate a UI test for an acceptance criterion",
		Long: `Generate a UI test for an acceptance criterion. The prompt template is chosen
from the criterion's wording (login, checkout, or default) and up to three of
the most similar stored records are included as examples.

Examples:
  acrecall generate "user can log in with valid credentials"
  acrecall generate --context "React app, Playwright" "cart total updates"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			p, cleanup, err := openPlugin(ctx)
			if err != nil {
				return fmt.Errorf("generate: %w", err)
			}
			defer cleanup()

			out, err := p.GenerateTest(ctx, strings.Join(args, " "), testContext)
			if err != nil {
				return fmt.Errorf("generate: %w", err)
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), out)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.Code)
			fmt.Fprintf(cmd.ErrOrStderr(), "\n# %s\n", out.Reasoning)
			return nil
		},
	}

	cmd.Flags().StringVarP(&testContext, "context", "c", "", "Extra context for the test (framework, app notes)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")

	return cmd
}
