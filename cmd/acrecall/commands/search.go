package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/acrecall/internal/plugin"
	"github.com/54b3r/acrecall/internal/rag"
)

// NewSearchCmd constructs the `acrecall search` command.
func NewSearchCmd() *cobra.Command {
	var topK int
	var threshold float64
	var rerank bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find the stored records most similar to a query",
		Long: `Embed the query and print the stored records whose cosine similarity reaches
the threshold, best first.

Examples:
  acrecall search "user logs in with a wrong password"
  acrecall search --top-k 10 --threshold 0.6 --rerank "checkout total"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			query := strings.Join(args, " ")

			p, cleanup, err := openPlugin(ctx)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			defer cleanup()

			var opts []rag.SearchOption
			if cmd.Flags().Changed("top-k") {
				opts = append(opts, rag.WithTopK(topK))
			}
			if cmd.Flags().Changed("threshold") {
				opts = append(opts, rag.WithThreshold(threshold))
			}
			ret, err := p.Search(ctx, query, opts...)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			results := ret.Results
			if rerank {
				results = p.Rerank(query, results)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, results)
			}
			if ret.Degraded {
				fmt.Fprintln(out, "warning: embedding provider unavailable, no results")
			}
			if len(results) == 0 {
				fmt.Fprintln(out, "no matching records")
				return nil
			}
			for i, r := range results {
				fmt.Fprintf(out, "%d. [%.3f] %s (%s, %s)\n   %s\n",
					i+1, r.Rank(), r.Record.ID, r.Record.Metadata.Type, r.Record.SourceFile, r.Record.Text)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", rag.DefaultTopK, "Maximum number of results")
	cmd.Flags().Float64Var(&threshold, "threshold", rag.DefaultThreshold, "Minimum cosine similarity")
	cmd.Flags().BoolVar(&rerank, "rerank", false, "Boost results sharing keywords with the query")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")

	return cmd
}

// NewStatsCmd constructs the `acrecall stats` command.
func NewStatsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the record count and provider availability",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			p, cleanup, err := openPlugin(ctx)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			defer cleanup()

			st, err := p.Stats(ctx)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, st)
			}
			fmt.Fprintf(out, "records:    %d\n", st.Records)
			fmt.Fprintf(out, "dimensions: %d\n", st.Dimensions)
			for _, row := range []struct {
				role   string
				status plugin.ProviderStatus
			}{
				{"embedding", st.Embedding},
				{"generation", st.Generation},
				{"storage", st.Storage},
				{"renderer", st.Renderer},
			} {
				state := "available"
				if !row.status.Available {
					state = "unavailable"
				}
				fmt.Fprintf(out, "%-11s %s (%s)\n", row.role+":", row.status.Name, state)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print stats as JSON")

	return cmd
}
