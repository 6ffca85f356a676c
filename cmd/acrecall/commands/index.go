package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/54b3r/acrecall/internal/logging"
	"github.com/54b3r/acrecall/internal/rag"
)

// NewIndexCmd constructs the `acrecall index` command, which extracts
// acceptance criteria from requirements documents and stores them.
func NewIndexCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "index [dir]",
		Short: "Index acceptance criteria from a requirements directory",
		Long: `Scan the .md, .markdown and .txt files directly inside dir, extract every
bulleted acceptance criterion, embed it, and store it. Criteria whose text
is already stored are skipped, so re-running is safe.

dir defaults to REQUIREMENTS_DIR (./requirements).

With --watch the command keeps running and re-indexes documents as they are
created or modified.

Examples:
  acrecall index ./docs/requirements
  acrecall index --watch`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			p, cleanup, err := openPlugin(ctx)
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}
			defer cleanup()

			dir := p.Config().Paths.Requirements
			if len(args) == 1 {
				dir = args[0]
			}

			report, err := p.Index(ctx, dir, func(msg string) {
				fmt.Fprintln(cmd.OutOrStdout(), msg)
			})
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d of %d criteria from %d file(s), %d skipped, %d degraded\n",
				report.Indexed, report.Extracted, report.Files, report.Skipped, report.Degraded)

			if !watch {
				return nil
			}
			log.Info("watching for changes", slog.String("dir", dir))
			return watchDocuments(ctx, dir, func(path string) error {
				r, err := p.IndexFile(ctx, path)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: indexed %d, skipped %d\n", path, r.Indexed, r.Skipped)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep running and re-index documents on change")

	return cmd
}

// NewAddCmd constructs the `acrecall add` command, which stores whole files
// (typically existing tests) as single records.
func NewAddCmd() *cobra.Command {
	var recordType string

	cmd := &cobra.Command{
		Use:   "add <file>...",
		Short: "Store whole files as records",
		Long: `Store each file as one record whose ID is the file name. The record type is
inferred from the name (login.spec.ts is a test, checkout-flow.md a flow)
unless --type is given.

Valid types: ac, test, flow, requirement, pattern.

Examples:
  acrecall add tests/login.spec.ts tests/cart.spec.ts
  acrecall add --type pattern known-flakes.md`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			p, cleanup, err := openPlugin(ctx)
			if err != nil {
				return fmt.Errorf("add: %w", err)
			}
			defer cleanup()

			for _, path := range args {
				rec, err := p.AddFile(ctx, path, rag.RecordType(recordType))
				if err != nil {
					return fmt.Errorf("add: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added %s (%s)\n", rec.ID, rec.Metadata.Type)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&recordType, "type", "t", "", "Record type (default: inferred from file name)")

	return cmd
}
