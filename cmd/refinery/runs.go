package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/refinery/internal/export"
	"github.com/dusk-indust/refinery/internal/trace"
)

func newRunsCommand(flags *cliFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect stored refinement runs",
	}
	cmd.AddCommand(newRunsListCommand(flags), newRunsShowCommand(flags), newRunsStatsCommand(flags))
	return cmd
}

// openStore opens the configured trace store.
func openStore(cmd *cobra.Command, flags *cliFlags) (trace.Store, error) {
	pc, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	return trace.Open(cmd.Context(), pc.Store.Backend, pc.Store.Path)
}

func newRunsListCommand(flags *cliFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(cmd, flags)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(w, "No runs found.")
				fmt.Fprintln(w, "Runs are kept only with a persistent store (store.backend: kuzu).")
				return nil
			}

			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "RUN\tCREATED\tSCORE\tTIER\tATTEMPTS")
			for _, row := range export.SummaryRows(runs) {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", row[0], row[1], row[2], row[3], row[4])
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum runs to list (0 for all)")
	return cmd
}

func newRunsShowCommand(flags *cliFlags) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Export one run as JSON or a Mermaid diagram",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd, flags)
			if err != nil {
				return err
			}
			defer store.Close()

			w := cmd.OutOrStdout()
			switch format {
			case "json":
				report, err := export.ExportRun(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}
				return writeJSON(w, report)
			case "mermaid":
				diagram, err := export.GenerateMermaid(cmd.Context(), store, args[0])
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(w, diagram)
				return err
			default:
				return fmt.Errorf("unknown format %q (want json or mermaid)", format)
			}
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json or mermaid")
	return cmd
}

func newRunsStatsCommand(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count stored runs, attempts, and edits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(cmd, flags)
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "runs: %d\nattempts: %d\nedits: %d\n",
				stats.RunCount, stats.AttemptCount, stats.EditCount)
			return nil
		},
	}
}
