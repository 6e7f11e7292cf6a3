package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/refinery/internal/quality"
	"github.com/dusk-indust/refinery/internal/refinery"
)

func newGateCommand(flags *cliFlags) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "gate <file|->",
		Short: "Score a document once and report its publish tier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readDocument(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			pc, err := loadConfig(flags)
			if err != nil {
				return err
			}
			svc, err := refinery.FromConfig(cmd.Context(), pc, nil, newLogger(pc.Verbose))
			if err != nil {
				return err
			}
			defer svc.Close()

			out, err := svc.Gate(cmd.Context(), doc)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(w, out)
			}
			for _, d := range quality.Dimensions {
				score := out.Consensus.DimensionScores[d]
				label := fmt.Sprintf("%-22s %4.1f", d, score)
				if score < 7.0 {
					label = yellow(label)
				}
				fmt.Fprintf(w, "  %s\n", label)
			}
			fmt.Fprintf(w, "\n%s\n", tierColor(out.Decision.Tier)(out.Decision.String()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the consensus and decision as JSON")
	return cmd
}
