package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/refinery/internal/a2a"
	"github.com/dusk-indust/refinery/internal/oracle"
)

func newProbeCommand(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Check that the configured oracle agents are reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pc, err := loadConfig(flags)
			if err != nil {
				return err
			}
			results := oracle.Probe(cmd.Context(), a2a.NewHTTPClient(), pc.Oracle.Endpoints, pc.Oracle.Timeout)

			w := cmd.OutOrStdout()
			failed := 0
			for _, r := range results {
				if r.OK() {
					fmt.Fprintf(w, "  %s %-18s %s %s\n", green("✓"), r.Skill, r.Endpoint, gray(r.Agent))
					continue
				}
				failed++
				fmt.Fprintf(w, "  %s %-18s %s %s\n", red("✗"), r.Skill, r.Endpoint, r.Err)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d oracle skills unavailable", failed, len(results))
			}
			return nil
		},
	}
}
