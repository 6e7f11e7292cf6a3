package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/dusk-indust/refinery/internal/gate"
	"github.com/dusk-indust/refinery/internal/orchestrator"
	"github.com/dusk-indust/refinery/internal/quality"
	"github.com/dusk-indust/refinery/internal/refinery"
)

type refineFlags struct {
	RunID        string
	MaxAttempts  int
	EvidenceFile string
	Output       string
	JSON         bool
}

func newRefineCommand(flags *cliFlags) *cobra.Command {
	rf := &refineFlags{}
	cmd := &cobra.Command{
		Use:   "refine <file|->",
		Short: "Refine a document until it passes the quality threshold",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRefine(cmd, flags, rf, args[0])
		},
	}
	cmd.Flags().StringVar(&rf.RunID, "run-id", "", "run ID (generated when empty)")
	cmd.Flags().IntVarP(&rf.MaxAttempts, "max-attempts", "n", 0, "refinement attempts allowed (default from config)")
	cmd.Flags().StringVar(&rf.EvidenceFile, "evidence", "", "JSON file with supporting sources")
	cmd.Flags().StringVarP(&rf.Output, "output", "o", "", "write the final document to this file")
	cmd.Flags().BoolVar(&rf.JSON, "json", false, "print the full outcome as JSON")
	return cmd
}

func runRefine(cmd *cobra.Command, flags *cliFlags, rf *refineFlags, src string) error {
	ctx := cmd.Context()
	doc, err := readDocument(cmd.InOrStdin(), src)
	if err != nil {
		return err
	}

	var evidence []quality.Evidence
	if rf.EvidenceFile != "" {
		data, err := os.ReadFile(rf.EvidenceFile)
		if err != nil {
			return fmt.Errorf("read evidence: %w", err)
		}
		if err := json.Unmarshal(data, &evidence); err != nil {
			return fmt.Errorf("parse evidence: %w", err)
		}
	}

	pc, err := loadConfig(flags)
	if err != nil {
		return err
	}
	logger := newLogger(pc.Verbose)
	stopMetrics := serveMetrics(ctx, pc.MetricsAddr, logger)
	defer stopMetrics()

	progress := orchestrator.NewProgressReporter()
	svc, err := refinery.FromConfig(ctx, pc, gate.LogLedger{Logger: logger}, logger,
		orchestrator.WithLogger(logger),
		orchestrator.WithObserver(progress),
	)
	if err != nil {
		return err
	}
	defer svc.Close()

	errOut := cmd.ErrOrStderr()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		printProgress(errOut, progress.Subscribe())
	}()

	out, err := svc.Refine(ctx, refinery.Request{
		RunID:       rf.RunID,
		Document:    doc,
		MaxAttempts: rf.MaxAttempts,
		Evidence:    evidence,
	})
	progress.Close()
	wg.Wait()
	if err != nil {
		return err
	}

	if rf.Output != "" {
		if err := os.WriteFile(rf.Output, []byte(out.Result.FinalDocument), 0o644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
	}

	w := cmd.OutOrStdout()
	if rf.JSON {
		return writeJSON(w, out)
	}
	printOutcome(errOut, out)
	if rf.Output == "" {
		fmt.Fprintln(w, out.Result.FinalDocument)
	}
	return nil
}

// readDocument reads src, or stdin when src is "-".
func readDocument(stdin io.Reader, src string) (string, error) {
	var (
		data []byte
		err  error
	)
	if src == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(src)
	}
	if err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("document %s is empty", src)
	}
	return string(data), nil
}

func printProgress(w io.Writer, events <-chan orchestrator.ProgressEvent) {
	for ev := range events {
		if ev.Phase == orchestrator.PhaseFixing && ev.Section == "round" {
			fmt.Fprintf(w, "%s %s\n", bold(orchestrator.FormatRoundHeader("refine", ev.Round)), gray(ev.Message))
			continue
		}
		line := orchestrator.FormatProgress(ev)
		switch ev.Status {
		case orchestrator.ProgressComplete:
			line = green(line)
		case orchestrator.ProgressFailed:
			line = red(line)
		case orchestrator.ProgressWorking:
			line = cyan(line)
		}
		fmt.Fprintln(w, line)
	}
}

func printOutcome(w io.Writer, out *refinery.Outcome) {
	res := out.Result
	scores := make([]string, 0, len(res.Attempts)+1)
	for _, s := range res.ScoreProgression() {
		scores = append(scores, fmt.Sprintf("%.1f", s))
	}

	fmt.Fprintf(w, "\n%s %s\n", bold("Run"), res.RunID)
	fmt.Fprintf(w, "  scores:   %s\n", strings.Join(scores, " -> "))
	fmt.Fprintf(w, "  attempts: %d, edits applied: %d\n", len(res.Attempts), res.TotalEditsApplied())
	fmt.Fprintf(w, "  verdict:  %s\n", tierColor(out.Decision.Tier)(out.Decision.String()))
	if res.WarningReason != "" {
		fmt.Fprintf(w, "  warning:  %s\n", yellow(res.WarningReason))
	}
	if out.RefundError != "" {
		fmt.Fprintf(w, "  refund:   %s\n", red(out.RefundError))
	}
}

func tierColor(t gate.Tier) func(a ...any) string {
	switch t {
	case gate.TierHigh:
		return green
	case gate.TierAcceptable:
		return yellow
	default:
		return red
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
