package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/dusk-indust/refinery/internal/config"
)

// version is set by goreleaser at build time.
var version = "dev"

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// cliFlags are the persistent flags shared by every subcommand.
type cliFlags struct {
	ConfigDir string
	Verbose   bool
	NoColor   bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", red("error:"), err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	flags := &cliFlags{}

	root := &cobra.Command{
		Use:   "refinery",
		Short: "Score drafts on seven quality dimensions and refine them until they pass",
		Long: fmt.Sprintf(`%s

Refinery scores a document with a panel of judges, deploys one fixer per weak
dimension, merges their edits in a single rewrite, and re-scores until the
document reaches the pass threshold or the attempt budget runs out.

%s
  refinery refine draft.md            # refine a file
  cat draft.md | refinery refine -    # refine stdin
  refinery gate draft.md              # score once and report the publish tier
  refinery runs list                  # list stored runs
  refinery serve mcp                  # expose the tools over MCP stdio`,
			bold("Refinery "+version),
			bold("EXAMPLES:")),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if flags.NoColor {
				color.NoColor = true
			}
		},
	}

	root.PersistentFlags().StringVarP(&flags.ConfigDir, "config-dir", "C", ".", "directory containing refinery.yml")
	root.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "verbose output")
	root.PersistentFlags().BoolVar(&flags.NoColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newRefineCommand(flags),
		newGateCommand(flags),
		newRunsCommand(flags),
		newServeCommand(flags),
		newProbeCommand(flags),
		newVersionCommand(),
	)
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

// loadConfig reads refinery.yml and applies flag overrides.
func loadConfig(flags *cliFlags) (*config.ProjectConfig, error) {
	pc, err := config.Load(flags.ConfigDir)
	if err != nil {
		return nil, err
	}
	if flags.Verbose {
		pc.Verbose = true
	}
	return pc, nil
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
