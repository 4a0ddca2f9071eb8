// Package commands implements the docbench command line.
package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"docbench/internal/config"
	"docbench/internal/logger"
	"docbench/internal/report"
)

// Exit codes.
const (
	ExitOK    = 0
	ExitError = 1
	ExitGate  = 2
)

type rootOptions struct {
	configPath string
	verbose    bool
	noColor    bool

	cfg *config.Config
	log zerolog.Logger
}

// NewRootCommand builds the docbench command tree.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "docbench",
		Short: "Benchmark document extraction backends against ground truth",
		Long: `docbench sends a document to every configured extraction backend, compares
each backend's JSON output with a human-verified expected JSON, and reports
accuracy, precision, recall and F1 per backend.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if opts.verbose {
				cfg.Log.Level = "debug"
			}
			opts.cfg = cfg
			opts.log = logger.New(cfg.Log, cmd.ErrOrStderr())
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "config file path (YAML)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	root.AddCommand(newValidateCommand(opts))
	root.AddCommand(newCompareCommand(opts))
	root.AddCommand(newBackendsCommand(opts))
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := NewRootCommand().ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}
	fmt.Fprintf(os.Stderr, "%s %v\n", color.New(color.FgRed).Sprint("error:"), err)
	if errors.Is(err, report.ErrGateFailed) {
		return ExitGate
	}
	return ExitError
}

// useColor reports whether table output should carry ANSI colors.
func (o *rootOptions) useColor(toStdout bool) bool {
	return toStdout && !o.noColor && !color.NoColor
}
