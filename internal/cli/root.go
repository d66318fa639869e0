// Package cli wires the reqevo commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/sprite-ai/reqevo/internal/config"
)

var (
	cfgFile  string
	logLevel string

	cfg    *config.Config
	logger = slog.Default()
)

var rootCmd = &cobra.Command{
	Use:   "reqevo",
	Short: "Track how a requirements document evolved and why",
	Long: `reqevo splits the history of a requirements document into atomic changes,
asks a classifier why each one happened, and lets a reviewer correct the
verdicts before the final report is written.

Examples:
  reqevo run Payments requirements/*.txt
  reqevo run https://github.com/acme/specs/blob/main/payments.md --name payments
  reqevo resume payments --hint "prefer Clarification over Meaning Change"
  reqevo report payments --format markdown`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default .reqevo.yaml in . or $HOME)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	rootCmd.AddCommand(runCmd, resumeCmd, inspectCmd, reportCmd, runsCmd, versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

func setup(cmd *cobra.Command, args []string) error {
	c, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		c.Logging.Level = logLevel
		if err := c.Validate(); err != nil {
			return err
		}
	}

	cfg = c
	logger = newLogger(cmd.ErrOrStderr(), c)
	slog.SetDefault(logger)
	return nil
}

func newLogger(w io.Writer, c *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel()}
	if c.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func printf(cmd *cobra.Command, format string, a ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, a...)
}
