// Package cmd defines the CLI commands for the courtscraper executable.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Fennzo/CourtScrapper/internal/config"
	"github.com/Fennzo/CourtScrapper/internal/logging"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "courtscraper",
		Short: "Scrapes court case records for a list of attorneys.",
		Long: `courtscraper drives a pool of browser sessions against the county
court records portal, one session per attorney, extracts felony case details,
and exports the combined results for reporting.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (e.g. ./config.yaml)")
	cmd.AddCommand(newScrapeCmd())
	cmd.AddCommand(newProbeCmd())
	return cmd
}

// Execute runs the CLI. SIGINT and SIGTERM cancel the command context so an
// in-flight run stops at the next safe point and keeps its partial results.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfigAndLogger is shared setup for all subcommands.
func loadConfigAndLogger() (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return cfg, logger, nil
}
