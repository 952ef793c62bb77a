package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/siherrmann/kgraph"
	"github.com/siherrmann/kgraph/helper"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     *Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "kgraph",
	Short: "Knowledge graph construction and query runner",
	Long:  "Resolves extracted mentions into entities, materializes weighted relationships, ranks entities with PageRank and answers multi-hop questions over a PostgreSQL graph store. Batches are read as JSON, results are written as JSON to stdout.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v, err := newViper(cfgFile)
		if err != nil {
			return err
		}
		if err := v.BindPFlag("log.level", cmd.Root().PersistentFlags().Lookup("log-level")); err != nil {
			return fmt.Errorf("bind log level: %w", err)
		}

		c, err := loadConfig(v)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		level, err := cfg.logLevel()
		if err != nil {
			return err
		}
		// Logs go to stderr so stdout stays valid JSON.
		logger = slog.New(helper.NewPrettyHandler(os.Stderr, helper.PrettyHandlerOptions{
			SlogOpts: slog.HandlerOptions{Level: level},
		}))

		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./kgraph.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(entitiesCmd)
	rootCmd.AddCommand(edgesCmd)
	rootCmd.AddCommand(rankCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(neighborsCmd)
}

// openGraph connects to the configured database.
func openGraph() (*kgraph.KGraph, error) {
	return kgraph.NewKGraph(&cfg.DB, cfg.Graph, kgraph.WithLogger(logger))
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
