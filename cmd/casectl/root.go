package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/kirillkom/case-study-search/internal/bootstrap"
	"github.com/kirillkom/case-study-search/internal/config"
	"github.com/kirillkom/case-study-search/internal/observability/logging"
)

type cliState struct {
	configFile string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	state := &cliState{}
	root := &cobra.Command{
		Use:   "casectl",
		Short: "Administer and query the case study search index",
		Long: `casectl provisions the Neo4j indexes, loads chunk records, and runs
questions and document lookups against the case study graph.

Configuration is read from the environment, an optional .env file and the
YAML file named by --config (or CONFIG_FILE).`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&state.configFile, "config", "", "YAML config file with KEY: value defaults")
	root.PersistentFlags().StringVar(&state.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newEnsureIndexesCmd(state),
		newIngestCmd(state),
		newAskCmd(state),
		newResolveCmd(state),
		newMCPCmd(state),
	)
	return root
}

// load resolves configuration and a stderr logger. stdout is reserved for
// command output.
func (s *cliState) load() (config.Config, *slog.Logger) {
	if s.configFile != "" {
		_ = os.Setenv("CONFIG_FILE", s.configFile)
	}
	cfg := config.Load()
	if s.logLevel != "" {
		cfg.LogLevel = s.logLevel
	}
	logger := logging.NewJSONLoggerTo(os.Stderr, "casectl", cfg.LogLevel)
	slog.SetDefault(logger)
	return cfg, logger
}

func (s *cliState) app(ctx context.Context) (*bootstrap.App, error) {
	cfg, logger := s.load()
	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return app, nil
}
