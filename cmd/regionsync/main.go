package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"regionsync/internal/platform/config"
	"regionsync/internal/platform/logger"
)

// main wires the CLI. Each subcommand loads configuration from the
// environment (optionally seeded from a .env file) and builds only what it
// needs.
func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type env struct {
	cfg    config.Config
	logger *slog.Logger
}

func newRootCommand() *cobra.Command {
	e := &env{}
	var topologyFile, policySource string

	root := &cobra.Command{
		Use:           "regionsync",
		Short:         "Cross-region entity sync for the recruiting platform",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if topologyFile != "" {
				cfg.TopologyFile = topologyFile
			}
			if policySource != "" {
				cfg.Sync.PolicySource = policySource
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			e.cfg = cfg
			e.logger = logger.New(cfg.LogLevel, cfg.LogFormat)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&topologyFile, "topology", "", "topology YAML (env REGIONSYNC_TOPOLOGY_FILE)")
	root.PersistentFlags().StringVar(&policySource, "policies", "", "policy source: file|postgres|defaults (env POLICY_SOURCE)")

	root.AddCommand(
		newServeCommand(e),
		newOrderCommand(e),
		newValidateCommand(e),
		newMigrateCommand(e),
		newSeedPoliciesCommand(e),
	)
	return root
}
