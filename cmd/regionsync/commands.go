package main

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"regionsync/internal/platform/config"
	"regionsync/internal/platform/postgres"
	"regionsync/internal/sync/orchestrator"
	"regionsync/internal/sync/policy"
)

func newOrderCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "order",
		Short: "Print the propagation order of enabled entity types",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			var db *sql.DB
			if e.cfg.Sync.PolicySource == "postgres" {
				dbs, err := openRegions(cmd, e.cfg)
				if err != nil {
					return err
				}
				defer postgres.CloseAll(dbs)
				_, db = primaryRegion(e.cfg, dbs)
			}
			registry, err := loadPolicies(ctx, e.cfg, db)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "upsert: %s\n", strings.Join(registry.Order(), " -> "))
			fmt.Fprintf(out, "delete: %s\n", strings.Join(registry.DeleteOrder(), " -> "))
			return nil
		},
	}
}

func newValidateCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the topology and entity policies without connecting to anything",
		RunE: func(cmd *cobra.Command, _ []string) error {
			topo, err := config.LoadTopology(e.cfg.TopologyFile)
			if err != nil {
				return err
			}
			regions, err := regionsFromTopology(topo, residencyResolver(topo))
			if err != nil {
				return err
			}
			if err := (orchestrator.Config{Regions: regions}).Validate(); err != nil {
				return err
			}
			if e.cfg.Sync.PolicySource == "postgres" {
				fmt.Fprintln(cmd.OutOrStdout(), "topology ok; postgres policies are checked at startup")
				return nil
			}
			registry, err := loadPolicies(cmd.Context(), e.cfg, nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d regions, %d entity types (%d enabled)\n",
				len(regions), len(registry.All()), len(registry.Order()))
			return nil
		},
	}
}

func newMigrateCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations to every region database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			dbs, err := openRegions(cmd, e.cfg)
			if err != nil {
				return err
			}
			defer postgres.CloseAll(dbs)
			for name, db := range dbs {
				if err := postgres.Migrate(cmd.Context(), db, e.logger.With("region", name)); err != nil {
					return fmt.Errorf("migrate %s: %w", name, err)
				}
			}
			return nil
		},
	}
}

func newSeedPoliciesCommand(e *env) *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "seed-policies",
		Short: "Write entity policies from the topology file (or built-in defaults) to every region",
		RunE: func(cmd *cobra.Command, _ []string) error {
			descriptors := policy.DefaultConfigurations()
			if from == "file" {
				var err error
				if descriptors, err = policy.LoadFile(e.cfg.TopologyFile); err != nil {
					return err
				}
			}
			if _, err := policy.NewRegistry(descriptors); err != nil {
				return err
			}
			dbs, err := openRegions(cmd, e.cfg)
			if err != nil {
				return err
			}
			defer postgres.CloseAll(dbs)
			for name, db := range dbs {
				if err := policy.NewPostgresLoader(db).Seed(cmd.Context(), descriptors); err != nil {
					return fmt.Errorf("seed %s: %w", name, err)
				}
				e.logger.InfoContext(cmd.Context(), "policies seeded", "region", name, "entity_types", len(descriptors))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "file", "file|defaults")
	return cmd
}

func openRegions(cmd *cobra.Command, cfg config.Config) (map[string]*sql.DB, error) {
	topo, err := config.LoadTopology(cfg.TopologyFile)
	if err != nil {
		return nil, err
	}
	return postgres.OpenRegions(cmd.Context(), topo.DSNs(), postgres.DefaultPool)
}
