package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/phrazzld/essaymark/internal/config"
	"github.com/phrazzld/essaymark/internal/platform/postgres"
)

func newMigrateCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate [up|down|reset|status|version]",
		Short:     "Manage the PostgreSQL schema of the postgres store backend",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: postgres.MigrationCommands,
		RunE: func(cmd *cobra.Command, args []string) error {
			command := "up"
			if len(args) == 1 {
				command = args[0]
			}
			if !slices.Contains(postgres.MigrationCommands, command) {
				return fmt.Errorf("unknown migration command %q", command)
			}

			cfg, log, err := root.load()
			if err != nil {
				return err
			}
			if cfg.Store.Backend != config.StoreBackendPostgres {
				return fmt.Errorf("migrate requires store.backend %q, got %q",
					config.StoreBackendPostgres, cfg.Store.Backend)
			}

			db, err := postgres.Open(cmd.Context(), cfg.Database.URL, log)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			return postgres.Migrate(cmd.Context(), db, command, log)
		},
	}
	return cmd
}
