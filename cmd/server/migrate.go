package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/recipetube/backend/internal/infrastructure/storage"
)

func newMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			db, err := openDatabase(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			v, err := db.SchemaVersion(ctx)
			if err != nil {
				return fmt.Errorf("read schema version: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d of %d (%s)\n", v, storage.CurrentSchemaVersion(), db.Driver())
			return nil
		},
	}
}
