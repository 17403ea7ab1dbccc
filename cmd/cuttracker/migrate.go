package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"cuttracker/infrastructure/config"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQL migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			slog.SetDefault(cfg.Logger())
			db, err := openAndMigrate(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "migrations applied to %s\n", cfg.SQLitePath)
			return nil
		},
	}
}
