package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"guardian/internal/config"
	"guardian/internal/db"
	"guardian/internal/store"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the database",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	Long: `Create or upgrade the database schema.

Runs gorm AutoMigrate for every table against DATABASE_URL.

Example:
  guardianctl db migrate`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadLenient()
		gdb, err := db.OpenGorm(db.Config{DSN: cfg.DatabaseURL, LogSQL: cfg.LogSQL})
		if err != nil {
			return err
		}
		if err := store.New(gdb).AutoMigrate(context.Background()); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "migrated %d tables\n", len(store.Models()))
		return nil
	},
}

func init() {
	dbCmd.AddCommand(dbMigrateCmd)
	rootCmd.AddCommand(dbCmd)
}
