package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/xaenox/kg-note/internal/storage"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer logger.Sync()

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		store, err := storage.NewPostgresStorage(ctx, databaseConfig(cfg), logger)
		if err != nil {
			return err
		}
		defer store.Close()

		logger.Info("Schema is up to date", zap.String("database", cfg.Database.DBName))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
