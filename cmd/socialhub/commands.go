package main

import (
	"socialhub/config"
	"socialhub/internal/repository"
	"socialhub/pkg/database"
	"socialhub/pkg/logger"

	"github.com/spf13/cobra"
)

func buildServeCmd() *cobra.Command {
	var withMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and WebSocket server",
		Long: `Start the socialhub server.

Sessions connect on GET /ws with a bearer token. When REDIS_ENABLED is set,
room traffic is relayed through Redis so several instances can share users,
and rate limits and presence are kept in Redis as well.

Graceful shutdown is handled on SIGINT/SIGTERM signals.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), config.LoadConfig(), withMigrate)
		},
	}
	cmd.Flags().BoolVar(&withMigrate, "migrate", false, "Apply schema migrations before serving")
	return cmd
}

func buildMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig()
			l := logger.New(cfg.LogMode)
			defer l.Sync()

			db, err := database.Connect(cfg)
			if err != nil {
				return err
			}
			defer database.Close(db)

			if err := repository.InitSchema(db); err != nil {
				return err
			}
			l.Infof("schema is up to date")
			return nil
		},
	}
}
