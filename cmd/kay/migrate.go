package main

import (
	"context"
	"time"

	"github.com/smallbiznis/kay/internal/config"
	"github.com/smallbiznis/kay/internal/migration"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	Example: `  # Apply pending migrations
  kay migrate

  # Print the current schema version after migrating
  kay migrate --status`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().Bool("status", false, "Print the schema version after migrating")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	status, _ := cmd.Flags().GetBool("status")

	return runOnce(cmd.Context(), fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if err := migration.Run(conn, cfg.DBType); err != nil {
			return err
		}
		if !status || cfg.DBType != "postgres" {
			log.Info("migrations applied", zap.String("db_type", cfg.DBType))
			return nil
		}
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		version, dirty, err := migration.Version(sqlDB)
		if err != nil {
			return err
		}
		log.Info("migrations applied", zap.Uint("version", version), zap.Bool("dirty", dirty))
		return nil
	}))
}

// runOnce starts a short-lived application, lets its invokes do the work
// and shuts it down again.
func runOnce(ctx context.Context, opts ...fx.Option) error {
	if ctx == nil {
		ctx = context.Background()
	}
	app := fx.New(append([]fx.Option{infrastructure()}, opts...)...)
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelStop()
	return app.Stop(stopCtx)
}
