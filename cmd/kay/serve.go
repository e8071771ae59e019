package main

import (
	"github.com/smallbiznis/kay/internal/migration"
	"github.com/smallbiznis/kay/internal/numbering"
	"github.com/smallbiznis/kay/internal/scheduler"
	"github.com/smallbiznis/kay/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the background scheduler",
	Long: `Run the HTTP API. Pending migrations are applied and the bootstrap
admin is created before the listener starts.

Relevant environment variables:
  HTTP_ADDR              listen address (default :8080)
  DATABASE_TYPE          postgres, mysql or sqlite
  AUTH_JWT_SECRET        HMAC secret for admin tokens (required in production)
  RATE_LIMIT_ENABLED     throttle public endpoints through Redis
  SCHEDULER_ENABLED      run the quotation expiry sweep`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	app := fx.New(
		infrastructure(),
		numbering.Module,
		server.Module,
		migration.Module,
		scheduler.Module,
	)
	if err := app.Err(); err != nil {
		return err
	}
	app.Run()
	return nil
}
