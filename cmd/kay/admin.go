package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/smallbiznis/kay/internal/auth"
	authdomain "github.com/smallbiznis/kay/internal/auth/domain"
	"github.com/smallbiznis/kay/internal/config"
	"github.com/smallbiznis/kay/internal/migration"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const adminPasswordEnv = "KAY_ADMIN_PASSWORD"

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage admin accounts",
}

var adminCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an admin account",
	Long: `Create an admin account. The password is read from --password or,
when the flag is omitted, from the KAY_ADMIN_PASSWORD environment variable.`,
	Example: `  KAY_ADMIN_PASSWORD=... kay admin create --email owner@example.com --name "Owner"`,
	RunE:    runAdminCreate,
}

func init() {
	rootCmd.AddCommand(adminCmd)
	adminCmd.AddCommand(adminCreateCmd)

	adminCreateCmd.Flags().String("email", "", "Admin email address")
	adminCreateCmd.Flags().String("name", "Administrator", "Display name")
	adminCreateCmd.Flags().String("password", "", "Password (prefer "+adminPasswordEnv+")")
	_ = adminCreateCmd.MarkFlagRequired("email")
}

func runAdminCreate(cmd *cobra.Command, args []string) error {
	email, _ := cmd.Flags().GetString("email")
	name, _ := cmd.Flags().GetString("name")
	password, _ := cmd.Flags().GetString("password")
	if strings.TrimSpace(password) == "" {
		password = os.Getenv(adminPasswordEnv)
	}
	if password == "" {
		return errors.New("password is required")
	}

	return runOnce(cmd.Context(),
		auth.Module,
		fx.Invoke(func(conn *gorm.DB, cfg config.Config, svc authdomain.Service, log *zap.Logger) error {
			if err := migration.Run(conn, cfg.DBType); err != nil {
				return err
			}
			user, err := svc.CreateAdmin(cmd.Context(), authdomain.CreateAdminRequest{
				Email:    email,
				Name:     name,
				Password: password,
			})
			if err != nil {
				return fmt.Errorf("create admin: %w", err)
			}
			log.Info("admin created", zap.String("id", user.ID.String()), zap.String("email", user.Email))
			return nil
		}),
	)
}
