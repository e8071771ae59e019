package seed

import (
	"context"
	"strings"

	authdomain "github.com/smallbiznis/kay/internal/auth/domain"
	"github.com/smallbiznis/kay/internal/config"
	"go.uber.org/zap"
)

// EnsureBootstrapAdmin creates the first admin account from configuration.
// It does nothing when credentials are not configured or an admin exists.
func EnsureBootstrapAdmin(ctx context.Context, cfg config.BootstrapConfig, auth authdomain.Service, log *zap.Logger) error {
	email := strings.TrimSpace(cfg.AdminEmail)
	if email == "" || cfg.AdminPassword == "" {
		return nil
	}

	user, created, err := auth.EnsureAdmin(ctx, authdomain.CreateAdminRequest{
		Email:    email,
		Name:     cfg.AdminName,
		Password: cfg.AdminPassword,
	})
	if err != nil {
		return err
	}
	if created {
		log.Info("bootstrap admin created", zap.String("email", user.Email))
	}
	return nil
}
