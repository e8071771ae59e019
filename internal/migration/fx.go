package migration

import (
	"context"

	authdomain "github.com/smallbiznis/kay/internal/auth/domain"
	"github.com/smallbiznis/kay/internal/config"
	"github.com/smallbiznis/kay/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		return Run(conn, cfg.DBType)
	}),
	fx.Invoke(func(cfg config.Config, auth authdomain.Service, log *zap.Logger) error {
		return seed.EnsureBootstrapAdmin(context.Background(), cfg.Bootstrap, auth, log)
	}),
)
