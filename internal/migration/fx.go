package migration

import (
	commissiondomain "github.com/casaflow/casaflow/internal/commission/domain"
	"github.com/casaflow/casaflow/internal/config"
	contractdomain "github.com/casaflow/casaflow/internal/contract/domain"
	obligationdomain "github.com/casaflow/casaflow/internal/obligation/domain"
	paymentdomain "github.com/casaflow/casaflow/internal/payment/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// Versioned SQL only targets postgres; other dialects are for
			// local development and tests.
			return conn.AutoMigrate(
				&contractdomain.Contract{},
				&obligationdomain.Obligation{},
				&paymentdomain.PaymentEvent{},
				&commissiondomain.Commission{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
