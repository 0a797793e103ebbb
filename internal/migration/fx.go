package migration

import (
	"strings"

	auditdomain "github.com/plannivo/finance/internal/audit/domain"
	bookingdomain "github.com/plannivo/finance/internal/booking/domain"
	commissiondomain "github.com/plannivo/finance/internal/commission/domain"
	"github.com/plannivo/finance/internal/config"
	ledgerdomain "github.com/plannivo/finance/internal/ledger/domain"
	revenuedomain "github.com/plannivo/finance/internal/revenue/domain"
	settingsdomain "github.com/plannivo/finance/internal/settings/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if !cfg.RunMigrations {
			log.Info("migrations disabled")
			return nil
		}

		if !strings.EqualFold(strings.TrimSpace(cfg.DBType), "postgres") {
			log.Info("auto migrating schema", zap.String("type", cfg.DBType))
			return AutoMigrate(conn)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		version, err := RunMigrations(sqlDB, log)
		if err != nil {
			return err
		}
		log.Info("finance schema migrated", zap.Uint("version", version))
		return nil
	}),
)

// Models lists every table owned by the service.
func Models() []any {
	return []any{
		&ledgerdomain.User{},
		&ledgerdomain.Transaction{},
		&bookingdomain.CustomerPackage{},
		&bookingdomain.Booking{},
		&bookingdomain.Rental{},
		&bookingdomain.AccommodationBooking{},
		&auditdomain.AuditLog{},
		&settingsdomain.FinancialSettings{},
		&settingsdomain.SettingsOverride{},
		&commissiondomain.BookingCustomCommission{},
		&commissiondomain.InstructorServiceCommission{},
		&commissiondomain.InstructorDefaultCommission{},
		&commissiondomain.InstructorEarning{},
		&revenuedomain.RevenueItem{},
	}
}

// AutoMigrate creates the schema from the gorm models. It serves sqlite and
// mysql, where the embedded postgres migrations do not apply.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(Models()...)
}
