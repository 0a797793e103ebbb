package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	GetActive(ctx context.Context, db *gorm.DB) (*FinancialSettings, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*FinancialSettings, error)
	NextVersion(ctx context.Context, db *gorm.DB) (int, error)
	Insert(ctx context.Context, db *gorm.DB, settings *FinancialSettings) error
	DeactivateAll(ctx context.Context, db *gorm.DB) error
	MarkActive(ctx context.Context, db *gorm.DB, id snowflake.ID) error

	ListMatchingOverrides(ctx context.Context, db *gorm.DB, settingsID snowflake.ID, scopes []Scope) ([]SettingsOverride, error)
	ListOverrides(ctx context.Context, db *gorm.DB, settingsID snowflake.ID) ([]SettingsOverride, error)
	FindOverride(ctx context.Context, db *gorm.DB, id snowflake.ID) (*SettingsOverride, error)
	InsertOverride(ctx context.Context, db *gorm.DB, override *SettingsOverride) error
	SetOverrideActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool, now time.Time) error
}
