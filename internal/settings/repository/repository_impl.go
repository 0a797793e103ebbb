package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/plannivo/finance/internal/settings/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const settingsColumns = `id, version, tax_rate_pct, insurance_rate_pct, equipment_rate_pct, payment_method_fees,
	accrual_tax_rate_pct, accrual_insurance_rate_pct, accrual_equipment_rate_pct, accrual_payment_method_fees,
	active, created_at, updated_at`

func (r *repo) GetActive(ctx context.Context, db *gorm.DB) (*domain.FinancialSettings, error) {
	var settings domain.FinancialSettings
	err := db.WithContext(ctx).Raw(
		`SELECT `+settingsColumns+`
		 FROM financial_settings
		 WHERE active = ?
		 ORDER BY version DESC
		 LIMIT 1`,
		true,
	).Scan(&settings).Error
	if err != nil {
		return nil, err
	}
	if settings.ID == 0 {
		return nil, nil
	}
	return &settings, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.FinancialSettings, error) {
	var settings domain.FinancialSettings
	err := db.WithContext(ctx).Raw(
		`SELECT `+settingsColumns+`
		 FROM financial_settings
		 WHERE id = ?`,
		id,
	).Scan(&settings).Error
	if err != nil {
		return nil, err
	}
	if settings.ID == 0 {
		return nil, nil
	}
	return &settings, nil
}

func (r *repo) NextVersion(ctx context.Context, db *gorm.DB) (int, error) {
	var current int
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(version), 0) FROM financial_settings`,
	).Scan(&current).Error
	if err != nil {
		return 0, err
	}
	return current + 1, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, settings *domain.FinancialSettings) error {
	return db.WithContext(ctx).Create(settings).Error
}

func (r *repo) DeactivateAll(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Exec(
		`UPDATE financial_settings SET active = ? WHERE active = ?`,
		false,
		true,
	).Error
}

func (r *repo) MarkActive(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE financial_settings SET active = ? WHERE id = ?`,
		true,
		id,
	).Error
}

func (r *repo) ListMatchingOverrides(ctx context.Context, db *gorm.DB, settingsID snowflake.ID, scopes []domain.Scope) ([]domain.SettingsOverride, error) {
	if len(scopes) == 0 {
		return nil, nil
	}

	types := make([]string, 0, len(scopes))
	values := make([]string, 0, len(scopes))
	wanted := make(map[domain.Scope]struct{}, len(scopes))
	for _, scope := range scopes {
		types = append(types, string(scope.Type))
		values = append(values, scope.Value)
		wanted[scope] = struct{}{}
	}

	var candidates []domain.SettingsOverride
	err := db.WithContext(ctx).Raw(
		`SELECT id, settings_id, scope_type, scope_value, precedence, fields, active, created_at, updated_at
		 FROM financial_settings_overrides
		 WHERE settings_id = ? AND active = ? AND scope_type IN ? AND scope_value IN ?`,
		settingsID,
		true,
		types,
		values,
	).Scan(&candidates).Error
	if err != nil {
		return nil, err
	}

	// The IN pair above over-matches across scope types; keep exact pairs only.
	matched := candidates[:0]
	for _, override := range candidates {
		if _, ok := wanted[domain.Scope{Type: override.ScopeType, Value: override.ScopeValue}]; ok {
			matched = append(matched, override)
		}
	}
	return matched, nil
}

func (r *repo) ListOverrides(ctx context.Context, db *gorm.DB, settingsID snowflake.ID) ([]domain.SettingsOverride, error) {
	var overrides []domain.SettingsOverride
	err := db.WithContext(ctx).Raw(
		`SELECT id, settings_id, scope_type, scope_value, precedence, fields, active, created_at, updated_at
		 FROM financial_settings_overrides
		 WHERE settings_id = ?
		 ORDER BY precedence DESC, updated_at DESC`,
		settingsID,
	).Scan(&overrides).Error
	if err != nil {
		return nil, err
	}
	return overrides, nil
}

func (r *repo) FindOverride(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.SettingsOverride, error) {
	var override domain.SettingsOverride
	err := db.WithContext(ctx).Raw(
		`SELECT id, settings_id, scope_type, scope_value, precedence, fields, active, created_at, updated_at
		 FROM financial_settings_overrides
		 WHERE id = ?`,
		id,
	).Scan(&override).Error
	if err != nil {
		return nil, err
	}
	if override.ID == 0 {
		return nil, nil
	}
	return &override, nil
}

func (r *repo) InsertOverride(ctx context.Context, db *gorm.DB, override *domain.SettingsOverride) error {
	return db.WithContext(ctx).Create(override).Error
}

func (r *repo) SetOverrideActive(ctx context.Context, db *gorm.DB, id snowflake.ID, active bool, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE financial_settings_overrides SET active = ?, updated_at = ? WHERE id = ?`,
		active,
		now,
		id,
	).Error
}
