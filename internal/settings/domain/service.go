package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Resolver produces the effective rate sheet for a context. It never fails:
// any lookup problem yields nil and callers apply their own defaults.
type Resolver interface {
	Resolve(ctx context.Context, rc ResolveContext) *EffectiveSettings
	ResolveAccrual(ctx context.Context, rc ResolveContext) *EffectiveSettings
}

// TxResolver resolves through the caller's open transaction.
type TxResolver interface {
	Resolver
	ResolveIn(ctx context.Context, db *gorm.DB, rc ResolveContext) *EffectiveSettings
	ResolveAccrualIn(ctx context.Context, db *gorm.DB, rc ResolveContext) *EffectiveSettings
}

type Service interface {
	Create(ctx context.Context, req CreateSettingsRequest) (*FinancialSettings, error)
	Activate(ctx context.Context, id snowflake.ID) (*FinancialSettings, error)
	GetActive(ctx context.Context) (*FinancialSettings, error)
	CreateOverride(ctx context.Context, req CreateOverrideRequest) (*SettingsOverride, error)
	DeactivateOverride(ctx context.Context, id snowflake.ID) (*SettingsOverride, error)
	ListOverrides(ctx context.Context, settingsID snowflake.ID) ([]SettingsOverride, error)
}

type CreateSettingsRequest struct {
	TaxRatePct        decimal.Decimal `json:"tax_rate_pct"`
	InsuranceRatePct  decimal.Decimal `json:"insurance_rate_pct"`
	EquipmentRatePct  decimal.Decimal `json:"equipment_rate_pct"`
	PaymentMethodFees FeeSchedule     `json:"payment_method_fees"`

	AccrualTaxRatePct        *decimal.Decimal `json:"accrual_tax_rate_pct,omitempty"`
	AccrualInsuranceRatePct  *decimal.Decimal `json:"accrual_insurance_rate_pct,omitempty"`
	AccrualEquipmentRatePct  *decimal.Decimal `json:"accrual_equipment_rate_pct,omitempty"`
	AccrualPaymentMethodFees FeeSchedule      `json:"accrual_payment_method_fees,omitempty"`

	Activate bool `json:"activate"`
}

type CreateOverrideRequest struct {
	SettingsID snowflake.ID   `json:"settings_id"`
	ScopeType  ScopeType      `json:"scope_type"`
	ScopeValue string         `json:"scope_value"`
	Precedence int            `json:"precedence"`
	Fields     map[string]any `json:"fields"`
}
