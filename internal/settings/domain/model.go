package domain

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ScopeType names the dimension an override is keyed on.
type ScopeType string

const (
	ScopeServiceID     ScopeType = "service_id"
	ScopeCategory      ScopeType = "category"
	ScopeServiceType   ScopeType = "service_type"
	ScopePaymentMethod ScopeType = "payment_method"
)

// ScopeOrder lists scopes from most to least specific.
var ScopeOrder = []ScopeType{
	ScopeServiceID,
	ScopeCategory,
	ScopeServiceType,
	ScopePaymentMethod,
}

func (s ScopeType) Valid() bool {
	for _, known := range ScopeOrder {
		if s == known {
			return true
		}
	}
	return false
}

// Overridable field keys. Nothing outside this list is ever copied from an
// override onto the rate sheet.
const (
	FieldTaxRatePct               = "tax_rate_pct"
	FieldInsuranceRatePct         = "insurance_rate_pct"
	FieldEquipmentRatePct         = "equipment_rate_pct"
	FieldPaymentMethodFees        = "payment_method_fees"
	FieldAccrualTaxRatePct        = "accrual_tax_rate_pct"
	FieldAccrualInsuranceRatePct  = "accrual_insurance_rate_pct"
	FieldAccrualEquipmentRatePct  = "accrual_equipment_rate_pct"
	FieldAccrualPaymentMethodFees = "accrual_payment_method_fees"
)

var OverridableFields = map[string]bool{
	FieldTaxRatePct:               true,
	FieldInsuranceRatePct:         true,
	FieldEquipmentRatePct:         true,
	FieldPaymentMethodFees:        true,
	FieldAccrualTaxRatePct:        true,
	FieldAccrualInsuranceRatePct:  true,
	FieldAccrualEquipmentRatePct:  true,
	FieldAccrualPaymentMethodFees: true,
}

// PaymentFee is the processor cost of one payment method: Pct percent of the
// gross plus a Fixed amount.
type PaymentFee struct {
	Pct   decimal.Decimal `json:"pct"`
	Fixed decimal.Decimal `json:"fixed"`
}

// FeeSchedule maps a payment method to its fee.
type FeeSchedule map[string]PaymentFee

func (f FeeSchedule) Clone() FeeSchedule {
	if f == nil {
		return nil
	}
	out := make(FeeSchedule, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// FinancialSettings is one version of the global rate sheet. At most one row
// is active at a time. Percentages are whole numbers (8.5 means 8.5%).
type FinancialSettings struct {
	ID      snowflake.ID `gorm:"primaryKey" json:"id"`
	Version int          `gorm:"not null" json:"version"`

	TaxRatePct        decimal.Decimal `gorm:"type:numeric(7,4);not null" json:"tax_rate_pct"`
	InsuranceRatePct  decimal.Decimal `gorm:"type:numeric(7,4);not null" json:"insurance_rate_pct"`
	EquipmentRatePct  decimal.Decimal `gorm:"type:numeric(7,4);not null" json:"equipment_rate_pct"`
	PaymentMethodFees datatypes.JSON  `gorm:"type:json" json:"payment_method_fees"`

	AccrualTaxRatePct        decimal.NullDecimal `gorm:"type:numeric(7,4)" json:"accrual_tax_rate_pct"`
	AccrualInsuranceRatePct  decimal.NullDecimal `gorm:"type:numeric(7,4)" json:"accrual_insurance_rate_pct"`
	AccrualEquipmentRatePct  decimal.NullDecimal `gorm:"type:numeric(7,4)" json:"accrual_equipment_rate_pct"`
	AccrualPaymentMethodFees datatypes.JSON      `gorm:"type:json" json:"accrual_payment_method_fees"`

	Active    bool      `gorm:"not null;default:false;index" json:"active"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (FinancialSettings) TableName() string { return "financial_settings" }

// Fees decodes the cash fee schedule.
func (s FinancialSettings) Fees() (FeeSchedule, error) {
	return decodeFees(s.PaymentMethodFees)
}

// AccrualFees decodes the accrual fee schedule; nil when unset.
func (s FinancialSettings) AccrualFees() (FeeSchedule, error) {
	return decodeFees(s.AccrualPaymentMethodFees)
}

func decodeFees(raw datatypes.JSON) (FeeSchedule, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	var fees FeeSchedule
	if err := json.Unmarshal([]byte(trimmed), &fees); err != nil {
		return nil, err
	}
	return fees, nil
}

// EncodeFees renders a fee schedule for storage.
func EncodeFees(fees FeeSchedule) (datatypes.JSON, error) {
	if fees == nil {
		return nil, nil
	}
	raw, err := json.Marshal(fees)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

// SettingsOverride patches part of a rate sheet for one scope.
type SettingsOverride struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	SettingsID snowflake.ID      `gorm:"not null;index" json:"settings_id"`
	ScopeType  ScopeType         `gorm:"type:text;not null;index:ix_settings_overrides_scope,priority:1" json:"scope_type"`
	ScopeValue string            `gorm:"type:text;not null;index:ix_settings_overrides_scope,priority:2" json:"scope_value"`
	Precedence int               `gorm:"not null;default:0" json:"precedence"`
	Fields     datatypes.JSONMap `gorm:"type:json" json:"fields"`
	Active     bool              `gorm:"not null;default:true" json:"active"`
	CreatedAt  time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time         `gorm:"not null" json:"updated_at"`
}

func (SettingsOverride) TableName() string { return "financial_settings_overrides" }

// Scope is one (scope_type, scope_value) pair of a resolution context.
type Scope struct {
	Type  ScopeType `json:"type"`
	Value string    `json:"value"`
}

// ResolveContext describes the transaction being priced. Empty fields do not
// participate in override matching.
type ResolveContext struct {
	ServiceType   string `json:"service_type,omitempty"`
	ServiceID     string `json:"service_id,omitempty"`
	CategoryID    string `json:"category_id,omitempty"`
	PaymentMethod string `json:"payment_method,omitempty"`
}

// Scopes returns the present scopes, most specific first.
func (c ResolveContext) Scopes() []Scope {
	values := map[ScopeType]string{
		ScopeServiceID:     strings.TrimSpace(c.ServiceID),
		ScopeCategory:      strings.TrimSpace(c.CategoryID),
		ScopeServiceType:   strings.TrimSpace(c.ServiceType),
		ScopePaymentMethod: strings.TrimSpace(c.PaymentMethod),
	}
	scopes := make([]Scope, 0, len(ScopeOrder))
	for _, scopeType := range ScopeOrder {
		if v := values[scopeType]; v != "" {
			scopes = append(scopes, Scope{Type: scopeType, Value: v})
		}
	}
	return scopes
}

// Key serializes the context for per-call caches.
func (c ResolveContext) Key() string {
	parts := make([]string, 0, 4)
	for _, scope := range c.Scopes() {
		parts = append(parts, string(scope.Type)+"="+scope.Value)
	}
	return strings.Join(parts, "|")
}

// Basis tells which rate set an EffectiveSettings carries.
type Basis string

const (
	BasisCash    Basis = "cash"
	BasisAccrual Basis = "accrual"
)

// EffectiveSettings is the merged rate sheet for one context. SettingsID is
// always the base row's id, never an override's.
type EffectiveSettings struct {
	SettingsID snowflake.ID `json:"settings_id"`
	Version    int          `json:"version"`
	Basis      Basis        `json:"basis"`

	TaxRatePct        decimal.Decimal `json:"tax_rate_pct"`
	InsuranceRatePct  decimal.Decimal `json:"insurance_rate_pct"`
	EquipmentRatePct  decimal.Decimal `json:"equipment_rate_pct"`
	PaymentMethodFees FeeSchedule     `json:"payment_method_fees"`

	AccrualTaxRatePct        *decimal.Decimal `json:"accrual_tax_rate_pct"`
	AccrualInsuranceRatePct  *decimal.Decimal `json:"accrual_insurance_rate_pct"`
	AccrualEquipmentRatePct  *decimal.Decimal `json:"accrual_equipment_rate_pct"`
	AccrualPaymentMethodFees FeeSchedule      `json:"accrual_payment_method_fees"`

	AppliedOverrides []snowflake.ID `json:"applied_overrides"`
}

// FeeFor returns the fee of a payment method, zero when unknown.
func (e EffectiveSettings) FeeFor(method string) PaymentFee {
	if fee, ok := e.PaymentMethodFees[strings.TrimSpace(method)]; ok {
		return fee
	}
	return PaymentFee{}
}

// Accrual returns a copy where every accrual_* value present replaces its
// cash counterpart. Fee entries fall back per payment method.
func (e EffectiveSettings) Accrual() EffectiveSettings {
	out := e
	out.Basis = BasisAccrual
	if e.AccrualTaxRatePct != nil {
		out.TaxRatePct = *e.AccrualTaxRatePct
	}
	if e.AccrualInsuranceRatePct != nil {
		out.InsuranceRatePct = *e.AccrualInsuranceRatePct
	}
	if e.AccrualEquipmentRatePct != nil {
		out.EquipmentRatePct = *e.AccrualEquipmentRatePct
	}
	fees := e.PaymentMethodFees.Clone()
	if fees == nil && len(e.AccrualPaymentMethodFees) > 0 {
		fees = FeeSchedule{}
	}
	for method, fee := range e.AccrualPaymentMethodFees {
		fees[method] = fee
	}
	out.PaymentMethodFees = fees
	return out
}

// SortOverrides orders overrides by precedence desc, then most recently
// updated first. Remaining ties fall back to scope specificity and id so the
// order is total.
func SortOverrides(overrides []SettingsOverride) {
	rank := make(map[ScopeType]int, len(ScopeOrder))
	for i, scope := range ScopeOrder {
		rank[scope] = i
	}
	sort.SliceStable(overrides, func(i, j int) bool {
		a, b := overrides[i], overrides[j]
		if a.Precedence != b.Precedence {
			return a.Precedence > b.Precedence
		}
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		if rank[a.ScopeType] != rank[b.ScopeType] {
			return rank[a.ScopeType] < rank[b.ScopeType]
		}
		return a.ID > b.ID
	})
}
