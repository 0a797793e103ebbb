package service

import (
	"strings"

	"github.com/plannivo/finance/internal/settings/domain"
	"github.com/plannivo/finance/pkg/money"
	"github.com/shopspring/decimal"
)

// effectiveFromBase copies the base row into a mutable rate sheet.
func effectiveFromBase(base *domain.FinancialSettings) (*domain.EffectiveSettings, error) {
	fees, err := base.Fees()
	if err != nil {
		return nil, err
	}
	accrualFees, err := base.AccrualFees()
	if err != nil {
		return nil, err
	}

	eff := &domain.EffectiveSettings{
		SettingsID:               base.ID,
		Version:                  base.Version,
		Basis:                    domain.BasisCash,
		TaxRatePct:               base.TaxRatePct,
		InsuranceRatePct:         base.InsuranceRatePct,
		EquipmentRatePct:         base.EquipmentRatePct,
		PaymentMethodFees:        fees,
		AccrualTaxRatePct:        nullable(base.AccrualTaxRatePct),
		AccrualInsuranceRatePct:  nullable(base.AccrualInsuranceRatePct),
		AccrualEquipmentRatePct:  nullable(base.AccrualEquipmentRatePct),
		AccrualPaymentMethodFees: accrualFees,
	}
	if eff.PaymentMethodFees == nil {
		eff.PaymentMethodFees = domain.FeeSchedule{}
	}
	return eff, nil
}

func nullable(v decimal.NullDecimal) *decimal.Decimal {
	if !v.Valid {
		return nil
	}
	d := v.Decimal
	return &d
}

// applyOverride patches eff with the allow-listed fields of one override.
// Fee maps merge per payment method. Values that do not parse are skipped and
// reported back so the caller can log them.
func applyOverride(eff *domain.EffectiveSettings, fields map[string]any) []string {
	var rejected []string
	for key, raw := range fields {
		if !domain.OverridableFields[key] {
			rejected = append(rejected, key)
			continue
		}
		switch key {
		case domain.FieldPaymentMethodFees, domain.FieldAccrualPaymentMethodFees:
			patch, ok := parseFeeSchedule(raw)
			if !ok {
				rejected = append(rejected, key)
				continue
			}
			if key == domain.FieldPaymentMethodFees {
				eff.PaymentMethodFees = mergeFees(eff.PaymentMethodFees, patch)
			} else {
				eff.AccrualPaymentMethodFees = mergeFees(eff.AccrualPaymentMethodFees, patch)
			}
		default:
			rate, ok := money.FromAny(raw)
			if !ok || rate.IsNegative() {
				rejected = append(rejected, key)
				continue
			}
			setRate(eff, key, rate)
		}
	}
	return rejected
}

func setRate(eff *domain.EffectiveSettings, key string, rate decimal.Decimal) {
	switch key {
	case domain.FieldTaxRatePct:
		eff.TaxRatePct = rate
	case domain.FieldInsuranceRatePct:
		eff.InsuranceRatePct = rate
	case domain.FieldEquipmentRatePct:
		eff.EquipmentRatePct = rate
	case domain.FieldAccrualTaxRatePct:
		eff.AccrualTaxRatePct = &rate
	case domain.FieldAccrualInsuranceRatePct:
		eff.AccrualInsuranceRatePct = &rate
	case domain.FieldAccrualEquipmentRatePct:
		eff.AccrualEquipmentRatePct = &rate
	}
}

func mergeFees(base, patch domain.FeeSchedule) domain.FeeSchedule {
	out := base.Clone()
	if out == nil {
		out = domain.FeeSchedule{}
	}
	for method, fee := range patch {
		out[method] = fee
	}
	return out
}

func parseFeeSchedule(raw any) (domain.FeeSchedule, bool) {
	switch value := raw.(type) {
	case domain.FeeSchedule:
		return value, true
	case map[string]any:
		out := make(domain.FeeSchedule, len(value))
		for method, entry := range value {
			method = strings.TrimSpace(method)
			if method == "" {
				return nil, false
			}
			fee, ok := parseFee(entry)
			if !ok {
				return nil, false
			}
			out[method] = fee
		}
		return out, true
	default:
		return nil, false
	}
}

func parseFee(raw any) (domain.PaymentFee, bool) {
	switch value := raw.(type) {
	case domain.PaymentFee:
		return value, true
	case map[string]any:
		var fee domain.PaymentFee
		if pct, ok := value["pct"]; ok {
			d, ok := money.FromAny(pct)
			if !ok {
				return domain.PaymentFee{}, false
			}
			fee.Pct = d
		}
		if fixed, ok := value["fixed"]; ok {
			d, ok := money.FromAny(fixed)
			if !ok {
				return domain.PaymentFee{}, false
			}
			fee.Fixed = d
		}
		if fee.Pct.IsNegative() || fee.Fixed.IsNegative() {
			return domain.PaymentFee{}, false
		}
		return fee, true
	default:
		return domain.PaymentFee{}, false
	}
}

// validateOverrideFields rejects unknown keys and malformed values up front so
// stored overrides always apply cleanly.
func validateOverrideFields(fields map[string]any) error {
	if len(fields) == 0 {
		return domain.ErrEmptyOverride
	}
	probe := &domain.EffectiveSettings{PaymentMethodFees: domain.FeeSchedule{}}
	for key := range fields {
		if !domain.OverridableFields[key] {
			return domain.ErrUnknownOverrideKey
		}
	}
	if rejected := applyOverride(probe, fields); len(rejected) > 0 {
		return domain.ErrInvalidRate
	}
	return nil
}
