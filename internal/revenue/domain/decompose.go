package domain

import (
	settingsdomain "github.com/plannivo/finance/internal/settings/domain"
	"github.com/plannivo/finance/pkg/money"
	"github.com/shopspring/decimal"
)

// Breakdown is the split of a gross amount into its cost components.
type Breakdown struct {
	Gross      decimal.Decimal
	Commission decimal.Decimal
	Tax        decimal.Decimal
	Insurance  decimal.Decimal
	Equipment  decimal.Decimal
	PaymentFee decimal.Decimal
	Net        decimal.Decimal
}

// Costs is the sum of every deduction from gross.
func (b Breakdown) Costs() decimal.Decimal {
	return money.Sum(b.Commission, b.Tax, b.Insurance, b.Equipment, b.PaymentFee)
}

// Decompose applies the rate sheet to gross. A nil rate sheet yields zero
// tax, insurance, equipment and fee. Each component is rounded before net is
// derived, so net = gross - costs holds exactly on the stored values.
func Decompose(gross, commission decimal.Decimal, eff *settingsdomain.EffectiveSettings, paymentMethod string) Breakdown {
	b := Breakdown{
		Gross:      money.Round(gross),
		Commission: money.Round(commission),
		Tax:        decimal.Zero,
		Insurance:  decimal.Zero,
		Equipment:  decimal.Zero,
		PaymentFee: decimal.Zero,
	}
	if eff != nil {
		b.Tax = money.Round(money.ApplyPercent(b.Gross, eff.TaxRatePct))
		b.Insurance = money.Round(money.ApplyPercent(b.Gross, eff.InsuranceRatePct))
		b.Equipment = money.Round(money.ApplyPercent(b.Gross, eff.EquipmentRatePct))
		fee := eff.FeeFor(paymentMethod)
		b.PaymentFee = money.Round(money.ApplyPercent(b.Gross, fee.Pct).Add(fee.Fixed))
	}
	b.Net = b.Gross.Sub(b.Costs())
	return b
}
