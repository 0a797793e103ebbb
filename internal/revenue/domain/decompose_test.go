package domain

import (
	"testing"

	settingsdomain "github.com/plannivo/finance/internal/settings/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDecomposeNetInvariant(t *testing.T) {
	eff := &settingsdomain.EffectiveSettings{
		TaxRatePct:       decimal.RequireFromString("8.25"),
		InsuranceRatePct: decimal.RequireFromString("1.5"),
		EquipmentRatePct: decimal.RequireFromString("3.333"),
		PaymentMethodFees: settingsdomain.FeeSchedule{
			"card": {Pct: decimal.RequireFromString("2.9"), Fixed: decimal.RequireFromString("0.30")},
		},
	}

	for _, gross := range []string{"0", "0.01", "99.99", "133.37", "1000"} {
		b := Decompose(decimal.RequireFromString(gross), decimal.RequireFromString(gross).Div(decimal.NewFromInt(3)), eff, "card")
		assert.True(t, b.Net.Equal(b.Gross.Sub(b.Costs())), "gross %s", gross)
		for _, v := range []decimal.Decimal{b.Gross, b.Commission, b.Tax, b.Insurance, b.Equipment, b.PaymentFee, b.Net} {
			assert.True(t, v.Equal(v.Round(2)), "gross %s: %s is not rounded", gross, v)
		}
	}
}

func TestDecomposeWithoutSettings(t *testing.T) {
	b := Decompose(decimal.NewFromInt(100), decimal.NewFromInt(50), nil, "card")
	assert.True(t, b.Tax.IsZero())
	assert.True(t, b.PaymentFee.IsZero())
	assert.True(t, b.Net.Equal(decimal.NewFromInt(50)))
}

func TestDecomposeUsesMethodFee(t *testing.T) {
	eff := &settingsdomain.EffectiveSettings{
		PaymentMethodFees: settingsdomain.FeeSchedule{
			"card": {Pct: decimal.NewFromInt(2), Fixed: decimal.RequireFromString("0.5")},
		},
	}
	assert.True(t, Decompose(decimal.NewFromInt(100), decimal.Zero, eff, "card").PaymentFee.Equal(decimal.RequireFromString("2.5")))
	assert.True(t, Decompose(decimal.NewFromInt(100), decimal.Zero, eff, "cash").PaymentFee.IsZero())
}
