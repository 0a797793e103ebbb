package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateFinanceConfig(t *testing.T) {
	cfg := DefaultFinanceConfig()
	require.NoError(t, ValidateFinanceConfig(cfg))

	cfg.RevenueSnapshots.CanaryPercent = 101
	assert.Error(t, ValidateFinanceConfig(cfg))

	cfg = DefaultFinanceConfig()
	cfg.Commission.DefaultPercent = -1
	assert.Error(t, ValidateFinanceConfig(cfg))
}

func TestFinanceConfigHolderSetRejectsInvalid(t *testing.T) {
	holder := NewStaticFinanceConfig(DefaultFinanceConfig())

	bad := DefaultFinanceConfig()
	bad.Reconciliation.Epsilon = -0.5
	assert.Error(t, holder.Set(bad))
	assert.Equal(t, 0.01, holder.Get().Reconciliation.Epsilon)

	good := DefaultFinanceConfig()
	good.RevenueSnapshots.Enabled = true
	good.RevenueSnapshots.CanaryPercent = 25
	require.NoError(t, holder.Set(good))
	assert.True(t, holder.Get().RevenueSnapshots.Enabled)
	assert.Equal(t, 25, holder.Get().RevenueSnapshots.CanaryPercent)
}
