package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// FinanceConfig carries the operational controls of the finance engine.
// Everything here may change at runtime without a restart.
type FinanceConfig struct {
	RevenueSnapshots RevenueSnapshotConfig `mapstructure:"revenue_snapshots"`
	Reconciliation   ReconciliationConfig  `mapstructure:"reconciliation"`
	Commission       CommissionConfig      `mapstructure:"commission"`
}

type RevenueSnapshotConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	CanaryPercent int  `mapstructure:"canary_percent"`
}

type ReconciliationConfig struct {
	Epsilon float64 `mapstructure:"epsilon"`
}

type CommissionConfig struct {
	DefaultPercent           float64 `mapstructure:"default_percent"`
	SnapshotFallbackPercent  float64 `mapstructure:"snapshot_fallback_percent"`
	AggregateFallbackPercent float64 `mapstructure:"aggregate_fallback_percent"`
}

func DefaultFinanceConfig() FinanceConfig {
	return FinanceConfig{
		RevenueSnapshots: RevenueSnapshotConfig{
			Enabled:       false,
			CanaryPercent: 100,
		},
		Reconciliation: ReconciliationConfig{
			Epsilon: 0.01,
		},
		Commission: CommissionConfig{
			DefaultPercent:           30,
			SnapshotFallbackPercent:  50,
			AggregateFallbackPercent: 50,
		},
	}
}

// EpsilonDecimal returns the reconciliation tolerance as a decimal.
func (c FinanceConfig) EpsilonDecimal() decimal.Decimal {
	return decimal.NewFromFloat(c.Reconciliation.Epsilon)
}

// FinanceSource hands out the current finance controls.
type FinanceSource interface {
	Get() FinanceConfig
}

type FinanceConfigHolder struct {
	current atomic.Value // holds FinanceConfig
}

// NewStaticFinanceConfig returns a holder that never reloads.
func NewStaticFinanceConfig(cfg FinanceConfig) *FinanceConfigHolder {
	holder := &FinanceConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

// NewFinanceConfigHolder reads finance.yml and keeps watching it. A missing
// file falls back to defaults; an invalid reload keeps the previous value.
func NewFinanceConfigHolder(log *zap.Logger) (*FinanceConfigHolder, error) {
	log = log.Named("config.finance")
	v := viper.New()

	v.SetConfigName("finance")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/plannivo")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PLANNIVO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultFinanceConfig()
	v.SetDefault("revenue_snapshots.enabled", defaults.RevenueSnapshots.Enabled)
	v.SetDefault("revenue_snapshots.canary_percent", defaults.RevenueSnapshots.CanaryPercent)
	v.SetDefault("reconciliation.epsilon", defaults.Reconciliation.Epsilon)
	v.SetDefault("commission.default_percent", defaults.Commission.DefaultPercent)
	v.SetDefault("commission.snapshot_fallback_percent", defaults.Commission.SnapshotFallbackPercent)
	v.SetDefault("commission.aggregate_fallback_percent", defaults.Commission.AggregateFallbackPercent)

	fileLoaded := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileLoaded = false
	}

	var cfg FinanceConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := ValidateFinanceConfig(cfg); err != nil {
		return nil, err
	}

	holder := NewStaticFinanceConfig(cfg)
	if !fileLoaded {
		log.Info("finance config file not found, using defaults and environment")
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated FinanceConfig
		if err := v.Unmarshal(&updated); err != nil {
			log.Warn("finance config reload failed", zap.Error(err))
			return
		}
		if err := ValidateFinanceConfig(updated); err != nil {
			log.Warn("invalid finance config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("finance config reloaded",
			zap.String("file", e.Name),
			zap.Bool("revenue_snapshots_enabled", updated.RevenueSnapshots.Enabled),
			zap.Int("canary_percent", updated.RevenueSnapshots.CanaryPercent),
		)
	})

	return holder, nil
}

func (h *FinanceConfigHolder) Get() FinanceConfig {
	return h.current.Load().(FinanceConfig)
}

// Set replaces the current controls. Used by admin tooling and tests.
func (h *FinanceConfigHolder) Set(cfg FinanceConfig) error {
	if err := ValidateFinanceConfig(cfg); err != nil {
		return err
	}
	h.current.Store(cfg)
	return nil
}

func ValidateFinanceConfig(cfg FinanceConfig) error {
	if cfg.RevenueSnapshots.CanaryPercent < 0 || cfg.RevenueSnapshots.CanaryPercent > 100 {
		return errors.New("revenue_snapshots.canary_percent must be between 0 and 100")
	}
	if cfg.Reconciliation.Epsilon < 0 {
		return errors.New("reconciliation.epsilon cannot be negative")
	}
	for name, pct := range map[string]float64{
		"commission.default_percent":            cfg.Commission.DefaultPercent,
		"commission.snapshot_fallback_percent":  cfg.Commission.SnapshotFallbackPercent,
		"commission.aggregate_fallback_percent": cfg.Commission.AggregateFallbackPercent,
	} {
		if pct < 0 || pct > 100 {
			return errors.New(name + " must be between 0 and 100")
		}
	}
	return nil
}
