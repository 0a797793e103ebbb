package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	obslogger "github.com/plannivo/finance/internal/observability/logger"
	obsmetrics "github.com/plannivo/finance/internal/observability/metrics"
	"github.com/plannivo/finance/internal/settings/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ResolverParams struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Repo    domain.Repository
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Resolver struct {
	db      *gorm.DB
	log     *zap.Logger
	repo    domain.Repository
	metrics *obsmetrics.Metrics
}

func NewResolver(p ResolverParams) *Resolver {
	return &Resolver{
		db:      p.DB,
		log:     p.Log.Named("settings.resolver"),
		repo:    p.Repo,
		metrics: p.Metrics,
	}
}

func (r *Resolver) Resolve(ctx context.Context, rc domain.ResolveContext) *domain.EffectiveSettings {
	return r.ResolveIn(ctx, r.db, rc)
}

func (r *Resolver) ResolveAccrual(ctx context.Context, rc domain.ResolveContext) *domain.EffectiveSettings {
	return r.ResolveAccrualIn(ctx, r.db, rc)
}

func (r *Resolver) ResolveIn(ctx context.Context, db *gorm.DB, rc domain.ResolveContext) *domain.EffectiveSettings {
	log := obslogger.WithContext(ctx, r.log)

	base, err := r.repo.GetActive(ctx, db)
	if err != nil {
		log.Warn("load active settings failed", zap.Error(err))
		r.metrics.RecordSettingsResolution(ctx, "error")
		return nil
	}
	if base == nil {
		r.metrics.RecordSettingsResolution(ctx, "missing")
		return nil
	}

	eff, err := effectiveFromBase(base)
	if err != nil {
		log.Warn("decode active settings failed", zap.String("settings_id", base.ID.String()), zap.Error(err))
		r.metrics.RecordSettingsResolution(ctx, "error")
		return nil
	}

	overrides, err := r.repo.ListMatchingOverrides(ctx, db, base.ID, rc.Scopes())
	if err != nil {
		log.Warn("load settings overrides failed", zap.String("settings_id", base.ID.String()), zap.Error(err))
		r.metrics.RecordSettingsResolution(ctx, "error")
		return nil
	}
	if len(overrides) == 0 {
		r.metrics.RecordSettingsResolution(ctx, "base")
		return eff
	}

	domain.SortOverrides(overrides)

	// Apply lowest priority first so the highest-priority value lands last.
	applied := make([]snowflake.ID, 0, len(overrides))
	for i := len(overrides) - 1; i >= 0; i-- {
		override := overrides[i]
		if rejected := applyOverride(eff, override.Fields); len(rejected) > 0 {
			log.Warn("override fields skipped",
				zap.String("override_id", override.ID.String()),
				zap.Strings("fields", rejected),
			)
		}
	}
	for _, override := range overrides {
		applied = append(applied, override.ID)
	}
	eff.AppliedOverrides = applied

	r.metrics.RecordSettingsResolution(ctx, "overridden")
	return eff
}

func (r *Resolver) ResolveAccrualIn(ctx context.Context, db *gorm.DB, rc domain.ResolveContext) *domain.EffectiveSettings {
	eff := r.ResolveIn(ctx, db, rc)
	if eff == nil {
		return nil
	}
	accrual := eff.Accrual()
	return &accrual
}
