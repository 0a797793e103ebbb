package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/plannivo/finance/internal/clock"
	"github.com/plannivo/finance/internal/settings/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("settings.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateSettingsRequest) (*domain.FinancialSettings, error) {
	for _, rate := range []decimal.Decimal{req.TaxRatePct, req.InsuranceRatePct, req.EquipmentRatePct} {
		if rate.IsNegative() {
			return nil, domain.ErrInvalidRate
		}
	}
	for _, rate := range []*decimal.Decimal{req.AccrualTaxRatePct, req.AccrualInsuranceRatePct, req.AccrualEquipmentRatePct} {
		if rate != nil && rate.IsNegative() {
			return nil, domain.ErrInvalidRate
		}
	}
	if err := validateFees(req.PaymentMethodFees); err != nil {
		return nil, err
	}
	if err := validateFees(req.AccrualPaymentMethodFees); err != nil {
		return nil, err
	}

	fees, err := domain.EncodeFees(req.PaymentMethodFees)
	if err != nil {
		return nil, domain.ErrInvalidFeeSchedule
	}
	if fees == nil {
		fees = datatypes.JSON("{}")
	}
	accrualFees, err := domain.EncodeFees(req.AccrualPaymentMethodFees)
	if err != nil {
		return nil, domain.ErrInvalidFeeSchedule
	}

	now := s.clock.Now()
	settings := &domain.FinancialSettings{
		ID:                       s.genID.Generate(),
		TaxRatePct:               req.TaxRatePct,
		InsuranceRatePct:         req.InsuranceRatePct,
		EquipmentRatePct:         req.EquipmentRatePct,
		PaymentMethodFees:        fees,
		AccrualTaxRatePct:        toNull(req.AccrualTaxRatePct),
		AccrualInsuranceRatePct:  toNull(req.AccrualInsuranceRatePct),
		AccrualEquipmentRatePct:  toNull(req.AccrualEquipmentRatePct),
		AccrualPaymentMethodFees: accrualFees,
		CreatedAt:                now,
		UpdatedAt:                now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		version, err := s.repo.NextVersion(ctx, tx)
		if err != nil {
			return err
		}
		settings.Version = version
		if req.Activate {
			if err := s.repo.DeactivateAll(ctx, tx); err != nil {
				return err
			}
			settings.Active = true
		}
		return s.repo.Insert(ctx, tx, settings)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("financial settings created",
		zap.String("settings_id", settings.ID.String()),
		zap.Int("version", settings.Version),
		zap.Bool("active", settings.Active),
	)
	return settings, nil
}

// Activate makes id the only active version.
func (s *Service) Activate(ctx context.Context, id snowflake.ID) (*domain.FinancialSettings, error) {
	var activated *domain.FinancialSettings
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if existing == nil {
			return domain.ErrSettingsNotFound
		}
		if err := s.repo.DeactivateAll(ctx, tx); err != nil {
			return err
		}
		if err := s.repo.MarkActive(ctx, tx, id); err != nil {
			return err
		}
		existing.Active = true
		activated = existing
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("financial settings activated", zap.String("settings_id", id.String()), zap.Int("version", activated.Version))
	return activated, nil
}

func (s *Service) GetActive(ctx context.Context) (*domain.FinancialSettings, error) {
	settings, err := s.repo.GetActive(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		return nil, domain.ErrNoActiveSettings
	}
	return settings, nil
}

func (s *Service) CreateOverride(ctx context.Context, req domain.CreateOverrideRequest) (*domain.SettingsOverride, error) {
	if !req.ScopeType.Valid() {
		return nil, domain.ErrInvalidScope
	}
	scopeValue := strings.TrimSpace(req.ScopeValue)
	if scopeValue == "" {
		return nil, domain.ErrInvalidScopeValue
	}
	if err := validateOverrideFields(req.Fields); err != nil {
		return nil, err
	}

	base, err := s.repo.FindByID(ctx, s.db, req.SettingsID)
	if err != nil {
		return nil, err
	}
	if base == nil {
		return nil, domain.ErrSettingsNotFound
	}

	now := s.clock.Now()
	override := &domain.SettingsOverride{
		ID:         s.genID.Generate(),
		SettingsID: base.ID,
		ScopeType:  req.ScopeType,
		ScopeValue: scopeValue,
		Precedence: req.Precedence,
		Fields:     datatypes.JSONMap(req.Fields),
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.InsertOverride(ctx, s.db, override); err != nil {
		return nil, err
	}

	s.log.Info("settings override created",
		zap.String("override_id", override.ID.String()),
		zap.String("scope_type", string(override.ScopeType)),
		zap.String("scope_value", override.ScopeValue),
		zap.Int("precedence", override.Precedence),
	)
	return override, nil
}

func (s *Service) DeactivateOverride(ctx context.Context, id snowflake.ID) (*domain.SettingsOverride, error) {
	override, err := s.repo.FindOverride(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if override == nil {
		return nil, domain.ErrOverrideNotFound
	}
	if !override.Active {
		return override, nil
	}

	now := s.clock.Now()
	if err := s.repo.SetOverrideActive(ctx, s.db, id, false, now); err != nil {
		return nil, err
	}
	override.Active = false
	override.UpdatedAt = now
	return override, nil
}

func (s *Service) ListOverrides(ctx context.Context, settingsID snowflake.ID) ([]domain.SettingsOverride, error) {
	return s.repo.ListOverrides(ctx, s.db, settingsID)
}

func validateFees(fees domain.FeeSchedule) error {
	for method, fee := range fees {
		if strings.TrimSpace(method) == "" {
			return domain.ErrInvalidFeeSchedule
		}
		if fee.Pct.IsNegative() || fee.Fixed.IsNegative() {
			return domain.ErrInvalidFeeSchedule
		}
	}
	return nil
}

func toNull(v *decimal.Decimal) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *v, Valid: true}
}

// IsValidationError reports whether err is a caller mistake rather than a
// storage failure.
func IsValidationError(err error) bool {
	for _, target := range []error{
		domain.ErrInvalidRate,
		domain.ErrInvalidFeeSchedule,
		domain.ErrInvalidScope,
		domain.ErrInvalidScopeValue,
		domain.ErrUnknownOverrideKey,
		domain.ErrEmptyOverride,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
