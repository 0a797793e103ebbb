package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	bookingdomain "github.com/plannivo/finance/internal/booking/domain"
	"github.com/plannivo/finance/internal/clock"
	"github.com/plannivo/finance/internal/commission/domain"
	"github.com/plannivo/finance/internal/config"
	obslogger "github.com/plannivo/finance/internal/observability/logger"
	"github.com/plannivo/finance/pkg/money"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     domain.Repository
	Bookings bookingdomain.Repository
	Finance  config.FinanceSource
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	repo     domain.Repository
	bookings bookingdomain.Repository
	finance  config.FinanceSource
}

func New(p Params) domain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("commission.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		repo:     p.Repo,
		bookings: p.Bookings,
		finance:  p.Finance,
	}
}

func (s *Service) ResolveCommission(ctx context.Context, bookingID snowflake.ID) (domain.Rate, error) {
	booking, err := s.bookings.FindBooking(ctx, s.db, bookingID)
	if err != nil {
		return domain.Rate{}, err
	}
	if booking == nil {
		return domain.Rate{}, domain.ErrBookingNotFound
	}
	return s.ResolveForBooking(ctx, *booking), nil
}

// ResolveForBooking walks booking override, instructor+service rate,
// instructor default, then the configured fallback. A failed lookup counts as
// an absent link.
func (s *Service) ResolveForBooking(ctx context.Context, booking bookingdomain.Booking) domain.Rate {
	log := obslogger.WithContext(ctx, s.log).With(zap.String("booking_id", booking.ID.String()))

	override, err := s.repo.FindBookingOverride(ctx, s.db, booking.ID)
	if err != nil {
		log.Warn("booking commission lookup failed", zap.Error(err))
	} else if override != nil {
		if rate, ok := toRate(override.CommissionType, override.CommissionValue, domain.SourceBookingOverride); ok {
			return rate
		}
	}

	if booking.InstructorID != 0 && booking.ServiceID != 0 {
		serviceRate, err := s.repo.FindInstructorServiceRate(ctx, s.db, booking.InstructorID, booking.ServiceID)
		if err != nil {
			log.Warn("instructor service commission lookup failed", zap.Error(err))
		} else if serviceRate != nil {
			if rate, ok := toRate(serviceRate.CommissionType, serviceRate.CommissionValue, domain.SourceInstructorService); ok {
				return rate
			}
		}
	}

	if booking.InstructorID != 0 {
		def, err := s.repo.FindInstructorDefault(ctx, s.db, booking.InstructorID)
		if err != nil {
			log.Warn("instructor default commission lookup failed", zap.Error(err))
		} else if def != nil {
			if rate, ok := toRate(def.CommissionType, def.CommissionValue, domain.SourceInstructorDefault); ok {
				return rate
			}
		}
	}

	return s.fallbackRate(domain.FallbackDefault)
}

func (s *Service) ComputeForBooking(ctx context.Context, booking bookingdomain.Booking) domain.Amount {
	rate := s.ResolveForBooking(ctx, booking)
	return domain.Amount{
		Rate:       rate,
		Commission: domain.Compute(rate, booking.Charge(), booking.Duration),
	}
}

func (s *Service) FallbackFor(purpose domain.FallbackPurpose, gross decimal.Decimal) domain.Amount {
	rate := s.fallbackRate(purpose)
	return domain.Amount{
		Rate:       rate,
		Commission: money.Round(money.ApplyPercent(gross, rate.Value)),
	}
}

func (s *Service) fallbackRate(purpose domain.FallbackPurpose) domain.Rate {
	cfg := s.finance.Get().Commission
	pct := cfg.DefaultPercent
	switch purpose {
	case domain.FallbackSnapshot:
		pct = cfg.SnapshotFallbackPercent
	case domain.FallbackAggregate:
		pct = cfg.AggregateFallbackPercent
	}
	return domain.Rate{
		Type:   domain.TypePercentage,
		Value:  decimal.NewFromFloat(pct),
		Source: domain.SourceFallback,
	}
}

// RecordEarning writes the booking's earning row from the resolved rate.
// Rows already attached to a payroll are left alone.
func (s *Service) RecordEarning(ctx context.Context, bookingID snowflake.ID) (domain.EarningResult, error) {
	booking, err := s.bookings.FindBooking(ctx, s.db, bookingID)
	if err != nil {
		return domain.EarningResult{}, err
	}
	if booking == nil {
		return domain.EarningResult{}, domain.ErrBookingNotFound
	}
	if booking.Status != bookingdomain.BookingStatusCompleted {
		return domain.EarningResult{}, domain.ErrBookingNotCompleted
	}

	existing, err := s.repo.FindEarningByBooking(ctx, s.db, booking.ID)
	if err != nil {
		return domain.EarningResult{}, err
	}
	if existing != nil && existing.PayrollID != nil {
		return domain.EarningResult{Earning: existing, Skipped: true, Reason: "payroll_assigned"}, nil
	}

	amount := s.ComputeForBooking(ctx, *booking)
	lessonAmount := money.Round(booking.Charge())

	now := s.clock.Now()
	earning := &domain.InstructorEarning{
		ID:             s.genID.Generate(),
		InstructorID:   booking.InstructorID,
		BookingID:      booking.ID,
		CommissionRate: earningRate(amount, lessonAmount),
		TotalEarnings:  amount.Commission,
		LessonAmount:   lessonAmount,
		LessonDuration: booking.Duration,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.UpsertEarning(ctx, s.db, earning); err != nil {
		return domain.EarningResult{}, err
	}
	if existing != nil {
		// the conflict branch keeps the original row identity
		earning.ID = existing.ID
		earning.CreatedAt = existing.CreatedAt
	}

	s.log.Info("instructor earning recorded",
		zap.String("booking_id", booking.ID.String()),
		zap.String("instructor_id", booking.InstructorID.String()),
		zap.String("source", string(amount.Rate.Source)),
		zap.String("total_earnings", earning.TotalEarnings.StringFixed(money.Places)),
	)
	return domain.EarningResult{Earning: earning}, nil
}

// BackfillEarnings records earnings for completed bookings in [from, to) that
// have none yet. One failing booking does not stop the batch.
func (s *Service) BackfillEarnings(ctx context.Context, from, to time.Time) (domain.BackfillResult, error) {
	if !from.Before(to) {
		return domain.BackfillResult{}, domain.ErrInvalidTimeRange
	}

	ids, err := s.repo.ListBookingsWithoutEarning(ctx, s.db, from, to)
	if err != nil {
		return domain.BackfillResult{}, err
	}

	result := domain.BackfillResult{Scanned: len(ids)}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		recorded, err := s.RecordEarning(ctx, id)
		if err != nil {
			result.Failed++
			s.log.Warn("earning backfill failed", zap.String("booking_id", id.String()), zap.Error(err))
			continue
		}
		if recorded.Skipped {
			result.Skipped++
			continue
		}
		result.Recorded++
	}

	s.log.Info("earning backfill finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("recorded", result.Recorded),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (s *Service) SumEarningsCreatedBetween(ctx context.Context, from, to time.Time) (domain.EarningsTotal, error) {
	if !from.Before(to) {
		return domain.EarningsTotal{}, domain.ErrInvalidTimeRange
	}
	total, count, err := s.repo.SumEarningsCreatedBetween(ctx, s.db, from, to)
	if err != nil {
		return domain.EarningsTotal{}, err
	}
	return domain.EarningsTotal{Total: money.Round(total), Count: count}, nil
}

// earningRate stores percentage rates as a fraction and derives the fraction
// for fixed types from what was actually paid.
func earningRate(amount domain.Amount, lessonAmount decimal.Decimal) decimal.Decimal {
	if amount.Rate.Type.Normalize() == domain.TypePercentage {
		return money.PercentToFraction(amount.Rate.Value)
	}
	if lessonAmount.IsZero() {
		return decimal.Zero
	}
	return amount.Commission.DivRound(lessonAmount, 4)
}

func toRate(t domain.CommissionType, value decimal.Decimal, source domain.Source) (domain.Rate, bool) {
	normalized := t.Normalize()
	if normalized == "" || value.IsNegative() {
		return domain.Rate{}, false
	}
	return domain.Rate{Type: normalized, Value: value, Source: source}, true
}
