package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	bookingdomain "github.com/plannivo/finance/internal/booking/domain"
	commissiondomain "github.com/plannivo/finance/internal/commission/domain"
	ledgerdomain "github.com/plannivo/finance/internal/ledger/domain"
	obslogger "github.com/plannivo/finance/internal/observability/logger"
	"github.com/plannivo/finance/internal/report/domain"
	revenuedomain "github.com/plannivo/finance/internal/revenue/domain"
	settingsdomain "github.com/plannivo/finance/internal/settings/domain"
	settingsservice "github.com/plannivo/finance/internal/settings/service"
	"github.com/plannivo/finance/pkg/money"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Ledger      ledgerdomain.Service
	Bookings    bookingdomain.Repository
	Commissions commissiondomain.Service
	Settings    settingsdomain.Resolver
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	ledger      ledgerdomain.Service
	bookings    bookingdomain.Repository
	commissions commissiondomain.Service
	settings    settingsdomain.Resolver
}

func NewService(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("report.service"),
		ledger:      p.Ledger,
		bookings:    p.Bookings,
		commissions: p.Commissions,
		settings:    p.Settings,
	}
}

// ComputeNetRevenue aggregates completed transactions in [Start, End).
// Instructor earnings come from the earnings recorded in the window; only when
// none exist is commission estimated per lesson transaction.
func (s *Service) ComputeNetRevenue(ctx context.Context, req domain.Request) (*domain.NetRevenue, error) {
	if !req.Start.Before(req.End) {
		return nil, domain.ErrInvalidTimeRange
	}
	serviceType := strings.ToLower(strings.TrimSpace(req.ServiceType))
	revenueTypes, err := domain.RevenueTypes(serviceType)
	if err != nil {
		return nil, err
	}

	txns, err := s.ledger.ListCompletedTransactions(ctx, revenueTypes, req.Start, req.End)
	if err != nil {
		return nil, err
	}
	refunds, err := s.ledger.ListCompletedTransactions(ctx, domain.RefundTypes(), req.Start, req.End)
	if err != nil {
		return nil, err
	}
	earnings, err := s.commissions.SumEarningsCreatedBetween(ctx, req.Start, req.End)
	if err != nil {
		return nil, err
	}
	bookings, err := s.linkedBookings(ctx, txns)
	if err != nil {
		return nil, err
	}

	report := &domain.NetRevenue{
		Start:              req.Start,
		End:                req.End,
		ServiceType:        serviceType,
		Gross:              decimal.Zero,
		Refunds:            decimal.Zero,
		InstructorEarnings: earnings.Total,
		Tax:                decimal.Zero,
		Insurance:          decimal.Zero,
		Equipment:          decimal.Zero,
		PaymentFees:        decimal.Zero,
		TransactionCount:   len(txns),
		RefundCount:        len(refunds),
		EarningsCount:      earnings.Count,
		CommissionSource:   domain.CommissionSourceActual,
	}
	estimate := earnings.Count == 0
	if estimate {
		report.InstructorEarnings = decimal.Zero
		report.CommissionSource = domain.CommissionSourceEstimated
	}

	settings := settingsservice.NewCachedResolver(s.settings)
	for _, txn := range txns {
		var booking *bookingdomain.Booking
		if txn.BookingID != nil {
			if b, ok := bookings[*txn.BookingID]; ok {
				booking = &b
			}
		}

		eff := settings.Resolve(ctx, resolveContext(txn, booking))
		parts := revenuedomain.Decompose(txn.Amount, decimal.Zero, eff, txn.PaymentMethod)
		report.Gross = report.Gross.Add(parts.Gross)
		report.Tax = report.Tax.Add(parts.Tax)
		report.Insurance = report.Insurance.Add(parts.Insurance)
		report.Equipment = report.Equipment.Add(parts.Equipment)
		report.PaymentFees = report.PaymentFees.Add(parts.PaymentFee)

		if estimate && domain.IsLesson(txn.Type) {
			report.InstructorEarnings = report.InstructorEarnings.Add(s.estimateCommission(ctx, txn, booking))
		}
	}
	for _, refund := range refunds {
		report.Refunds = report.Refunds.Add(refund.Amount)
	}

	report.Gross = money.Round(report.Gross)
	report.Refunds = money.Round(report.Refunds)
	report.InstructorEarnings = money.Round(report.InstructorEarnings)
	costs := money.Sum(report.InstructorEarnings, report.Tax, report.Insurance, report.Equipment, report.PaymentFees)
	report.Net = money.Round(report.Gross.Sub(report.Refunds).Sub(costs))

	obslogger.WithContext(ctx, s.log).Info("net revenue computed",
		zap.Time("start", req.Start),
		zap.Time("end", req.End),
		zap.String("service_type", serviceType),
		zap.Int("transactions", report.TransactionCount),
		zap.String("commission_source", report.CommissionSource),
		zap.String("net", report.Net.StringFixed(money.Places)),
	)
	return report, nil
}

func (s *Service) linkedBookings(ctx context.Context, txns []ledgerdomain.Transaction) (map[snowflake.ID]bookingdomain.Booking, error) {
	seen := map[snowflake.ID]struct{}{}
	ids := make([]snowflake.ID, 0)
	for _, txn := range txns {
		if txn.BookingID == nil {
			continue
		}
		if _, ok := seen[*txn.BookingID]; ok {
			continue
		}
		seen[*txn.BookingID] = struct{}{}
		ids = append(ids, *txn.BookingID)
	}
	if len(ids) == 0 {
		return map[snowflake.ID]bookingdomain.Booking{}, nil
	}
	return s.bookings.FindBookings(ctx, s.db, ids)
}

func (s *Service) estimateCommission(ctx context.Context, txn ledgerdomain.Transaction, booking *bookingdomain.Booking) decimal.Decimal {
	if booking != nil {
		return s.commissions.ComputeForBooking(ctx, *booking).Commission
	}
	return s.commissions.FallbackFor(commissiondomain.FallbackAggregate, txn.Amount).Commission
}

func resolveContext(txn ledgerdomain.Transaction, booking *bookingdomain.Booking) settingsdomain.ResolveContext {
	rc := settingsdomain.ResolveContext{
		ServiceType:   bookingdomain.ServiceTypeLesson,
		PaymentMethod: strings.ToLower(strings.TrimSpace(txn.PaymentMethod)),
	}
	if txn.Type == ledgerdomain.TransactionTypeRentalPayment {
		rc.ServiceType = bookingdomain.ServiceTypeRental
	}
	if booking != nil {
		if st := strings.TrimSpace(booking.ServiceType); st != "" {
			rc.ServiceType = st
		}
		if booking.ServiceID != 0 {
			rc.ServiceID = booking.ServiceID.String()
		}
		rc.CategoryID = strings.TrimSpace(booking.CategoryID)
	}
	return rc
}
