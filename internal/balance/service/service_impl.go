package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/plannivo/finance/internal/allocation"
	auditdomain "github.com/plannivo/finance/internal/audit/domain"
	balancedomain "github.com/plannivo/finance/internal/balance/domain"
	"github.com/plannivo/finance/internal/besteffort"
	bookingdomain "github.com/plannivo/finance/internal/booking/domain"
	"github.com/plannivo/finance/internal/clock"
	"github.com/plannivo/finance/internal/config"
	ledgerdomain "github.com/plannivo/finance/internal/ledger/domain"
	obscontext "github.com/plannivo/finance/internal/observability/context"
	obslogger "github.com/plannivo/finance/internal/observability/logger"
	obsmetrics "github.com/plannivo/finance/internal/observability/metrics"
	"github.com/plannivo/finance/pkg/money"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Ledger     ledgerdomain.Service
	Users      ledgerdomain.Repository
	Bookings   bookingdomain.Repository
	AuditSvc   auditdomain.Service
	Finance    config.FinanceSource
	Runner     besteffort.Submitter
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	ledger     ledgerdomain.Service
	users      ledgerdomain.Repository
	bookings   bookingdomain.Repository
	auditSvc   auditdomain.Service
	finance    config.FinanceSource
	runner     besteffort.Submitter
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) balancedomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("balance.service"),
		clock:      p.Clock,
		ledger:     p.Ledger,
		users:      p.Users,
		bookings:   p.Bookings,
		auditSvc:   p.AuditSvc,
		finance:    p.Finance,
		runner:     p.Runner,
		obsMetrics: p.ObsMetrics,
	}
}

// GetAccount returns the stored balance, healing it first when it drifted
// from the ledger by more than the reconciliation epsilon.
func (s *Service) GetAccount(ctx context.Context, userID snowflake.ID) (*balancedomain.Account, error) {
	user, err := s.users.FindUser(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ledgerdomain.ErrUserNotFound
	}

	computed, err := s.ledger.ComputeBalance(ctx, userID)
	if err != nil {
		return nil, err
	}

	account := toAccount(user)
	epsilon := s.finance.Get().EpsilonDecimal()
	if money.WithinEpsilon(user.Balance, computed.Balance, epsilon) &&
		money.WithinEpsilon(user.TotalSpent, computed.TotalSpent, epsilon) {
		return account, nil
	}

	var healed ledgerdomain.Balance
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		healed, err = s.ledger.SyncBalance(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("heal balance: %w", err)
	}

	obslogger.WithContext(ctx, s.log).Warn("stored balance drifted from ledger, corrected",
		zap.String("user_id", userID.String()),
		zap.String("stored_balance", user.Balance.StringFixed(money.Places)),
		zap.String("ledger_balance", healed.Balance.StringFixed(money.Places)),
		zap.String("stored_total_spent", user.TotalSpent.StringFixed(money.Places)),
		zap.String("ledger_total_spent", healed.TotalSpent.StringFixed(money.Places)),
	)
	s.obsMetrics.RecordBalanceCorrection(ctx)
	s.auditCorrection(ctx, user, healed)

	account.Balance = healed.Balance
	account.TotalSpent = healed.TotalSpent
	account.UpdatedAt = s.clock.Now()
	account.Corrected = true
	return account, nil
}

// ComputeUsableBalance nets the stored cash balance against everything the
// user still owes: unpaid lessons, every package purchase and every rental.
func (s *Service) ComputeUsableBalance(ctx context.Context, userID snowflake.ID) (*balancedomain.UsableBalance, error) {
	user, err := s.users.FindUser(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ledgerdomain.ErrUserNotFound
	}

	packages, result, err := s.allocate(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}

	unpaidPackages := decimal.Zero
	for _, pkg := range packages {
		unpaidPackages = unpaidPackages.Add(pkg.PurchasePrice)
	}

	rentals, err := s.bookings.ListUserRentals(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	unpaidRentals := decimal.Zero
	for _, rental := range rentals {
		unpaidRentals = unpaidRentals.Add(rental.TotalPrice)
	}

	usable := &balancedomain.UsableBalance{
		UserID:                userID,
		CashBalance:           user.Balance,
		UnpaidIndividual:      result.UnpaidIndividualAmount,
		UnpaidPackages:        money.Round(unpaidPackages),
		UnpaidRentals:         money.Round(unpaidRentals),
		PackageHoursUsed:      result.PackageHoursUsed,
		RemainingPackageHours: result.RemainingPackageHours,
	}
	usable.ActualBalance = money.Round(usable.CashBalance.Sub(
		money.Sum(usable.UnpaidIndividual, usable.UnpaidPackages, usable.UnpaidRentals),
	))
	return usable, nil
}

func (s *Service) RecomputePackageUsage(ctx context.Context, userID snowflake.ID) ([]allocation.Projection, error) {
	var projections []allocation.Projection
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		projections, err = s.recomputeIn(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return projections, nil
}

// DeleteBooking removes a booking without losing its effect on package
// allocation: the deletion snapshot, the delete, the optional refund, the
// balance sync and the package projection share one transaction.
func (s *Service) DeleteBooking(ctx context.Context, req balancedomain.DeleteBookingRequest) (*balancedomain.DeleteBookingResult, error) {
	result := &balancedomain.DeleteBookingResult{BookingID: req.BookingID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		booking, err := s.bookings.FindBooking(ctx, tx, req.BookingID)
		if err != nil {
			return err
		}
		if booking == nil {
			return bookingdomain.ErrBookingNotFound
		}

		if err := s.auditSvc.RecordBookingDeleted(ctx, tx, *booking, req.Reason); err != nil {
			return fmt.Errorf("record deletion snapshot: %w", err)
		}
		if err := s.bookings.DeleteBooking(ctx, tx, booking.ID); err != nil {
			return err
		}

		charge := money.Round(booking.Charge())
		if req.Refund && charge.IsPositive() {
			bookingID := booking.ID
			posted, err := s.ledger.CreateTransactionTx(ctx, tx, ledgerdomain.CreateTransactionRequest{
				UserID:      booking.StudentID,
				Type:        ledgerdomain.TransactionTypeBookingDeletedRefund,
				Amount:      charge,
				BookingID:   &bookingID,
				Description: refundDescription(req.Reason),
			})
			if err != nil {
				return err
			}
			result.Refund = posted.Transaction
			result.Balance = posted.Balance
		} else {
			result.Balance, err = s.ledger.SyncBalance(ctx, tx, booking.StudentID)
			if err != nil {
				return err
			}
		}

		result.Packages, err = s.recomputeIn(ctx, tx, booking.StudentID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.ledger.PublishCreated(ctx, result.Refund)
	obslogger.WithContext(ctx, s.log).Info("booking deleted",
		zap.String("booking_id", req.BookingID.String()),
		zap.Bool("refunded", result.Refund != nil),
	)
	return result, nil
}

func (s *Service) recomputeIn(ctx context.Context, tx *gorm.DB, userID snowflake.ID) ([]allocation.Projection, error) {
	packages, result, err := s.allocate(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	projections := allocation.Project(packages, result.PackageHoursUsed)
	now := s.clock.Now()
	for _, p := range projections {
		if err := s.bookings.UpdatePackageUsage(ctx, tx, p.PackageID, p.UsedHours, p.RemainingHours, now); err != nil {
			return nil, err
		}
	}
	return projections, nil
}

// allocate replays live and deleted bookings against the packages' opening
// hours. Stored used/remaining hours are never an input.
func (s *Service) allocate(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]bookingdomain.CustomerPackage, allocation.Result, error) {
	packages, err := s.bookings.ListPackages(ctx, db, userID)
	if err != nil {
		return nil, allocation.Result{}, err
	}
	bookings, err := s.bookings.ListStudentBookings(ctx, db, userID)
	if err != nil {
		return nil, allocation.Result{}, err
	}
	deleted, err := s.auditSvc.ListDeletedBookings(ctx, db, userID)
	if err != nil {
		return nil, allocation.Result{}, err
	}

	result := allocation.Allocate(allocation.PackagesFrom(packages), allocation.MergeEvents(bookings, deleted))
	return packages, result, nil
}

func (s *Service) auditCorrection(ctx context.Context, user *ledgerdomain.User, healed ledgerdomain.Balance) {
	if s.runner == nil || s.auditSvc == nil {
		return
	}
	userID := user.ID
	metadata := map[string]any{
		"previous_balance":      user.Balance.StringFixed(money.Places),
		"corrected_balance":     healed.Balance.StringFixed(money.Places),
		"previous_total_spent":  user.TotalSpent.StringFixed(money.Places),
		"corrected_total_spent": healed.TotalSpent.StringFixed(money.Places),
	}
	s.runner.Submit("audit."+auditdomain.ActionBalanceCorrected, func(taskCtx context.Context) error {
		return s.auditSvc.AuditLog(obscontext.Detach(taskCtx, ctx), auditdomain.Entry{
			Action:     auditdomain.ActionBalanceCorrected,
			TargetType: "user",
			TargetID:   userID.String(),
			SubjectID:  &userID,
			Metadata:   metadata,
		})
	})
}

func toAccount(user *ledgerdomain.User) *balancedomain.Account {
	return &balancedomain.Account{
		UserID:     user.ID,
		Name:       user.Name,
		Currency:   user.Currency,
		Balance:    user.Balance,
		TotalSpent: user.TotalSpent,
		UpdatedAt:  user.UpdatedAt,
	}
}

func refundDescription(reason string) string {
	if reason = strings.TrimSpace(reason); reason != "" {
		return "booking deleted: " + reason
	}
	return "booking deleted"
}
