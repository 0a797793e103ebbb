package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/plannivo/finance/internal/allocation"
	ledgerdomain "github.com/plannivo/finance/internal/ledger/domain"
	"github.com/shopspring/decimal"
)

// Account is a user's stored balance after reconciliation against the
// ledger. Corrected reports whether this read healed a drift.
type Account struct {
	UserID     snowflake.ID    `json:"user_id"`
	Name       string          `json:"name"`
	Currency   string          `json:"currency"`
	Balance    decimal.Decimal `json:"balance"`
	TotalSpent decimal.Decimal `json:"total_spent"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Corrected  bool            `json:"corrected"`
}

// UsableBalance is the debt-aware view of an account.
type UsableBalance struct {
	UserID                snowflake.ID    `json:"user_id"`
	CashBalance           decimal.Decimal `json:"cash_balance"`
	UnpaidIndividual      decimal.Decimal `json:"unpaid_individual"`
	UnpaidPackages        decimal.Decimal `json:"unpaid_packages"`
	UnpaidRentals         decimal.Decimal `json:"unpaid_rentals"`
	ActualBalance         decimal.Decimal `json:"actual_balance"`
	PackageHoursUsed      decimal.Decimal `json:"package_hours_used"`
	RemainingPackageHours decimal.Decimal `json:"remaining_package_hours"`
}

type DeleteBookingRequest struct {
	BookingID snowflake.ID `json:"-"`
	// Refund posts a booking_deleted_refund for the booking's charge.
	Refund bool   `json:"refund"`
	Reason string `json:"reason"`
}

type DeleteBookingResult struct {
	BookingID snowflake.ID              `json:"booking_id"`
	Refund    *ledgerdomain.Transaction `json:"refund,omitempty"`
	Balance   ledgerdomain.Balance      `json:"balance"`
	Packages  []allocation.Projection   `json:"packages"`
}

type Service interface {
	GetAccount(ctx context.Context, userID snowflake.ID) (*Account, error)
	ComputeUsableBalance(ctx context.Context, userID snowflake.ID) (*UsableBalance, error)
	RecomputePackageUsage(ctx context.Context, userID snowflake.ID) ([]allocation.Projection, error)
	DeleteBooking(ctx context.Context, req DeleteBookingRequest) (*DeleteBookingResult, error)
}
