package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	bookingdomain "github.com/plannivo/finance/internal/booking/domain"
	"github.com/shopspring/decimal"
)

type Service interface {
	ResolveCommission(ctx context.Context, bookingID snowflake.ID) (Rate, error)
	ResolveForBooking(ctx context.Context, booking bookingdomain.Booking) Rate
	ComputeForBooking(ctx context.Context, booking bookingdomain.Booking) Amount
	FallbackFor(purpose FallbackPurpose, gross decimal.Decimal) Amount

	RecordEarning(ctx context.Context, bookingID snowflake.ID) (EarningResult, error)
	BackfillEarnings(ctx context.Context, from, to time.Time) (BackfillResult, error)
	SumEarningsCreatedBetween(ctx context.Context, from, to time.Time) (EarningsTotal, error)
}

// Amount is a rate together with the commission it yields.
type Amount struct {
	Rate       Rate            `json:"rate"`
	Commission decimal.Decimal `json:"commission"`
}

type EarningResult struct {
	Earning *InstructorEarning `json:"earning"`
	Skipped bool               `json:"skipped"`
	Reason  string             `json:"reason,omitempty"`
}

type BackfillResult struct {
	Scanned  int `json:"scanned"`
	Recorded int `json:"recorded"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

type EarningsTotal struct {
	Total decimal.Decimal `json:"total"`
	Count int64           `json:"count"`
}
