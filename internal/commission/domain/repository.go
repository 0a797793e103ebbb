package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	FindBookingOverride(ctx context.Context, db *gorm.DB, bookingID snowflake.ID) (*BookingCustomCommission, error)
	FindInstructorServiceRate(ctx context.Context, db *gorm.DB, instructorID, serviceID snowflake.ID) (*InstructorServiceCommission, error)
	FindInstructorDefault(ctx context.Context, db *gorm.DB, instructorID snowflake.ID) (*InstructorDefaultCommission, error)

	FindEarningByBooking(ctx context.Context, db *gorm.DB, bookingID snowflake.ID) (*InstructorEarning, error)
	UpsertEarning(ctx context.Context, db *gorm.DB, earning *InstructorEarning) error
	ListBookingsWithoutEarning(ctx context.Context, db *gorm.DB, from, to time.Time) ([]snowflake.ID, error)
	SumEarningsCreatedBetween(ctx context.Context, db *gorm.DB, from, to time.Time) (decimal.Decimal, int64, error)
}
