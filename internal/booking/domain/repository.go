package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	FindBooking(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Booking, error)
	FindBookings(ctx context.Context, db *gorm.DB, ids []snowflake.ID) (map[snowflake.ID]Booking, error)
	ListStudentBookings(ctx context.Context, db *gorm.DB, studentID snowflake.ID) ([]Booking, error)
	ListCompletedBookings(ctx context.Context, db *gorm.DB, from, to time.Time) ([]Booking, error)
	DeleteBooking(ctx context.Context, db *gorm.DB, id snowflake.ID) error

	ListPackages(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]CustomerPackage, error)
	UpdatePackageUsage(ctx context.Context, db *gorm.DB, id snowflake.ID, used, remaining decimal.Decimal, now time.Time) error

	FindRental(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Rental, error)
	ListUserRentals(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]Rental, error)
	ListCompletedRentals(ctx context.Context, db *gorm.DB, from, to time.Time) ([]Rental, error)

	FindAccommodation(ctx context.Context, db *gorm.DB, id snowflake.ID) (*AccommodationBooking, error)
	ListCompletedAccommodations(ctx context.Context, db *gorm.DB, from, to time.Time) ([]AccommodationBooking, error)
}
