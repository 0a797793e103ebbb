package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
	// BookingStatusDeleted only appears on events rebuilt from the audit log.
	BookingStatusDeleted BookingStatus = "deleted"
)

type PackageStatus string

const (
	PackageStatusActive  PackageStatus = "active"
	PackageStatusExpired PackageStatus = "expired"
	PackageStatusUsedUp  PackageStatus = "used_up"
)

const (
	ServiceTypeLesson        = "lesson"
	ServiceTypeRental        = "rental"
	ServiceTypeAccommodation = "accommodation"
)

const (
	PaymentMethodWallet  = "wallet"
	PaymentMethodPackage = "package"
)

// Booking is a scheduled lesson. StartHour and Duration are in hours.
type Booking struct {
	ID                snowflake.ID        `gorm:"primaryKey" json:"id"`
	StudentID         snowflake.ID        `gorm:"not null;index" json:"student_id"`
	InstructorID      snowflake.ID        `gorm:"not null;index" json:"instructor_id"`
	ServiceID         snowflake.ID        `gorm:"not null" json:"service_id"`
	CategoryID        string              `gorm:"type:text" json:"category_id"`
	ServiceType       string              `gorm:"type:text;not null;default:'lesson'" json:"service_type"`
	Date              time.Time           `gorm:"not null;index" json:"date"`
	StartHour         decimal.Decimal     `gorm:"type:numeric(5,2);not null" json:"start_hour"`
	Duration          decimal.Decimal     `gorm:"type:numeric(6,2);not null" json:"duration"`
	Amount            decimal.Decimal     `gorm:"type:numeric(12,2);not null" json:"amount"`
	FinalAmount       decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"final_amount"`
	Status            BookingStatus       `gorm:"type:text;not null" json:"status"`
	PaymentMethod     string              `gorm:"type:text" json:"payment_method"`
	CustomerPackageID *snowflake.ID       `json:"customer_package_id"`
	CreatedAt         time.Time           `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time           `gorm:"not null" json:"updated_at"`
}

func (Booking) TableName() string { return "bookings" }

// Charge is what the student is billed: final_amount when set, else amount.
func (b Booking) Charge() decimal.Decimal {
	if b.FinalAmount.Valid {
		return b.FinalAmount.Decimal
	}
	return b.Amount
}

// CustomerPackage is a prepaid bundle of lesson hours. OpeningHours is the
// credit redeemable when the package was sold or imported and is never
// rewritten. UsedHours and RemainingHours are a display projection written by
// the usage recompute.
type CustomerPackage struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	UserID         snowflake.ID    `gorm:"not null;index" json:"user_id"`
	Name           string          `gorm:"type:text" json:"name"`
	TotalHours     decimal.Decimal `gorm:"type:numeric(8,2);not null" json:"total_hours"`
	OpeningHours   decimal.Decimal `gorm:"type:numeric(8,2);not null" json:"opening_hours"`
	UsedHours      decimal.Decimal `gorm:"type:numeric(8,2);not null;default:0" json:"used_hours"`
	RemainingHours decimal.Decimal `gorm:"type:numeric(8,2);not null;default:0" json:"remaining_hours"`
	PurchasePrice  decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"purchase_price"`
	Status         PackageStatus   `gorm:"type:text;not null" json:"status"`
	PurchasedAt    time.Time       `gorm:"not null" json:"purchased_at"`
	UpdatedAt      time.Time       `gorm:"not null" json:"updated_at"`
}

func (CustomerPackage) TableName() string { return "customer_packages" }

type Rental struct {
	ID            snowflake.ID    `gorm:"primaryKey" json:"id"`
	UserID        snowflake.ID    `gorm:"not null;index" json:"user_id"`
	ServiceID     snowflake.ID    `gorm:"not null" json:"service_id"`
	TotalPrice    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_price"`
	Status        string          `gorm:"type:text;not null" json:"status"`
	PaymentMethod string          `gorm:"type:text" json:"payment_method"`
	RentalDate    time.Time       `gorm:"not null;index" json:"rental_date"`
	CreatedAt     time.Time       `gorm:"not null" json:"created_at"`
}

func (Rental) TableName() string { return "rentals" }

type AccommodationBooking struct {
	ID            snowflake.ID    `gorm:"primaryKey" json:"id"`
	GuestID       snowflake.ID    `gorm:"not null;index" json:"guest_id"`
	UnitID        snowflake.ID    `gorm:"not null" json:"unit_id"`
	TotalPrice    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_price"`
	Status        string          `gorm:"type:text;not null" json:"status"`
	PaymentMethod string          `gorm:"type:text" json:"payment_method"`
	CheckInDate   time.Time       `gorm:"not null;index" json:"check_in_date"`
	CheckOutDate  time.Time       `gorm:"not null" json:"check_out_date"`
	CreatedAt     time.Time       `gorm:"not null" json:"created_at"`
}

func (AccommodationBooking) TableName() string { return "accommodation_bookings" }

const (
	RentalStatusCompleted        = "completed"
	AccommodationStatusCompleted = "completed"
)
