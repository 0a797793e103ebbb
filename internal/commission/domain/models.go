package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/plannivo/finance/pkg/money"
	"github.com/shopspring/decimal"
)

type CommissionType string

const (
	TypePercentage     CommissionType = "percentage"
	TypeFixedPerHour   CommissionType = "fixed_per_hour"
	TypeFixedPerLesson CommissionType = "fixed_per_lesson"

	// TypeFixed is the legacy spelling of fixed_per_hour.
	TypeFixed CommissionType = "fixed"
)

// Normalize folds aliases and casing. Unknown types come back empty.
func (t CommissionType) Normalize() CommissionType {
	switch CommissionType(strings.ToLower(strings.TrimSpace(string(t)))) {
	case TypePercentage:
		return TypePercentage
	case TypeFixedPerHour, TypeFixed:
		return TypeFixedPerHour
	case TypeFixedPerLesson:
		return TypeFixedPerLesson
	default:
		return ""
	}
}

// Source names the link of the resolution chain that produced a rate.
type Source string

const (
	SourceBookingOverride   Source = "booking_override"
	SourceInstructorService Source = "instructor_service"
	SourceInstructorDefault Source = "instructor_default"
	SourceFallback          Source = "fallback"
	SourceRecordedEarning   Source = "recorded_earning"
)

// Rate is a resolved commission. Percentage values are whole numbers.
type Rate struct {
	Type   CommissionType  `json:"type"`
	Value  decimal.Decimal `json:"value"`
	Source Source          `json:"source"`
}

// Compute returns the commission owed for amount over durationHours.
func Compute(rate Rate, amount, durationHours decimal.Decimal) decimal.Decimal {
	switch rate.Type.Normalize() {
	case TypePercentage:
		return money.Round(money.ApplyPercent(amount, rate.Value))
	case TypeFixedPerHour:
		return money.Round(rate.Value.Mul(durationHours))
	case TypeFixedPerLesson:
		return money.Round(rate.Value)
	default:
		return decimal.Zero
	}
}

// FallbackPurpose selects which fallback percentage applies when no
// configured rate exists.
type FallbackPurpose string

const (
	FallbackDefault   FallbackPurpose = "default"
	FallbackSnapshot  FallbackPurpose = "snapshot"
	FallbackAggregate FallbackPurpose = "aggregate"
)

type BookingCustomCommission struct {
	BookingID       snowflake.ID    `gorm:"primaryKey" json:"booking_id"`
	CommissionType  CommissionType  `gorm:"type:text;not null" json:"commission_type"`
	CommissionValue decimal.Decimal `gorm:"type:numeric(12,4);not null" json:"commission_value"`
	CreatedAt       time.Time       `gorm:"not null" json:"created_at"`
}

func (BookingCustomCommission) TableName() string { return "booking_custom_commissions" }

type InstructorServiceCommission struct {
	ID              snowflake.ID    `gorm:"primaryKey" json:"id"`
	InstructorID    snowflake.ID    `gorm:"not null;uniqueIndex:ux_instructor_service_commissions,priority:1" json:"instructor_id"`
	ServiceID       snowflake.ID    `gorm:"not null;uniqueIndex:ux_instructor_service_commissions,priority:2" json:"service_id"`
	CommissionType  CommissionType  `gorm:"type:text;not null" json:"commission_type"`
	CommissionValue decimal.Decimal `gorm:"type:numeric(12,4);not null" json:"commission_value"`
	CreatedAt       time.Time       `gorm:"not null" json:"created_at"`
}

func (InstructorServiceCommission) TableName() string { return "instructor_service_commissions" }

type InstructorDefaultCommission struct {
	InstructorID    snowflake.ID    `gorm:"primaryKey" json:"instructor_id"`
	CommissionType  CommissionType  `gorm:"type:text;not null" json:"commission_type"`
	CommissionValue decimal.Decimal `gorm:"type:numeric(12,4);not null" json:"commission_value"`
	CreatedAt       time.Time       `gorm:"not null" json:"created_at"`
}

func (InstructorDefaultCommission) TableName() string { return "instructor_default_commissions" }

// InstructorEarning is the commission actually credited for one booking.
// CommissionRate is a fraction (0.30), unlike the percent-valued rate tables.
type InstructorEarning struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	InstructorID   snowflake.ID    `gorm:"not null;index" json:"instructor_id"`
	BookingID      snowflake.ID    `gorm:"not null;uniqueIndex" json:"booking_id"`
	CommissionRate decimal.Decimal `gorm:"type:numeric(7,4);not null" json:"commission_rate"`
	TotalEarnings  decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_earnings"`
	LessonAmount   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"lesson_amount"`
	LessonDuration decimal.Decimal `gorm:"type:numeric(6,2);not null" json:"lesson_duration"`
	PayrollID      *snowflake.ID   `json:"payroll_id"`
	CreatedAt      time.Time       `gorm:"not null;index" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null" json:"updated_at"`
}

func (InstructorEarning) TableName() string { return "instructor_earnings" }
