package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	bookingdomain "github.com/plannivo/finance/internal/booking/domain"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Entry struct {
	ActorType  string
	ActorID    string
	Action     string
	TargetType string
	TargetID   string
	SubjectID  *snowflake.ID
	Metadata   map[string]any
}

// DeletedBooking is a booking rebuilt from its deletion snapshot.
type DeletedBooking struct {
	BookingID snowflake.ID
	StudentID snowflake.ID
	Date      time.Time
	StartHour decimal.Decimal
	Duration  decimal.Decimal
	Amount    decimal.Decimal
	// Status is the booking's status at the moment it was deleted.
	Status    bookingdomain.BookingStatus
	DeletedAt time.Time
}

type Service interface {
	AuditLog(ctx context.Context, entry Entry) error
	AuditLogTx(ctx context.Context, tx *gorm.DB, entry Entry) error
	RecordBookingDeleted(ctx context.Context, tx *gorm.DB, booking bookingdomain.Booking, reason string) error
	ListDeletedBookings(ctx context.Context, db *gorm.DB, studentID snowflake.ID) ([]DeletedBooking, error)
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	ListByActionAndSubject(ctx context.Context, db *gorm.DB, action string, subjectID snowflake.ID) ([]AuditLog, error)
}

var (
	ErrInvalidAction = errors.New("invalid_action")
)
