package domain

import (
	"errors"
	"strings"
	"time"

	bookingdomain "github.com/plannivo/finance/internal/booking/domain"
	ledgerdomain "github.com/plannivo/finance/internal/ledger/domain"
	"github.com/shopspring/decimal"
)

const (
	CommissionSourceActual    = "actual"
	CommissionSourceEstimated = "estimated"
)

var (
	ErrInvalidTimeRange   = errors.New("invalid_time_range")
	ErrInvalidServiceType = errors.New("invalid_service_type")
)

// Request selects the completed transactions created in [Start, End).
// ServiceType is optional.
type Request struct {
	Start       time.Time
	End         time.Time
	ServiceType string
}

type NetRevenue struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	ServiceType string    `json:"service_type,omitempty"`

	Gross              decimal.Decimal `json:"gross"`
	Refunds            decimal.Decimal `json:"refunds"`
	InstructorEarnings decimal.Decimal `json:"instructor_earnings"`
	Tax                decimal.Decimal `json:"tax"`
	Insurance          decimal.Decimal `json:"insurance"`
	Equipment          decimal.Decimal `json:"equipment"`
	PaymentFees        decimal.Decimal `json:"payment_fees"`
	Net                decimal.Decimal `json:"net"`

	TransactionCount int    `json:"transaction_count"`
	RefundCount      int    `json:"refund_count"`
	EarningsCount    int64  `json:"earnings_count"`
	CommissionSource string `json:"commission_source"`
}

// RevenueTypes lists the transaction types counted as revenue for a service
// type. An empty service type selects all of them.
func RevenueTypes(serviceType string) ([]ledgerdomain.TransactionType, error) {
	switch strings.ToLower(strings.TrimSpace(serviceType)) {
	case "":
		return []ledgerdomain.TransactionType{
			ledgerdomain.TransactionTypePayment,
			ledgerdomain.TransactionTypeServicePayment,
			ledgerdomain.TransactionTypeRentalPayment,
		}, nil
	case bookingdomain.ServiceTypeLesson:
		return LessonTypes(), nil
	case bookingdomain.ServiceTypeRental:
		return []ledgerdomain.TransactionType{ledgerdomain.TransactionTypeRentalPayment}, nil
	default:
		return nil, ErrInvalidServiceType
	}
}

func LessonTypes() []ledgerdomain.TransactionType {
	return []ledgerdomain.TransactionType{
		ledgerdomain.TransactionTypePayment,
		ledgerdomain.TransactionTypeServicePayment,
	}
}

func RefundTypes() []ledgerdomain.TransactionType {
	return []ledgerdomain.TransactionType{
		ledgerdomain.TransactionTypeRefund,
		ledgerdomain.TransactionTypeBookingDeletedRefund,
	}
}

// IsLesson reports whether a revenue transaction pays for a lesson.
func IsLesson(t ledgerdomain.TransactionType) bool {
	return t == ledgerdomain.TransactionTypePayment || t == ledgerdomain.TransactionTypeServicePayment
}
