package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	bookingdomain "github.com/plannivo/finance/internal/booking/domain"
	commissiondomain "github.com/plannivo/finance/internal/commission/domain"
	"github.com/plannivo/finance/internal/revenue/domain"
	settingsdomain "github.com/plannivo/finance/internal/settings/domain"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// source is the entity data a snapshot is derived from.
type source struct {
	ref           domain.EntityRef
	gross         decimal.Decimal
	serviceType   string
	serviceID     snowflake.ID
	categoryID    string
	paymentMethod string
	recognizedAt  time.Time
	completed     bool
	booking       *bookingdomain.Booking
}

func (s source) resolveContext() settingsdomain.ResolveContext {
	rc := settingsdomain.ResolveContext{
		ServiceType:   s.serviceType,
		CategoryID:    s.categoryID,
		PaymentMethod: s.paymentMethod,
	}
	if s.serviceID != 0 {
		rc.ServiceID = s.serviceID.String()
	}
	return rc
}

// loadSource reads the entity behind ref. A missing entity returns nil.
func (s *Service) loadSource(ctx context.Context, tx *gorm.DB, ref domain.EntityRef) (*source, error) {
	switch ref.Type {
	case domain.EntityBooking:
		booking, err := s.bookings.FindBooking(ctx, tx, ref.ID)
		if err != nil || booking == nil {
			return nil, err
		}
		serviceType := strings.TrimSpace(booking.ServiceType)
		if serviceType == "" {
			serviceType = bookingdomain.ServiceTypeLesson
		}
		return &source{
			ref:           ref,
			gross:         booking.Charge(),
			serviceType:   serviceType,
			serviceID:     booking.ServiceID,
			categoryID:    strings.TrimSpace(booking.CategoryID),
			paymentMethod: inferPaymentMethod(booking.PaymentMethod, booking.CustomerPackageID != nil),
			recognizedAt:  booking.Date,
			completed:     booking.Status == bookingdomain.BookingStatusCompleted,
			booking:       booking,
		}, nil
	case domain.EntityRental:
		rental, err := s.bookings.FindRental(ctx, tx, ref.ID)
		if err != nil || rental == nil {
			return nil, err
		}
		return &source{
			ref:           ref,
			gross:         rental.TotalPrice,
			serviceType:   bookingdomain.ServiceTypeRental,
			serviceID:     rental.ServiceID,
			paymentMethod: inferPaymentMethod(rental.PaymentMethod, false),
			recognizedAt:  rental.RentalDate,
			completed:     rental.Status == bookingdomain.RentalStatusCompleted,
		}, nil
	case domain.EntityAccommodation:
		stay, err := s.bookings.FindAccommodation(ctx, tx, ref.ID)
		if err != nil || stay == nil {
			return nil, err
		}
		return &source{
			ref:           ref,
			gross:         stay.TotalPrice,
			serviceType:   bookingdomain.ServiceTypeAccommodation,
			serviceID:     stay.UnitID,
			paymentMethod: inferPaymentMethod(stay.PaymentMethod, false),
			recognizedAt:  stay.CheckInDate,
			completed:     stay.Status == bookingdomain.AccommodationStatusCompleted,
		}, nil
	default:
		return nil, domain.ErrInvalidEntity
	}
}

// commissionFor prefers the recorded earning of a booking and falls back to
// the snapshot percentage. Rentals and stays carry no commission.
func (s *Service) commissionFor(ctx context.Context, tx *gorm.DB, src *source) (decimal.Decimal, commissiondomain.Source, error) {
	if src.booking == nil {
		return decimal.Zero, "", nil
	}
	earning, err := s.commissions.FindEarningByBooking(ctx, tx, src.booking.ID)
	if err != nil {
		return decimal.Zero, "", err
	}
	if earning != nil {
		return earning.TotalEarnings, commissiondomain.SourceRecordedEarning, nil
	}
	fallback := s.commissionSvc.FallbackFor(commissiondomain.FallbackSnapshot, src.gross)
	return fallback.Commission, fallback.Rate.Source, nil
}

func inferPaymentMethod(method string, packageCovered bool) string {
	if method = strings.ToLower(strings.TrimSpace(method)); method != "" {
		return method
	}
	if packageCovered {
		return bookingdomain.PaymentMethodPackage
	}
	return bookingdomain.PaymentMethodWallet
}
