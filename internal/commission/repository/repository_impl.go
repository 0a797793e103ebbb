package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	bookingdomain "github.com/plannivo/finance/internal/booking/domain"
	"github.com/plannivo/finance/internal/commission/domain"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindBookingOverride(ctx context.Context, db *gorm.DB, bookingID snowflake.ID) (*domain.BookingCustomCommission, error) {
	var row domain.BookingCustomCommission
	err := db.WithContext(ctx).Raw(
		`SELECT booking_id, commission_type, commission_value, created_at
		 FROM booking_custom_commissions WHERE booking_id = ?`,
		bookingID,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.BookingID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *repo) FindInstructorServiceRate(ctx context.Context, db *gorm.DB, instructorID, serviceID snowflake.ID) (*domain.InstructorServiceCommission, error) {
	var row domain.InstructorServiceCommission
	err := db.WithContext(ctx).Raw(
		`SELECT id, instructor_id, service_id, commission_type, commission_value, created_at
		 FROM instructor_service_commissions WHERE instructor_id = ? AND service_id = ?`,
		instructorID,
		serviceID,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *repo) FindInstructorDefault(ctx context.Context, db *gorm.DB, instructorID snowflake.ID) (*domain.InstructorDefaultCommission, error) {
	var row domain.InstructorDefaultCommission
	err := db.WithContext(ctx).Raw(
		`SELECT instructor_id, commission_type, commission_value, created_at
		 FROM instructor_default_commissions WHERE instructor_id = ?`,
		instructorID,
	).Scan(&row).Error
	if err != nil {
		return nil, err
	}
	if row.InstructorID == 0 {
		return nil, nil
	}
	return &row, nil
}

func (r *repo) FindEarningByBooking(ctx context.Context, db *gorm.DB, bookingID snowflake.ID) (*domain.InstructorEarning, error) {
	var earning domain.InstructorEarning
	err := db.WithContext(ctx).Raw(
		`SELECT id, instructor_id, booking_id, commission_rate, total_earnings, lesson_amount, lesson_duration,
		        payroll_id, created_at, updated_at
		 FROM instructor_earnings WHERE booking_id = ?`,
		bookingID,
	).Scan(&earning).Error
	if err != nil {
		return nil, err
	}
	if earning.ID == 0 {
		return nil, nil
	}
	return &earning, nil
}

// UpsertEarning keeps one row per booking. payroll_id and created_at survive
// a rewrite.
func (r *repo) UpsertEarning(ctx context.Context, db *gorm.DB, earning *domain.InstructorEarning) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "booking_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"instructor_id",
			"commission_rate",
			"total_earnings",
			"lesson_amount",
			"lesson_duration",
			"updated_at",
		}),
	}).Create(earning).Error
}

func (r *repo) ListBookingsWithoutEarning(ctx context.Context, db *gorm.DB, from, to time.Time) ([]snowflake.ID, error) {
	var rows []int64
	err := db.WithContext(ctx).Raw(
		`SELECT b.id
		 FROM bookings b
		 LEFT JOIN instructor_earnings e ON e.booking_id = b.id
		 WHERE b.status = ? AND b.date >= ? AND b.date < ? AND e.id IS NULL
		 ORDER BY b.date ASC, b.id ASC`,
		bookingdomain.BookingStatusCompleted,
		from,
		to,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	ids := make([]snowflake.ID, 0, len(rows))
	for _, id := range rows {
		ids = append(ids, snowflake.ID(id))
	}
	return ids, nil
}

func (r *repo) SumEarningsCreatedBetween(ctx context.Context, db *gorm.DB, from, to time.Time) (decimal.Decimal, int64, error) {
	var row struct {
		Total decimal.Decimal
		Count int64
	}
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(total_earnings), 0) AS total, COUNT(*) AS count
		 FROM instructor_earnings
		 WHERE created_at >= ? AND created_at < ?`,
		from,
		to,
	).Scan(&row).Error
	if err != nil {
		return decimal.Zero, 0, err
	}
	return row.Total, row.Count, nil
}
