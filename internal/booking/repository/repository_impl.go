package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/plannivo/finance/internal/booking/domain"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const bookingColumns = `id, student_id, instructor_id, service_id, category_id, service_type, date, start_hour,
	duration, amount, final_amount, status, payment_method, customer_package_id, created_at, updated_at`

func (r *repo) FindBooking(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Booking, error) {
	var booking domain.Booking
	err := db.WithContext(ctx).Raw(
		`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`,
		id,
	).Scan(&booking).Error
	if err != nil {
		return nil, err
	}
	if booking.ID == 0 {
		return nil, nil
	}
	return &booking, nil
}

func (r *repo) FindBookings(ctx context.Context, db *gorm.DB, ids []snowflake.ID) (map[snowflake.ID]domain.Booking, error) {
	out := make(map[snowflake.ID]domain.Booking, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var bookings []domain.Booking
	err := db.WithContext(ctx).Raw(
		`SELECT `+bookingColumns+` FROM bookings WHERE id IN ?`,
		ids,
	).Scan(&bookings).Error
	if err != nil {
		return nil, err
	}
	for _, booking := range bookings {
		out[booking.ID] = booking
	}
	return out, nil
}

func (r *repo) ListStudentBookings(ctx context.Context, db *gorm.DB, studentID snowflake.ID) ([]domain.Booking, error) {
	var bookings []domain.Booking
	err := db.WithContext(ctx).Raw(
		`SELECT `+bookingColumns+`
		 FROM bookings
		 WHERE student_id = ?
		 ORDER BY date ASC, start_hour ASC, id ASC`,
		studentID,
	).Scan(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *repo) ListCompletedBookings(ctx context.Context, db *gorm.DB, from, to time.Time) ([]domain.Booking, error) {
	var bookings []domain.Booking
	err := db.WithContext(ctx).Raw(
		`SELECT `+bookingColumns+`
		 FROM bookings
		 WHERE status = ? AND date >= ? AND date < ?
		 ORDER BY date ASC, id ASC`,
		domain.BookingStatusCompleted,
		from,
		to,
	).Scan(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *repo) DeleteBooking(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM bookings WHERE id = ?`, id).Error
}

func (r *repo) ListPackages(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]domain.CustomerPackage, error) {
	var packages []domain.CustomerPackage
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, name, total_hours, opening_hours, used_hours, remaining_hours, purchase_price, status, purchased_at, updated_at
		 FROM customer_packages
		 WHERE user_id = ?
		 ORDER BY purchased_at ASC, id ASC`,
		userID,
	).Scan(&packages).Error
	if err != nil {
		return nil, err
	}
	return packages, nil
}

func (r *repo) UpdatePackageUsage(ctx context.Context, db *gorm.DB, id snowflake.ID, used, remaining decimal.Decimal, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE customer_packages SET used_hours = ?, remaining_hours = ?, updated_at = ? WHERE id = ?`,
		used,
		remaining,
		now,
		id,
	).Error
}

func (r *repo) FindRental(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Rental, error) {
	var rental domain.Rental
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, service_id, total_price, status, payment_method, rental_date, created_at
		 FROM rentals WHERE id = ?`,
		id,
	).Scan(&rental).Error
	if err != nil {
		return nil, err
	}
	if rental.ID == 0 {
		return nil, nil
	}
	return &rental, nil
}

func (r *repo) ListUserRentals(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]domain.Rental, error) {
	var rentals []domain.Rental
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, service_id, total_price, status, payment_method, rental_date, created_at
		 FROM rentals WHERE user_id = ?
		 ORDER BY rental_date ASC, id ASC`,
		userID,
	).Scan(&rentals).Error
	if err != nil {
		return nil, err
	}
	return rentals, nil
}

func (r *repo) ListCompletedRentals(ctx context.Context, db *gorm.DB, from, to time.Time) ([]domain.Rental, error) {
	var rentals []domain.Rental
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, service_id, total_price, status, payment_method, rental_date, created_at
		 FROM rentals
		 WHERE status = ? AND rental_date >= ? AND rental_date < ?
		 ORDER BY rental_date ASC, id ASC`,
		domain.RentalStatusCompleted,
		from,
		to,
	).Scan(&rentals).Error
	if err != nil {
		return nil, err
	}
	return rentals, nil
}

func (r *repo) FindAccommodation(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.AccommodationBooking, error) {
	var booking domain.AccommodationBooking
	err := db.WithContext(ctx).Raw(
		`SELECT id, guest_id, unit_id, total_price, status, payment_method, check_in_date, check_out_date, created_at
		 FROM accommodation_bookings WHERE id = ?`,
		id,
	).Scan(&booking).Error
	if err != nil {
		return nil, err
	}
	if booking.ID == 0 {
		return nil, nil
	}
	return &booking, nil
}

func (r *repo) ListCompletedAccommodations(ctx context.Context, db *gorm.DB, from, to time.Time) ([]domain.AccommodationBooking, error) {
	var bookings []domain.AccommodationBooking
	err := db.WithContext(ctx).Raw(
		`SELECT id, guest_id, unit_id, total_price, status, payment_method, check_in_date, check_out_date, created_at
		 FROM accommodation_bookings
		 WHERE status = ? AND check_in_date >= ? AND check_in_date < ?
		 ORDER BY check_in_date ASC, id ASC`,
		domain.AccommodationStatusCompleted,
		from,
		to,
	).Scan(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}
