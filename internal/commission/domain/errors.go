package domain

import "errors"

var (
	ErrBookingNotFound     = errors.New("booking_not_found")
	ErrBookingNotCompleted = errors.New("booking_not_completed")
	ErrInvalidTimeRange    = errors.New("invalid_time_range")
)
