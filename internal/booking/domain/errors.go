package domain

import "errors"

var (
	ErrBookingNotFound       = errors.New("booking_not_found")
	ErrRentalNotFound        = errors.New("rental_not_found")
	ErrAccommodationNotFound = errors.New("accommodation_not_found")
)
