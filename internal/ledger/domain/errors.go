package domain

import "errors"

var (
	ErrUserNotFound        = errors.New("user_not_found")
	ErrTransactionNotFound = errors.New("transaction_not_found")
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidType         = errors.New("invalid_transaction_type")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidCurrency     = errors.New("invalid_currency")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrInvalidTimeRange    = errors.New("invalid_time_range")
)
