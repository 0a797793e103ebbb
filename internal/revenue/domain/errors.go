package domain

import "errors"

var (
	ErrSnapshotsDisabled = errors.New("revenue_snapshots_disabled")
	ErrInvalidEntity     = errors.New("invalid_entity")
	ErrInvalidTimeRange  = errors.New("invalid_time_range")
	ErrItemNotFound      = errors.New("revenue_item_not_found")
)
