package domain

import "errors"

var (
	ErrInvalidRate        = errors.New("invalid_rate")
	ErrInvalidFeeSchedule = errors.New("invalid_fee_schedule")
	ErrInvalidScope       = errors.New("invalid_scope")
	ErrInvalidScopeValue  = errors.New("invalid_scope_value")
	ErrUnknownOverrideKey = errors.New("unknown_override_field")
	ErrEmptyOverride      = errors.New("empty_override")
	ErrSettingsNotFound   = errors.New("settings_not_found")
	ErrOverrideNotFound   = errors.New("override_not_found")
	ErrNoActiveSettings   = errors.New("no_active_settings")
)
