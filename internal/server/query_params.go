package server

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

const dateOnlyLayout = "2006-01-02"

func parseOptionalBool(value string) (*bool, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func parseOptionalSnowflakeID(value string) (*snowflake.ID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := snowflake.ParseString(trimmed)
	if err != nil || parsed == 0 {
		return nil, errors.New("invalid_snowflake_id")
	}
	return &parsed, nil
}

// parseOptionalTime accepts RFC3339 or a bare date. A bare date used as an
// exclusive upper bound resolves to the start of the following day so the
// whole named day is covered.
func parseOptionalTime(value string, exclusiveEnd bool) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, trimmed); err == nil {
		parsed = parsed.UTC()
		return &parsed, nil
	}
	if parsed, err := time.Parse(dateOnlyLayout, trimmed); err == nil {
		parsed = time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
		if exclusiveEnd {
			parsed = parsed.AddDate(0, 0, 1)
		}
		return &parsed, nil
	}
	return nil, errors.New("invalid_time")
}

// pathID parses the snowflake id in the named path parameter. It aborts the
// request and returns false when the value is missing or malformed.
func pathID(c *gin.Context, name string) (snowflake.ID, bool) {
	id, err := parseOptionalSnowflakeID(c.Param(name))
	if err != nil || id == nil {
		AbortWithError(c, newValidationError(name, "invalid_"+name, "invalid "+name))
		return 0, false
	}
	return *id, true
}

// timeRange parses a required half-open [from, to) window from the named
// fields.
func timeRange(fromField, fromValue, toField, toValue string) (time.Time, time.Time, error) {
	from, err := parseOptionalTime(fromValue, false)
	if err != nil || from == nil {
		return time.Time{}, time.Time{}, newValidationError(fromField, "invalid_"+fromField, "invalid "+fromField)
	}
	to, err := parseOptionalTime(toValue, true)
	if err != nil || to == nil {
		return time.Time{}, time.Time{}, newValidationError(toField, "invalid_"+toField, "invalid "+toField)
	}
	return *from, *to, nil
}
