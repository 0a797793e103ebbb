package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/plannivo/finance/internal/audit/domain"
	bookingdomain "github.com/plannivo/finance/internal/booking/domain"
	commissiondomain "github.com/plannivo/finance/internal/commission/domain"
	ledgerdomain "github.com/plannivo/finance/internal/ledger/domain"
	reportdomain "github.com/plannivo/finance/internal/report/domain"
	revenuedomain "github.com/plannivo/finance/internal/revenue/domain"
	settingsdomain "github.com/plannivo/finance/internal/settings/domain"
	settingsservice "github.com/plannivo/finance/internal/settings/service"
	"github.com/plannivo/finance/pkg/db"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return true
	case settingsservice.IsValidationError(err),
		isLedgerValidationError(err),
		isReportValidationError(err):
		return true
	case errors.Is(err, commissiondomain.ErrInvalidTimeRange),
		errors.Is(err, revenuedomain.ErrInvalidTimeRange),
		errors.Is(err, revenuedomain.ErrInvalidEntity),
		errors.Is(err, auditdomain.ErrInvalidAction):
		return true
	default:
		return false
	}
}

func isLedgerValidationError(err error) bool {
	for _, target := range []error{
		ledgerdomain.ErrInvalidUser,
		ledgerdomain.ErrInvalidType,
		ledgerdomain.ErrInvalidAmount,
		ledgerdomain.ErrInvalidCurrency,
		ledgerdomain.ErrInvalidStatus,
		ledgerdomain.ErrInvalidTimeRange,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func isReportValidationError(err error) bool {
	return errors.Is(err, reportdomain.ErrInvalidTimeRange) ||
		errors.Is(err, reportdomain.ErrInvalidServiceType)
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, commissiondomain.ErrBookingNotCompleted),
		errors.Is(err, revenuedomain.ErrSnapshotsDisabled),
		db.IsDuplicateKeyErr(err):
		return true
	default:
		return false
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, commissiondomain.ErrBookingNotCompleted):
		return "booking is not completed"
	case errors.Is(err, revenuedomain.ErrSnapshotsDisabled):
		return "revenue snapshots are disabled"
	default:
		return "conflict"
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ledgerdomain.ErrUserNotFound),
		errors.Is(err, ledgerdomain.ErrTransactionNotFound),
		errors.Is(err, bookingdomain.ErrBookingNotFound),
		errors.Is(err, bookingdomain.ErrRentalNotFound),
		errors.Is(err, bookingdomain.ErrAccommodationNotFound),
		errors.Is(err, commissiondomain.ErrBookingNotFound),
		errors.Is(err, revenuedomain.ErrItemNotFound),
		errors.Is(err, settingsdomain.ErrSettingsNotFound),
		errors.Is(err, settingsdomain.ErrOverrideNotFound),
		errors.Is(err, settingsdomain.ErrNoActiveSettings),
		db.IsNotFound(err):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	default:
		return rootErrorCode(err)
	}
}

// rootErrorCode strips wrapping context so only the sentinel code reaches the
// client.
func rootErrorCode(err error) string {
	msg := err.Error()
	if idx := strings.LastIndex(msg, ": "); idx >= 0 {
		return msg[idx+2:]
	}
	return msg
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "invalid_time_range":
		return "start must be before end"
	default:
		return "invalid value"
	}
}
