package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/plannivo/finance/internal/audit/domain"
	bookingdomain "github.com/plannivo/finance/internal/booking/domain"
	"github.com/plannivo/finance/internal/clock"
	obscontext "github.com/plannivo/finance/internal/observability/context"
	"github.com/plannivo/finance/pkg/money"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const snapshotDateLayout = "2006-01-02"

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) AuditLog(ctx context.Context, entry auditdomain.Entry) error {
	return s.AuditLogTx(ctx, s.db, entry)
}

func (s *Service) AuditLogTx(ctx context.Context, tx *gorm.DB, entry auditdomain.Entry) error {
	action := strings.TrimSpace(entry.Action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}

	targetType := strings.TrimSpace(entry.TargetType)
	if targetType == "" {
		targetType = "unknown"
	}

	actorType, actorID := s.resolveActor(ctx, strings.TrimSpace(entry.ActorType), strings.TrimSpace(entry.ActorID))

	payload := map[string]any{}
	for key, value := range entry.Metadata {
		if key == "" {
			continue
		}
		payload[key] = value
	}
	if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
		payload["request_id"] = requestID
	}

	record := auditdomain.AuditLog{
		ID:         s.genID.Generate(),
		ActorType:  actorType,
		ActorID:    optional(actorID),
		Action:     action,
		TargetType: targetType,
		TargetID:   optional(entry.TargetID),
		SubjectID:  entry.SubjectID,
		Metadata:   datatypes.JSONMap(payload),
		CreatedAt:  s.clock.Now(),
	}

	if err := s.repo.Insert(ctx, tx, &record); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}

// RecordBookingDeleted stores enough of the booking to replay it in package
// allocation after the row itself is gone.
func (s *Service) RecordBookingDeleted(ctx context.Context, tx *gorm.DB, booking bookingdomain.Booking, reason string) error {
	studentID := booking.StudentID
	metadata := map[string]any{
		"booking_id":    booking.ID.String(),
		"instructor_id": booking.InstructorID.String(),
		"service_id":    booking.ServiceID.String(),
		"date":          booking.Date.UTC().Format(snapshotDateLayout),
		"start_hour":    booking.StartHour.String(),
		"duration":      booking.Duration.String(),
		"amount":        money.Round(booking.Charge()).StringFixed(money.Places),
		"status":        string(booking.Status),
	}
	if reason = strings.TrimSpace(reason); reason != "" {
		metadata["reason"] = reason
	}

	return s.AuditLogTx(ctx, tx, auditdomain.Entry{
		Action:     auditdomain.ActionBookingDeleted,
		TargetType: "booking",
		TargetID:   booking.ID.String(),
		SubjectID:  &studentID,
		Metadata:   metadata,
	})
}

// ListDeletedBookings rebuilds the deletion snapshots of a student. Snapshots
// that cannot be parsed are logged and skipped.
func (s *Service) ListDeletedBookings(ctx context.Context, db *gorm.DB, studentID snowflake.ID) ([]auditdomain.DeletedBooking, error) {
	if db == nil {
		db = s.db
	}
	logs, err := s.repo.ListByActionAndSubject(ctx, db, auditdomain.ActionBookingDeleted, studentID)
	if err != nil {
		return nil, err
	}

	deleted := make([]auditdomain.DeletedBooking, 0, len(logs))
	for _, entry := range logs {
		booking, ok := parseDeletedBooking(entry)
		if !ok {
			s.log.Warn("unreadable booking deletion snapshot", zap.String("audit_log_id", entry.ID.String()))
			continue
		}
		booking.StudentID = studentID
		deleted = append(deleted, booking)
	}
	return deleted, nil
}

func parseDeletedBooking(entry auditdomain.AuditLog) (auditdomain.DeletedBooking, bool) {
	meta := entry.Metadata

	rawDate, _ := meta["date"].(string)
	date, err := time.Parse(snapshotDateLayout, rawDate)
	if err != nil {
		return auditdomain.DeletedBooking{}, false
	}
	duration, ok := money.FromAny(meta["duration"])
	if !ok || !duration.IsPositive() {
		return auditdomain.DeletedBooking{}, false
	}
	amount, ok := money.FromAny(meta["amount"])
	if !ok {
		return auditdomain.DeletedBooking{}, false
	}
	startHour, ok := money.FromAny(meta["start_hour"])
	if !ok {
		startHour = decimal.Zero
	}

	var bookingID snowflake.ID
	if raw, _ := meta["booking_id"].(string); raw != "" {
		if parsed, err := snowflake.ParseString(raw); err == nil {
			bookingID = parsed
		}
	}

	status := bookingdomain.BookingStatusDeleted
	if raw, _ := meta["status"].(string); bookingdomain.BookingStatus(raw) == bookingdomain.BookingStatusCancelled {
		status = bookingdomain.BookingStatusCancelled
	}

	return auditdomain.DeletedBooking{
		BookingID: bookingID,
		Date:      date,
		StartHour: startHour,
		Duration:  duration,
		Amount:    amount,
		Status:    status,
		DeletedAt: entry.CreatedAt,
	}, true
}

func (s *Service) resolveActor(ctx context.Context, actorType, actorID string) (string, string) {
	if actorType == "" {
		if ctxType, ctxID := obscontext.ActorFromContext(ctx); ctxType != "" {
			actorType = ctxType
			if actorID == "" {
				actorID = ctxID
			}
		}
	}
	if actorType == "" {
		actorType = string(auditdomain.ActorTypeSystem)
	}
	return actorType, actorID
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
