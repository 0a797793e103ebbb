package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/plannivo/finance/internal/audit/domain"
	"github.com/plannivo/finance/internal/audit/repository"
	bookingdomain "github.com/plannivo/finance/internal/booking/domain"
	"github.com/plannivo/finance/internal/clock"
	obscontext "github.com/plannivo/finance/internal/observability/context"
	"github.com/plannivo/finance/pkg/db"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (auditdomain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	dbConn, err := db.NewTest(t.Name())
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(&auditdomain.AuditLog{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(Params{
		DB:    dbConn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
	})
	return svc, dbConn, node
}

func TestAuditLogUsesContextActor(t *testing.T) {
	svc, dbConn, _ := newTestService(t)

	ctx := obscontext.WithActor(context.Background(), "admin", "ops-7")
	ctx = obscontext.WithRequestID(ctx, "req-1")
	require.NoError(t, svc.AuditLog(ctx, auditdomain.Entry{Action: auditdomain.ActionTransactionCreated, TargetType: "transaction", TargetID: "42"}))

	var stored auditdomain.AuditLog
	require.NoError(t, dbConn.First(&stored).Error)
	assert.Equal(t, "admin", stored.ActorType)
	require.NotNil(t, stored.ActorID)
	assert.Equal(t, "ops-7", *stored.ActorID)
	assert.Equal(t, "req-1", stored.Metadata["request_id"])
}

func TestAuditLogRejectsBlankAction(t *testing.T) {
	svc, _, _ := newTestService(t)
	err := svc.AuditLog(context.Background(), auditdomain.Entry{Action: "  "})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidAction)
}

func TestDeletedBookingRoundTrip(t *testing.T) {
	svc, dbConn, node := newTestService(t)
	ctx := context.Background()

	studentID := node.Generate()
	booking := bookingdomain.Booking{
		ID:           node.Generate(),
		StudentID:    studentID,
		InstructorID: node.Generate(),
		ServiceID:    node.Generate(),
		Date:         time.Date(2026, 4, 3, 0, 0, 0, 0, time.UTC),
		StartHour:    decimal.RequireFromString("9.5"),
		Duration:     decimal.NewFromInt(2),
		Amount:       decimal.NewFromInt(120),
		FinalAmount:  decimal.NewNullDecimal(decimal.NewFromInt(100)),
		Status:       bookingdomain.BookingStatusConfirmed,
	}
	require.NoError(t, svc.RecordBookingDeleted(ctx, dbConn, booking, "student request"))

	cancelled := booking
	cancelled.ID = node.Generate()
	cancelled.Status = bookingdomain.BookingStatusCancelled
	require.NoError(t, svc.RecordBookingDeleted(ctx, dbConn, cancelled, ""))

	// Another student's deletions stay out of the list.
	other := booking
	other.ID = node.Generate()
	other.StudentID = node.Generate()
	require.NoError(t, svc.RecordBookingDeleted(ctx, dbConn, other, ""))

	deleted, err := svc.ListDeletedBookings(ctx, nil, studentID)
	require.NoError(t, err)
	require.Len(t, deleted, 2)

	first := deleted[0]
	assert.Equal(t, booking.ID, first.BookingID)
	assert.Equal(t, studentID, first.StudentID)
	assert.True(t, first.Date.Equal(booking.Date))
	assert.True(t, first.StartHour.Equal(decimal.RequireFromString("9.5")))
	assert.True(t, first.Duration.Equal(decimal.NewFromInt(2)))
	assert.True(t, first.Amount.Equal(decimal.NewFromInt(100)), "the charged amount is kept, not the list price")
	assert.Equal(t, bookingdomain.BookingStatusDeleted, first.Status)

	assert.Equal(t, bookingdomain.BookingStatusCancelled, deleted[1].Status)
}
