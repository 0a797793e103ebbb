package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	bookingdomain "github.com/plannivo/finance/internal/booking/domain"
	bookingrepo "github.com/plannivo/finance/internal/booking/repository"
	"github.com/plannivo/finance/internal/clock"
	"github.com/plannivo/finance/internal/commission/domain"
	"github.com/plannivo/finance/internal/commission/repository"
	"github.com/plannivo/finance/internal/config"
	"github.com/plannivo/finance/pkg/db"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	db    *gorm.DB
	node  *snowflake.Node
	clock *clock.FakeClock
	svc   domain.Service
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()

	dbConn, err := db.NewTest(t.Name())
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(
		&bookingdomain.Booking{},
		&domain.BookingCustomCommission{},
		&domain.InstructorServiceCommission{},
		&domain.InstructorDefaultCommission{},
		&domain.InstructorEarning{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fake := clock.NewFakeClock(testNow)
	return testEnv{
		db:    dbConn,
		node:  node,
		clock: fake,
		svc: New(Params{
			DB:       dbConn,
			Log:      zap.NewNop(),
			GenID:    node,
			Clock:    fake,
			Repo:     repository.Provide(),
			Bookings: bookingrepo.Provide(),
			Finance:  config.NewStaticFinanceConfig(config.DefaultFinanceConfig()),
		}),
	}
}

func (e testEnv) seedBooking(t *testing.T, instructorID, serviceID snowflake.ID, amount, hours string) bookingdomain.Booking {
	t.Helper()
	booking := bookingdomain.Booking{
		ID:           e.node.Generate(),
		StudentID:    e.node.Generate(),
		InstructorID: instructorID,
		ServiceID:    serviceID,
		ServiceType:  bookingdomain.ServiceTypeLesson,
		Date:         testNow.Add(-48 * time.Hour),
		StartHour:    decimal.NewFromInt(10),
		Duration:     decimal.RequireFromString(hours),
		Amount:       decimal.RequireFromString(amount),
		Status:       bookingdomain.BookingStatusCompleted,
		CreatedAt:    testNow,
		UpdatedAt:    testNow,
	}
	require.NoError(t, e.db.Create(&booking).Error)
	return booking
}

func TestResolveCommissionChainPriority(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	instructorID := env.node.Generate()
	serviceID := env.node.Generate()
	booking := env.seedBooking(t, instructorID, serviceID, "100", "2")

	require.NoError(t, env.db.Create(&domain.InstructorDefaultCommission{
		InstructorID:    instructorID,
		CommissionType:  domain.TypePercentage,
		CommissionValue: decimal.NewFromInt(40),
		CreatedAt:       testNow,
	}).Error)

	rate, err := env.svc.ResolveCommission(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceInstructorDefault, rate.Source)
	assert.True(t, rate.Value.Equal(decimal.NewFromInt(40)))

	require.NoError(t, env.db.Create(&domain.InstructorServiceCommission{
		ID:              env.node.Generate(),
		InstructorID:    instructorID,
		ServiceID:       serviceID,
		CommissionType:  domain.TypeFixed,
		CommissionValue: decimal.NewFromInt(15),
		CreatedAt:       testNow,
	}).Error)

	rate, err = env.svc.ResolveCommission(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceInstructorService, rate.Source)
	assert.Equal(t, domain.TypeFixedPerHour, rate.Type)

	require.NoError(t, env.db.Create(&domain.BookingCustomCommission{
		BookingID:       booking.ID,
		CommissionType:  domain.TypeFixedPerLesson,
		CommissionValue: decimal.NewFromInt(45),
		CreatedAt:       testNow,
	}).Error)

	rate, err = env.svc.ResolveCommission(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceBookingOverride, rate.Source)
	assert.Equal(t, domain.TypeFixedPerLesson, rate.Type)

	amount := env.svc.ComputeForBooking(ctx, booking)
	assert.True(t, amount.Commission.Equal(decimal.NewFromInt(45)))
}

func TestResolveCommissionFallback(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	booking := env.seedBooking(t, env.node.Generate(), env.node.Generate(), "80", "1")

	rate, err := env.svc.ResolveCommission(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceFallback, rate.Source)
	assert.Equal(t, domain.TypePercentage, rate.Type)
	assert.True(t, rate.Value.Equal(decimal.NewFromInt(30)))

	_, err = env.svc.ResolveCommission(ctx, 12345)
	assert.ErrorIs(t, err, domain.ErrBookingNotFound)
}

func TestFallbackForPurpose(t *testing.T) {
	env := newTestEnv(t)
	gross := decimal.NewFromInt(200)

	assert.True(t, env.svc.FallbackFor(domain.FallbackDefault, gross).Commission.Equal(decimal.NewFromInt(60)))
	assert.True(t, env.svc.FallbackFor(domain.FallbackSnapshot, gross).Commission.Equal(decimal.NewFromInt(100)))
	assert.True(t, env.svc.FallbackFor(domain.FallbackAggregate, gross).Commission.Equal(decimal.NewFromInt(100)))
}

func TestRecordEarningStoresFraction(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	booking := env.seedBooking(t, env.node.Generate(), env.node.Generate(), "150", "2")

	result, err := env.svc.RecordEarning(ctx, booking.ID)
	require.NoError(t, err)
	require.NotNil(t, result.Earning)
	assert.False(t, result.Skipped)
	assert.True(t, result.Earning.CommissionRate.Equal(decimal.RequireFromString("0.3")), "got %s", result.Earning.CommissionRate)
	assert.True(t, result.Earning.TotalEarnings.Equal(decimal.NewFromInt(45)))

	// Re-recording replaces the row rather than adding one.
	_, err = env.svc.RecordEarning(ctx, booking.ID)
	require.NoError(t, err)

	var count int64
	require.NoError(t, env.db.Model(&domain.InstructorEarning{}).Where("booking_id = ?", booking.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRecordEarningSkipsPayrollAssigned(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	booking := env.seedBooking(t, env.node.Generate(), env.node.Generate(), "100", "1")
	payrollID := env.node.Generate()
	require.NoError(t, env.db.Create(&domain.InstructorEarning{
		ID:             env.node.Generate(),
		InstructorID:   booking.InstructorID,
		BookingID:      booking.ID,
		CommissionRate: decimal.RequireFromString("0.5"),
		TotalEarnings:  decimal.NewFromInt(50),
		LessonAmount:   decimal.NewFromInt(100),
		LessonDuration: decimal.NewFromInt(1),
		PayrollID:      &payrollID,
		CreatedAt:      testNow,
		UpdatedAt:      testNow,
	}).Error)

	result, err := env.svc.RecordEarning(ctx, booking.ID)
	require.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.True(t, result.Earning.TotalEarnings.Equal(decimal.NewFromInt(50)))
}

func TestRecordEarningRejectsOpenBooking(t *testing.T) {
	env := newTestEnv(t)
	booking := env.seedBooking(t, env.node.Generate(), env.node.Generate(), "100", "1")
	require.NoError(t, env.db.Model(&bookingdomain.Booking{}).Where("id = ?", booking.ID).Update("status", bookingdomain.BookingStatusConfirmed).Error)

	_, err := env.svc.RecordEarning(context.Background(), booking.ID)
	assert.ErrorIs(t, err, domain.ErrBookingNotCompleted)
}

func TestBackfillAndSumEarnings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedBooking(t, env.node.Generate(), env.node.Generate(), "100", "1")
	env.seedBooking(t, env.node.Generate(), env.node.Generate(), "200", "2")

	from := testNow.Add(-7 * 24 * time.Hour)
	to := testNow.Add(24 * time.Hour)

	result, err := env.svc.BackfillEarnings(ctx, from, to)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Scanned)
	assert.Equal(t, 2, result.Recorded)

	again, err := env.svc.BackfillEarnings(ctx, from, to)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Scanned)

	total, err := env.svc.SumEarningsCreatedBetween(ctx, from, to)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total.Count)
	assert.True(t, total.Total.Equal(decimal.NewFromInt(90)), "got %s", total.Total)

	_, err = env.svc.SumEarningsCreatedBetween(ctx, to, from)
	assert.ErrorIs(t, err, domain.ErrInvalidTimeRange)
}
