package service

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	bookingdomain "github.com/plannivo/finance/internal/booking/domain"
	bookingrepo "github.com/plannivo/finance/internal/booking/repository"
	"github.com/plannivo/finance/internal/clock"
	commissiondomain "github.com/plannivo/finance/internal/commission/domain"
	commissionrepo "github.com/plannivo/finance/internal/commission/repository"
	commissionsvc "github.com/plannivo/finance/internal/commission/service"
	"github.com/plannivo/finance/internal/config"
	ledgerdomain "github.com/plannivo/finance/internal/ledger/domain"
	ledgerrepo "github.com/plannivo/finance/internal/ledger/repository"
	ledgersvc "github.com/plannivo/finance/internal/ledger/service"
	"github.com/plannivo/finance/internal/report/domain"
	settingsdomain "github.com/plannivo/finance/internal/settings/domain"
	settingsrepo "github.com/plannivo/finance/internal/settings/repository"
	settingssvc "github.com/plannivo/finance/internal/settings/service"
	"github.com/plannivo/finance/pkg/db"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

type countingResolver struct {
	settingsdomain.Resolver
	calls atomic.Int64
}

func (c *countingResolver) Resolve(ctx context.Context, rc settingsdomain.ResolveContext) *settingsdomain.EffectiveSettings {
	c.calls.Add(1)
	return c.Resolver.Resolve(ctx, rc)
}

type testEnv struct {
	db       *gorm.DB
	node     *snowflake.Node
	ledger   ledgerdomain.Service
	resolver *countingResolver
	user     ledgerdomain.User
	svc      domain.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dbConn, err := db.NewTest(t.Name())
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(
		&ledgerdomain.User{},
		&ledgerdomain.Transaction{},
		&bookingdomain.Booking{},
		&commissiondomain.InstructorEarning{},
		&commissiondomain.BookingCustomCommission{},
		&commissiondomain.InstructorServiceCommission{},
		&commissiondomain.InstructorDefaultCommission{},
		&settingsdomain.FinancialSettings{},
		&settingsdomain.SettingsOverride{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zap.NewNop()
	fake := clock.NewFakeClock(testNow)

	sRepo := settingsrepo.Provide()
	_, err = settingssvc.New(settingssvc.Params{DB: dbConn, Log: log, GenID: node, Clock: fake, Repo: sRepo}).
		Create(context.Background(), settingsdomain.CreateSettingsRequest{
			TaxRatePct: d("10"),
			PaymentMethodFees: settingsdomain.FeeSchedule{
				"card": {Pct: d("3"), Fixed: d("0.5")},
			},
			Activate: true,
		})
	require.NoError(t, err)

	bookings := bookingrepo.Provide()
	ledger := ledgersvc.NewService(ledgersvc.Params{
		DB:    dbConn,
		Log:   log,
		GenID: node,
		Clock: fake,
		Repo:  ledgerrepo.Provide(),
	})
	commissions := commissionsvc.New(commissionsvc.Params{
		DB:       dbConn,
		Log:      log,
		GenID:    node,
		Clock:    fake,
		Repo:     commissionrepo.Provide(),
		Bookings: bookings,
		Finance:  config.NewStaticFinanceConfig(config.DefaultFinanceConfig()),
	})
	resolver := &countingResolver{
		Resolver: settingssvc.NewResolver(settingssvc.ResolverParams{DB: dbConn, Log: log, Repo: sRepo}),
	}

	user := ledgerdomain.User{
		ID:        node.Generate(),
		Name:      "Student",
		Email:     "student@example.com",
		Currency:  "EUR",
		CreatedAt: testNow,
		UpdatedAt: testNow,
	}
	require.NoError(t, dbConn.Create(&user).Error)

	return &testEnv{
		db:       dbConn,
		node:     node,
		ledger:   ledger,
		resolver: resolver,
		user:     user,
		svc: NewService(Params{
			DB:          dbConn,
			Log:         log,
			Ledger:      ledger,
			Bookings:    bookings,
			Commissions: commissions,
			Settings:    resolver,
		}),
	}
}

func (e *testEnv) post(t *testing.T, txType ledgerdomain.TransactionType, amount, method string, bookingID *snowflake.ID) {
	t.Helper()
	_, err := e.ledger.CreateTransaction(context.Background(), ledgerdomain.CreateTransactionRequest{
		UserID:        e.user.ID,
		Type:          txType,
		Amount:        d(amount),
		PaymentMethod: method,
		BookingID:     bookingID,
	})
	require.NoError(t, err)
}

// seedPeriod posts a linked lesson payment of 100 by card, an unlinked lesson
// payment of 50, a rental payment of 80 and a refund of 20.
func (e *testEnv) seedPeriod(t *testing.T) bookingdomain.Booking {
	t.Helper()
	booking := bookingdomain.Booking{
		ID:           e.node.Generate(),
		StudentID:    e.user.ID,
		InstructorID: e.node.Generate(),
		ServiceID:    e.node.Generate(),
		ServiceType:  bookingdomain.ServiceTypeLesson,
		Date:         testNow.AddDate(0, -2, 0),
		StartHour:    d("9"),
		Duration:     d("2"),
		Amount:       d("100"),
		Status:       bookingdomain.BookingStatusCompleted,
		CreatedAt:    testNow,
		UpdatedAt:    testNow,
	}
	require.NoError(t, e.db.Create(&booking).Error)

	e.post(t, ledgerdomain.TransactionTypeServicePayment, "100", "card", &booking.ID)
	e.post(t, ledgerdomain.TransactionTypePayment, "50", "wallet", nil)
	e.post(t, ledgerdomain.TransactionTypeRentalPayment, "80", "wallet", nil)
	e.post(t, ledgerdomain.TransactionTypeRefund, "20", "wallet", nil)
	return booking
}

func window() domain.Request {
	return domain.Request{Start: testNow.Add(-time.Hour), End: testNow.Add(time.Hour)}
}

func TestNetRevenueEstimatesCommissionWithoutEarnings(t *testing.T) {
	env := newTestEnv(t)
	env.seedPeriod(t)

	got, err := env.svc.ComputeNetRevenue(context.Background(), window())
	require.NoError(t, err)

	assert.Equal(t, domain.CommissionSourceEstimated, got.CommissionSource)
	assert.Equal(t, 3, got.TransactionCount)
	assert.Equal(t, 1, got.RefundCount)
	assert.True(t, got.Gross.Equal(d("230")))
	assert.True(t, got.Refunds.Equal(d("20")))
	// 30% default on the linked booking, 50% aggregate fallback on the rest
	assert.True(t, got.InstructorEarnings.Equal(d("55")), "got %s", got.InstructorEarnings)
	assert.True(t, got.Tax.Equal(d("23")))
	assert.True(t, got.PaymentFees.Equal(d("3.5")))
	assert.True(t, got.Net.Equal(d("128.5")), "got %s", got.Net)
}

func TestNetRevenuePrefersRecordedEarnings(t *testing.T) {
	env := newTestEnv(t)
	booking := env.seedPeriod(t)

	require.NoError(t, env.db.Create(&commissiondomain.InstructorEarning{
		ID:             env.node.Generate(),
		InstructorID:   booking.InstructorID,
		BookingID:      booking.ID,
		CommissionRate: d("0.7"),
		TotalEarnings:  d("70"),
		LessonAmount:   d("100"),
		LessonDuration: d("2"),
		CreatedAt:      testNow,
		UpdatedAt:      testNow,
	}).Error)

	got, err := env.svc.ComputeNetRevenue(context.Background(), window())
	require.NoError(t, err)
	assert.Equal(t, domain.CommissionSourceActual, got.CommissionSource)
	assert.Equal(t, int64(1), got.EarningsCount)
	assert.True(t, got.InstructorEarnings.Equal(d("70")))
	assert.True(t, got.Net.Equal(d("113.5")), "got %s", got.Net)

	costs := got.InstructorEarnings.Add(got.Tax).Add(got.Insurance).Add(got.Equipment).Add(got.PaymentFees)
	assert.True(t, got.Net.Equal(got.Gross.Sub(got.Refunds).Sub(costs)))
}

func TestNetRevenueFiltersByServiceType(t *testing.T) {
	env := newTestEnv(t)
	env.seedPeriod(t)

	req := window()
	req.ServiceType = "lesson"
	lessons, err := env.svc.ComputeNetRevenue(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, lessons.Gross.Equal(d("150")))

	req.ServiceType = "Rental"
	rentals, err := env.svc.ComputeNetRevenue(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, rentals.Gross.Equal(d("80")))
	assert.True(t, rentals.InstructorEarnings.IsZero())

	req.ServiceType = "boat"
	_, err = env.svc.ComputeNetRevenue(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrInvalidServiceType)
}

func TestNetRevenueResolvesEachContextOnce(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 5; i++ {
		env.post(t, ledgerdomain.TransactionTypePayment, "10", "wallet", nil)
	}
	env.post(t, ledgerdomain.TransactionTypePayment, "10", "card", nil)

	_, err := env.svc.ComputeNetRevenue(context.Background(), window())
	require.NoError(t, err)
	assert.Equal(t, int64(2), env.resolver.calls.Load())

	// the cache is per call
	_, err = env.svc.ComputeNetRevenue(context.Background(), window())
	require.NoError(t, err)
	assert.Equal(t, int64(4), env.resolver.calls.Load())
}

func TestNetRevenueRejectsEmptyWindow(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.ComputeNetRevenue(context.Background(), domain.Request{Start: testNow, End: testNow})
	assert.ErrorIs(t, err, domain.ErrInvalidTimeRange)
}

func TestResolveContextOmitsUnsetServiceID(t *testing.T) {
	txn := ledgerdomain.Transaction{Type: ledgerdomain.TransactionTypeServicePayment, PaymentMethod: " Card "}

	rc := resolveContext(txn, &bookingdomain.Booking{ServiceType: bookingdomain.ServiceTypeLesson})
	assert.Empty(t, rc.ServiceID)
	assert.Equal(t, "card", rc.PaymentMethod)

	rc = resolveContext(txn, &bookingdomain.Booking{ServiceID: 42, ServiceType: bookingdomain.ServiceTypeLesson})
	assert.Equal(t, "42", rc.ServiceID)
}
