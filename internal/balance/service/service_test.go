package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/plannivo/finance/internal/audit/domain"
	auditrepo "github.com/plannivo/finance/internal/audit/repository"
	auditsvc "github.com/plannivo/finance/internal/audit/service"
	balancedomain "github.com/plannivo/finance/internal/balance/domain"
	"github.com/plannivo/finance/internal/besteffort"
	bookingdomain "github.com/plannivo/finance/internal/booking/domain"
	bookingrepo "github.com/plannivo/finance/internal/booking/repository"
	"github.com/plannivo/finance/internal/clock"
	"github.com/plannivo/finance/internal/config"
	ledgerdomain "github.com/plannivo/finance/internal/ledger/domain"
	ledgerrepo "github.com/plannivo/finance/internal/ledger/repository"
	ledgersvc "github.com/plannivo/finance/internal/ledger/service"
	"github.com/plannivo/finance/pkg/db"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

type testEnv struct {
	db     *gorm.DB
	node   *snowflake.Node
	runner *besteffort.Runner
	ledger ledgerdomain.Service
	svc    balancedomain.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dbConn, err := db.NewTest(t.Name())
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(
		&ledgerdomain.User{},
		&ledgerdomain.Transaction{},
		&auditdomain.AuditLog{},
		&bookingdomain.Booking{},
		&bookingdomain.CustomerPackage{},
		&bookingdomain.Rental{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zap.NewNop()
	fake := clock.NewFakeClock(testNow)

	runner := besteffort.NewRunner(besteffort.Params{Log: log})
	runner.Start()
	t.Cleanup(func() { _ = runner.Stop(context.Background()) })

	audit := auditsvc.NewService(auditsvc.Params{DB: dbConn, Log: log, GenID: node, Clock: fake, Repo: auditrepo.Provide()})
	users := ledgerrepo.Provide()
	ledger := ledgersvc.NewService(ledgersvc.Params{
		DB:       dbConn,
		Log:      log,
		GenID:    node,
		Clock:    fake,
		Repo:     users,
		AuditSvc: audit,
		Runner:   runner,
	})

	return &testEnv{
		db:     dbConn,
		node:   node,
		runner: runner,
		ledger: ledger,
		svc: NewService(Params{
			DB:       dbConn,
			Log:      log,
			Clock:    fake,
			Ledger:   ledger,
			Users:    users,
			Bookings: bookingrepo.Provide(),
			AuditSvc: audit,
			Finance:  config.NewStaticFinanceConfig(config.DefaultFinanceConfig()),
			Runner:   runner,
		}),
	}
}

func (e *testEnv) seedUser(t *testing.T) ledgerdomain.User {
	t.Helper()
	user := ledgerdomain.User{
		ID:         e.node.Generate(),
		Name:       "Student",
		Email:      e.node.Generate().String() + "@example.com",
		Balance:    decimal.Zero,
		TotalSpent: decimal.Zero,
		Currency:   "EUR",
		CreatedAt:  testNow,
		UpdatedAt:  testNow,
	}
	require.NoError(t, e.db.Create(&user).Error)
	return user
}

func (e *testEnv) post(t *testing.T, userID snowflake.ID, txType ledgerdomain.TransactionType, amount string) {
	t.Helper()
	_, err := e.ledger.CreateTransaction(context.Background(), ledgerdomain.CreateTransactionRequest{
		UserID: userID,
		Type:   txType,
		Amount: d(amount),
	})
	require.NoError(t, err)
}

func (e *testEnv) setStoredBalance(t *testing.T, userID snowflake.ID, balance string) {
	t.Helper()
	require.NoError(t, e.db.Model(&ledgerdomain.User{}).Where("id = ?", userID).Update("balance", d(balance)).Error)
}

func (e *testEnv) seedPackage(t *testing.T, userID snowflake.ID, hours, price string, status bookingdomain.PackageStatus) bookingdomain.CustomerPackage {
	t.Helper()
	pkg := bookingdomain.CustomerPackage{
		ID:             e.node.Generate(),
		UserID:         userID,
		Name:           "Lessons",
		TotalHours:     d(hours),
		OpeningHours:   d(hours),
		UsedHours:      decimal.Zero,
		RemainingHours: d(hours),
		PurchasePrice:  d(price),
		Status:         status,
		PurchasedAt:    testNow.AddDate(0, -1, 0),
		UpdatedAt:      testNow,
	}
	require.NoError(t, e.db.Create(&pkg).Error)
	return pkg
}

func (e *testEnv) seedBooking(t *testing.T, studentID snowflake.ID, day int, hours, amount string) bookingdomain.Booking {
	t.Helper()
	booking := bookingdomain.Booking{
		ID:           e.node.Generate(),
		StudentID:    studentID,
		InstructorID: e.node.Generate(),
		ServiceID:    e.node.Generate(),
		ServiceType:  bookingdomain.ServiceTypeLesson,
		Date:         time.Date(2026, 6, day, 0, 0, 0, 0, time.UTC),
		StartHour:    d("10"),
		Duration:     d(hours),
		Amount:       d(amount),
		Status:       bookingdomain.BookingStatusConfirmed,
		CreatedAt:    testNow,
		UpdatedAt:    testNow,
	}
	require.NoError(t, e.db.Create(&booking).Error)
	return booking
}

func (e *testEnv) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.runner.Drain(ctx))
}

func TestGetAccountHealsDrift(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t)
	env.post(t, user.ID, ledgerdomain.TransactionTypePayment, "100")
	env.setStoredBalance(t, user.ID, "42")

	account, err := env.svc.GetAccount(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, account.Corrected)
	assert.True(t, account.Balance.Equal(d("100")))

	var stored ledgerdomain.User
	require.NoError(t, env.db.First(&stored, "id = ?", user.ID).Error)
	assert.True(t, stored.Balance.Equal(d("100")))

	env.drain(t)
	var logs []auditdomain.AuditLog
	require.NoError(t, env.db.Where("action = ?", auditdomain.ActionBalanceCorrected).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, "42.00", logs[0].Metadata["previous_balance"])
	assert.Equal(t, "100.00", logs[0].Metadata["corrected_balance"])
}

func TestGetAccountToleratesEpsilon(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t)
	env.post(t, user.ID, ledgerdomain.TransactionTypePayment, "100")
	env.setStoredBalance(t, user.ID, "100.01")

	account, err := env.svc.GetAccount(context.Background(), user.ID)
	require.NoError(t, err)
	assert.False(t, account.Corrected)
	assert.True(t, account.Balance.Equal(d("100.01")))
}

func TestGetAccountUnknownUser(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.svc.GetAccount(context.Background(), 123)
	assert.ErrorIs(t, err, ledgerdomain.ErrUserNotFound)
}

func TestComputeUsableBalanceNetsObligations(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t)
	env.post(t, user.ID, ledgerdomain.TransactionTypePayment, "500")

	env.seedPackage(t, user.ID, "10", "300", bookingdomain.PackageStatusActive)
	env.seedPackage(t, user.ID, "5", "120", bookingdomain.PackageStatusExpired)
	env.seedBooking(t, user.ID, 1, "4", "160")
	env.seedBooking(t, user.ID, 2, "4", "160")
	env.seedBooking(t, user.ID, 3, "4", "160")
	require.NoError(t, env.db.Create(&bookingdomain.Rental{
		ID:         env.node.Generate(),
		UserID:     user.ID,
		ServiceID:  env.node.Generate(),
		TotalPrice: d("50"),
		Status:     "active",
		RentalDate: testNow,
		CreatedAt:  testNow,
	}).Error)

	usable, err := env.svc.ComputeUsableBalance(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, usable.CashBalance.Equal(d("500")))
	assert.True(t, usable.UnpaidIndividual.Equal(d("80")), "got %s", usable.UnpaidIndividual)
	assert.True(t, usable.UnpaidPackages.Equal(d("420")))
	assert.True(t, usable.UnpaidRentals.Equal(d("50")))
	assert.True(t, usable.ActualBalance.Equal(d("-50")), "got %s", usable.ActualBalance)
	assert.True(t, usable.PackageHoursUsed.Equal(d("10")))
	assert.True(t, usable.RemainingPackageHours.IsZero())
}

func TestRecomputePackageUsageWritesProjection(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t)
	first := env.seedPackage(t, user.ID, "6", "180", bookingdomain.PackageStatusActive)
	second := env.seedPackage(t, user.ID, "4", "120", bookingdomain.PackageStatusActive)
	env.seedBooking(t, user.ID, 1, "5", "200")

	projections, err := env.svc.RecomputePackageUsage(context.Background(), user.ID)
	require.NoError(t, err)
	require.Len(t, projections, 2)

	var packages []bookingdomain.CustomerPackage
	require.NoError(t, env.db.Order("purchased_at, id").Find(&packages).Error)
	byID := map[snowflake.ID]bookingdomain.CustomerPackage{}
	for _, p := range packages {
		byID[p.ID] = p
	}
	assert.True(t, byID[first.ID].UsedHours.Equal(d("3")))
	assert.True(t, byID[first.ID].RemainingHours.Equal(d("3")))
	assert.True(t, byID[second.ID].UsedHours.Equal(d("2")))
	assert.True(t, byID[second.ID].RemainingHours.Equal(d("2")))

	// the stored projection is not an input: a second pass is identical
	again, err := env.svc.RecomputePackageUsage(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, projections, again)
}

func TestDeleteBookingKeepsHistoricalConsumption(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t)
	env.post(t, user.ID, ledgerdomain.TransactionTypePayment, "100")
	env.seedPackage(t, user.ID, "4", "160", bookingdomain.PackageStatusActive)
	deleted := env.seedBooking(t, user.ID, 1, "2", "80")
	env.seedBooking(t, user.ID, 2, "3", "120")

	result, err := env.svc.DeleteBooking(context.Background(), balancedomain.DeleteBookingRequest{
		BookingID: deleted.ID,
		Refund:    true,
		Reason:    "instructor sick",
	})
	require.NoError(t, err)
	require.NotNil(t, result.Refund)
	assert.Equal(t, ledgerdomain.TransactionTypeBookingDeletedRefund, result.Refund.Type)
	assert.True(t, result.Refund.Amount.Equal(d("80")))
	assert.True(t, result.Balance.Balance.Equal(d("180")))

	var remaining int64
	require.NoError(t, env.db.Model(&bookingdomain.Booking{}).Where("id = ?", deleted.ID).Count(&remaining).Error)
	assert.Zero(t, remaining)

	// the deleted booking still consumed two package hours, leaving one
	// uncovered hour of the second booking at 40 per hour
	usable, err := env.svc.ComputeUsableBalance(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, usable.PackageHoursUsed.Equal(d("4")))
	assert.True(t, usable.UnpaidIndividual.Equal(d("40")), "got %s", usable.UnpaidIndividual)
	require.Len(t, result.Packages, 1)
	assert.True(t, result.Packages[0].UsedHours.Equal(d("4")))
}

func TestDeleteBookingWithoutRefundSyncsOnly(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t)
	env.post(t, user.ID, ledgerdomain.TransactionTypePayment, "30")
	booking := env.seedBooking(t, user.ID, 1, "1", "40")

	result, err := env.svc.DeleteBooking(context.Background(), balancedomain.DeleteBookingRequest{BookingID: booking.ID})
	require.NoError(t, err)
	assert.Nil(t, result.Refund)
	assert.True(t, result.Balance.Balance.Equal(d("30")))

	_, err = env.svc.DeleteBooking(context.Background(), balancedomain.DeleteBookingRequest{BookingID: booking.ID})
	assert.ErrorIs(t, err, bookingdomain.ErrBookingNotFound)
}
