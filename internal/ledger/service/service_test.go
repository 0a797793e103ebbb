package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/plannivo/finance/internal/audit/domain"
	auditrepo "github.com/plannivo/finance/internal/audit/repository"
	auditsvc "github.com/plannivo/finance/internal/audit/service"
	"github.com/plannivo/finance/internal/besteffort"
	"github.com/plannivo/finance/internal/clock"
	ledgerdomain "github.com/plannivo/finance/internal/ledger/domain"
	"github.com/plannivo/finance/internal/ledger/repository"
	revenuedomain "github.com/plannivo/finance/internal/revenue/domain"
	"github.com/plannivo/finance/pkg/db"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var testNow = time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

type recordingRevenue struct {
	revenuedomain.Service

	mu   sync.Mutex
	refs []revenuedomain.EntityRef
}

func (r *recordingRevenue) Submit(_ context.Context, ref revenuedomain.EntityRef) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refs = append(r.refs, ref)
	return true
}

func (r *recordingRevenue) submitted() []revenuedomain.EntityRef {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]revenuedomain.EntityRef(nil), r.refs...)
}

type testEnv struct {
	db      *gorm.DB
	node    *snowflake.Node
	runner  *besteffort.Runner
	revenue *recordingRevenue
	audit   auditdomain.Service
	svc     ledgerdomain.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dbConn, err := db.NewTest(t.Name())
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(&ledgerdomain.User{}, &ledgerdomain.Transaction{}, &auditdomain.AuditLog{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	log := zap.NewNop()
	fake := clock.NewFakeClock(testNow)

	runner := besteffort.NewRunner(besteffort.Params{Log: log})
	runner.Start()
	t.Cleanup(func() { _ = runner.Stop(context.Background()) })

	audit := auditsvc.NewService(auditsvc.Params{DB: dbConn, Log: log, GenID: node, Clock: fake, Repo: auditrepo.Provide()})
	revenue := &recordingRevenue{}

	return &testEnv{
		db:      dbConn,
		node:    node,
		runner:  runner,
		revenue: revenue,
		audit:   audit,
		svc: NewService(Params{
			DB:       dbConn,
			Log:      log,
			GenID:    node,
			Clock:    fake,
			Repo:     repository.Provide(),
			AuditSvc: audit,
			Revenue:  revenue,
			Runner:   runner,
		}),
	}
}

func (e *testEnv) seedUser(t *testing.T, balance string) ledgerdomain.User {
	t.Helper()
	user := ledgerdomain.User{
		ID:         e.node.Generate(),
		Name:       "Student",
		Email:      e.node.Generate().String() + "@example.com",
		Balance:    decimal.RequireFromString(balance),
		TotalSpent: decimal.Zero,
		Currency:   "EUR",
		CreatedAt:  testNow,
		UpdatedAt:  testNow,
	}
	require.NoError(t, e.db.Create(&user).Error)
	return user
}

func (e *testEnv) storedUser(t *testing.T, id snowflake.ID) ledgerdomain.User {
	t.Helper()
	var user ledgerdomain.User
	require.NoError(t, e.db.First(&user, "id = ?", id).Error)
	return user
}

func (e *testEnv) drain(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.runner.Drain(ctx))
}

func create(t *testing.T, env *testEnv, userID snowflake.ID, txType ledgerdomain.TransactionType, amount string) *ledgerdomain.TransactionResult {
	t.Helper()
	res, err := env.svc.CreateTransaction(context.Background(), ledgerdomain.CreateTransactionRequest{
		UserID: userID,
		Type:   txType,
		Amount: decimal.RequireFromString(amount),
	})
	require.NoError(t, err)
	return res
}

func TestSumAppliesSignTable(t *testing.T) {
	var unknown []ledgerdomain.TransactionType
	got := ledgerdomain.Sum([]ledgerdomain.TypeTotal{
		{Type: ledgerdomain.TransactionTypePayment, Total: decimal.NewFromInt(100)},
		{Type: ledgerdomain.TransactionTypeCredit, Total: decimal.NewFromInt(20)},
		{Type: ledgerdomain.TransactionTypeRefund, Total: decimal.NewFromInt(5)},
		{Type: ledgerdomain.TransactionTypeBookingDeletedRefund, Total: decimal.NewFromInt(5)},
		{Type: ledgerdomain.TransactionTypeCharge, Total: decimal.NewFromInt(30)},
		{Type: ledgerdomain.TransactionTypeDebit, Total: decimal.NewFromInt(10)},
		{Type: ledgerdomain.TransactionTypeServicePayment, Total: decimal.NewFromInt(15)},
		{Type: ledgerdomain.TransactionTypeRentalPayment, Total: decimal.NewFromInt(25)},
		{Type: "bonus", Total: decimal.NewFromInt(999)},
	}, func(t ledgerdomain.TypeTotal) { unknown = append(unknown, t.Type) })

	assert.Equal(t, "50", got.Balance.String())
	assert.Equal(t, "120", got.TotalSpent.String())
	assert.Equal(t, []ledgerdomain.TransactionType{"bonus"}, unknown)
}

func TestPaymentThenChargeRestoresBalance(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "0")

	create(t, env, user.ID, ledgerdomain.TransactionTypeCredit, "40")
	before, err := env.svc.ComputeBalance(context.Background(), user.ID)
	require.NoError(t, err)

	paid := create(t, env, user.ID, ledgerdomain.TransactionTypePayment, "75.50")
	assert.True(t, paid.Balance.Balance.Equal(before.Balance.Add(decimal.RequireFromString("75.50"))))

	charged := create(t, env, user.ID, ledgerdomain.TransactionTypeCharge, "75.50")
	assert.True(t, charged.Balance.Balance.Equal(before.Balance))

	stored := env.storedUser(t, user.ID)
	assert.True(t, stored.Balance.Equal(before.Balance))
	assert.True(t, stored.TotalSpent.Equal(decimal.RequireFromString("115.50")))
}

func TestCreateTransactionValidatesBeforeWriting(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "0")

	cases := []struct {
		name string
		req  ledgerdomain.CreateTransactionRequest
		want error
	}{
		{"unknown type", ledgerdomain.CreateTransactionRequest{UserID: user.ID, Type: "bonus", Amount: decimal.NewFromInt(1)}, ledgerdomain.ErrInvalidType},
		{"zero amount", ledgerdomain.CreateTransactionRequest{UserID: user.ID, Type: ledgerdomain.TransactionTypePayment}, ledgerdomain.ErrInvalidAmount},
		{"negative amount", ledgerdomain.CreateTransactionRequest{UserID: user.ID, Type: ledgerdomain.TransactionTypePayment, Amount: decimal.NewFromInt(-5)}, ledgerdomain.ErrInvalidAmount},
		{"missing user", ledgerdomain.CreateTransactionRequest{Type: ledgerdomain.TransactionTypePayment, Amount: decimal.NewFromInt(1)}, ledgerdomain.ErrInvalidUser},
		{"unknown user", ledgerdomain.CreateTransactionRequest{UserID: 42, Type: ledgerdomain.TransactionTypePayment, Amount: decimal.NewFromInt(1)}, ledgerdomain.ErrUserNotFound},
		{"foreign currency", ledgerdomain.CreateTransactionRequest{UserID: user.ID, Type: ledgerdomain.TransactionTypePayment, Amount: decimal.NewFromInt(1), Currency: "usd"}, ledgerdomain.ErrInvalidCurrency},
		{"bad status", ledgerdomain.CreateTransactionRequest{UserID: user.ID, Type: ledgerdomain.TransactionTypePayment, Amount: decimal.NewFromInt(1), Status: "settled"}, ledgerdomain.ErrInvalidStatus},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.svc.CreateTransaction(context.Background(), tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	var count int64
	require.NoError(t, env.db.Model(&ledgerdomain.Transaction{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestUnknownStoredTypeIsIgnored(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "0")
	create(t, env, user.ID, ledgerdomain.TransactionTypePayment, "10")

	require.NoError(t, env.db.Create(&ledgerdomain.Transaction{
		ID:        env.node.Generate(),
		UserID:    user.ID,
		Type:      "legacy_bonus",
		Amount:    decimal.NewFromInt(500),
		Currency:  "EUR",
		Status:    ledgerdomain.TransactionStatusCompleted,
		CreatedAt: testNow,
	}).Error)

	got, err := env.svc.ComputeBalance(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(decimal.NewFromInt(10)))
}

func TestDeleteTransactionRecomputesBalance(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "0")
	create(t, env, user.ID, ledgerdomain.TransactionTypePayment, "100")
	charge := create(t, env, user.ID, ledgerdomain.TransactionTypeCharge, "30")

	balance, err := env.svc.DeleteTransaction(context.Background(), charge.Transaction.ID)
	require.NoError(t, err)
	assert.True(t, balance.Balance.Equal(decimal.NewFromInt(100)))
	assert.True(t, env.storedUser(t, user.ID).Balance.Equal(decimal.NewFromInt(100)))

	_, err = env.svc.DeleteTransaction(context.Background(), charge.Transaction.ID)
	assert.ErrorIs(t, err, ledgerdomain.ErrTransactionNotFound)
}

func TestCreateTransactionSideEffectsRunAfterCommit(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "0")
	bookingID := env.node.Generate()

	_, err := env.svc.CreateTransaction(context.Background(), ledgerdomain.CreateTransactionRequest{
		UserID:    user.ID,
		Type:      ledgerdomain.TransactionTypeServicePayment,
		Amount:    decimal.NewFromInt(60),
		BookingID: &bookingID,
	})
	require.NoError(t, err)
	env.drain(t)

	assert.Equal(t, []revenuedomain.EntityRef{{Type: revenuedomain.EntityBooking, ID: bookingID}}, env.revenue.submitted())

	var logs []auditdomain.AuditLog
	require.NoError(t, env.db.Where("action = ?", auditdomain.ActionTransactionCreated).Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, "60.00", logs[0].Metadata["amount"])
	assert.Equal(t, user.ID, *logs[0].SubjectID)
	assert.Zero(t, env.runner.Failures())
}
