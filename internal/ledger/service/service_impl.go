package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/plannivo/finance/internal/audit/domain"
	"github.com/plannivo/finance/internal/besteffort"
	"github.com/plannivo/finance/internal/clock"
	ledgerdomain "github.com/plannivo/finance/internal/ledger/domain"
	obscontext "github.com/plannivo/finance/internal/observability/context"
	obslogger "github.com/plannivo/finance/internal/observability/logger"
	obsmetrics "github.com/plannivo/finance/internal/observability/metrics"
	revenuedomain "github.com/plannivo/finance/internal/revenue/domain"
	"github.com/plannivo/finance/pkg/money"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       ledgerdomain.Repository
	AuditSvc   auditdomain.Service
	Revenue    revenuedomain.Service
	Runner     besteffort.Submitter
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       ledgerdomain.Repository
	auditSvc   auditdomain.Service
	revenue    revenuedomain.Service
	runner     besteffort.Submitter
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("ledger.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		auditSvc:   p.AuditSvc,
		revenue:    p.Revenue,
		runner:     p.Runner,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) CreateTransaction(ctx context.Context, req ledgerdomain.CreateTransactionRequest) (*ledgerdomain.TransactionResult, error) {
	var result *ledgerdomain.TransactionResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res, err := s.CreateTransactionTx(ctx, tx, req)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.PublishCreated(ctx, result.Transaction)
	return result, nil
}

// PublishCreated runs the side effects of a committed transaction. Callers of
// CreateTransactionTx invoke it once their own transaction has committed.
func (s *Service) PublishCreated(ctx context.Context, txn *ledgerdomain.Transaction) {
	if txn == nil {
		return
	}
	s.obsMetrics.RecordLedgerTransaction(ctx, string(txn.Type), "created")
	s.afterCommit(ctx, auditdomain.ActionTransactionCreated, txn)
}

func (s *Service) CreateTransactionTx(ctx context.Context, tx *gorm.DB, req ledgerdomain.CreateTransactionRequest) (*ledgerdomain.TransactionResult, error) {
	if req.UserID == 0 {
		return nil, ledgerdomain.ErrInvalidUser
	}
	txType := ledgerdomain.TransactionType(strings.ToLower(strings.TrimSpace(string(req.Type))))
	if !txType.Valid() {
		return nil, ledgerdomain.ErrInvalidType
	}
	amount := money.Round(req.Amount)
	if !amount.IsPositive() {
		return nil, ledgerdomain.ErrInvalidAmount
	}
	status := ledgerdomain.TransactionStatus(strings.ToLower(strings.TrimSpace(string(req.Status))))
	if status == "" {
		status = ledgerdomain.TransactionStatusCompleted
	}
	if !status.Valid() {
		return nil, ledgerdomain.ErrInvalidStatus
	}

	user, err := s.repo.FindUser(ctx, tx, req.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ledgerdomain.ErrUserNotFound
	}
	currency, err := resolveCurrency(user.Currency, req.Currency)
	if err != nil {
		return nil, err
	}

	txn := &ledgerdomain.Transaction{
		ID:            s.genID.Generate(),
		UserID:        user.ID,
		Type:          txType,
		Amount:        amount,
		Currency:      currency,
		Status:        status,
		PaymentMethod: strings.ToLower(strings.TrimSpace(req.PaymentMethod)),
		BookingID:     req.BookingID,
		RentalID:      req.RentalID,
		Description:   strings.TrimSpace(req.Description),
		CreatedAt:     s.clock.Now(),
	}
	if err := s.repo.InsertTransaction(ctx, tx, txn); err != nil {
		return nil, err
	}

	balance, err := s.SyncBalance(ctx, tx, user.ID)
	if err != nil {
		return nil, err
	}
	return &ledgerdomain.TransactionResult{Transaction: txn, Balance: balance}, nil
}

// DeleteTransaction is the explicit reversal of a ledger row. The owner's
// cached balance is recomputed in the same transaction.
func (s *Service) DeleteTransaction(ctx context.Context, id snowflake.ID) (*ledgerdomain.Balance, error) {
	var (
		deleted *ledgerdomain.Transaction
		balance ledgerdomain.Balance
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txn, err := s.repo.FindTransaction(ctx, tx, id)
		if err != nil {
			return err
		}
		if txn == nil {
			return ledgerdomain.ErrTransactionNotFound
		}
		if err := s.repo.DeleteTransaction(ctx, tx, id); err != nil {
			return err
		}
		balance, err = s.SyncBalance(ctx, tx, txn.UserID)
		if err != nil {
			return err
		}
		deleted = txn
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.obsMetrics.RecordLedgerTransaction(ctx, string(deleted.Type), "deleted")
	s.afterCommit(ctx, auditdomain.ActionTransactionDeleted, deleted)
	return &balance, nil
}

func (s *Service) ComputeBalance(ctx context.Context, userID snowflake.ID) (ledgerdomain.Balance, error) {
	return s.ComputeBalanceIn(ctx, s.db, userID)
}

// ComputeBalanceIn sums the user's signed transactions. Every row counts
// whatever its status.
func (s *Service) ComputeBalanceIn(ctx context.Context, db *gorm.DB, userID snowflake.ID) (ledgerdomain.Balance, error) {
	totals, err := s.repo.SumByType(ctx, db, userID)
	if err != nil {
		return ledgerdomain.Balance{}, fmt.Errorf("sum transactions: %w", err)
	}
	log := obslogger.WithContext(ctx, s.log)
	return ledgerdomain.Sum(totals, func(t ledgerdomain.TypeTotal) {
		log.Warn("ignoring unknown transaction type",
			zap.String("user_id", userID.String()),
			zap.String("type", string(t.Type)),
			zap.String("total", t.Total.StringFixed(money.Places)),
		)
	}), nil
}

// SyncBalance recomputes the balance from the ledger and stores it on the
// user row. It must run inside the caller's write transaction.
func (s *Service) SyncBalance(ctx context.Context, tx *gorm.DB, userID snowflake.ID) (ledgerdomain.Balance, error) {
	balance, err := s.ComputeBalanceIn(ctx, tx, userID)
	if err != nil {
		return ledgerdomain.Balance{}, err
	}
	if err := s.repo.UpdateUserBalance(ctx, tx, userID, balance.Balance, balance.TotalSpent, s.clock.Now()); err != nil {
		return ledgerdomain.Balance{}, fmt.Errorf("store balance: %w", err)
	}
	return balance, nil
}

func (s *Service) ListCompletedTransactions(ctx context.Context, types []ledgerdomain.TransactionType, from, to time.Time) ([]ledgerdomain.Transaction, error) {
	if !from.Before(to) {
		return nil, ledgerdomain.ErrInvalidTimeRange
	}
	return s.repo.ListCompletedTransactions(ctx, s.db, types, from, to)
}

// afterCommit hands the audit entry and the revenue snapshot to the
// best-effort runner. Neither can fail the committed write.
func (s *Service) afterCommit(ctx context.Context, action string, txn *ledgerdomain.Transaction) {
	if s.runner == nil {
		return
	}

	txnID := txn.ID.String()
	userID := txn.UserID
	metadata := map[string]any{
		"type":     string(txn.Type),
		"amount":   txn.Amount.StringFixed(money.Places),
		"currency": txn.Currency,
		"status":   string(txn.Status),
	}
	if txn.BookingID != nil {
		metadata["booking_id"] = txn.BookingID.String()
	}
	if txn.RentalID != nil {
		metadata["rental_id"] = txn.RentalID.String()
	}

	if s.auditSvc != nil {
		s.runner.Submit("audit."+action, func(taskCtx context.Context) error {
			return s.auditSvc.AuditLog(obscontext.Detach(taskCtx, ctx), auditdomain.Entry{
				Action:     action,
				TargetType: "transaction",
				TargetID:   txnID,
				SubjectID:  &userID,
				Metadata:   metadata,
			})
		})
	}

	if s.revenue == nil || action != auditdomain.ActionTransactionCreated {
		return
	}
	switch {
	case txn.BookingID != nil:
		s.revenue.Submit(ctx, revenuedomain.EntityRef{Type: revenuedomain.EntityBooking, ID: *txn.BookingID})
	case txn.RentalID != nil:
		s.revenue.Submit(ctx, revenuedomain.EntityRef{Type: revenuedomain.EntityRental, ID: *txn.RentalID})
	}
}

// resolveCurrency enforces the single account currency.
func resolveCurrency(account, requested string) (string, error) {
	account = strings.ToUpper(strings.TrimSpace(account))
	requested = strings.ToUpper(strings.TrimSpace(requested))
	switch {
	case requested == "" && account == "":
		return "", ledgerdomain.ErrInvalidCurrency
	case requested == "":
		return account, nil
	case account != "" && requested != account:
		return "", ledgerdomain.ErrInvalidCurrency
	default:
		return requested, nil
	}
}
