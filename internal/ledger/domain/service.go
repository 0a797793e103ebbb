package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type CreateTransactionRequest struct {
	UserID        snowflake.ID      `json:"-"`
	Type          TransactionType   `json:"type"`
	Amount        decimal.Decimal   `json:"amount"`
	Currency      string            `json:"currency"`
	Status        TransactionStatus `json:"status"`
	PaymentMethod string            `json:"payment_method"`
	BookingID     *snowflake.ID     `json:"booking_id,omitempty"`
	RentalID      *snowflake.ID     `json:"rental_id,omitempty"`
	Description   string            `json:"description"`
}

type TransactionResult struct {
	Transaction *Transaction `json:"transaction"`
	Balance     Balance      `json:"balance"`
}

type Service interface {
	CreateTransaction(ctx context.Context, req CreateTransactionRequest) (*TransactionResult, error)
	// CreateTransactionTx validates, inserts and resyncs inside tx. Side
	// effects are left to PublishCreated.
	CreateTransactionTx(ctx context.Context, tx *gorm.DB, req CreateTransactionRequest) (*TransactionResult, error)
	PublishCreated(ctx context.Context, txn *Transaction)
	DeleteTransaction(ctx context.Context, id snowflake.ID) (*Balance, error)

	ComputeBalance(ctx context.Context, userID snowflake.ID) (Balance, error)
	ComputeBalanceIn(ctx context.Context, db *gorm.DB, userID snowflake.ID) (Balance, error)
	SyncBalance(ctx context.Context, tx *gorm.DB, userID snowflake.ID) (Balance, error)

	ListCompletedTransactions(ctx context.Context, types []TransactionType, from, to time.Time) ([]Transaction, error)
}
