package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	FindUser(ctx context.Context, db *gorm.DB, id snowflake.ID) (*User, error)
	UpdateUserBalance(ctx context.Context, db *gorm.DB, id snowflake.ID, balance, totalSpent decimal.Decimal, now time.Time) error

	InsertTransaction(ctx context.Context, db *gorm.DB, txn *Transaction) error
	FindTransaction(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Transaction, error)
	DeleteTransaction(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	SumByType(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]TypeTotal, error)
	ListCompletedTransactions(ctx context.Context, db *gorm.DB, types []TransactionType, from, to time.Time) ([]Transaction, error)
}
