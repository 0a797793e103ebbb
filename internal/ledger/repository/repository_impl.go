package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/plannivo/finance/internal/ledger/domain"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindUser(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.User, error) {
	var user domain.User
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, email, balance, total_spent, currency, created_at, updated_at
		 FROM users WHERE id = ?`,
		id,
	).Scan(&user).Error
	if err != nil {
		return nil, err
	}
	if user.ID == 0 {
		return nil, nil
	}
	return &user, nil
}

func (r *repo) UpdateUserBalance(ctx context.Context, db *gorm.DB, id snowflake.ID, balance, totalSpent decimal.Decimal, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE users SET balance = ?, total_spent = ?, updated_at = ? WHERE id = ?`,
		balance,
		totalSpent,
		now,
		id,
	).Error
}

func (r *repo) InsertTransaction(ctx context.Context, db *gorm.DB, txn *domain.Transaction) error {
	return db.WithContext(ctx).Create(txn).Error
}

func (r *repo) FindTransaction(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Transaction, error) {
	var txn domain.Transaction
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, type, amount, currency, status, payment_method, booking_id, rental_id,
		        description, created_at
		 FROM transactions WHERE id = ?`,
		id,
	).Scan(&txn).Error
	if err != nil {
		return nil, err
	}
	if txn.ID == 0 {
		return nil, nil
	}
	return &txn, nil
}

func (r *repo) DeleteTransaction(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM transactions WHERE id = ?`, id).Error
}

func (r *repo) SumByType(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]domain.TypeTotal, error) {
	var rows []struct {
		Type  string
		Total decimal.Decimal
	}
	err := db.WithContext(ctx).Raw(
		`SELECT type, COALESCE(SUM(amount), 0) AS total
		 FROM transactions WHERE user_id = ?
		 GROUP BY type
		 ORDER BY type`,
		userID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	totals := make([]domain.TypeTotal, 0, len(rows))
	for _, row := range rows {
		totals = append(totals, domain.TypeTotal{Type: domain.TransactionType(row.Type), Total: row.Total})
	}
	return totals, nil
}

func (r *repo) ListCompletedTransactions(ctx context.Context, db *gorm.DB, types []domain.TransactionType, from, to time.Time) ([]domain.Transaction, error) {
	if len(types) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, string(t))
	}

	var txns []domain.Transaction
	err := db.WithContext(ctx).Raw(
		`SELECT id, user_id, type, amount, currency, status, payment_method, booking_id, rental_id,
		        description, created_at
		 FROM transactions
		 WHERE status = ? AND type IN ? AND created_at >= ? AND created_at < ?
		 ORDER BY created_at ASC, id ASC`,
		string(domain.TransactionStatusCompleted),
		names,
		from,
		to,
	).Scan(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}
