package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// TransactionType is the semantic type of a ledger row. Amounts are stored
// positive; the type decides how a row moves the balance.
type TransactionType string

const (
	TransactionTypePayment              TransactionType = "payment"
	TransactionTypeCredit               TransactionType = "credit"
	TransactionTypeRefund               TransactionType = "refund"
	TransactionTypeBookingDeletedRefund TransactionType = "booking_deleted_refund"
	TransactionTypeCharge               TransactionType = "charge"
	TransactionTypeDebit                TransactionType = "debit"
	TransactionTypeServicePayment       TransactionType = "service_payment"
	TransactionTypeRentalPayment        TransactionType = "rental_payment"
)

// Effect is how one transaction type moves balance and total_spent.
type Effect struct {
	Sign  int  `json:"sign"`
	Spent bool `json:"spent"`
}

var effects = map[TransactionType]Effect{
	// money in, counted as spend
	TransactionTypePayment: {Sign: 1, Spent: true},
	TransactionTypeCredit:  {Sign: 1, Spent: true},

	// money back, balance only
	TransactionTypeRefund:               {Sign: 1},
	TransactionTypeBookingDeletedRefund: {Sign: 1},

	// money out
	TransactionTypeCharge:         {Sign: -1},
	TransactionTypeDebit:          {Sign: -1},
	TransactionTypeServicePayment: {Sign: -1},
	TransactionTypeRentalPayment:  {Sign: -1},
}

func (t TransactionType) Effect() (Effect, bool) {
	e, ok := effects[t]
	return e, ok
}

func (t TransactionType) Valid() bool {
	_, ok := effects[t]
	return ok
}

type TransactionStatus string

const (
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusFailed    TransactionStatus = "failed"
)

func (s TransactionStatus) Valid() bool {
	switch s {
	case TransactionStatusCompleted, TransactionStatusPending, TransactionStatusFailed:
		return true
	default:
		return false
	}
}

// User carries the cached balance that is reconciled against the ledger.
type User struct {
	ID         snowflake.ID    `gorm:"primaryKey" json:"id"`
	Name       string          `gorm:"type:text;not null" json:"name"`
	Email      string          `gorm:"type:text;uniqueIndex" json:"email"`
	Balance    decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"balance"`
	TotalSpent decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"total_spent"`
	Currency   string          `gorm:"type:text;not null" json:"currency"`
	CreatedAt  time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt  time.Time       `gorm:"not null" json:"updated_at"`
}

func (User) TableName() string { return "users" }

type Transaction struct {
	ID            snowflake.ID      `gorm:"primaryKey" json:"id"`
	UserID        snowflake.ID      `gorm:"not null;index" json:"user_id"`
	Type          TransactionType   `gorm:"type:text;not null;index" json:"type"`
	Amount        decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"amount"`
	Currency      string            `gorm:"type:text;not null" json:"currency"`
	Status        TransactionStatus `gorm:"type:text;not null" json:"status"`
	PaymentMethod string            `gorm:"type:text" json:"payment_method"`
	BookingID     *snowflake.ID     `gorm:"index" json:"booking_id"`
	RentalID      *snowflake.ID     `json:"rental_id"`
	Description   string            `gorm:"type:text" json:"description"`
	CreatedAt     time.Time         `gorm:"not null;index" json:"created_at"`
}

func (Transaction) TableName() string { return "transactions" }

type Balance struct {
	Balance    decimal.Decimal `json:"balance"`
	TotalSpent decimal.Decimal `json:"total_spent"`
}

// TypeTotal is the summed amount of one transaction type.
type TypeTotal struct {
	Type  TransactionType `json:"type"`
	Total decimal.Decimal `json:"total"`
}

// Sum folds per-type totals through the sign table. Types without an effect
// are reported to unknown and left out.
func Sum(totals []TypeTotal, unknown func(TypeTotal)) Balance {
	balance := decimal.Zero
	spent := decimal.Zero
	for _, t := range totals {
		effect, ok := t.Type.Effect()
		if !ok {
			if unknown != nil {
				unknown(t)
			}
			continue
		}
		if effect.Sign > 0 {
			balance = balance.Add(t.Total)
		} else {
			balance = balance.Sub(t.Total)
		}
		if effect.Spent {
			spent = spent.Add(t.Total)
		}
	}
	return Balance{Balance: balance.Round(2), TotalSpent: spent.Round(2)}
}
