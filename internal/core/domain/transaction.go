package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionKind represents the kind of money movement.
type TransactionKind string

const (
	TransactionKindSend     TransactionKind = "send"
	TransactionKindReceive  TransactionKind = "receive"
	TransactionKindDeposit  TransactionKind = "deposit"
	TransactionKindWithdraw TransactionKind = "withdraw"
	TransactionKindExchange TransactionKind = "exchange"
)

// IsValid reports whether the kind is a known transaction kind.
func (k TransactionKind) IsValid() bool {
	switch k {
	case TransactionKindSend, TransactionKindReceive, TransactionKindDeposit,
		TransactionKindWithdraw, TransactionKindExchange:
		return true
	}
	return false
}

// TransactionStatus represents the lifecycle state of a transaction.
type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "pending"
	TransactionStatusProcessing TransactionStatus = "processing"
	TransactionStatusCompleted  TransactionStatus = "completed"
	TransactionStatusFailed     TransactionStatus = "failed"
	TransactionStatusCancelled  TransactionStatus = "cancelled"
)

// CanTransition reports whether the status state machine allows from -> to.
// Legal paths: pending -> processing -> completed|failed, pending -> cancelled.
func CanTransition(from, to TransactionStatus) bool {
	switch from {
	case TransactionStatusPending:
		return to == TransactionStatusProcessing || to == TransactionStatusCancelled
	case TransactionStatusProcessing:
		return to == TransactionStatusCompleted || to == TransactionStatusFailed
	}
	return false
}

// Transaction is an immutable ledger record of a value movement between two
// wallets. FromWalletID/ToWalletID may be nil only for deposit/withdraw legs
// against an external rail.
type Transaction struct {
	ID                uuid.UUID         `json:"id"`
	IdempotencyKey    string            `json:"idempotency_key"`
	FromWalletID      *uuid.UUID        `json:"from_wallet_id,omitempty"`
	ToWalletID        *uuid.UUID        `json:"to_wallet_id,omitempty"`
	Amount            decimal.Decimal   `json:"amount"`
	Currency          string            `json:"currency"`
	ConvertedAmount   *decimal.Decimal  `json:"converted_amount,omitempty"`
	ConvertedCurrency *string           `json:"converted_currency,omitempty"`
	Rate              *decimal.Decimal  `json:"rate,omitempty"` // Snapshot captured at execution time
	Kind              TransactionKind   `json:"kind"`
	Status            TransactionStatus `json:"status"`
	Description       string            `json:"description,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// IsTerminal returns true if the transaction is in a final state.
func (t *Transaction) IsTerminal() bool {
	return t.Status == TransactionStatusCompleted ||
		t.Status == TransactionStatusFailed ||
		t.Status == TransactionStatusCancelled
}

// CanCancel reports whether the transaction can still be cancelled.
// Cancellation is only legal before processing begins.
func (t *Transaction) CanCancel() bool {
	return t.Status == TransactionStatusPending
}

// RateQuote is a point-in-time exchange rate snapshot from the rate converter.
type RateQuote struct {
	From string          `json:"from"`
	To   string          `json:"to"`
	Rate decimal.Decimal `json:"rate"`
	AsOf time.Time       `json:"as_of"`
}
