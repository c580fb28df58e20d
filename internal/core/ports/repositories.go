package ports

import (
	"context"
	"errors"

	"payee-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Sentinel errors surfaced by repositories. Uniqueness races are resolved at
// the store via constraints, never by application-level check-then-insert;
// the loser of a race observes ErrDuplicate and adopts the winner's row.
var (
	ErrDuplicate         = errors.New("duplicate row")
	ErrInsufficientFunds = errors.New("balance would go negative")
)

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx run inside an atomic ledger block and rely on
// pessimistic row locking.
type WalletRepository interface {
	// Create inserts a wallet. Returns ErrDuplicate if an active wallet for
	// the same (owner, currency, kind) already exists.
	Create(ctx context.Context, wallet *domain.Wallet) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetByOwner(ctx context.Context, ownerID uuid.UUID, currency string, kind domain.WalletKind) (*domain.Wallet, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Wallet, error)
	// GetByIDForUpdate locks the wallet row for the duration of tx.
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error)
	// AdjustBalance applies a signed delta, guarded at the statement level so
	// the resulting balance can never go negative. Must run inside tx.
	// Returns ErrInsufficientFunds if the guard rejects the delta.
	AdjustBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta decimal.Decimal) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

// TransactionRepository defines persistence operations for transaction records.
type TransactionRepository interface {
	// Create inserts a new record. Returns ErrDuplicate when the idempotency
	// key is already taken (unique index).
	Create(ctx context.Context, txn *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error)
	// UpdateStatus performs a conditional state transition outside any atomic
	// block. Returns false (without error) if the record was not in `from`.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.TransactionStatus) (bool, error)
	// UpdateStatusTx is UpdateStatus inside an atomic ledger block.
	UpdateStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.TransactionStatus) (bool, error)
	// SetConversion records the snapshot rate and converted leg inside tx.
	SetConversion(ctx context.Context, tx pgx.Tx, id uuid.UUID, converted decimal.Decimal, currency string, rate decimal.Decimal) error
	// ListByWallet returns records touching the wallet, newest first.
	ListByWallet(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]domain.Transaction, error)
}

// IdempotencyRepository persists cached transfer responses (DB layer behind
// the Redis fast path).
type IdempotencyRepository interface {
	Create(ctx context.Context, tx pgx.Tx, key string, transactionID uuid.UUID, responseJSON []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
}

// LedgerTransactor provides atomic ledger blocks. All writes performed on the
// returned pgx.Tx commit together or not at all.
type LedgerTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
