package postgres

import (
	"context"
	"errors"
	"fmt"

	"payee-ledger/internal/core/domain"
	"payee-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// TransactionRepo implements ports.TransactionRepository.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

const transactionColumns = `id, idempotency_key, from_wallet_id, to_wallet_id, amount, currency,
		converted_amount, converted_currency, rate, kind, status, description, created_at, updated_at`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	err := row.Scan(
		&t.ID, &t.IdempotencyKey, &t.FromWalletID, &t.ToWalletID, &t.Amount, &t.Currency,
		&t.ConvertedAmount, &t.ConvertedCurrency, &t.Rate, &t.Kind, &t.Status,
		&t.Description, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Create inserts a new transaction record. The unique index on
// idempotency_key makes retried submissions collide at the store; callers
// treat ports.ErrDuplicate as "fetch the existing record instead".
func (r *TransactionRepo) Create(ctx context.Context, t *domain.Transaction) error {
	query := `INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err := r.pool.Exec(ctx, query,
		t.ID, t.IdempotencyKey, t.FromWalletID, t.ToWalletID, t.Amount, t.Currency,
		t.ConvertedAmount, t.ConvertedCurrency, t.Rate, t.Kind, t.Status,
		t.Description, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ports.ErrDuplicate
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetByID fetches a transaction by UUID.
func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	t, err := scanTransaction(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get transaction by id: %w", err)
	}
	return t, nil
}

// GetByIdempotencyKey fetches a transaction by its idempotency key.
func (r *TransactionRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE idempotency_key = $1`

	t, err := scanTransaction(r.pool.QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get transaction by idempotency key: %w", err)
	}
	return t, nil
}

const updateStatusQuery = `UPDATE transactions SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2`

// UpdateStatus performs a conditional status transition on the pool. The
// WHERE clause enforces the state machine at the store: a lost race (e.g. a
// cancel landing before the processing claim) yields zero rows, not a
// corrupted state.
func (r *TransactionRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.TransactionStatus) (bool, error) {
	tag, err := r.pool.Exec(ctx, updateStatusQuery, id, from, to)
	if err != nil {
		return false, fmt.Errorf("update transaction status: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// UpdateStatusTx is UpdateStatus inside an atomic ledger block.
func (r *TransactionRepo) UpdateStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.TransactionStatus) (bool, error) {
	tag, err := tx.Exec(ctx, updateStatusQuery, id, from, to)
	if err != nil {
		return false, fmt.Errorf("update transaction status in tx: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SetConversion records the converted destination leg and the snapshot rate.
func (r *TransactionRepo) SetConversion(ctx context.Context, tx pgx.Tx, id uuid.UUID, converted decimal.Decimal, currency string, rate decimal.Decimal) error {
	query := `UPDATE transactions SET converted_amount = $2, converted_currency = $3, rate = $4, updated_at = NOW()
		WHERE id = $1`

	tag, err := tx.Exec(ctx, query, id, converted, currency, rate)
	if err != nil {
		return fmt.Errorf("set transaction conversion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("transaction not found: %s", id)
	}
	return nil
}

// ListByWallet returns transactions touching the wallet, newest first.
func (r *TransactionRepo) ListByWallet(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE from_wallet_id = $1 OR to_wallet_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, walletID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var result []domain.Transaction
	for rows.Next() {
		t := domain.Transaction{}
		if err := rows.Scan(
			&t.ID, &t.IdempotencyKey, &t.FromWalletID, &t.ToWalletID, &t.Amount, &t.Currency,
			&t.ConvertedAmount, &t.ConvertedCurrency, &t.Rate, &t.Kind, &t.Status,
			&t.Description, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		result = append(result, t)
	}
	return result, rows.Err()
}
