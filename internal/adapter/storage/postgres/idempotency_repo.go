package postgres

import (
	"context"
	"errors"
	"fmt"

	"payee-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// IdempotencyRepo implements ports.IdempotencyRepository. It is the durable
// layer behind the Redis fast path; rows are written inside the same atomic
// block as the money movement, so a cached response exists iff the transfer
// committed.
type IdempotencyRepo struct {
	pool Pool
}

// NewIdempotencyRepo creates a new IdempotencyRepo.
func NewIdempotencyRepo(pool Pool) *IdempotencyRepo {
	return &IdempotencyRepo{pool: pool}
}

// Create inserts an idempotency log within a database transaction.
func (r *IdempotencyRepo) Create(ctx context.Context, tx pgx.Tx, key string, transactionID uuid.UUID, responseJSON []byte) error {
	query := `INSERT INTO idempotency_logs (key, transaction_id, response_json, created_at)
		VALUES ($1, $2, $3, NOW())`

	_, err := tx.Exec(ctx, query, key, transactionID, responseJSON)
	if err != nil {
		if isUniqueViolation(err) {
			return ports.ErrDuplicate
		}
		return fmt.Errorf("insert idempotency log: %w", err)
	}
	return nil
}

// Get fetches a cached response by key. Returns nil, nil when absent.
func (r *IdempotencyRepo) Get(ctx context.Context, key string) ([]byte, error) {
	query := `SELECT response_json FROM idempotency_logs WHERE key = $1`

	var resp []byte
	err := r.pool.QueryRow(ctx, query, key).Scan(&resp)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get idempotency log: %w", err)
	}
	return resp, nil
}
