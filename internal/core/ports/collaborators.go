package ports

import (
	"context"

	"payee-ledger/internal/core/domain"

	"github.com/google/uuid"
)

// RateProvider supplies point-in-time exchange rate snapshots. Calls are made
// strictly before any wallet lock is taken and must respect a bounded timeout.
type RateProvider interface {
	GetRate(ctx context.Context, from, to string) (*domain.RateQuote, error)
}

// Event kinds emitted to the notification sink.
const (
	EventTransferCompleted = "transfer.completed"
	EventTransferFailed    = "transfer.failed"
	EventDepositCompleted  = "deposit.completed"
	EventWithdrawCompleted = "withdraw.completed"
)

// NotificationSink receives completion events. Delivery is fire-and-forget,
// at-least-once; a sink failure never rolls back a committed transfer.
type NotificationSink interface {
	Notify(ctx context.Context, ownerID uuid.UUID, event string, payload interface{}) error
}
