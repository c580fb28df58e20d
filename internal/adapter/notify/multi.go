package notify

import (
	"context"

	"payee-ledger/internal/core/ports"

	"github.com/google/uuid"
)

// Multi fans a notification out to several sinks. The first error is
// returned after every sink has been attempted.
type Multi []ports.NotificationSink

func (m Multi) Notify(ctx context.Context, ownerID uuid.UUID, event string, payload interface{}) error {
	var first error
	for _, sink := range m {
		if err := sink.Notify(ctx, ownerID, event, payload); err != nil && first == nil {
			first = err
		}
	}
	return first
}
