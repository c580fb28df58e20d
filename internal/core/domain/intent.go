package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentIntent is a signed, time-bounded description of a requested payment,
// exchanged out-of-band (e.g. rendered as a QR code by the client). Intents
// are never persisted; they are encoded, carried by the payer, and validated
// on submission.
type PaymentIntent struct {
	Payee       uuid.UUID       `json:"payee"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Description string          `json:"description,omitempty"`
	IssuedAt    time.Time       `json:"issued_at"`
}

// IdempotencyKey derives a deterministic idempotency key from the intent
// content and issue time. Two submissions of the same decoded intent collide
// on this key, so a replay within the validity window cannot double-spend.
func (i *PaymentIntent) IdempotencyKey() string {
	payload := fmt.Sprintf("%s|%s|%s|%d", i.Payee, i.Amount.String(), i.Currency, i.IssuedAt.Unix())
	sum := sha256.Sum256([]byte(payload))
	return "intent:" + hex.EncodeToString(sum[:])
}
