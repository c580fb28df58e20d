package ports

import (
	"context"
	"time"

	"payee-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// --- Service Ports (Business Logic) ---

// TransferService is the ledger transfer engine.
type TransferService interface {
	Transfer(ctx context.Context, req TransferRequest) (*domain.Transaction, error)
	Deposit(ctx context.Context, req ExternalLegRequest) (*domain.Transaction, error)
	Withdraw(ctx context.Context, req ExternalLegRequest) (*domain.Transaction, error)
	// Cancel flips a pending transaction to cancelled. Only the initiating
	// owner may cancel; processing/terminal records are refused.
	Cancel(ctx context.Context, transactionID, requester uuid.UUID) error
	// PayIntent executes a decoded payment intent on behalf of payer. The
	// idempotency key is derived from the intent content, so resubmission of
	// the same intent cannot double-spend.
	PayIntent(ctx context.Context, payer uuid.UUID, intent *domain.PaymentIntent) (*domain.Transaction, error)
}

// TransferRequest holds validated input for a wallet-to-wallet transfer.
type TransferRequest struct {
	FromOwner      uuid.UUID
	ToOwner        uuid.UUID
	Amount         decimal.Decimal
	Currency       string
	ToCurrency     string // Empty for same-currency transfers
	IdempotencyKey string
	Description    string
}

// ExternalLegRequest holds input for a deposit or withdrawal against an
// external rail (single-wallet leg).
type ExternalLegRequest struct {
	Owner          uuid.UUID
	Amount         decimal.Decimal
	Currency       string
	IdempotencyKey string
	Description    string
}

// WalletService is the wallet registry.
type WalletService interface {
	// Resolve returns the active wallet for (owner, currency, kind), creating
	// it with a zero balance if absent. Creation is idempotent under
	// concurrency.
	Resolve(ctx context.Context, ownerID uuid.UUID, currency string, kind domain.WalletKind) (*domain.Wallet, error)
	// Deactivate refuses with NonZeroBalance unless the balance is zero.
	Deactivate(ctx context.Context, walletID uuid.UUID) error
	GetBalance(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error)
	GetHistory(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]domain.Transaction, error)
	ListWallets(ctx context.Context, ownerID uuid.UUID) ([]domain.Wallet, error)
}

// IntentCodec encodes and decodes signed, time-bounded payment intents.
// Decode is pure: validating a token does not consume or reserve anything.
type IntentCodec interface {
	Encode(intent *domain.PaymentIntent) (string, error)
	Decode(token string) (*domain.PaymentIntent, error)
}

// TokenService validates bearer tokens from the external identity provider.
// The core trusts the owner id it returns and does no authentication itself.
type TokenService interface {
	Generate(ownerID uuid.UUID) (string, time.Time, error)
	Validate(tokenString string) (uuid.UUID, error)
}

// EncryptionService handles AES-256-GCM encryption for key custody.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SignatureService handles HMAC-SHA256 signing of outbound notifications.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
}

// KeyGenerator produces keypairs for crypto wallets. The private key is
// returned encrypted for at-rest custody.
type KeyGenerator interface {
	NewKeypair() (address string, encryptedKey string, err error)
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}
