package domain

import (
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletKind distinguishes fiat wallets from crypto wallets.
type WalletKind string

const (
	WalletKindFiat   WalletKind = "fiat"
	WalletKindCrypto WalletKind = "crypto"
)

// IsValid reports whether the kind is one of the known wallet kinds.
func (k WalletKind) IsValid() bool {
	return k == WalletKindFiat || k == WalletKindCrypto
}

var currencyPattern = regexp.MustCompile(`^[A-Z]{3,5}$`)

// IsValidCurrency reports whether code looks like an ISO-style currency code.
func IsValidCurrency(code string) bool {
	return currencyPattern.MatchString(code)
}

// cryptoCurrencies lists the asset codes that settle on crypto wallets.
// Everything else is treated as fiat.
var cryptoCurrencies = map[string]struct{}{
	"BTC":  {},
	"ETH":  {},
	"SOL":  {},
	"USDT": {},
	"USDC": {},
}

// KindForCurrency returns the wallet kind that holds the given currency, so
// funding a BTC balance lands on the crypto wallet with its generated keypair
// rather than on a fiat wallet.
func KindForCurrency(code string) WalletKind {
	if _, ok := cryptoCurrencies[code]; ok {
		return WalletKindCrypto
	}
	return WalletKindFiat
}

// Wallet is a balance-holding account scoped to one owner, currency and kind.
// Balance is mutated only by the transfer engine inside a ledger transaction
// and is non-negative at every transaction boundary.
type Wallet struct {
	ID           uuid.UUID       `json:"id"`
	OwnerID      uuid.UUID       `json:"owner_id"`
	Kind         WalletKind      `json:"kind"`
	Currency     string          `json:"currency"`
	Balance      decimal.Decimal `json:"balance"`
	Address      *string         `json:"address,omitempty"` // Crypto wallets only
	EncryptedKey *string         `json:"-"`                 // AES-256-GCM encrypted private key, never exposed
	Active       bool            `json:"active"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// CanDeactivate reports whether the wallet is eligible for deactivation.
// Wallets are never deleted; deactivation requires a zero balance.
func (w *Wallet) CanDeactivate() bool {
	return w.Balance.IsZero()
}
