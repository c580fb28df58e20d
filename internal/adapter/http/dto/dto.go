package dto

import (
	"payee-ledger/internal/core/domain"
)

// CreateWalletRequest is the request body for wallet resolution.
type CreateWalletRequest struct {
	Currency string `json:"currency" binding:"required,currency_code"`
	Kind     string `json:"kind" binding:"omitempty,oneof=fiat crypto"`
}

// TransferRequest is the request body for a wallet-to-wallet transfer.
type TransferRequest struct {
	ToOwner        string `json:"to_owner" binding:"required,uuid"`
	Amount         string `json:"amount" binding:"required"`
	Currency       string `json:"currency" binding:"required,currency_code"`
	ToCurrency     string `json:"to_currency" binding:"omitempty,currency_code"`
	IdempotencyKey string `json:"idempotency_key" binding:"required,max=100,safe_id"`
	Description    string `json:"description" binding:"max=255"`
}

// ExternalLegRequest is the request body for deposits and withdrawals.
type ExternalLegRequest struct {
	Amount         string `json:"amount" binding:"required"`
	Currency       string `json:"currency" binding:"required,currency_code"`
	IdempotencyKey string `json:"idempotency_key" binding:"required,max=100,safe_id"`
	Description    string `json:"description" binding:"max=255"`
}

// CreateIntentRequest is the request body for encoding a payment intent.
// The payee is the authenticated owner.
type CreateIntentRequest struct {
	Amount      string `json:"amount" binding:"required"`
	Currency    string `json:"currency" binding:"required,currency_code"`
	Description string `json:"description" binding:"max=255"`
}

// IntentTokenResponse carries an encoded intent back to the payee's client.
type IntentTokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"` // Unix timestamp
}

// PayIntentRequest is the request body for paying a presented intent token.
type PayIntentRequest struct {
	Token string `json:"token" binding:"required"`
}

// DecodedIntentResponse is the inspection view of a valid intent token.
type DecodedIntentResponse struct {
	Payee       string `json:"payee"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description,omitempty"`
	IssuedAt    int64  `json:"issued_at"`
}

// WalletResponse is the API view of a wallet.
type WalletResponse struct {
	ID        string  `json:"id"`
	OwnerID   string  `json:"owner_id"`
	Kind      string  `json:"kind"`
	Currency  string  `json:"currency"`
	Balance   string  `json:"balance"`
	Address   *string `json:"address,omitempty"`
	Active    bool    `json:"active"`
	CreatedAt string  `json:"created_at"`
}

// BalanceResponse is the response for a balance query.
type BalanceResponse struct {
	WalletID string `json:"wallet_id"`
	Balance  string `json:"balance"`
	Currency string `json:"currency"`
}

// TransactionResponse is the API view of a ledger record.
type TransactionResponse struct {
	ID                string  `json:"id"`
	IdempotencyKey    string  `json:"idempotency_key"`
	FromWalletID      *string `json:"from_wallet_id,omitempty"`
	ToWalletID        *string `json:"to_wallet_id,omitempty"`
	Amount            string  `json:"amount"`
	Currency          string  `json:"currency"`
	ConvertedAmount   *string `json:"converted_amount,omitempty"`
	ConvertedCurrency *string `json:"converted_currency,omitempty"`
	Rate              *string `json:"rate,omitempty"`
	Kind              string  `json:"kind"`
	Status            string  `json:"status"`
	Description       string  `json:"description,omitempty"`
	CreatedAt         string  `json:"created_at"`
}

// HistoryResponse wraps a page of transaction records.
type HistoryResponse struct {
	Items  []TransactionResponse `json:"items"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

// FromWallet maps a domain wallet to its API view.
func FromWallet(w *domain.Wallet) WalletResponse {
	return WalletResponse{
		ID:        w.ID.String(),
		OwnerID:   w.OwnerID.String(),
		Kind:      string(w.Kind),
		Currency:  w.Currency,
		Balance:   w.Balance.String(),
		Address:   w.Address,
		Active:    w.Active,
		CreatedAt: w.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// FromTransaction maps a domain transaction to its API view.
func FromTransaction(t *domain.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:             t.ID.String(),
		IdempotencyKey: t.IdempotencyKey,
		Amount:         t.Amount.String(),
		Currency:       t.Currency,
		Kind:           string(t.Kind),
		Status:         string(t.Status),
		Description:    t.Description,
		CreatedAt:      t.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if t.FromWalletID != nil {
		s := t.FromWalletID.String()
		resp.FromWalletID = &s
	}
	if t.ToWalletID != nil {
		s := t.ToWalletID.String()
		resp.ToWalletID = &s
	}
	if t.ConvertedAmount != nil {
		s := t.ConvertedAmount.String()
		resp.ConvertedAmount = &s
	}
	resp.ConvertedCurrency = t.ConvertedCurrency
	if t.Rate != nil {
		s := t.Rate.String()
		resp.Rate = &s
	}
	return resp
}

// FromTransactions maps a slice of records.
func FromTransactions(ts []domain.Transaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(ts))
	for i := range ts {
		out = append(out, FromTransaction(&ts[i]))
	}
	return out
}
