package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"payee-ledger/internal/core/domain"
	"payee-ledger/internal/core/ports"
	"payee-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// WalletServiceImpl implements ports.WalletService.
type WalletServiceImpl struct {
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
	keyGen     ports.KeyGenerator
	log        zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	keyGen ports.KeyGenerator,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		walletRepo: walletRepo,
		txRepo:     txRepo,
		keyGen:     keyGen,
		log:        log,
	}
}

// Resolve returns the active wallet for (owner, currency, kind), creating it
// lazily with a zero balance. Two concurrent resolves of the same triple
// race at the store's unique index; the loser adopts the winner's wallet.
func (s *WalletServiceImpl) Resolve(ctx context.Context, ownerID uuid.UUID, currency string, kind domain.WalletKind) (*domain.Wallet, error) {
	if ownerID == uuid.Nil {
		return nil, apperror.ErrInvalidArgument("owner id is required")
	}
	if !domain.IsValidCurrency(currency) {
		return nil, apperror.ErrInvalidArgument(fmt.Sprintf("invalid currency code %q", currency))
	}
	if !kind.IsValid() {
		return nil, apperror.ErrInvalidArgument(fmt.Sprintf("invalid wallet kind %q", kind))
	}

	existing, err := s.walletRepo.GetByOwner(ctx, ownerID, currency, kind)
	if err != nil {
		return nil, apperror.ErrStoreUnavailable(fmt.Errorf("lookup wallet: %w", err))
	}
	if existing != nil {
		return existing, nil
	}

	now := time.Now().UTC()
	wallet := &domain.Wallet{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Kind:      kind,
		Currency:  currency,
		Balance:   decimal.Zero,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if kind == domain.WalletKindCrypto {
		address, encryptedKey, err := s.keyGen.NewKeypair()
		if err != nil {
			return nil, apperror.ErrCustodyFailure(fmt.Errorf("generate wallet keypair: %w", err))
		}
		wallet.Address = &address
		wallet.EncryptedKey = &encryptedKey
	}

	if err := s.walletRepo.Create(ctx, wallet); err != nil {
		if errors.Is(err, ports.ErrDuplicate) {
			// Lost the creation race; the committed wallet wins.
			winner, lookupErr := s.walletRepo.GetByOwner(ctx, ownerID, currency, kind)
			if lookupErr != nil {
				return nil, apperror.ErrStoreUnavailable(fmt.Errorf("adopt wallet after race: %w", lookupErr))
			}
			if winner == nil {
				return nil, apperror.InternalError(errors.New("wallet duplicate reported but row absent"))
			}
			return winner, nil
		}
		return nil, apperror.ErrStoreUnavailable(fmt.Errorf("create wallet: %w", err))
	}

	s.log.Info().
		Str("wallet_id", wallet.ID.String()).
		Str("owner_id", ownerID.String()).
		Str("currency", currency).
		Str("kind", string(kind)).
		Msg("wallet created")

	return wallet, nil
}

// Deactivate retires a wallet. Wallets are never deleted; a non-zero balance
// refuses the deactivation and an already inactive wallet is a no-op.
func (s *WalletServiceImpl) Deactivate(ctx context.Context, walletID uuid.UUID) error {
	wallet, err := s.walletRepo.GetByID(ctx, walletID)
	if err != nil {
		return apperror.ErrStoreUnavailable(fmt.Errorf("lookup wallet: %w", err))
	}
	if wallet == nil {
		return apperror.ErrNotFound("wallet")
	}
	if !wallet.Active {
		return nil
	}
	if !wallet.CanDeactivate() {
		return apperror.ErrNonZeroBalance()
	}

	if err := s.walletRepo.SetActive(ctx, walletID, false); err != nil {
		return apperror.ErrStoreUnavailable(fmt.Errorf("deactivate wallet: %w", err))
	}

	s.log.Info().Str("wallet_id", walletID.String()).Msg("wallet deactivated")
	return nil
}

// GetBalance returns the wallet's current balance.
func (s *WalletServiceImpl) GetBalance(ctx context.Context, walletID uuid.UUID) (decimal.Decimal, error) {
	wallet, err := s.walletRepo.GetByID(ctx, walletID)
	if err != nil {
		return decimal.Zero, apperror.ErrStoreUnavailable(fmt.Errorf("lookup wallet: %w", err))
	}
	if wallet == nil {
		return decimal.Zero, apperror.ErrNotFound("wallet")
	}
	return wallet.Balance, nil
}

// GetHistory returns the wallet's transaction records, newest first.
func (s *WalletServiceImpl) GetHistory(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]domain.Transaction, error) {
	wallet, err := s.walletRepo.GetByID(ctx, walletID)
	if err != nil {
		return nil, apperror.ErrStoreUnavailable(fmt.Errorf("lookup wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}

	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	records, err := s.txRepo.ListByWallet(ctx, walletID, limit, offset)
	if err != nil {
		return nil, apperror.ErrStoreUnavailable(fmt.Errorf("list transactions: %w", err))
	}
	return records, nil
}

// ListWallets returns all wallets for an owner, active and inactive.
func (s *WalletServiceImpl) ListWallets(ctx context.Context, ownerID uuid.UUID) ([]domain.Wallet, error) {
	wallets, err := s.walletRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperror.ErrStoreUnavailable(fmt.Errorf("list wallets: %w", err))
	}
	return wallets, nil
}
