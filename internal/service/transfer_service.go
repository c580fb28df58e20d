package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"payee-ledger/internal/core/domain"
	"payee-ledger/internal/core/ports"
	"payee-ledger/internal/metrics"
	"payee-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	idempotencyTTL = 24 * time.Hour
	notifyTimeout  = 5 * time.Second
)

// TransferServiceImpl implements ports.TransferService. It is the only
// component that mutates balances, and it does so exclusively inside atomic
// ledger blocks with pessimistically locked wallet rows.
type TransferServiceImpl struct {
	txRepo      ports.TransactionRepository
	walletRepo  ports.WalletRepository
	idempRepo   ports.IdempotencyRepository
	idempCache  ports.IdempotencyCache
	walletSvc   ports.WalletService
	rates       ports.RateProvider
	transactor  ports.LedgerTransactor
	notifier    ports.NotificationSink
	metrics     *metrics.Metrics
	rateTimeout time.Duration
	log         zerolog.Logger
}

// NewTransferService creates a new TransferServiceImpl.
func NewTransferService(
	txRepo ports.TransactionRepository,
	walletRepo ports.WalletRepository,
	idempRepo ports.IdempotencyRepository,
	idempCache ports.IdempotencyCache,
	walletSvc ports.WalletService,
	rates ports.RateProvider,
	transactor ports.LedgerTransactor,
	notifier ports.NotificationSink,
	m *metrics.Metrics,
	rateTimeout time.Duration,
	log zerolog.Logger,
) *TransferServiceImpl {
	return &TransferServiceImpl{
		txRepo:      txRepo,
		walletRepo:  walletRepo,
		idempRepo:   idempRepo,
		idempCache:  idempCache,
		walletSvc:   walletSvc,
		rates:       rates,
		transactor:  transactor,
		notifier:    notifier,
		metrics:     m,
		rateTimeout: rateTimeout,
		log:         log,
	}
}

// Transfer executes a wallet-to-wallet value movement.
//
// The pipeline is: idempotency fast path, wallet resolution, rate snapshot
// (cross-currency only, before any lock is held), pending record insert,
// conditional claim to processing, then the atomic debit/credit block. The
// claim step is what gives Cancel a real window to win.
func (s *TransferServiceImpl) Transfer(ctx context.Context, req ports.TransferRequest) (*domain.Transaction, error) {
	start := time.Now()

	if err := validateTransferRequest(req); err != nil {
		return nil, err
	}

	if cached, err := s.checkIdempotency(ctx, req.IdempotencyKey); err != nil || cached != nil {
		return cached, err
	}

	crossCurrency := req.ToCurrency != "" && req.ToCurrency != req.Currency
	if !crossCurrency && req.FromOwner == req.ToOwner {
		return nil, apperror.ErrInvalidArgument("cannot transfer to the same wallet")
	}

	fromWallet, err := s.walletSvc.Resolve(ctx, req.FromOwner, req.Currency, domain.KindForCurrency(req.Currency))
	if err != nil {
		return nil, err
	}
	toCurrency := req.Currency
	if crossCurrency {
		toCurrency = req.ToCurrency
	}
	toWallet, err := s.walletSvc.Resolve(ctx, req.ToOwner, toCurrency, domain.KindForCurrency(toCurrency))
	if err != nil {
		return nil, err
	}
	if fromWallet.ID == toWallet.ID {
		return nil, apperror.ErrInvalidArgument("cannot transfer to the same wallet")
	}

	// Rate snapshot happens before any row lock so a slow feed can never
	// stall the ledger. The quote is frozen into the record at completion.
	var quote *domain.RateQuote
	creditAmount := req.Amount
	if crossCurrency {
		quote, err = s.snapshotRate(ctx, req.Currency, toCurrency)
		if err != nil {
			return nil, err
		}
		creditAmount = req.Amount.Mul(quote.Rate)
	}

	kind := domain.TransactionKindSend
	if crossCurrency {
		kind = domain.TransactionKindExchange
	}

	now := time.Now().UTC()
	txn := &domain.Transaction{
		ID:             uuid.New(),
		IdempotencyKey: req.IdempotencyKey,
		FromWalletID:   &fromWallet.ID,
		ToWalletID:     &toWallet.ID,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Kind:           kind,
		Status:         domain.TransactionStatusPending,
		Description:    req.Description,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	adopted, err := s.insertPending(ctx, txn)
	if err != nil || adopted != nil {
		return adopted, err
	}

	if err := s.claim(ctx, txn); err != nil {
		return nil, err
	}

	final, err := s.executeMovement(ctx, txn, fromWallet.ID, toWallet.ID, req.Amount, creditAmount, toCurrency, quote)
	if err != nil {
		s.observe(string(kind), string(domain.TransactionStatusFailed), start)
		return nil, err
	}

	s.observe(string(kind), string(domain.TransactionStatusCompleted), start)
	s.notifyAsync(fromWallet.OwnerID, ports.EventTransferCompleted, final)
	s.notifyAsync(toWallet.OwnerID, ports.EventTransferCompleted, final)

	s.log.Info().
		Str("tx_id", final.ID.String()).
		Str("from_wallet", fromWallet.ID.String()).
		Str("to_wallet", toWallet.ID.String()).
		Str("amount", req.Amount.String()).
		Str("currency", req.Currency).
		Msg("transfer completed")

	return final, nil
}

// Deposit credits a wallet from an external rail.
func (s *TransferServiceImpl) Deposit(ctx context.Context, req ports.ExternalLegRequest) (*domain.Transaction, error) {
	return s.externalLeg(ctx, req, domain.TransactionKindDeposit)
}

// Withdraw debits a wallet toward an external rail. The statement-level
// balance guard applies the same way it does for transfers.
func (s *TransferServiceImpl) Withdraw(ctx context.Context, req ports.ExternalLegRequest) (*domain.Transaction, error) {
	return s.externalLeg(ctx, req, domain.TransactionKindWithdraw)
}

func (s *TransferServiceImpl) externalLeg(ctx context.Context, req ports.ExternalLegRequest, kind domain.TransactionKind) (*domain.Transaction, error) {
	start := time.Now()

	if err := validateExternalLegRequest(req); err != nil {
		return nil, err
	}

	if cached, err := s.checkIdempotency(ctx, req.IdempotencyKey); err != nil || cached != nil {
		return cached, err
	}

	wallet, err := s.walletSvc.Resolve(ctx, req.Owner, req.Currency, domain.KindForCurrency(req.Currency))
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	txn := &domain.Transaction{
		ID:             uuid.New(),
		IdempotencyKey: req.IdempotencyKey,
		Amount:         req.Amount,
		Currency:       req.Currency,
		Kind:           kind,
		Status:         domain.TransactionStatusPending,
		Description:    req.Description,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	delta := req.Amount
	event := ports.EventDepositCompleted
	if kind == domain.TransactionKindDeposit {
		txn.ToWalletID = &wallet.ID
	} else {
		txn.FromWalletID = &wallet.ID
		delta = req.Amount.Neg()
		event = ports.EventWithdrawCompleted
	}

	adopted, err := s.insertPending(ctx, txn)
	if err != nil || adopted != nil {
		return adopted, err
	}

	if err := s.claim(ctx, txn); err != nil {
		return nil, err
	}

	final, err := s.executeSingleLeg(ctx, txn, wallet.ID, delta)
	if err != nil {
		s.observe(string(kind), string(domain.TransactionStatusFailed), start)
		return nil, err
	}

	s.observe(string(kind), string(domain.TransactionStatusCompleted), start)
	s.notifyAsync(wallet.OwnerID, event, final)

	s.log.Info().
		Str("tx_id", final.ID.String()).
		Str("wallet_id", wallet.ID.String()).
		Str("kind", string(kind)).
		Str("amount", req.Amount.String()).
		Msg("external leg completed")

	return final, nil
}

// Cancel flips a pending transaction to cancelled. The conditional update is
// the arbiter when Cancel races the engine's claim: exactly one side wins.
func (s *TransferServiceImpl) Cancel(ctx context.Context, transactionID, requester uuid.UUID) error {
	txn, err := s.txRepo.GetByID(ctx, transactionID)
	if err != nil {
		return apperror.ErrStoreUnavailable(fmt.Errorf("lookup transaction: %w", err))
	}
	if txn == nil {
		return apperror.ErrNotFound("transaction")
	}

	initiator := txn.FromWalletID
	if initiator == nil {
		// Deposits have no debit side; the credited wallet's owner cancels.
		initiator = txn.ToWalletID
	}
	if initiator == nil {
		return apperror.InternalError(errors.New("transaction has no wallet leg"))
	}
	wallet, err := s.walletRepo.GetByID(ctx, *initiator)
	if err != nil {
		return apperror.ErrStoreUnavailable(fmt.Errorf("lookup wallet: %w", err))
	}
	if wallet == nil || wallet.OwnerID != requester {
		return apperror.ErrForbidden()
	}

	if !txn.CanCancel() {
		return apperror.ErrInvalidState(fmt.Sprintf("transaction is %s, only pending transactions can be cancelled", txn.Status))
	}

	flipped, err := s.txRepo.UpdateStatus(ctx, transactionID, domain.TransactionStatusPending, domain.TransactionStatusCancelled)
	if err != nil {
		return apperror.ErrStoreUnavailable(fmt.Errorf("cancel transaction: %w", err))
	}
	if !flipped {
		// The engine claimed it first.
		return apperror.ErrInvalidState("transaction is no longer pending")
	}

	s.log.Info().Str("tx_id", transactionID.String()).Msg("transaction cancelled")
	return nil
}

// PayIntent executes a decoded payment intent on behalf of payer. The
// idempotency key is derived from the intent content, so resubmitting the
// same token replays the first execution instead of moving money twice.
func (s *TransferServiceImpl) PayIntent(ctx context.Context, payer uuid.UUID, intent *domain.PaymentIntent) (*domain.Transaction, error) {
	if payer == uuid.Nil {
		return nil, apperror.ErrInvalidArgument("payer is required")
	}
	if payer == intent.Payee {
		return nil, apperror.ErrInvalidArgument("cannot pay your own intent")
	}

	return s.Transfer(ctx, ports.TransferRequest{
		FromOwner:      payer,
		ToOwner:        intent.Payee,
		Amount:         intent.Amount,
		Currency:       intent.Currency,
		IdempotencyKey: intent.IdempotencyKey(),
		Description:    intent.Description,
	})
}

// checkIdempotency consults the Redis fast path, then the durable log. A
// cache failure degrades to the DB check instead of failing the request.
func (s *TransferServiceImpl) checkIdempotency(ctx context.Context, key string) (*domain.Transaction, error) {
	cached, err := s.idempCache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, falling through to DB")
	}
	if cached != nil {
		s.countIdempotencyHit("redis")
		return unmarshalCachedTransaction(cached)
	}

	stored, err := s.idempRepo.Get(ctx, key)
	if err != nil {
		return nil, apperror.ErrStoreUnavailable(fmt.Errorf("db idempotency check: %w", err))
	}
	if stored != nil {
		s.countIdempotencyHit("postgres")
		return unmarshalCachedTransaction(stored)
	}
	return nil, nil
}

// insertPending persists the pending record. On a duplicate idempotency key
// the caller lost an insert race; the winner's record is adopted as the
// response. An adopted terminal failure replays the original error instead of
// presenting a failed record as a success.
func (s *TransferServiceImpl) insertPending(ctx context.Context, txn *domain.Transaction) (*domain.Transaction, error) {
	err := s.txRepo.Create(ctx, txn)
	if err == nil {
		return nil, nil
	}
	if !errors.Is(err, ports.ErrDuplicate) {
		return nil, apperror.ErrStoreUnavailable(fmt.Errorf("create transaction: %w", err))
	}

	winner, lookupErr := s.txRepo.GetByIdempotencyKey(ctx, txn.IdempotencyKey)
	if lookupErr != nil {
		return nil, apperror.ErrStoreUnavailable(fmt.Errorf("adopt transaction after race: %w", lookupErr))
	}
	if winner == nil {
		return nil, apperror.InternalError(errors.New("duplicate reported but idempotency row absent"))
	}
	s.countIdempotencyHit("insert_race")
	if winner.Status == domain.TransactionStatusFailed {
		// The balance guard is the only writer of the failed status, so the
		// retry reports the same insufficient-funds outcome as the first call.
		return nil, apperror.ErrInsufficientFunds()
	}
	return winner, nil
}

// claim moves pending to processing. Losing the conditional update means a
// concurrent Cancel got there first.
func (s *TransferServiceImpl) claim(ctx context.Context, txn *domain.Transaction) error {
	claimed, err := s.txRepo.UpdateStatus(ctx, txn.ID, domain.TransactionStatusPending, domain.TransactionStatusProcessing)
	if err != nil {
		return apperror.ErrStoreUnavailable(fmt.Errorf("claim transaction: %w", err))
	}
	if !claimed {
		return apperror.ErrInvalidState("transaction was cancelled before execution")
	}
	txn.Status = domain.TransactionStatusProcessing
	return nil
}

// executeMovement runs the atomic debit/credit block for a two-wallet
// transfer. Rows are locked in ascending id order regardless of direction so
// opposing transfers can never deadlock.
func (s *TransferServiceImpl) executeMovement(
	ctx context.Context,
	txn *domain.Transaction,
	fromID, toID uuid.UUID,
	debitAmount, creditAmount decimal.Decimal,
	toCurrency string,
	quote *domain.RateQuote,
) (*domain.Transaction, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrStoreUnavailable(fmt.Errorf("begin ledger block: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	firstID, secondID := lockOrder(fromID, toID)
	for _, id := range []uuid.UUID{firstID, secondID} {
		locked, err := s.walletRepo.GetByIDForUpdate(ctx, dbTx, id)
		if err != nil {
			return nil, apperror.ErrStoreUnavailable(fmt.Errorf("lock wallet: %w", err))
		}
		if locked == nil {
			return nil, apperror.ErrNotFound("wallet")
		}
	}

	if err := s.walletRepo.AdjustBalance(ctx, dbTx, fromID, debitAmount.Neg()); err != nil {
		if errors.Is(err, ports.ErrInsufficientFunds) {
			return nil, s.markFailed(ctx, txn.ID, apperror.ErrInsufficientFunds())
		}
		return nil, apperror.ErrStoreUnavailable(fmt.Errorf("debit wallet: %w", err))
	}
	if err := s.walletRepo.AdjustBalance(ctx, dbTx, toID, creditAmount); err != nil {
		return nil, apperror.ErrStoreUnavailable(fmt.Errorf("credit wallet: %w", err))
	}

	if quote != nil {
		if err := s.txRepo.SetConversion(ctx, dbTx, txn.ID, creditAmount, toCurrency, quote.Rate); err != nil {
			return nil, apperror.ErrStoreUnavailable(fmt.Errorf("record conversion: %w", err))
		}
		txn.ConvertedAmount = &creditAmount
		txn.ConvertedCurrency = &toCurrency
		rate := quote.Rate
		txn.Rate = &rate
	}

	return s.completeAndCommit(ctx, dbTx, txn)
}

// executeSingleLeg runs the atomic block for a deposit or withdrawal.
func (s *TransferServiceImpl) executeSingleLeg(ctx context.Context, txn *domain.Transaction, walletID uuid.UUID, delta decimal.Decimal) (*domain.Transaction, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrStoreUnavailable(fmt.Errorf("begin ledger block: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	locked, err := s.walletRepo.GetByIDForUpdate(ctx, dbTx, walletID)
	if err != nil {
		return nil, apperror.ErrStoreUnavailable(fmt.Errorf("lock wallet: %w", err))
	}
	if locked == nil {
		return nil, apperror.ErrNotFound("wallet")
	}

	if err := s.walletRepo.AdjustBalance(ctx, dbTx, walletID, delta); err != nil {
		if errors.Is(err, ports.ErrInsufficientFunds) {
			return nil, s.markFailed(ctx, txn.ID, apperror.ErrInsufficientFunds())
		}
		return nil, apperror.ErrStoreUnavailable(fmt.Errorf("adjust balance: %w", err))
	}

	return s.completeAndCommit(ctx, dbTx, txn)
}

// completeAndCommit flips the record to completed, writes the durable
// idempotency log inside the same block, and commits. Everything after the
// commit is best-effort.
func (s *TransferServiceImpl) completeAndCommit(ctx context.Context, dbTx pgx.Tx, txn *domain.Transaction) (*domain.Transaction, error) {
	flipped, err := s.txRepo.UpdateStatusTx(ctx, dbTx, txn.ID, domain.TransactionStatusProcessing, domain.TransactionStatusCompleted)
	if err != nil {
		return nil, apperror.ErrStoreUnavailable(fmt.Errorf("complete transaction: %w", err))
	}
	if !flipped {
		return nil, apperror.InternalError(errors.New("claimed transaction left processing mid-block"))
	}
	txn.Status = domain.TransactionStatusCompleted
	txn.UpdatedAt = time.Now().UTC()

	respJSON, err := json.Marshal(txn)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("marshal response: %w", err))
	}
	if err := s.idempRepo.Create(ctx, dbTx, txn.IdempotencyKey, txn.ID, respJSON); err != nil {
		return nil, apperror.ErrStoreUnavailable(fmt.Errorf("save idempotency log: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.ErrStoreUnavailable(fmt.Errorf("commit ledger block: %w", err))
	}

	if err := s.idempCache.Set(ctx, txn.IdempotencyKey, respJSON, idempotencyTTL); err != nil {
		s.log.Warn().Err(err).Str("key", txn.IdempotencyKey).Msg("failed to cache idempotency in redis")
	}

	return txn, nil
}

// markFailed records a terminal failure outside the rolled-back block. The
// failure record always commits even though the money movement did not.
func (s *TransferServiceImpl) markFailed(ctx context.Context, id uuid.UUID, cause *apperror.AppError) error {
	flipped, err := s.txRepo.UpdateStatus(ctx, id, domain.TransactionStatusProcessing, domain.TransactionStatusFailed)
	if err != nil {
		s.log.Error().Err(err).Str("tx_id", id.String()).Msg("failed to record transaction failure")
	} else if !flipped {
		s.log.Warn().Str("tx_id", id.String()).Msg("transaction left processing before failure could be recorded")
	}
	return cause
}

func (s *TransferServiceImpl) observe(kind, status string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveTransfer(kind, status, start)
	}
}

func (s *TransferServiceImpl) countIdempotencyHit(layer string) {
	if s.metrics != nil {
		s.metrics.IdempotencyHits.WithLabelValues(layer).Inc()
	}
}

// notifyAsync fires a completion event without blocking the response path.
func (s *TransferServiceImpl) notifyAsync(ownerID uuid.UUID, event string, txn *domain.Transaction) {
	if s.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := s.notifier.Notify(ctx, ownerID, event, txn); err != nil {
			s.log.Warn().Err(err).Str("event", event).Str("tx_id", txn.ID.String()).Msg("notification failed")
		}
	}()
}

// lockOrder returns the two wallet ids in ascending byte order. Locks are
// always taken in this order, never in transfer direction order.
func lockOrder(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if bytes.Compare(a[:], b[:]) <= 0 {
		return a, b
	}
	return b, a
}

func validateTransferRequest(req ports.TransferRequest) error {
	if req.FromOwner == uuid.Nil || req.ToOwner == uuid.Nil {
		return apperror.ErrInvalidArgument("both owners are required")
	}
	if !req.Amount.IsPositive() {
		return apperror.ErrInvalidArgument("amount must be positive")
	}
	if !domain.IsValidCurrency(req.Currency) {
		return apperror.ErrInvalidArgument(fmt.Sprintf("invalid currency code %q", req.Currency))
	}
	if req.ToCurrency != "" && !domain.IsValidCurrency(req.ToCurrency) {
		return apperror.ErrInvalidArgument(fmt.Sprintf("invalid destination currency code %q", req.ToCurrency))
	}
	if req.IdempotencyKey == "" {
		return apperror.ErrInvalidArgument("idempotency key is required")
	}
	return nil
}

func validateExternalLegRequest(req ports.ExternalLegRequest) error {
	if req.Owner == uuid.Nil {
		return apperror.ErrInvalidArgument("owner is required")
	}
	if !req.Amount.IsPositive() {
		return apperror.ErrInvalidArgument("amount must be positive")
	}
	if !domain.IsValidCurrency(req.Currency) {
		return apperror.ErrInvalidArgument(fmt.Sprintf("invalid currency code %q", req.Currency))
	}
	if req.IdempotencyKey == "" {
		return apperror.ErrInvalidArgument("idempotency key is required")
	}
	return nil
}

// unmarshalCachedTransaction deserializes a cached response.
func unmarshalCachedTransaction(data []byte) (*domain.Transaction, error) {
	txn := &domain.Transaction{}
	if err := json.Unmarshal(data, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached transaction: %w", err))
	}
	return txn, nil
}

// snapshotRate fetches a quote under its own deadline so the ledger is never
// blocked on the feed longer than the configured bound.
func (s *TransferServiceImpl) snapshotRate(ctx context.Context, from, to string) (*domain.RateQuote, error) {
	timeout := s.rateTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	rateCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	quote, err := s.rates.GetRate(rateCtx, from, to)
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, apperror.ErrRateUnavailable(err)
	}
	if quote == nil || !quote.Rate.IsPositive() {
		return nil, apperror.ErrRateUnavailable(errors.New("empty quote"))
	}
	return quote, nil
}
