package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"payee-ledger/internal/core/domain"
	"payee-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// memStore backs the in-memory repositories used by the engine tests. Writes
// performed through a memTx register undo functions so a rollback restores
// the pre-block state, mirroring the real store's atomic ledger blocks.
type memStore struct {
	mu       sync.Mutex
	wallets  map[uuid.UUID]*domain.Wallet
	txns     map[uuid.UUID]*domain.Transaction
	idem     map[string][]byte
	rowLocks map[uuid.UUID]*sync.Mutex
}

func newMemStore() *memStore {
	return &memStore{
		wallets:  make(map[uuid.UUID]*domain.Wallet),
		txns:     make(map[uuid.UUID]*domain.Transaction),
		idem:     make(map[string][]byte),
		rowLocks: make(map[uuid.UUID]*sync.Mutex),
	}
}

// rowLock returns the per-wallet row mutex, creating it on first use.
func (s *memStore) rowLock(id uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.rowLocks[id]
	if !ok {
		l = &sync.Mutex{}
		s.rowLocks[id] = l
	}
	return l
}

// --- fake pgx.Tx ---

type memTx struct {
	store *memStore
	mu    sync.Mutex
	undo  []func()
	rows  map[uuid.UUID]*sync.Mutex
	done  bool
}

func (t *memTx) addUndo(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.undo = append(t.undo, fn)
}

// lockRow takes the wallet's row mutex and holds it until Commit or Rollback,
// the way SELECT ... FOR UPDATE pins the row for the rest of the block.
// Relocking a row this block already holds is a no-op.
func (t *memTx) lockRow(id uuid.UUID) {
	t.mu.Lock()
	_, held := t.rows[id]
	t.mu.Unlock()
	if held {
		return
	}
	l := t.store.rowLock(id)
	l.Lock()
	t.mu.Lock()
	t.rows[id] = l
	t.mu.Unlock()
}

// releaseRows is called with t.mu held.
func (t *memTx) releaseRows() {
	for _, l := range t.rows {
		l.Unlock()
	}
	t.rows = make(map[uuid.UUID]*sync.Mutex)
}

func (t *memTx) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.undo = nil
	t.releaseRows()
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
	t.releaseRows()
	return nil
}

func (t *memTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *memTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *memTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *memTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *memTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *memTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *memTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *memTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (t *memTx) Conn() *pgx.Conn                                              { return nil }

type memTransactor struct {
	store *memStore
}

func (t *memTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return &memTx{store: t.store, rows: make(map[uuid.UUID]*sync.Mutex)}, nil
}

// --- wallet repository ---

type memWalletRepo struct {
	store *memStore
	// adjustHook, when set, intercepts AdjustBalance for failure injection.
	adjustHook func(id uuid.UUID, delta decimal.Decimal) error
}

func (r *memWalletRepo) Create(ctx context.Context, w *domain.Wallet) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.wallets {
		if existing.Active && existing.OwnerID == w.OwnerID && existing.Currency == w.Currency && existing.Kind == w.Kind {
			return ports.ErrDuplicate
		}
	}
	cp := *w
	r.store.wallets[w.ID] = &cp
	return nil
}

func (r *memWalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	w, ok := r.store.wallets[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *memWalletRepo) GetByOwner(ctx context.Context, ownerID uuid.UUID, currency string, kind domain.WalletKind) (*domain.Wallet, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, w := range r.store.wallets {
		if w.Active && w.OwnerID == ownerID && w.Currency == currency && w.Kind == kind {
			cp := *w
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memWalletRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Wallet, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var result []domain.Wallet
	for _, w := range r.store.wallets {
		if w.OwnerID == ownerID {
			result = append(result, *w)
		}
	}
	return result, nil
}

func (r *memWalletRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	if mt, ok := tx.(*memTx); ok {
		mt.lockRow(id)
	}
	return r.GetByID(ctx, id)
}

func (r *memWalletRepo) AdjustBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, delta decimal.Decimal) error {
	if r.adjustHook != nil {
		if err := r.adjustHook(id, delta); err != nil {
			return err
		}
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	w, ok := r.store.wallets[id]
	if !ok {
		return ports.ErrInsufficientFunds
	}
	next := w.Balance.Add(delta)
	if next.IsNegative() {
		return ports.ErrInsufficientFunds
	}
	w.Balance = next
	w.UpdatedAt = time.Now().UTC()
	if mt, ok := tx.(*memTx); ok {
		mt.addUndo(func() {
			r.store.mu.Lock()
			defer r.store.mu.Unlock()
			if cur, ok := r.store.wallets[id]; ok {
				cur.Balance = cur.Balance.Sub(delta)
			}
		})
	}
	return nil
}

func (r *memWalletRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if w, ok := r.store.wallets[id]; ok {
		w.Active = active
	}
	return nil
}

// --- transaction repository ---

type memTransactionRepo struct {
	store *memStore
}

func (r *memTransactionRepo) Create(ctx context.Context, txn *domain.Transaction) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.txns {
		if existing.IdempotencyKey == txn.IdempotencyKey {
			return ports.ErrDuplicate
		}
	}
	cp := *txn
	r.store.txns[txn.ID] = &cp
	return nil
}

func (r *memTransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	t, ok := r.store.txns[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *memTransactionRepo) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, t := range r.store.txns {
		if t.IdempotencyKey == key {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memTransactionRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.TransactionStatus) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	t, ok := r.store.txns[id]
	if !ok || t.Status != from {
		return false, nil
	}
	t.Status = to
	t.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *memTransactionRepo) UpdateStatusTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.TransactionStatus) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	t, ok := r.store.txns[id]
	if !ok || t.Status != from {
		return false, nil
	}
	prev := t.Status
	t.Status = to
	t.UpdatedAt = time.Now().UTC()
	if mt, ok := tx.(*memTx); ok {
		mt.addUndo(func() {
			r.store.mu.Lock()
			defer r.store.mu.Unlock()
			if cur, ok := r.store.txns[id]; ok {
				cur.Status = prev
			}
		})
	}
	return true, nil
}

func (r *memTransactionRepo) SetConversion(ctx context.Context, tx pgx.Tx, id uuid.UUID, converted decimal.Decimal, currency string, rate decimal.Decimal) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	t, ok := r.store.txns[id]
	if !ok {
		return nil
	}
	t.ConvertedAmount = &converted
	t.ConvertedCurrency = &currency
	t.Rate = &rate
	if mt, ok := tx.(*memTx); ok {
		mt.addUndo(func() {
			r.store.mu.Lock()
			defer r.store.mu.Unlock()
			if cur, ok := r.store.txns[id]; ok {
				cur.ConvertedAmount = nil
				cur.ConvertedCurrency = nil
				cur.Rate = nil
			}
		})
	}
	return nil
}

func (r *memTransactionRepo) ListByWallet(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]domain.Transaction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var result []domain.Transaction
	for _, t := range r.store.txns {
		if (t.FromWalletID != nil && *t.FromWalletID == walletID) ||
			(t.ToWalletID != nil && *t.ToWalletID == walletID) {
			result = append(result, *t)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.After(result[j].CreatedAt) })
	if offset >= len(result) {
		return []domain.Transaction{}, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], nil
}

// --- idempotency repository and cache ---

type memIdempotencyRepo struct {
	store *memStore
}

func (r *memIdempotencyRepo) Create(ctx context.Context, tx pgx.Tx, key string, transactionID uuid.UUID, responseJSON []byte) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, exists := r.store.idem[key]; exists {
		return ports.ErrDuplicate
	}
	r.store.idem[key] = responseJSON
	if mt, ok := tx.(*memTx); ok {
		mt.addUndo(func() {
			r.store.mu.Lock()
			defer r.store.mu.Unlock()
			delete(r.store.idem, key)
		})
	}
	return nil
}

func (r *memIdempotencyRepo) Get(ctx context.Context, key string) ([]byte, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return r.store.idem[key], nil
}

type memIdempotencyCache struct {
	mu     sync.Mutex
	values map[string][]byte
}

func newMemIdempotencyCache() *memIdempotencyCache {
	return &memIdempotencyCache{values: make(map[string][]byte)}
}

func (c *memIdempotencyCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[key], nil
}

func (c *memIdempotencyCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

// --- collaborator stubs ---

type stubRateProvider struct {
	rate  decimal.Decimal
	err   error
	delay time.Duration
}

func (s *stubRateProvider) GetRate(ctx context.Context, from, to string) (*domain.RateQuote, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return &domain.RateQuote{From: from, To: to, Rate: s.rate, AsOf: time.Now().UTC()}, nil
}

type recordedEvent struct {
	OwnerID uuid.UUID
	Event   string
}

type recordingSink struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (s *recordingSink) Notify(ctx context.Context, ownerID uuid.UUID, event string, payload interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, recordedEvent{OwnerID: ownerID, Event: event})
	return nil
}

func (s *recordingSink) snapshot() []recordedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]recordedEvent(nil), s.events...)
}

type stubKeyGenerator struct{}

func (stubKeyGenerator) NewKeypair() (string, string, error) {
	return "addr" + uuid.NewString()[:8], "enc-key", nil
}
