// Package memory is a transactional in-process storage backend. It honours
// the same contract as the PostgreSQL adapter: wallet rows are locked until
// the transaction ends and writes become visible only on commit.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"wallet-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

var errForeignTx = errors.New("memory: transaction was not started by this store")

// Store holds committed state and the row lock table.
type Store struct {
	mu      sync.RWMutex
	wallets map[string]domain.Wallet
	ops     []domain.Operation

	seq         atomic.Int64
	locks       *lockTable
	lockTimeout time.Duration
}

// NewStore creates an empty store. lockTimeout bounds how long a transaction
// waits for a row lock before failing with domain.ErrContention; zero waits
// until the context is done.
func NewStore(lockTimeout time.Duration) *Store {
	return &Store{
		wallets:     make(map[string]domain.Wallet),
		locks:       newLockTable(),
		lockTimeout: lockTimeout,
	}
}

// Begin implements ports.DBTransactor.
func (s *Store) Begin(_ context.Context) (pgx.Tx, error) {
	return &Tx{
		store:   s,
		held:    make(map[string]struct{}),
		pending: make(map[string]domain.Wallet),
	}, nil
}

// Wallets returns the wallet repository view of the store.
func (s *Store) Wallets() *WalletRepo {
	return &WalletRepo{store: s}
}

// Operations returns the operation log view of the store.
func (s *Store) Operations() *OperationRepo {
	return &OperationRepo{store: s}
}

func (s *Store) committedWallet(name string) (domain.Wallet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wallets[name]
	return w, ok
}

// Tx is a memory transaction. Only Commit and Rollback are implemented; the
// SQL methods of pgx.Tx are not available.
type Tx struct {
	pgx.Tx

	store   *Store
	held    map[string]struct{}
	pending map[string]domain.Wallet
	ops     []domain.Operation
	closed  bool
}

func asTx(tx pgx.Tx) (*Tx, error) {
	t, ok := tx.(*Tx)
	if !ok {
		return nil, errForeignTx
	}
	if t.closed {
		return nil, pgx.ErrTxClosed
	}
	return t, nil
}

// lock takes the row lock for name unless this transaction holds it already.
func (t *Tx) lock(ctx context.Context, name string) error {
	if _, ok := t.held[name]; ok {
		return nil
	}
	if t.store.lockTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.store.lockTimeout)
		defer cancel()
	}
	if err := t.store.locks.acquire(ctx, name); err != nil {
		return fmt.Errorf("%w: row lock on wallet %s: %w", domain.ErrContention, name, err)
	}
	t.held[name] = struct{}{}
	return nil
}

// wallet reads name as this transaction sees it.
func (t *Tx) wallet(name string) (domain.Wallet, bool) {
	if w, ok := t.pending[name]; ok {
		return w, true
	}
	return t.store.committedWallet(name)
}

// Commit publishes pending writes atomically and releases the row locks.
func (t *Tx) Commit(_ context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.closed = true

	s := t.store
	s.mu.Lock()
	for name, w := range t.pending {
		s.wallets[name] = w
	}
	s.ops = append(s.ops, t.ops...)
	s.mu.Unlock()

	t.release()
	return nil
}

// Rollback discards pending writes. After Commit it returns pgx.ErrTxClosed,
// which callers deferring Rollback ignore.
func (t *Tx) Rollback(_ context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.closed = true
	t.pending = nil
	t.ops = nil
	t.release()
	return nil
}

func (t *Tx) release() {
	for name := range t.held {
		t.store.locks.release(name)
	}
	t.held = nil
}

// WalletRepo implements ports.WalletRepository on a Store.
type WalletRepo struct {
	store *Store
}

// Create inserts a wallet. Like a unique index, it waits for a concurrent
// creator of the same name and then fails with domain.ErrDuplicateKey.
func (r *WalletRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if err := t.lock(ctx, w.Name); err != nil {
		return err
	}
	if _, exists := t.wallet(w.Name); exists {
		return fmt.Errorf("insert wallet %s: %w", w.Name, domain.ErrDuplicateKey)
	}
	t.pending[w.Name] = *w
	return nil
}

// GetByName reads committed state without locking.
func (r *WalletRepo) GetByName(_ context.Context, name string) (*domain.Wallet, error) {
	w, ok := r.store.committedWallet(name)
	if !ok {
		return nil, nil
	}
	return &w, nil
}

// GetByNameForUpdate locks the row for the rest of the transaction.
func (r *WalletRepo) GetByNameForUpdate(ctx context.Context, tx pgx.Tx, name string) (*domain.Wallet, error) {
	t, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	if err := t.lock(ctx, name); err != nil {
		return nil, err
	}
	w, ok := t.wallet(name)
	if !ok {
		return nil, nil
	}
	return &w, nil
}

// UpdateBalance requires the row lock taken by GetByNameForUpdate or Create.
func (r *WalletRepo) UpdateBalance(_ context.Context, tx pgx.Tx, name string, balance domain.Money) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if _, ok := t.held[name]; !ok {
		return fmt.Errorf("update wallet balance: row %s is not locked by this transaction", name)
	}
	w, ok := t.wallet(name)
	if !ok {
		return fmt.Errorf("wallet not found: %s", name)
	}
	if balance.IsNegative() {
		return fmt.Errorf("update wallet balance: %s would go below zero", name)
	}
	w.Balance = balance
	w.UpdatedAt = time.Now().UTC()
	t.pending[name] = w
	return nil
}

// List returns committed wallets ordered by name.
func (r *WalletRepo) List(_ context.Context) ([]domain.Wallet, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	wallets := make([]domain.Wallet, 0, len(r.store.wallets))
	for _, w := range r.store.wallets {
		wallets = append(wallets, w)
	}
	sort.Slice(wallets, func(i, j int) bool { return wallets[i].Name < wallets[j].Name })
	return wallets, nil
}

// OperationRepo implements ports.OperationRepository on a Store.
type OperationRepo struct {
	store *Store
}

// Append buffers op until commit. Seq is assigned immediately and, like a
// database sequence, is not reused after a rollback.
func (r *OperationRepo) Append(_ context.Context, tx pgx.Tx, op *domain.Operation) error {
	t, err := asTx(tx)
	if err != nil {
		return err
	}
	if err := op.Validate(); err != nil {
		return fmt.Errorf("append operation %s: %w", op.ID, err)
	}
	op.Seq = r.store.seq.Add(1)
	t.ops = append(t.ops, *op)
	return nil
}

// ListByWallet returns committed operations involving name, oldest first.
func (r *OperationRepo) ListByWallet(_ context.Context, name string, limit, offset int) ([]domain.Operation, error) {
	matched := r.involving(name)
	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].Time.Equal(matched[j].Time) {
			return matched[i].Time.Before(matched[j].Time)
		}
		return matched[i].Seq < matched[j].Seq
	})

	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

// CountByWallet returns how many committed operations involve name.
func (r *OperationRepo) CountByWallet(_ context.Context, name string) (int64, error) {
	return int64(len(r.involving(name))), nil
}

func (r *OperationRepo) involving(name string) []domain.Operation {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []domain.Operation
	for _, op := range r.store.ops {
		if op.Involves(name) {
			out = append(out, op)
		}
	}
	return out
}
