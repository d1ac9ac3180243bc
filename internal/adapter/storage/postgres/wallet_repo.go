package postgres

import (
	"context"
	"errors"
	"fmt"

	"wallet-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const walletColumns = `name, balance, credential_hash, created_at, updated_at`

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// Create inserts a new wallet inside tx.
func (r *WalletRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	query := `INSERT INTO wallets (` + walletColumns + `) VALUES ($1, $2, $3, $4, $5)`

	_, err := tx.Exec(ctx, query,
		w.Name, w.Balance.Cents(), w.CredentialHash, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert wallet: %w", classify(err))
	}
	return nil
}

// GetByName fetches a wallet without locking.
func (r *WalletRepo) GetByName(ctx context.Context, name string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE name = $1`

	w, err := scanWallet(r.pool.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet by name: %w", err)
	}
	return w, nil
}

// GetByNameForUpdate fetches a wallet and locks its row until tx ends.
// This MUST be called within a transaction.
func (r *WalletRepo) GetByNameForUpdate(ctx context.Context, tx pgx.Tx, name string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE name = $1 FOR UPDATE`

	w, err := scanWallet(tx.QueryRow(ctx, query, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet for update: %w", classify(err))
	}
	return w, nil
}

// UpdateBalance sets a wallet's balance within a transaction.
func (r *WalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, name string, balance domain.Money) error {
	query := `UPDATE wallets SET balance = $1, updated_at = NOW() WHERE name = $2`

	tag, err := tx.Exec(ctx, query, balance.Cents(), name)
	if err != nil {
		return fmt.Errorf("update wallet balance: %w", classify(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", name)
	}
	return nil
}

// List returns every wallet ordered by name.
func (r *WalletRepo) List(ctx context.Context) ([]domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets ORDER BY name`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	defer rows.Close()

	var wallets []domain.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wallet row: %w", err)
		}
		wallets = append(wallets, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet rows: %w", err)
	}
	return wallets, nil
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	var (
		w     domain.Wallet
		cents int64
	)
	if err := row.Scan(&w.Name, &cents, &w.CredentialHash, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	w.Balance = domain.FromCents(cents)
	return &w, nil
}
