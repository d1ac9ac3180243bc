package ports

import (
	"context"

	"wallet-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx run inside the caller's transaction; the
// ForUpdate variant holds the row lock until that transaction ends.
type WalletRepository interface {
	// Create inserts a wallet. A taken name yields domain.ErrDuplicateKey.
	Create(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error
	// GetByName returns nil, nil when the wallet does not exist.
	GetByName(ctx context.Context, name string) (*domain.Wallet, error)
	GetByNameForUpdate(ctx context.Context, tx pgx.Tx, name string) (*domain.Wallet, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, name string, balance domain.Money) error
	List(ctx context.Context) ([]domain.Wallet, error)
}

// OperationRepository is the append-only operation log.
type OperationRepository interface {
	Append(ctx context.Context, tx pgx.Tx, op *domain.Operation) error
	// ListByWallet returns operations where the wallet is sender or
	// recipient, oldest first. limit <= 0 returns everything from offset.
	ListByWallet(ctx context.Context, name string, limit, offset int) ([]domain.Operation, error)
	CountByWallet(ctx context.Context, name string) (int64, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
