package ports

import (
	"context"
	"time"

	"wallet-ledger/internal/core/domain"
)

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

// CredentialHasher hashes and verifies wallet secrets (Argon2id).
type CredentialHasher interface {
	Hash(secret string) (string, error)
	Verify(secret string, encoded string) (bool, error)
}

// OperationIDRegister remembers client-supplied operation ids so a retried
// request is not applied twice.
type OperationIDRegister interface {
	// Verify records id and returns true if it was not seen before.
	// A seen id returns false and is left as is.
	Verify(ctx context.Context, id string) (bool, error)
	// Release forgets id, used when the operation it guarded failed.
	Release(ctx context.Context, id string) error
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}

// RateLimitStore counts requests per key and window.
type RateLimitStore interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}

// --- Service Ports (Business Logic) ---

// LedgerService is the ledger engine: every balance change and the
// operation recording it commit together.
type LedgerService interface {
	CreateWallet(ctx context.Context, req CreateWalletRequest) (*domain.Wallet, error)
	Deposit(ctx context.Context, req DepositRequest) (domain.Money, error)
	Transfer(ctx context.Context, req TransferRequest) (domain.Money, error)
	GetBalance(ctx context.Context, req AccessRequest) (domain.Money, error)
	GetHistory(ctx context.Context, req AccessRequest) ([]domain.Operation, error)
	GetHistoryPage(ctx context.Context, req HistoryPageRequest) (*HistoryPage, error)
	ListWallets(ctx context.Context, token *string) ([]domain.Wallet, error)
}

// Request arguments are passed as received. A nil pointer means the client
// did not send the argument.

type CreateWalletRequest struct {
	Name     string
	Password *string
}

type DepositRequest struct {
	Name        string
	Sum         *string
	Token       *string
	OperationID string // optional idempotency key
}

type TransferRequest struct {
	From        string
	To          *string
	Sum         *string
	Password    *string
	OperationID string // optional idempotency key
}

type AccessRequest struct {
	Name     string
	Password *string
}

type HistoryPageRequest struct {
	AccessRequest
	Page int // 1-based
}

// HistoryPage is one page of a wallet's sign-adjusted history.
type HistoryPage struct {
	Page       int
	TotalPages int
	Items      []domain.Operation
}
