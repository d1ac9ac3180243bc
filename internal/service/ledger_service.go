package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/guard"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/metrics"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// Ledger operation names, as they appear in logs and metrics.
const (
	opCreateWallet = "create_wallet"
	opDeposit      = "deposit"
	opTransfer     = "transfer"
)

const defaultHistoryPageSize = 15

// LedgerConfig tunes the ledger engine.
type LedgerConfig struct {
	AdminToken      string
	MaxAttempts     int           // attempts per operation when storage reports contention
	RetryBackoff    time.Duration // multiplied by the attempt number
	HistoryPageSize int
}

// LedgerServiceImpl implements ports.LedgerService.
type LedgerServiceImpl struct {
	walletRepo ports.WalletRepository
	opRepo     ports.OperationRepository
	transactor ports.DBTransactor
	hasher     ports.CredentialHasher
	register   ports.OperationIDRegister // nil disables operation id checks
	cfg        LedgerConfig
	metrics    *metrics.Metrics
	log        zerolog.Logger
	now        func() time.Time
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	walletRepo ports.WalletRepository,
	opRepo ports.OperationRepository,
	transactor ports.DBTransactor,
	hasher ports.CredentialHasher,
	register ports.OperationIDRegister,
	cfg LedgerConfig,
	m *metrics.Metrics,
	log zerolog.Logger,
) *LedgerServiceImpl {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.HistoryPageSize < 1 {
		cfg.HistoryPageSize = defaultHistoryPageSize
	}
	return &LedgerServiceImpl{
		walletRepo: walletRepo,
		opRepo:     opRepo,
		transactor: transactor,
		hasher:     hasher,
		register:   register,
		cfg:        cfg,
		metrics:    m,
		log:        log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreateWallet registers a wallet with a zero balance and records its
// creation operation in the same transaction.
func (s *LedgerServiceImpl) CreateWallet(ctx context.Context, req ports.CreateWalletRequest) (*domain.Wallet, error) {
	existing, err := s.walletRepo.GetByName(ctx, req.Name)
	if err != nil {
		return nil, s.finish(opCreateWallet, fmt.Errorf("get wallet: %w", err))
	}

	state := guard.State{
		Wallets: walletSet(existing),
		Args:    guard.Args{Name: req.Name, Password: req.Password},
	}
	if err := guard.Run(state, guard.CreateWallet(req.Name)...); err != nil {
		return nil, s.finish(opCreateWallet, err)
	}

	hash, err := s.hasher.Hash(*req.Password)
	if err != nil {
		return nil, s.finish(opCreateWallet, apperror.InternalError(fmt.Errorf("hash credential: %w", err)))
	}

	now := s.now()
	wallet := &domain.Wallet{
		Name:           req.Name,
		CredentialHash: hash,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.run(ctx, opCreateWallet, func(ctx context.Context) error {
		dbTx, err := s.transactor.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer dbTx.Rollback(ctx) //nolint:errcheck

		// A concurrent creation of the same name loses on the unique key.
		if err := s.walletRepo.Create(ctx, dbTx, wallet); err != nil {
			if errors.Is(err, domain.ErrDuplicateKey) {
				return apperror.ErrWalletExists(req.Name)
			}
			return fmt.Errorf("create wallet: %w", err)
		}

		op := domain.NewCreation(req.Name, now)
		if err := s.opRepo.Append(ctx, dbTx, &op); err != nil {
			return fmt.Errorf("append operation: %w", err)
		}

		if err := dbTx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("wallet", req.Name).Msg("wallet created")
	return wallet, nil
}

// Deposit credits a wallet. It is reserved to the administrative token.
func (s *LedgerServiceImpl) Deposit(ctx context.Context, req ports.DepositRequest) (domain.Money, error) {
	args := guard.Args{Name: req.Name, Sum: req.Sum, Token: req.Token}
	if err := guard.Run(guard.State{Args: args, AdminToken: s.cfg.AdminToken}, guard.Admin()...); err != nil {
		return 0, s.finish(opDeposit, err)
	}

	release, err := s.claimOperationID(ctx, req.OperationID)
	if err != nil {
		return 0, s.finish(opDeposit, err)
	}

	var (
		amount  domain.Money
		balance domain.Money
	)
	err = s.run(ctx, opDeposit, func(ctx context.Context) error {
		dbTx, err := s.transactor.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer dbTx.Rollback(ctx) //nolint:errcheck

		locked, err := s.lockWallets(ctx, dbTx, req.Name)
		if err != nil {
			return err
		}

		state := guard.State{Wallets: locked, Args: args}
		if err := guard.Run(state, guard.Deposit(req.Name)...); err != nil {
			return err
		}
		amount, _ = state.Amount()

		wallet := locked[req.Name]
		if !canCredit(wallet.Balance, amount) {
			return errSumOutOfRange()
		}
		wallet = wallet.Credit(amount)

		if err := s.walletRepo.UpdateBalance(ctx, dbTx, wallet.Name, wallet.Balance); err != nil {
			return fmt.Errorf("update balance: %w", err)
		}

		op := domain.NewDeposit(req.Name, amount, s.now())
		if err := s.opRepo.Append(ctx, dbTx, &op); err != nil {
			return fmt.Errorf("append operation: %w", err)
		}

		if err := dbTx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		balance = wallet.Balance
		return nil
	})
	if err != nil {
		release()
		return 0, err
	}

	s.log.Info().
		Str("wallet", req.Name).
		Stringer("amount", amount).
		Stringer("balance", balance).
		Msg("deposit applied")

	return balance, nil
}

// Transfer moves money between two wallets and returns the payer's new
// balance. Both rows are locked in name order, so opposing transfers
// cannot deadlock each other.
func (s *LedgerServiceImpl) Transfer(ctx context.Context, req ports.TransferRequest) (domain.Money, error) {
	if _, err := s.authorize(ctx, req.From, req.Password); err != nil {
		return 0, s.finish(opTransfer, err)
	}

	release, err := s.claimOperationID(ctx, req.OperationID)
	if err != nil {
		return 0, s.finish(opTransfer, err)
	}

	names := []string{req.From}
	if req.To != nil && *req.To != "" {
		names = append(names, *req.To)
	}

	var (
		amount  domain.Money
		balance domain.Money
	)
	err = s.run(ctx, opTransfer, func(ctx context.Context) error {
		dbTx, err := s.transactor.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer dbTx.Rollback(ctx) //nolint:errcheck

		locked, err := s.lockWallets(ctx, dbTx, names...)
		if err != nil {
			return err
		}

		state := guard.State{
			Wallets: locked,
			Args:    guard.Args{Name: req.From, To: req.To, Sum: req.Sum, Password: req.Password},
		}
		if err := guard.Run(state, guard.Transfer(req.From)...); err != nil {
			return err
		}
		amount, _ = state.Amount()

		payer := locked[req.From].Debit(amount)
		payee := locked[state.Recipient()]
		if !canCredit(payee.Balance, amount) {
			return errSumOutOfRange()
		}
		payee = payee.Credit(amount)

		for _, w := range []domain.Wallet{payer, payee} {
			if err := s.walletRepo.UpdateBalance(ctx, dbTx, w.Name, w.Balance); err != nil {
				return fmt.Errorf("update balance of %s: %w", w.Name, err)
			}
		}

		op := domain.NewTransfer(payer.Name, payee.Name, amount, s.now())
		if err := s.opRepo.Append(ctx, dbTx, &op); err != nil {
			return fmt.Errorf("append operation: %w", err)
		}

		if err := dbTx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		balance = payer.Balance
		return nil
	})
	if err != nil {
		release()
		return 0, err
	}

	s.log.Info().
		Str("from", req.From).
		Str("to", *req.To).
		Stringer("amount", amount).
		Msg("transfer applied")

	return balance, nil
}

// GetBalance returns the committed balance of a wallet.
func (s *LedgerServiceImpl) GetBalance(ctx context.Context, req ports.AccessRequest) (domain.Money, error) {
	wallet, err := s.authorize(ctx, req.Name, req.Password)
	if err != nil {
		return 0, s.readError(err)
	}
	return wallet.Balance, nil
}

// GetHistory returns every operation involving the wallet, oldest first,
// with amounts signed from the wallet's point of view.
func (s *LedgerServiceImpl) GetHistory(ctx context.Context, req ports.AccessRequest) ([]domain.Operation, error) {
	if _, err := s.authorize(ctx, req.Name, req.Password); err != nil {
		return nil, s.readError(err)
	}

	ops, err := s.opRepo.ListByWallet(ctx, req.Name, 0, 0)
	if err != nil {
		return nil, s.readError(fmt.Errorf("list operations: %w", err))
	}
	return domain.ViewWithSign(ops, req.Name), nil
}

// GetHistoryPage returns one page of GetHistory. Pages are 1-based; a page
// past the last one is NotFound.
func (s *LedgerServiceImpl) GetHistoryPage(ctx context.Context, req ports.HistoryPageRequest) (*ports.HistoryPage, error) {
	if _, err := s.authorize(ctx, req.Name, req.Password); err != nil {
		return nil, s.readError(err)
	}

	total, err := s.opRepo.CountByWallet(ctx, req.Name)
	if err != nil {
		return nil, s.readError(fmt.Errorf("count operations: %w", err))
	}

	size := s.cfg.HistoryPageSize
	totalPages := int((total + int64(size) - 1) / int64(size))
	if totalPages < 1 {
		totalPages = 1
	}
	if req.Page < 1 || req.Page > totalPages {
		return nil, apperror.NotFound(fmt.Sprintf("Page %d doesn't exist", req.Page))
	}

	ops, err := s.opRepo.ListByWallet(ctx, req.Name, size, (req.Page-1)*size)
	if err != nil {
		return nil, s.readError(fmt.Errorf("list operations: %w", err))
	}

	return &ports.HistoryPage{
		Page:       req.Page,
		TotalPages: totalPages,
		Items:      domain.ViewWithSign(ops, req.Name),
	}, nil
}

// ListWallets returns every wallet ordered by name. It is reserved to the
// administrative token.
func (s *LedgerServiceImpl) ListWallets(ctx context.Context, token *string) ([]domain.Wallet, error) {
	state := guard.State{Args: guard.Args{Token: token}, AdminToken: s.cfg.AdminToken}
	if err := guard.Run(state, guard.Admin()...); err != nil {
		return nil, err
	}

	wallets, err := s.walletRepo.List(ctx)
	if err != nil {
		return nil, s.readError(fmt.Errorf("list wallets: %w", err))
	}
	return wallets, nil
}

// authorize checks the owner's credential on a committed, unlocked read.
// Hashing is slow, so it stays outside the row locks.
func (s *LedgerServiceImpl) authorize(ctx context.Context, name string, password *string) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get wallet: %w", err)
	}

	state := guard.State{
		Wallets: walletSet(wallet),
		Args:    guard.Args{Name: name, Password: password},
		Hasher:  s.hasher,
	}
	if err := guard.Run(state, guard.Access(name)...); err != nil {
		return nil, err
	}
	return wallet, nil
}

// lockWallets locks the named rows FOR UPDATE in ascending name order and
// returns the ones that exist.
func (s *LedgerServiceImpl) lockWallets(ctx context.Context, tx pgx.Tx, names ...string) (map[string]domain.Wallet, error) {
	ordered := make([]string, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		ordered = append(ordered, name)
	}
	sort.Strings(ordered)

	locked := make(map[string]domain.Wallet, len(ordered))
	for _, name := range ordered {
		w, err := s.walletRepo.GetByNameForUpdate(ctx, tx, name)
		if err != nil {
			return nil, fmt.Errorf("lock wallet %s: %w", name, err)
		}
		if w != nil {
			locked[name] = *w
		}
	}
	return locked, nil
}

// claimOperationID records a client-supplied operation id. The returned
// func forgets it again and must be called if the operation fails, so the
// client can retry. An unavailable register does not block the operation.
func (s *LedgerServiceImpl) claimOperationID(ctx context.Context, id string) (func(), error) {
	noop := func() {}
	if id == "" || s.register == nil {
		return noop, nil
	}

	fresh, err := s.register.Verify(ctx, id)
	if err != nil {
		s.log.Warn().Err(err).Str("operation_id", id).Msg("operation id check failed, proceeding without it")
		return noop, nil
	}
	if !fresh {
		return nil, apperror.ErrDuplicateOperation()
	}

	return func() {
		if err := s.register.Release(context.WithoutCancel(ctx), id); err != nil {
			s.log.Warn().Err(err).Str("operation_id", id).Msg("failed to release operation id")
		}
	}, nil
}

// run executes attempt, retrying it with a linear backoff while storage
// reports contention. The result has already passed through finish.
func (s *LedgerServiceImpl) run(ctx context.Context, op string, attempt func(ctx context.Context) error) error {
	var err error
	for i := 1; i <= s.cfg.MaxAttempts; i++ {
		if i > 1 {
			s.metrics.LedgerRetry(op)
			if werr := sleepCtx(ctx, time.Duration(i-1)*s.cfg.RetryBackoff); werr != nil {
				break
			}
		}

		err = attempt(ctx)
		if !errors.Is(err, domain.ErrContention) {
			break
		}
		s.log.Warn().Err(err).Str("operation", op).Int("attempt", i).Msg("storage contention")
	}
	return s.finish(op, err)
}

// finish counts the outcome of a mutating operation and turns err into an
// *apperror.AppError.
func (s *LedgerServiceImpl) finish(op string, err error) error {
	if err == nil {
		s.metrics.LedgerOperation(op, metrics.OutcomeOK)
		return nil
	}

	var appErr *apperror.AppError
	switch {
	case errors.As(err, &appErr):
		if appErr.HTTPStatus >= 500 {
			s.metrics.LedgerOperation(op, metrics.OutcomeError)
			s.log.Error().Err(err).Str("operation", op).Msg("ledger operation failed")
		} else {
			s.metrics.LedgerOperation(op, metrics.OutcomeRejected)
		}
		return appErr
	case errors.Is(err, domain.ErrContention):
		s.metrics.LedgerOperation(op, metrics.OutcomeError)
		s.log.Error().Err(err).Str("operation", op).Msg("retries exhausted")
		return apperror.ErrContention(err)
	default:
		s.metrics.LedgerOperation(op, metrics.OutcomeError)
		s.log.Error().Err(err).Str("operation", op).Msg("ledger operation failed")
		return apperror.ErrDatabaseError(err)
	}
}

// readError maps a failure of a read-only operation.
func (s *LedgerServiceImpl) readError(err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	s.log.Error().Err(err).Msg("ledger read failed")
	return apperror.ErrDatabaseError(err)
}

func walletSet(w *domain.Wallet) map[string]domain.Wallet {
	if w == nil {
		return map[string]domain.Wallet{}
	}
	return map[string]domain.Wallet{w.Name: *w}
}

func canCredit(balance, amount domain.Money) bool {
	return balance <= domain.Money(math.MaxInt64)-amount
}

func errSumOutOfRange() *apperror.AppError {
	return apperror.InvalidArgument("Sum is out of range")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
