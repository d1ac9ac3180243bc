package postgres

import (
	"context"
	"fmt"

	"wallet-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const operationColumns = `seq, id, optype, time, amount, sent_to, get_from`

// OperationRepo implements ports.OperationRepository. Rows are only ever
// inserted.
type OperationRepo struct {
	pool Pool
}

// NewOperationRepo creates a new OperationRepo.
func NewOperationRepo(pool Pool) *OperationRepo {
	return &OperationRepo{pool: pool}
}

// Append inserts op inside tx and sets op.Seq.
func (r *OperationRepo) Append(ctx context.Context, tx pgx.Tx, op *domain.Operation) error {
	if err := op.Validate(); err != nil {
		return fmt.Errorf("append operation %s: %w", op.ID, err)
	}

	query := `INSERT INTO operations (id, optype, time, amount, sent_to, get_from)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING seq`

	var amount *int64
	if op.Amount != nil {
		cents := op.Amount.Cents()
		amount = &cents
	}

	err := tx.QueryRow(ctx, query,
		op.ID, string(op.Type), op.Time, amount, op.SentTo, op.GetFrom,
	).Scan(&op.Seq)
	if err != nil {
		return fmt.Errorf("insert operation: %w", classify(err))
	}
	return nil
}

// ListByWallet returns the wallet's operations oldest first.
func (r *OperationRepo) ListByWallet(ctx context.Context, name string, limit, offset int) ([]domain.Operation, error) {
	query := `SELECT ` + operationColumns + ` FROM operations
		WHERE sent_to = $1 OR get_from = $1
		ORDER BY time ASC, seq ASC
		LIMIT $2 OFFSET $3`

	// LIMIT NULL means no limit.
	var lim *int64
	if limit > 0 {
		l := int64(limit)
		lim = &l
	}

	rows, err := r.pool.Query(ctx, query, name, lim, int64(offset))
	if err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	defer rows.Close()

	var ops []domain.Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan operation row: %w", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate operation rows: %w", err)
	}
	return ops, nil
}

// CountByWallet returns how many operations involve the wallet.
func (r *OperationRepo) CountByWallet(ctx context.Context, name string) (int64, error) {
	query := `SELECT COUNT(*) FROM operations WHERE sent_to = $1 OR get_from = $1`

	var n int64
	if err := r.pool.QueryRow(ctx, query, name).Scan(&n); err != nil {
		return 0, fmt.Errorf("count operations: %w", err)
	}
	return n, nil
}

func scanOperation(row pgx.Row) (domain.Operation, error) {
	var (
		op     domain.Operation
		optype string
		amount *int64
	)
	if err := row.Scan(&op.Seq, &op.ID, &optype, &op.Time, &amount, &op.SentTo, &op.GetFrom); err != nil {
		return domain.Operation{}, err
	}
	op.Type = domain.OperationType(optype)
	if amount != nil {
		m := domain.FromCents(*amount)
		op.Amount = &m
	}
	return op, nil
}
