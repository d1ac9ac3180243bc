package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"wallet-ledger/internal/core/domain"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"serialization failure", &pgconn.PgError{Code: "40001"}, domain.ErrContention},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, domain.ErrContention},
		{"lock timeout", fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "55P03"}), domain.ErrContention},
		{"unique violation", &pgconn.PgError{Code: "23505"}, domain.ErrDuplicateKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			assert.ErrorIs(t, got, tt.want)
			var pgErr *pgconn.PgError
			assert.True(t, errors.As(got, &pgErr), "original error stays reachable")
		})
	}
}

func TestClassify_PassesThroughOtherErrors(t *testing.T) {
	plain := errors.New("connection refused")
	assert.Equal(t, plain, classify(plain))

	undefinedTable := &pgconn.PgError{Code: "42P01"}
	got := classify(undefinedTable)
	assert.NotErrorIs(t, got, domain.ErrContention)
	assert.NotErrorIs(t, got, domain.ErrDuplicateKey)

	assert.Nil(t, classify(nil))
}

func TestMigrate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS wallets").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, Migrate(context.Background(), mock))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_CommitClassifiesSerializationFailure(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(&pgconn.PgError{Code: "40001"})

	tx, err := NewTransactor(mock).Begin(context.Background())
	require.NoError(t, err)

	err = tx.Commit(context.Background())
	assert.ErrorIs(t, err, domain.ErrContention)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactor_BeginError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	tx, err := NewTransactor(mock).Begin(context.Background())
	assert.Nil(t, tx)
	assert.ErrorContains(t, err, "begin transaction")
}

func TestHealthCheck(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("SELECT 1").WillReturnResult(pgxmock.NewResult("SELECT", 1))

	hc := NewHealthCheck(mock)
	assert.Equal(t, "postgresql", hc.Name())
	assert.NoError(t, hc.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
