package postgres

import (
	"context"
	"testing"
	"time"

	"wallet-ledger-service/internal/core/domain"
	"wallet-ledger-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransaction(walletID uuid.UUID, txType domain.TransactionType) *domain.Transaction {
	return &domain.Transaction{
		ID:        uuid.New(),
		WalletID:  walletID,
		Type:      txType,
		Amount:    5000,
		Reference: "ref-001",
		Metadata:  domain.Metadata{"source": "test"},
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func transactionColumns() []string {
	return []string{"id", "wallet_id", "type", "amount", "reference", "created_at", "metadata"}
}

func transactionRow(t *domain.Transaction) *pgxmock.Rows {
	return pgxmock.NewRows(transactionColumns()).AddRow(
		t.ID, t.WalletID, t.Type, t.Amount, t.Reference, t.CreatedAt, t.Metadata,
	)
}

func TestTransactionRepo_Insert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction(uuid.New(), domain.TransactionTypeDeposit)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(txn.ID, txn.WalletID, txn.Type, txn.Amount, txn.Reference, txn.CreatedAt, txn.Metadata).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Insert(context.Background(), tx, txn)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_Insert_ImmutableViolation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction(uuid.New(), domain.TransactionTypeDeposit)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO transactions").
		WithArgs(txn.ID, txn.WalletID, txn.Type, txn.Amount, txn.Reference, txn.CreatedAt, txn.Metadata).
		WillReturnError(&pgconn.PgError{Code: immutableErrCode, Message: "ledger entries are immutable"})

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Insert(context.Background(), tx, txn)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "LED_005", appErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction(uuid.New(), domain.TransactionTypeWithdrawal)

	mock.ExpectQuery("SELECT .+ FROM transactions WHERE id").
		WithArgs(txn.ID).
		WillReturnRows(transactionRow(txn))

	result, err := repo.GetByID(context.Background(), txn.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, txn.ID, result.ID)
	assert.Equal(t, domain.TransactionTypeWithdrawal, result.Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_FindByReference(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction(uuid.New(), domain.TransactionTypeDeposit)

	mock.ExpectQuery("SELECT .+ FROM transactions WHERE wallet_id .+ AND reference .+ AND type").
		WithArgs(txn.WalletID, txn.Reference, txn.Type).
		WillReturnRows(transactionRow(txn))

	result, err := repo.FindByReference(context.Background(), txn.WalletID, txn.Reference, txn.Type)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, txn.ID, result.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_FindByReference_Miss(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	walletID := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM transactions WHERE wallet_id .+ AND reference .+ AND type").
		WithArgs(walletID, "unknown", domain.TransactionTypeDeposit).
		WillReturnRows(pgxmock.NewRows(transactionColumns()))

	result, err := repo.FindByReference(context.Background(), walletID, "unknown", domain.TransactionTypeDeposit)
	require.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_FindByReferenceInTx(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction(uuid.New(), domain.TransactionTypeTransferOut)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM transactions WHERE wallet_id .+ AND reference .+ AND type").
		WithArgs(txn.WalletID, txn.Reference, txn.Type).
		WillReturnRows(transactionRow(txn))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	result, err := repo.FindByReferenceInTx(context.Background(), tx, txn.WalletID, txn.Reference, txn.Type)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, txn.ID, result.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_FindCreditLeg(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	txn := newTestTransaction(uuid.New(), domain.TransactionTypeTransferIn)

	mock.ExpectQuery("SELECT .+ FROM transactions WHERE reference .+ AND type .+ AND created_at").
		WithArgs(txn.Reference, domain.TransactionTypeTransferIn, txn.CreatedAt).
		WillReturnRows(transactionRow(txn))

	result, err := repo.FindCreditLeg(context.Background(), txn.Reference, txn.CreatedAt)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, txn.ID, result.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_SumSince(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	walletID := uuid.New()
	since := time.Now().UTC().Add(-time.Hour)

	mock.ExpectQuery("SELECT COALESCE.+ FROM transactions WHERE wallet_id .+ AND created_at").
		WithArgs(walletID, since).
		WillReturnRows(pgxmock.NewRows([]string{"coalesce"}).AddRow(int64(-1500)))

	sum, err := repo.SumSince(context.Background(), walletID, since)
	require.NoError(t, err)
	assert.Equal(t, int64(-1500), sum)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_SumSinceInTx(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	walletID := uuid.New()
	since := time.Now().UTC().Add(-time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COALESCE.+ FROM transactions WHERE wallet_id .+ AND created_at").
		WithArgs(walletID, since).
		WillReturnRows(pgxmock.NewRows([]string{"coalesce"}).AddRow(int64(7000)))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	sum, err := repo.SumSinceInTx(context.Background(), tx, walletID, since)
	require.NoError(t, err)
	assert.Equal(t, int64(7000), sum)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_List(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	walletID := uuid.New()
	newer := newTestTransaction(walletID, domain.TransactionTypeDeposit)
	older := newTestTransaction(walletID, domain.TransactionTypeWithdrawal)
	older.CreatedAt = newer.CreatedAt.Add(-time.Minute)

	mock.ExpectQuery("SELECT COUNT.+ FROM transactions WHERE wallet_id").
		WithArgs(walletID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(42)))
	mock.ExpectQuery("SELECT .+ FROM transactions WHERE wallet_id .+ ORDER BY created_at DESC").
		WithArgs(walletID, 20, 0).
		WillReturnRows(pgxmock.NewRows(transactionColumns()).
			AddRow(newer.ID, newer.WalletID, newer.Type, newer.Amount, newer.Reference, newer.CreatedAt, newer.Metadata).
			AddRow(older.ID, older.WalletID, older.Type, older.Amount, older.Reference, older.CreatedAt, older.Metadata))

	items, total, err := repo.List(context.Background(), walletID, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(42), total)
	require.Len(t, items, 2)
	assert.Equal(t, newer.ID, items[0].ID)
	assert.Equal(t, older.ID, items[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransactionRepo_List_Empty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTransactionRepo(mock)
	walletID := uuid.New()

	mock.ExpectQuery("SELECT COUNT.+ FROM transactions WHERE wallet_id").
		WithArgs(walletID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectQuery("SELECT .+ FROM transactions WHERE wallet_id .+ ORDER BY created_at DESC").
		WithArgs(walletID, 20, 0).
		WillReturnRows(pgxmock.NewRows(transactionColumns()))

	items, total, err := repo.List(context.Background(), walletID, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Empty(t, items)
	assert.NoError(t, mock.ExpectationsWereMet())
}
