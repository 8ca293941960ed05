package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"wallet-ledger-service/internal/core/domain"
	"wallet-ledger-service/internal/core/ports/mocks"
	"wallet-ledger-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

type ledgerDeps struct {
	walletRepo *mocks.MockWalletRepository
	txRepo     *mocks.MockTransactionRepository
	transactor *mocks.MockDBTransactor
}

func setupLedgerService(t *testing.T) (*LedgerServiceImpl, ledgerDeps, *gomock.Controller) {
	ctrl := gomock.NewController(t)
	d := ledgerDeps{
		walletRepo: mocks.NewMockWalletRepository(ctrl),
		txRepo:     mocks.NewMockTransactionRepository(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
	}
	svc := NewLedgerService(d.walletRepo, d.txRepo, d.transactor, zerolog.Nop())
	return svc, d, ctrl
}

func testWallet(id uuid.UUID) *domain.Wallet {
	return &domain.Wallet{
		ID:                id,
		UserID:            uuid.New(),
		LastBalance:       0,
		LastBalanceUpdate: time.Now().UTC().Add(-time.Hour),
		CreatedAt:         time.Now().UTC().Add(-time.Hour),
	}
}

func TestLedgerService_Deposit_Success(t *testing.T) {
	svc, d, ctrl := setupLedgerService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()
	wallet := testWallet(walletID)
	tx := &mockTx{}

	d.txRepo.EXPECT().FindByReference(ctx, walletID, "dep-1", domain.TransactionTypeDeposit).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().LockForUpdate(ctx, tx, walletID).
		Return(map[uuid.UUID]*domain.Wallet{walletID: wallet}, nil)
	d.txRepo.EXPECT().FindByReferenceInTx(ctx, tx, walletID, "dep-1", domain.TransactionTypeDeposit).Return(nil, nil)
	d.txRepo.EXPECT().Insert(ctx, tx, gomock.Any()).Return(nil)

	result, created, err := svc.Deposit(ctx, walletID, 5000, "dep-1", nil)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, walletID, result.WalletID)
	assert.Equal(t, domain.TransactionTypeDeposit, result.Type)
	assert.Equal(t, int64(5000), result.Amount)
	assert.Equal(t, "dep-1", result.Reference)
	assert.NotNil(t, result.Metadata)
}

func TestLedgerService_Deposit_InvalidAmount(t *testing.T) {
	svc, _, ctrl := setupLedgerService(t)
	defer ctrl.Finish()

	for _, amount := range []int64{0, -100} {
		_, created, err := svc.Deposit(context.Background(), uuid.New(), amount, "ref", nil)
		assert.False(t, created)
		var appErr *apperror.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "LED_001", appErr.Code)
	}
}

func TestLedgerService_Deposit_ReplayFastPath(t *testing.T) {
	svc, d, ctrl := setupLedgerService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()
	existing := &domain.Transaction{
		ID:        uuid.New(),
		WalletID:  walletID,
		Type:      domain.TransactionTypeDeposit,
		Amount:    5000,
		Reference: "dep-1",
	}

	// The replay must not begin a transaction or take any lock.
	d.txRepo.EXPECT().FindByReference(ctx, walletID, "dep-1", domain.TransactionTypeDeposit).Return(existing, nil)

	result, created, err := svc.Deposit(ctx, walletID, 9999, "dep-1", nil)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, existing.ID, result.ID)
	assert.Equal(t, int64(5000), result.Amount)
}

func TestLedgerService_Deposit_ReplayUnderLock(t *testing.T) {
	svc, d, ctrl := setupLedgerService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()
	wallet := testWallet(walletID)
	tx := &mockTx{}
	existing := &domain.Transaction{ID: uuid.New(), WalletID: walletID, Type: domain.TransactionTypeDeposit, Amount: 5000, Reference: "dep-1"}

	d.txRepo.EXPECT().FindByReference(ctx, walletID, "dep-1", domain.TransactionTypeDeposit).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().LockForUpdate(ctx, tx, walletID).
		Return(map[uuid.UUID]*domain.Wallet{walletID: wallet}, nil)
	// A concurrent request committed between the fast path and the lock.
	d.txRepo.EXPECT().FindByReferenceInTx(ctx, tx, walletID, "dep-1", domain.TransactionTypeDeposit).Return(existing, nil)

	result, created, err := svc.Deposit(ctx, walletID, 5000, "dep-1", nil)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, existing.ID, result.ID)
}

func TestLedgerService_Deposit_WalletNotFound(t *testing.T) {
	svc, d, ctrl := setupLedgerService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()
	tx := &mockTx{}

	d.txRepo.EXPECT().FindByReference(ctx, walletID, "dep-1", domain.TransactionTypeDeposit).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().LockForUpdate(ctx, tx, walletID).
		Return(map[uuid.UUID]*domain.Wallet{}, nil)

	_, _, err := svc.Deposit(ctx, walletID, 5000, "dep-1", nil)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "LED_004", appErr.Code)
}

func TestLedgerService_Withdraw_Success(t *testing.T) {
	svc, d, ctrl := setupLedgerService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()
	wallet := testWallet(walletID)
	wallet.LastBalance = 4000
	tx := &mockTx{}

	d.txRepo.EXPECT().FindByReference(ctx, walletID, "wd-1", domain.TransactionTypeWithdrawal).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().LockForUpdate(ctx, tx, walletID).
		Return(map[uuid.UUID]*domain.Wallet{walletID: wallet}, nil)
	d.txRepo.EXPECT().FindByReferenceInTx(ctx, tx, walletID, "wd-1", domain.TransactionTypeWithdrawal).Return(nil, nil)
	// Snapshot 4000 plus unfolded delta 2000 covers the 5000 withdrawal.
	d.txRepo.EXPECT().SumSinceInTx(ctx, tx, walletID, wallet.LastBalanceUpdate).Return(int64(2000), nil)
	d.txRepo.EXPECT().Insert(ctx, tx, gomock.Any()).Return(nil)

	result, created, err := svc.Withdraw(ctx, walletID, 5000, "wd-1", nil)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.TransactionTypeWithdrawal, result.Type)
	assert.Equal(t, int64(-5000), result.SignedAmount())
}

func TestLedgerService_Withdraw_InsufficientFunds(t *testing.T) {
	svc, d, ctrl := setupLedgerService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()
	wallet := testWallet(walletID)
	wallet.LastBalance = 1000
	tx := &mockTx{}

	d.txRepo.EXPECT().FindByReference(ctx, walletID, "wd-1", domain.TransactionTypeWithdrawal).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().LockForUpdate(ctx, tx, walletID).
		Return(map[uuid.UUID]*domain.Wallet{walletID: wallet}, nil)
	d.txRepo.EXPECT().FindByReferenceInTx(ctx, tx, walletID, "wd-1", domain.TransactionTypeWithdrawal).Return(nil, nil)
	d.txRepo.EXPECT().SumSinceInTx(ctx, tx, walletID, wallet.LastBalanceUpdate).Return(int64(500), nil)
	// No Insert expected: the rejection leaves no trace in the ledger.

	_, created, err := svc.Withdraw(ctx, walletID, 5000, "wd-1", nil)
	assert.False(t, created)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "LED_002", appErr.Code)
}

func TestLedgerService_Transfer_Success(t *testing.T) {
	svc, d, ctrl := setupLedgerService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	fromID := uuid.New()
	toID := uuid.New()
	from := testWallet(fromID)
	from.LastBalance = 10000
	to := testWallet(toID)
	tx := &mockTx{}

	d.txRepo.EXPECT().FindByReference(ctx, fromID, "tr-1", domain.TransactionTypeTransferOut).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().LockForUpdate(ctx, tx, fromID, toID).
		Return(map[uuid.UUID]*domain.Wallet{fromID: from, toID: to}, nil)
	d.txRepo.EXPECT().FindByReferenceInTx(ctx, tx, fromID, "tr-1", domain.TransactionTypeTransferOut).Return(nil, nil)
	d.txRepo.EXPECT().SumSinceInTx(ctx, tx, fromID, from.LastBalanceUpdate).Return(int64(0), nil)
	d.txRepo.EXPECT().Insert(ctx, tx, gomock.Any()).Return(nil).Times(2)

	pair, created, err := svc.Transfer(ctx, fromID, toID, 3000, "tr-1", nil)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.TransactionTypeTransferOut, pair.Out.Type)
	assert.Equal(t, domain.TransactionTypeTransferIn, pair.In.Type)
	assert.Equal(t, fromID, pair.Out.WalletID)
	assert.Equal(t, toID, pair.In.WalletID)
	assert.Equal(t, pair.Out.Reference, pair.In.Reference)
	assert.Equal(t, pair.Out.CreatedAt, pair.In.CreatedAt)
	assert.Equal(t, int64(0), pair.Out.SignedAmount()+pair.In.SignedAmount())
}

func TestLedgerService_Transfer_SameWallet(t *testing.T) {
	svc, _, ctrl := setupLedgerService(t)
	defer ctrl.Finish()

	id := uuid.New()
	_, created, err := svc.Transfer(context.Background(), id, id, 1000, "tr-1", nil)
	assert.False(t, created)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "LED_003", appErr.Code)
}

func TestLedgerService_Transfer_Replay(t *testing.T) {
	svc, d, ctrl := setupLedgerService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	fromID := uuid.New()
	toID := uuid.New()
	createdAt := time.Now().UTC()
	out := &domain.Transaction{ID: uuid.New(), WalletID: fromID, Type: domain.TransactionTypeTransferOut, Amount: 3000, Reference: "tr-1", CreatedAt: createdAt}
	in := &domain.Transaction{ID: uuid.New(), WalletID: toID, Type: domain.TransactionTypeTransferIn, Amount: 3000, Reference: "tr-1", CreatedAt: createdAt}

	d.txRepo.EXPECT().FindByReference(ctx, fromID, "tr-1", domain.TransactionTypeTransferOut).Return(out, nil)
	d.txRepo.EXPECT().FindCreditLeg(ctx, "tr-1", createdAt).Return(in, nil)

	pair, created, err := svc.Transfer(ctx, fromID, toID, 3000, "tr-1", nil)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, out.ID, pair.Out.ID)
	assert.Equal(t, in.ID, pair.In.ID)
}

func TestLedgerService_Transfer_ReplayDifferentRecipient(t *testing.T) {
	svc, d, ctrl := setupLedgerService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	fromID := uuid.New()
	originalToID := uuid.New()
	otherID := uuid.New()
	createdAt := time.Now().UTC()
	out := &domain.Transaction{ID: uuid.New(), WalletID: fromID, Type: domain.TransactionTypeTransferOut, Amount: 3000, Reference: "tr-1", CreatedAt: createdAt}
	in := &domain.Transaction{ID: uuid.New(), WalletID: originalToID, Type: domain.TransactionTypeTransferIn, Amount: 3000, Reference: "tr-1", CreatedAt: createdAt}

	d.txRepo.EXPECT().FindByReference(ctx, fromID, "tr-1", domain.TransactionTypeTransferOut).Return(out, nil)
	d.txRepo.EXPECT().FindCreditLeg(ctx, "tr-1", createdAt).Return(in, nil)

	// A retry naming a different recipient still returns the original pair.
	pair, created, err := svc.Transfer(ctx, fromID, otherID, 3000, "tr-1", nil)
	require.NoError(t, err)
	assert.False(t, created)
	require.NotNil(t, pair.In)
	assert.Equal(t, in.ID, pair.In.ID)
	assert.Equal(t, originalToID, pair.In.WalletID)
}

func TestLedgerService_Transfer_InsufficientFunds(t *testing.T) {
	svc, d, ctrl := setupLedgerService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	fromID := uuid.New()
	toID := uuid.New()
	from := testWallet(fromID)
	from.LastBalance = 100
	to := testWallet(toID)
	tx := &mockTx{}

	d.txRepo.EXPECT().FindByReference(ctx, fromID, "tr-1", domain.TransactionTypeTransferOut).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().LockForUpdate(ctx, tx, fromID, toID).
		Return(map[uuid.UUID]*domain.Wallet{fromID: from, toID: to}, nil)
	d.txRepo.EXPECT().FindByReferenceInTx(ctx, tx, fromID, "tr-1", domain.TransactionTypeTransferOut).Return(nil, nil)
	d.txRepo.EXPECT().SumSinceInTx(ctx, tx, fromID, from.LastBalanceUpdate).Return(int64(0), nil)

	_, _, err := svc.Transfer(ctx, fromID, toID, 3000, "tr-1", nil)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "LED_002", appErr.Code)
}

func TestLedgerService_Transfer_RecipientNotFound(t *testing.T) {
	svc, d, ctrl := setupLedgerService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	fromID := uuid.New()
	toID := uuid.New()
	from := testWallet(fromID)
	tx := &mockTx{}

	d.txRepo.EXPECT().FindByReference(ctx, fromID, "tr-1", domain.TransactionTypeTransferOut).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().LockForUpdate(ctx, tx, fromID, toID).
		Return(map[uuid.UUID]*domain.Wallet{fromID: from}, nil)

	_, _, err := svc.Transfer(ctx, fromID, toID, 3000, "tr-1", nil)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "LED_004", appErr.Code)
}

func TestLedgerService_Deposit_BeginError(t *testing.T) {
	svc, d, ctrl := setupLedgerService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()

	d.txRepo.EXPECT().FindByReference(ctx, walletID, "dep-1", domain.TransactionTypeDeposit).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(nil, errors.New("pool exhausted"))

	_, _, err := svc.Deposit(ctx, walletID, 5000, "dep-1", nil)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "SYS_001", appErr.Code)
}

func TestLedgerService_Deposit_LockTimeout(t *testing.T) {
	svc, d, ctrl := setupLedgerService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()

	d.txRepo.EXPECT().FindByReference(ctx, walletID, "dep-1", domain.TransactionTypeDeposit).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(&mockTx{}, nil)
	d.walletRepo.EXPECT().LockForUpdate(ctx, gomock.Any(), walletID).
		Return(nil, fmt.Errorf("acquire lock: %w", context.DeadlineExceeded))

	_, _, err := svc.Deposit(ctx, walletID, 5000, "dep-1", nil)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "SYS_002", appErr.Code)
}
