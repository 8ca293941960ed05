package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"wallet-ledger-service/internal/core/domain"
	"wallet-ledger-service/internal/core/ports/mocks"
	"wallet-ledger-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type balanceDeps struct {
	walletRepo *mocks.MockWalletRepository
	txRepo     *mocks.MockTransactionRepository
	transactor *mocks.MockDBTransactor
}

func setupBalanceService(t *testing.T) (*BalanceServiceImpl, balanceDeps, *gomock.Controller) {
	ctrl := gomock.NewController(t)
	d := balanceDeps{
		walletRepo: mocks.NewMockWalletRepository(ctrl),
		txRepo:     mocks.NewMockTransactionRepository(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
	}
	svc := NewBalanceService(d.walletRepo, d.txRepo, d.transactor, zerolog.Nop())
	return svc, d, ctrl
}

func TestBalanceService_CurrentBalance(t *testing.T) {
	svc, d, ctrl := setupBalanceService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()
	wallet := testWallet(walletID)
	wallet.LastBalance = 7500

	d.walletRepo.EXPECT().GetByID(ctx, walletID).Return(wallet, nil)
	d.txRepo.EXPECT().SumSince(ctx, walletID, wallet.LastBalanceUpdate).Return(int64(-2500), nil)

	balance, err := svc.CurrentBalance(ctx, walletID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), balance)
}

func TestBalanceService_CurrentBalance_NotFound(t *testing.T) {
	svc, d, ctrl := setupBalanceService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()

	d.walletRepo.EXPECT().GetByID(ctx, walletID).Return(nil, nil)

	_, err := svc.CurrentBalance(ctx, walletID)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "LED_004", appErr.Code)
}

func TestBalanceService_Compact_FoldsDeltaUnderLock(t *testing.T) {
	svc, d, ctrl := setupBalanceService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()
	wallet := testWallet(walletID)
	wallet.LastBalance = 1000
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().LockForUpdate(ctx, tx, walletID).
		Return(map[uuid.UUID]*domain.Wallet{walletID: wallet}, nil)
	d.txRepo.EXPECT().SumSinceInTx(ctx, tx, walletID, wallet.LastBalanceUpdate).Return(int64(4000), nil)
	d.walletRepo.EXPECT().Fold(ctx, tx, walletID, int64(5000), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ any, _ uuid.UUID, _ int64, at time.Time) error {
			assert.WithinDuration(t, time.Now().UTC(), at, time.Minute)
			return nil
		})

	require.NoError(t, svc.Compact(ctx, walletID))
}

func TestBalanceService_Compact_WalletNotFound(t *testing.T) {
	svc, d, ctrl := setupBalanceService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	walletID := uuid.New()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().LockForUpdate(ctx, tx, walletID).
		Return(map[uuid.UUID]*domain.Wallet{}, nil)

	err := svc.Compact(ctx, walletID)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "LED_004", appErr.Code)
}

func TestBalanceService_CompactAll_SkipsFailedWallets(t *testing.T) {
	svc, d, ctrl := setupBalanceService(t)
	defer ctrl.Finish()

	ctx := context.Background()
	good := uuid.New()
	bad := uuid.New()
	goodWallet := testWallet(good)
	tx := &mockTx{}

	d.walletRepo.EXPECT().ListIDs(ctx).Return([]uuid.UUID{good, bad}, nil)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.walletRepo.EXPECT().LockForUpdate(ctx, tx, good).
		Return(map[uuid.UUID]*domain.Wallet{good: goodWallet}, nil)
	d.txRepo.EXPECT().SumSinceInTx(ctx, tx, good, goodWallet.LastBalanceUpdate).Return(int64(0), nil)
	d.walletRepo.EXPECT().Fold(ctx, tx, good, int64(0), gomock.Any()).Return(nil)

	d.transactor.EXPECT().Begin(ctx).Return(nil, errors.New("pool exhausted"))

	folded, err := svc.CompactAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, folded)
}

func TestBalanceService_CompactAll_ContextCancelled(t *testing.T) {
	svc, d, ctrl := setupBalanceService(t)
	defer ctrl.Finish()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d.walletRepo.EXPECT().ListIDs(ctx).Return([]uuid.UUID{uuid.New()}, nil)

	folded, err := svc.CompactAll(ctx)
	assert.Equal(t, 0, folded)
	assert.ErrorIs(t, err, context.Canceled)
}
