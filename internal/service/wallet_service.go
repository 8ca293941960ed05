package service

import (
	"context"
	"fmt"

	"wallet-ledger-service/internal/core/domain"
	"wallet-ledger-service/internal/core/ports"
	"wallet-ledger-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	recentTransactionCount = 10

	defaultPageSize = 20
	maxPageSize     = 100
)

// WalletServiceImpl implements ports.WalletService, the read side of the
// wallet API.
type WalletServiceImpl struct {
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
	balanceSvc ports.BalanceService
	log        zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	balanceSvc ports.BalanceService,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		walletRepo: walletRepo,
		txRepo:     txRepo,
		balanceSvc: balanceSvc,
		log:        log,
	}
}

// GetByUserID returns the wallet owned by the given user.
func (s *WalletServiceImpl) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	return wallet, nil
}

// Overview returns the current balance together with the most recent
// transactions.
func (s *WalletServiceImpl) Overview(ctx context.Context, walletID uuid.UUID) (*ports.WalletOverview, error) {
	balance, err := s.balanceSvc.CurrentBalance(ctx, walletID)
	if err != nil {
		return nil, err
	}

	recent, _, err := s.txRepo.List(ctx, walletID, recentTransactionCount, 0)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list recent transactions: %w", err))
	}

	return &ports.WalletOverview{
		WalletID:           walletID,
		Balance:            balance,
		RecentTransactions: recent,
	}, nil
}

// ListTransactions returns a page of the wallet's history, newest first,
// along with the total count. Limit is clamped to [1, 100] with a default
// of 20; a negative offset is treated as zero.
func (s *WalletServiceImpl) ListTransactions(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]domain.Transaction, int64, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	items, total, err := s.txRepo.List(ctx, walletID, limit, offset)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list transactions: %w", err))
	}
	return items, total, nil
}
