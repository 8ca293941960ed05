package service

import (
	"context"
	"fmt"
	"time"

	"wallet-ledger-service/internal/core/ports"
	"wallet-ledger-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BalanceServiceImpl implements ports.BalanceService. A wallet's balance is
// never stored as a single mutable number: it is the snapshot on the wallet
// row plus the signed sum of ledger entries created after the snapshot time.
// Compact folds that delta into the snapshot under the same row lock the
// ledger writer uses, so reads stay exact while the delta window stays small.
type BalanceServiceImpl struct {
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
	transactor ports.DBTransactor
	log        zerolog.Logger
}

// NewBalanceService creates a new BalanceServiceImpl.
func NewBalanceService(
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *BalanceServiceImpl {
	return &BalanceServiceImpl{
		walletRepo: walletRepo,
		txRepo:     txRepo,
		transactor: transactor,
		log:        log,
	}
}

// CurrentBalance returns the exact balance: snapshot + delta. It takes no
// lock; the read is consistent because ledger rows are append-only.
func (s *BalanceServiceImpl) CurrentBalance(ctx context.Context, walletID uuid.UUID) (int64, error) {
	wallet, err := s.walletRepo.GetByID(ctx, walletID)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return 0, apperror.ErrNotFound("wallet")
	}

	delta, err := s.txRepo.SumSince(ctx, walletID, wallet.LastBalanceUpdate)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("sum recent transactions: %w", err))
	}
	return wallet.LastBalance + delta, nil
}

// Compact folds the wallet's pending delta into its snapshot. The row lock
// serializes compaction against in-flight writes: a writer blocked on the
// lock stamps its entry after the fold time, so nothing is counted twice or
// dropped.
func (s *BalanceServiceImpl) Compact(ctx context.Context, walletID uuid.UUID) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	locked, err := s.walletRepo.LockForUpdate(ctx, dbTx, walletID)
	if err != nil {
		return lockError("lock wallet", err)
	}
	wallet, ok := locked[walletID]
	if !ok {
		return apperror.ErrNotFound("wallet")
	}

	delta, err := s.txRepo.SumSinceInTx(ctx, dbTx, walletID, wallet.LastBalanceUpdate)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("sum recent transactions: %w", err))
	}

	now := time.Now().UTC()
	if err := s.walletRepo.Fold(ctx, dbTx, walletID, wallet.LastBalance+delta, now); err != nil {
		return apperror.InternalError(fmt.Errorf("fold snapshot: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Debug().
		Str("wallet_id", walletID.String()).
		Int64("delta", delta).
		Int64("balance", wallet.LastBalance+delta).
		Msg("balance snapshot folded")

	return nil
}

// CompactAll folds every wallet, one short transaction each so no lock is
// held across the whole sweep. Failures on individual wallets are logged and
// skipped; the count of successfully folded wallets is returned.
func (s *BalanceServiceImpl) CompactAll(ctx context.Context) (int, error) {
	ids, err := s.walletRepo.ListIDs(ctx)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("list wallets: %w", err))
	}

	folded := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return folded, err
		}
		if err := s.Compact(ctx, id); err != nil {
			s.log.Warn().Err(err).Str("wallet_id", id.String()).Msg("compaction failed for wallet")
			continue
		}
		folded++
	}
	return folded, nil
}
