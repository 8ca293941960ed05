package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-ledger-service/internal/core/domain"
	"wallet-ledger-service/internal/core/ports"
	"wallet-ledger-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// LedgerServiceImpl implements ports.LedgerService. It is the only writer of
// ledger rows: every deposit, withdrawal and transfer leg passes through the
// same create path with pessimistic row locking and reference idempotency.
type LedgerServiceImpl struct {
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
	transactor ports.DBTransactor
	log        zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		walletRepo: walletRepo,
		txRepo:     txRepo,
		transactor: transactor,
		log:        log,
	}
}

// Deposit credits a wallet. Replaying the same reference returns the original
// record with created=false.
func (s *LedgerServiceImpl) Deposit(ctx context.Context, walletID uuid.UUID, amount int64, reference string, metadata domain.Metadata) (*domain.Transaction, bool, error) {
	return s.create(ctx, walletID, domain.TransactionTypeDeposit, amount, reference, metadata)
}

// Withdraw debits a wallet after checking sufficient funds under the row lock.
func (s *LedgerServiceImpl) Withdraw(ctx context.Context, walletID uuid.UUID, amount int64, reference string, metadata domain.Metadata) (*domain.Transaction, bool, error) {
	return s.create(ctx, walletID, domain.TransactionTypeWithdrawal, amount, reference, metadata)
}

// create is the single entry point for one-wallet ledger writes.
func (s *LedgerServiceImpl) create(ctx context.Context, walletID uuid.UUID, txType domain.TransactionType, amount int64, reference string, metadata domain.Metadata) (*domain.Transaction, bool, error) {
	if amount <= 0 {
		return nil, false, apperror.ErrInvalidAmount()
	}

	// Fast path: replay detection without taking the lock.
	existing, err := s.txRepo.FindByReference(ctx, walletID, reference, txType)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("idempotency check: %w", err))
	}
	if existing != nil {
		return existing, false, nil
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	locked, err := s.walletRepo.LockForUpdate(ctx, dbTx, walletID)
	if err != nil {
		return nil, false, lockError("lock wallet", err)
	}
	wallet, ok := locked[walletID]
	if !ok {
		return nil, false, apperror.ErrNotFound("wallet")
	}

	// Re-check under the lock: a concurrent request with the same reference
	// may have committed between the fast path and here.
	existing, err = s.txRepo.FindByReferenceInTx(ctx, dbTx, walletID, reference, txType)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("idempotency re-check: %w", err))
	}
	if existing != nil {
		return existing, false, nil
	}

	if txType.IsDebit() {
		balance, err := s.balanceInTx(ctx, dbTx, wallet)
		if err != nil {
			return nil, false, err
		}
		if balance < amount {
			return nil, false, apperror.ErrInsufficientFunds()
		}
	}

	txn := newTransaction(wallet.ID, txType, amount, reference, metadata)
	if err := s.txRepo.Insert(ctx, dbTx, txn); err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("insert transaction: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("wallet_id", wallet.ID.String()).
		Str("type", string(txType)).
		Int64("amount", amount).
		Msg("transaction recorded")

	return txn, true, nil
}

// Transfer moves funds between two wallets atomically: one debit leg on the
// source, one credit leg on the destination, committed together. Both wallet
// rows are locked in ascending ID order.
func (s *LedgerServiceImpl) Transfer(ctx context.Context, fromWalletID, toWalletID uuid.UUID, amount int64, reference string, metadata domain.Metadata) (*domain.TransferPair, bool, error) {
	if fromWalletID == toWalletID {
		return nil, false, apperror.ErrSameWallet()
	}
	if amount <= 0 {
		return nil, false, apperror.ErrInvalidAmount()
	}

	// Fast path: the debit leg is the idempotency anchor of a transfer.
	pair, err := s.findTransferPair(ctx, fromWalletID, reference)
	if err != nil {
		return nil, false, err
	}
	if pair != nil {
		return pair, false, nil
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	locked, err := s.walletRepo.LockForUpdate(ctx, dbTx, fromWalletID, toWalletID)
	if err != nil {
		return nil, false, lockError("lock wallets", err)
	}
	from, ok := locked[fromWalletID]
	if !ok {
		return nil, false, apperror.ErrNotFound("wallet")
	}
	to, ok := locked[toWalletID]
	if !ok {
		return nil, false, apperror.ErrNotFound("recipient wallet")
	}

	existingOut, err := s.txRepo.FindByReferenceInTx(ctx, dbTx, fromWalletID, reference, domain.TransactionTypeTransferOut)
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("idempotency re-check: %w", err))
	}
	if existingOut != nil {
		existing, err := s.recoverTransferPair(ctx, existingOut)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	balance, err := s.balanceInTx(ctx, dbTx, from)
	if err != nil {
		return nil, false, err
	}
	if balance < amount {
		return nil, false, apperror.ErrInsufficientFunds()
	}

	out := newTransaction(from.ID, domain.TransactionTypeTransferOut, amount, reference, metadata)
	in := newTransaction(to.ID, domain.TransactionTypeTransferIn, amount, reference, metadata)
	in.CreatedAt = out.CreatedAt

	if err := s.txRepo.Insert(ctx, dbTx, out); err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("insert debit leg: %w", err))
	}
	if err := s.txRepo.Insert(ctx, dbTx, in); err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("insert credit leg: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("out_tx_id", out.ID.String()).
		Str("in_tx_id", in.ID.String()).
		Str("from_wallet_id", from.ID.String()).
		Str("to_wallet_id", to.ID.String()).
		Int64("amount", amount).
		Msg("transfer recorded")

	return &domain.TransferPair{Out: out, In: in}, true, nil
}

// findTransferPair returns both legs of an already committed transfer, or nil
// when the debit leg does not exist yet. The credit leg is recovered from the
// stored debit leg rather than the destination the caller supplied, so a
// replay naming a different recipient still returns the original pair.
func (s *LedgerServiceImpl) findTransferPair(ctx context.Context, fromWalletID uuid.UUID, reference string) (*domain.TransferPair, error) {
	out, err := s.txRepo.FindByReference(ctx, fromWalletID, reference, domain.TransactionTypeTransferOut)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("idempotency check: %w", err))
	}
	if out == nil {
		return nil, nil
	}
	return s.recoverTransferPair(ctx, out)
}

// recoverTransferPair resolves the credit leg matching a committed debit leg.
// Legs commit together, so a missing credit leg means the ledger is corrupt.
func (s *LedgerServiceImpl) recoverTransferPair(ctx context.Context, out *domain.Transaction) (*domain.TransferPair, error) {
	in, err := s.txRepo.FindCreditLeg(ctx, out.Reference, out.CreatedAt)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("recover credit leg: %w", err))
	}
	if in == nil {
		return nil, apperror.InternalError(fmt.Errorf("credit leg missing for reference %q", out.Reference))
	}
	return &domain.TransferPair{Out: out, In: in}, nil
}

// balanceInTx computes the wallet balance inside an open transaction while
// the wallet row lock is held: snapshot plus the signed sum of movements
// newer than the snapshot.
func (s *LedgerServiceImpl) balanceInTx(ctx context.Context, dbTx pgx.Tx, wallet *domain.Wallet) (int64, error) {
	delta, err := s.txRepo.SumSinceInTx(ctx, dbTx, wallet.ID, wallet.LastBalanceUpdate)
	if err != nil {
		return 0, apperror.InternalError(fmt.Errorf("sum recent transactions: %w", err))
	}
	return wallet.LastBalance + delta, nil
}

// lockError distinguishes a context deadline hit while waiting on the row
// lock from other database failures.
func lockError(op string, err error) *apperror.AppError {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperror.ErrLockTimeout(fmt.Errorf("%s: %w", op, err))
	}
	return apperror.InternalError(fmt.Errorf("%s: %w", op, err))
}

func newTransaction(walletID uuid.UUID, txType domain.TransactionType, amount int64, reference string, metadata domain.Metadata) *domain.Transaction {
	if metadata == nil {
		metadata = domain.Metadata{}
	}
	return &domain.Transaction{
		ID:        uuid.New(),
		WalletID:  walletID,
		Type:      txType,
		Amount:    amount,
		Reference: reference,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
}
