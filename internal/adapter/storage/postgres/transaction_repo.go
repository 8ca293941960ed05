package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-ledger-service/internal/core/domain"
	"wallet-ledger-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// signedSumExpr maps each transaction type onto its balance contribution.
const signedSumExpr = `COALESCE(SUM(CASE WHEN type IN ('DEPOSIT', 'TRANSFER_IN') THEN amount ELSE -amount END), 0)`

// TransactionRepo implements ports.TransactionRepository. The ledger is
// append-only: this repository can insert and read, nothing else. Updates
// and deletes are additionally rejected by a database trigger.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Insert appends a transaction to the ledger within a database transaction.
func (r *TransactionRepo) Insert(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO transactions (id, wallet_id, type, amount, reference, created_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := tx.Exec(ctx, query,
		t.ID, t.WalletID, t.Type, t.Amount, t.Reference, t.CreatedAt, t.Metadata,
	)
	if err != nil {
		return ledgerWriteError("insert transaction", err)
	}
	return nil
}

// ledgerWriteError translates the immutability trigger violation into its
// domain error so callers surface LED_005 instead of a generic failure.
func ledgerWriteError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == immutableErrCode {
		return apperror.ErrImmutableTransaction()
	}
	return fmt.Errorf("%s: %w", op, err)
}

// GetByID fetches a transaction by UUID.
func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT id, wallet_id, type, amount, reference, created_at, metadata
		FROM transactions WHERE id = $1`

	return scanTransaction(r.pool.QueryRow(ctx, query, id))
}

// FindByReference looks up the idempotency triple (wallet, reference, type).
func (r *TransactionRepo) FindByReference(ctx context.Context, walletID uuid.UUID, reference string, txType domain.TransactionType) (*domain.Transaction, error) {
	query := `SELECT id, wallet_id, type, amount, reference, created_at, metadata
		FROM transactions WHERE wallet_id = $1 AND reference = $2 AND type = $3`

	return scanTransaction(r.pool.QueryRow(ctx, query, walletID, reference, txType))
}

// FindByReferenceInTx is FindByReference inside an open transaction, used to
// re-check idempotency after the wallet row lock is held.
func (r *TransactionRepo) FindByReferenceInTx(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, reference string, txType domain.TransactionType) (*domain.Transaction, error) {
	query := `SELECT id, wallet_id, type, amount, reference, created_at, metadata
		FROM transactions WHERE wallet_id = $1 AND reference = $2 AND type = $3`

	return scanTransaction(tx.QueryRow(ctx, query, walletID, reference, txType))
}

// FindCreditLeg recovers the TRANSFER_IN leg of a committed transfer from
// its debit leg. Both legs share the reference and the exact created_at.
func (r *TransactionRepo) FindCreditLeg(ctx context.Context, reference string, createdAt time.Time) (*domain.Transaction, error) {
	query := `SELECT id, wallet_id, type, amount, reference, created_at, metadata
		FROM transactions WHERE reference = $1 AND type = $2 AND created_at = $3`

	return scanTransaction(r.pool.QueryRow(ctx, query, reference, domain.TransactionTypeTransferIn, createdAt))
}

// SumSince returns the signed sum of amounts created strictly after since.
func (r *TransactionRepo) SumSince(ctx context.Context, walletID uuid.UUID, since time.Time) (int64, error) {
	query := `SELECT ` + signedSumExpr + ` FROM transactions WHERE wallet_id = $1 AND created_at > $2`

	var sum int64
	if err := r.pool.QueryRow(ctx, query, walletID, since).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum transactions: %w", err)
	}
	return sum, nil
}

// SumSinceInTx is SumSince inside an open transaction. Run it while holding
// the wallet row lock so the sufficiency decision cannot go stale.
func (r *TransactionRepo) SumSinceInTx(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, since time.Time) (int64, error) {
	query := `SELECT ` + signedSumExpr + ` FROM transactions WHERE wallet_id = $1 AND created_at > $2`

	var sum int64
	if err := tx.QueryRow(ctx, query, walletID, since).Scan(&sum); err != nil {
		return 0, fmt.Errorf("sum transactions in tx: %w", err)
	}
	return sum, nil
}

// List fetches a wallet's transactions newest first, plus the total count.
func (r *TransactionRepo) List(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]domain.Transaction, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM transactions WHERE wallet_id = $1`, walletID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	query := `SELECT id, wallet_id, type, amount, reference, created_at, metadata
		FROM transactions WHERE wallet_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, walletID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t := domain.Transaction{}
		err := rows.Scan(&t.ID, &t.WalletID, &t.Type, &t.Amount, &t.Reference, &t.CreatedAt, &t.Metadata)
		if err != nil {
			return nil, 0, fmt.Errorf("scan transaction row: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return txns, total, nil
}

// scanTransaction is a helper to scan a single row into a Transaction.
func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	err := row.Scan(&t.ID, &t.WalletID, &t.Type, &t.Amount, &t.Reference, &t.CreatedAt, &t.Metadata)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	return t, nil
}
