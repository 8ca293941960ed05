package ports

import (
	"context"
	"time"

	"wallet-ledger-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UserRepository defines persistence operations for users.
// Create takes a pgx.Tx so the user and its wallet commit as one unit.
type UserRepository interface {
	Create(ctx context.Context, tx pgx.Tx, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx run inside transaction blocks; LockForUpdate is
// the single entry point for pessimistic row locking.
type WalletRepository interface {
	Create(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	// LockForUpdate acquires exclusive row locks on the given wallets in
	// ascending ID order regardless of argument order, so that any two
	// operations touching overlapping wallet sets lock in the same global
	// order. Locks are held until the surrounding tx commits or rolls back.
	LockForUpdate(ctx context.Context, tx pgx.Tx, ids ...uuid.UUID) (map[uuid.UUID]*domain.Wallet, error)
	// Fold advances the balance snapshot. Callers must hold the row lock.
	Fold(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, lastBalance int64, at time.Time) error
	ListIDs(ctx context.Context) ([]uuid.UUID, error)
}

// TransactionRepository defines persistence for the append-only ledger.
// There are deliberately no update or delete methods: persisted transactions
// are immutable, and the storage schema enforces that independently.
type TransactionRepository interface {
	Insert(ctx context.Context, tx pgx.Tx, transaction *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	// FindByReference looks up the idempotency triple (wallet, reference, type).
	FindByReference(ctx context.Context, walletID uuid.UUID, reference string, txType domain.TransactionType) (*domain.Transaction, error)
	FindByReferenceInTx(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, reference string, txType domain.TransactionType) (*domain.Transaction, error)
	// FindCreditLeg recovers the TRANSFER_IN leg of a committed transfer
	// from its debit leg; both legs share reference and created_at.
	FindCreditLeg(ctx context.Context, reference string, createdAt time.Time) (*domain.Transaction, error)
	// SumSince returns the signed sum of amounts created strictly after since.
	SumSince(ctx context.Context, walletID uuid.UUID, since time.Time) (int64, error)
	SumSinceInTx(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, since time.Time) (int64, error)
	// List returns transactions newest first plus the wallet's total count.
	List(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]domain.Transaction, int64, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
