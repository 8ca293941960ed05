package ports

import (
	"context"
	"time"

	"wallet-ledger-service/internal/core/domain"

	"github.com/google/uuid"
)

// LedgerService is the transaction factory: the only way movements enter the
// ledger. Every operation is idempotent by (wallet, reference, type); the
// returned bool is true when a new record was created and false when an
// existing one was replayed.
type LedgerService interface {
	Deposit(ctx context.Context, walletID uuid.UUID, amount int64, reference string, metadata domain.Metadata) (*domain.Transaction, bool, error)
	Withdraw(ctx context.Context, walletID uuid.UUID, amount int64, reference string, metadata domain.Metadata) (*domain.Transaction, bool, error)
	Transfer(ctx context.Context, fromWalletID, toWalletID uuid.UUID, amount int64, reference string, metadata domain.Metadata) (*domain.TransferPair, bool, error)
}

// BalanceService materializes wallet balances: exact reads at any time, and
// periodic folding of recent deltas into the snapshot.
type BalanceService interface {
	CurrentBalance(ctx context.Context, walletID uuid.UUID) (int64, error)
	Compact(ctx context.Context, walletID uuid.UUID) error
	// CompactAll folds every wallet and returns the number processed.
	CompactAll(ctx context.Context) (int, error)
}

// WalletService serves the read side of the wallet API.
type WalletService interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	// Overview returns the current balance and the most recent transactions.
	Overview(ctx context.Context, walletID uuid.UUID) (*WalletOverview, error)
	ListTransactions(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]domain.Transaction, int64, error)
}

// WalletOverview is the wallet detail read model.
type WalletOverview struct {
	WalletID           uuid.UUID
	Balance            int64
	RecentTransactions []domain.Transaction
}

// AuthService defines account registration and login.
type AuthService interface {
	Register(ctx context.Context, username, password string) (*AuthResult, error)
	Login(ctx context.Context, username, password string) (*AuthResult, error)
}

// AuthResult carries the authenticated user, their wallet and a freshly
// issued token.
type AuthResult struct {
	User      *domain.User
	Wallet    *domain.Wallet
	Token     string
	ExpiresAt time.Time
}

// TokenService handles bearer token issuance and validation.
type TokenService interface {
	Generate(userID, walletID uuid.UUID) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed token claims. ExpiresAt bounds how long a
// revoked token needs to stay on the denylist.
type TokenClaims struct {
	UserID    uuid.UUID
	WalletID  uuid.UUID
	ExpiresAt time.Time
}

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}
