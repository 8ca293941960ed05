package dto

import (
	"time"

	"wallet-ledger-service/internal/core/domain"
	"wallet-ledger-service/internal/core/ports"
)

// RegisterRequest is the request body for account registration.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,min=3,max=50,safe_id"`
	Password string `json:"password" binding:"required,min=8,max=128"`
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse is the response body for successful registration or login.
type AuthResponse struct {
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	WalletID  string `json:"wallet_id"`
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"` // Unix timestamp
}

// MovementRequest is the request body for deposits and withdrawals.
// Reference is the caller-supplied idempotency key.
type MovementRequest struct {
	Amount    int64          `json:"amount" binding:"required,gt=0"`
	Reference string         `json:"reference" binding:"required,max=255"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// TransferRequest is the request body for transfers between users.
type TransferRequest struct {
	ToUserID  string         `json:"to_user_id" binding:"required,uuid"`
	Amount    int64          `json:"amount" binding:"required,gt=0"`
	Reference string         `json:"reference" binding:"required,max=255"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// TransactionResponse is the wire form of a single ledger entry.
type TransactionResponse struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Amount    int64          `json:"amount"`
	Reference string         `json:"reference"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt string         `json:"created_at"`
}

// TransferResponse carries both legs of a completed transfer.
type TransferResponse struct {
	Out TransactionResponse `json:"out"`
	In  TransactionResponse `json:"in"`
}

// WalletResponse is the wallet detail view: current balance plus the most
// recent transactions.
type WalletResponse struct {
	WalletID           string                `json:"wallet_id"`
	Balance            int64                 `json:"balance"`
	RecentTransactions []TransactionResponse `json:"recent_transactions"`
}

// UserResponse is the authenticated user's profile.
type UserResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	WalletID  string `json:"wallet_id"`
	CreatedAt string `json:"created_at"`
}

// TransactionListRequest holds the query parameters of the history endpoint.
type TransactionListRequest struct {
	Limit  int `form:"limit,default=20" binding:"omitempty,min=1,max=100"`
	Offset int `form:"offset,default=0" binding:"omitempty,min=0"`
}

// TransactionListResponse wraps a paginated transaction history.
type TransactionListResponse struct {
	Count   int64                 `json:"count"`
	Limit   int                   `json:"limit"`
	Offset  int                   `json:"offset"`
	Results []TransactionResponse `json:"results"`
}

// ToTransactionResponse converts a domain transaction to its wire form.
// A nil transaction maps to the zero response.
func ToTransactionResponse(t *domain.Transaction) TransactionResponse {
	if t == nil {
		return TransactionResponse{}
	}
	return TransactionResponse{
		ID:        t.ID.String(),
		Type:      string(t.Type),
		Amount:    t.Amount,
		Reference: t.Reference,
		Metadata:  t.Metadata,
		CreatedAt: t.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// ToTransactionResponses converts a slice of domain transactions.
func ToTransactionResponses(ts []domain.Transaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(ts))
	for i := range ts {
		out = append(out, ToTransactionResponse(&ts[i]))
	}
	return out
}

// ToAuthResponse converts a service auth result to its wire form.
func ToAuthResponse(r *ports.AuthResult) AuthResponse {
	return AuthResponse{
		UserID:    r.User.ID.String(),
		Username:  r.User.Username,
		WalletID:  r.Wallet.ID.String(),
		Token:     r.Token,
		ExpiresAt: r.ExpiresAt.Unix(),
	}
}
