package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType represents the kind of money movement.
type TransactionType string

const (
	TransactionTypeDeposit     TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal  TransactionType = "WITHDRAWAL"
	TransactionTypeTransferIn  TransactionType = "TRANSFER_IN"
	TransactionTypeTransferOut TransactionType = "TRANSFER_OUT"
)

// Sign returns +1 for credits and -1 for debits.
func (t TransactionType) Sign() int64 {
	switch t {
	case TransactionTypeDeposit, TransactionTypeTransferIn:
		return 1
	case TransactionTypeWithdrawal, TransactionTypeTransferOut:
		return -1
	}
	return 0
}

// IsDebit reports whether the type reduces the wallet balance and therefore
// requires a sufficiency check under the row lock.
func (t TransactionType) IsDebit() bool {
	return t == TransactionTypeWithdrawal || t == TransactionTypeTransferOut
}

// Metadata is an opaque caller-supplied annotation. The ledger stores and
// returns it verbatim and never interprets its contents.
type Metadata map[string]any

// Transaction is one immutable ledger entry. Once persisted no field ever
// changes and the row is never deleted; the (WalletID, Reference, Type)
// triple is unique and deduplicates retried operations.
type Transaction struct {
	ID        uuid.UUID       `json:"id"`
	WalletID  uuid.UUID       `json:"-"`
	Type      TransactionType `json:"type"`
	Amount    int64           `json:"amount"` // Smallest currency unit, always > 0
	Reference string          `json:"reference"`
	CreatedAt time.Time       `json:"created_at"`
	Metadata  Metadata        `json:"metadata"`
}

// SignedAmount is the transaction's contribution to the derived balance.
func (t *Transaction) SignedAmount() int64 {
	return t.Type.Sign() * t.Amount
}

// TransferPair is the two-legged result of a transfer: a TRANSFER_OUT on the
// source wallet and a TRANSFER_IN on the destination, created atomically.
type TransferPair struct {
	Out *Transaction
	In  *Transaction
}
