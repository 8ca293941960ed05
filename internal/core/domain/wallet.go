package domain

import (
	"time"

	"github.com/google/uuid"
)

// Wallet holds a snapshot of a user's balance. The live balance is always
// derived: LastBalance plus the signed sum of transactions created after
// LastBalanceUpdate. The snapshot is only ever advanced by the balance
// compaction fold; no other code writes to it.
type Wallet struct {
	ID                uuid.UUID `json:"id"`
	UserID            uuid.UUID `json:"user_id"`
	LastBalance       int64     `json:"-"` // Snapshot as of LastBalanceUpdate, never negative
	LastBalanceUpdate time.Time `json:"-"`
	CreatedAt         time.Time `json:"created_at"`
}
