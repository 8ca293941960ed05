package postgres

import (
	"context"
	"fmt"
)

// immutableErrCode is the SQLSTATE raised by the transactions_immutable
// trigger. Repositories map it onto the immutable-transaction error.
const immutableErrCode = "P0403"

// schemaStatements creates the ledger schema. Statements are idempotent so
// Migrate can run on every startup.
//
// The transactions table is append-only: a trigger rejects UPDATE and DELETE
// at the database level, so even a buggy query cannot rewrite history. The
// (wallet_id, reference, type) unique index is what makes retried operations
// collapse into a single row.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		username VARCHAR(50) NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS wallets (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL UNIQUE REFERENCES users(id) ON DELETE RESTRICT,
		last_balance BIGINT NOT NULL DEFAULT 0 CHECK (last_balance >= 0),
		last_balance_update TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS transactions (
		id UUID PRIMARY KEY,
		wallet_id UUID NOT NULL REFERENCES wallets(id) ON DELETE RESTRICT,
		type VARCHAR(20) NOT NULL CHECK (type IN ('DEPOSIT', 'WITHDRAWAL', 'TRANSFER_IN', 'TRANSFER_OUT')),
		amount BIGINT NOT NULL CHECK (amount > 0),
		reference VARCHAR(255) NOT NULL,
		metadata JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL
	)`,

	`CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_idempotency
		ON transactions (wallet_id, reference, type)`,

	`CREATE INDEX IF NOT EXISTS idx_transactions_wallet_created
		ON transactions (wallet_id, created_at)`,

	`CREATE OR REPLACE FUNCTION reject_ledger_mutation() RETURNS trigger AS $$
	BEGIN
		RAISE EXCEPTION 'ledger entries are immutable' USING ERRCODE = 'P0403';
	END;
	$$ LANGUAGE plpgsql`,

	`DROP TRIGGER IF EXISTS transactions_immutable ON transactions`,

	`CREATE TRIGGER transactions_immutable
		BEFORE UPDATE OR DELETE ON transactions
		FOR EACH ROW EXECUTE FUNCTION reject_ledger_mutation()`,
}

// Migrate applies the schema to the connected database.
func Migrate(ctx context.Context, pool Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	return nil
}
