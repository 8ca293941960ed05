package integration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"wallet-ledger-service/internal/adapter/storage/postgres"
	"wallet-ledger-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// memStore is a shared in-memory database. It reproduces the two properties
// the services rely on: exclusive per-wallet row locks held until the
// transaction ends, and a unique (wallet_id, reference, type) constraint on
// the ledger.
type memStore struct {
	mu      sync.RWMutex
	users   map[uuid.UUID]*domain.User
	wallets map[uuid.UUID]*domain.Wallet
	ledger  []domain.Transaction

	lockMu sync.Mutex
	locks  map[uuid.UUID]*sync.Mutex
}

func newMemStore() *memStore {
	return &memStore{
		users:   make(map[uuid.UUID]*domain.User),
		wallets: make(map[uuid.UUID]*domain.Wallet),
		locks:   make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *memStore) walletLock(id uuid.UUID) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	mu, ok := s.locks[id]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[id] = mu
	}
	return mu
}

// --- Transactor and transaction handle ---

type inMemoryTransactor struct {
	store *memStore
}

func newInMemoryTransactor(store *memStore) *inMemoryTransactor {
	return &inMemoryTransactor{store: store}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return &memTx{}, nil
}

// memTx is a pgx.Tx stand-in that tracks the wallet locks acquired during
// the transaction and releases them exactly once, on Commit or Rollback,
// mirroring how row locks behave in the real database.
type memTx struct {
	noopTx
	held []*sync.Mutex
	once sync.Once
}

func (t *memTx) hold(mu *sync.Mutex) {
	t.held = append(t.held, mu)
}

func (t *memTx) release() {
	t.once.Do(func() {
		for i := len(t.held) - 1; i >= 0; i-- {
			t.held[i].Unlock()
		}
	})
}

func (t *memTx) Commit(ctx context.Context) error   { t.release(); return nil }
func (t *memTx) Rollback(ctx context.Context) error { t.release(); return nil }

// noopTx fills out the rest of the pgx.Tx interface.
type noopTx struct{}

func (t *noopTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *noopTx) Commit(ctx context.Context) error          { return nil }
func (t *noopTx) Rollback(ctx context.Context) error        { return nil }
func (t *noopTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *noopTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *noopTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t *noopTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *noopTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (t *noopTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *noopTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (t *noopTx) Conn() *pgx.Conn                                               { return nil }

// --- User repo ---

type inMemoryUserRepo struct {
	store *memStore
}

func newInMemoryUserRepo(store *memStore) *inMemoryUserRepo {
	return &inMemoryUserRepo{store: store}
}

func (r *inMemoryUserRepo) Create(ctx context.Context, tx pgx.Tx, user *domain.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.users {
		if existing.Username == user.Username {
			return fmt.Errorf("username already exists")
		}
	}
	u := *user
	r.store.users[u.ID] = &u
	return nil
}

func (r *inMemoryUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	u, ok := r.store.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *inMemoryUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, u := range r.store.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

// --- Wallet repo ---

type inMemoryWalletRepo struct {
	store *memStore
}

func newInMemoryWalletRepo(store *memStore) *inMemoryWalletRepo {
	return &inMemoryWalletRepo{store: store}
}

func (r *inMemoryWalletRepo) Create(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	w := *wallet
	r.store.wallets[w.ID] = &w
	return nil
}

func (r *inMemoryWalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	w, ok := r.store.wallets[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *inMemoryWalletRepo) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for _, w := range r.store.wallets {
		if w.UserID == userID {
			cp := *w
			return &cp, nil
		}
	}
	return nil, nil
}

// LockForUpdate acquires the per-wallet mutexes in ascending ID order, the
// same global order the SQL implementation uses, and parks them on the
// transaction handle so they are held until commit or rollback.
func (r *inMemoryWalletRepo) LockForUpdate(ctx context.Context, tx pgx.Tx, ids ...uuid.UUID) (map[uuid.UUID]*domain.Wallet, error) {
	mt, ok := tx.(*memTx)
	if !ok {
		return nil, fmt.Errorf("unexpected tx type %T", tx)
	}

	result := make(map[uuid.UUID]*domain.Wallet)
	for _, id := range postgres.SortWalletIDs(ids) {
		mu := r.store.walletLock(id)
		mu.Lock()
		mt.hold(mu)

		w, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if w != nil {
			result[id] = w
		}
	}
	return result, nil
}

func (r *inMemoryWalletRepo) Fold(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, lastBalance int64, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	w, ok := r.store.wallets[walletID]
	if !ok {
		return fmt.Errorf("wallet %s not found", walletID)
	}
	w.LastBalance = lastBalance
	w.LastBalanceUpdate = at
	return nil
}

func (r *inMemoryWalletRepo) ListIDs(ctx context.Context) ([]uuid.UUID, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(r.store.wallets))
	for id := range r.store.wallets {
		ids = append(ids, id)
	}
	return ids, nil
}

// --- Transaction repo ---

type inMemoryTransactionRepo struct {
	store *memStore
}

func newInMemoryTransactionRepo(store *memStore) *inMemoryTransactionRepo {
	return &inMemoryTransactionRepo{store: store}
}

func (r *inMemoryTransactionRepo) Insert(ctx context.Context, tx pgx.Tx, transaction *domain.Transaction) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for i := range r.store.ledger {
		e := &r.store.ledger[i]
		if e.WalletID == transaction.WalletID && e.Reference == transaction.Reference && e.Type == transaction.Type {
			return fmt.Errorf("duplicate ledger entry for reference %q", transaction.Reference)
		}
	}
	r.store.ledger = append(r.store.ledger, *transaction)
	return nil
}

func (r *inMemoryTransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for i := range r.store.ledger {
		if r.store.ledger[i].ID == id {
			cp := r.store.ledger[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryTransactionRepo) FindByReference(ctx context.Context, walletID uuid.UUID, reference string, txType domain.TransactionType) (*domain.Transaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for i := range r.store.ledger {
		e := &r.store.ledger[i]
		if e.WalletID == walletID && e.Reference == reference && e.Type == txType {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryTransactionRepo) FindByReferenceInTx(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, reference string, txType domain.TransactionType) (*domain.Transaction, error) {
	return r.FindByReference(ctx, walletID, reference, txType)
}

func (r *inMemoryTransactionRepo) FindCreditLeg(ctx context.Context, reference string, createdAt time.Time) (*domain.Transaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	for i := range r.store.ledger {
		e := &r.store.ledger[i]
		if e.Type == domain.TransactionTypeTransferIn && e.Reference == reference && e.CreatedAt.Equal(createdAt) {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryTransactionRepo) SumSince(ctx context.Context, walletID uuid.UUID, since time.Time) (int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var sum int64
	for i := range r.store.ledger {
		e := &r.store.ledger[i]
		if e.WalletID == walletID && e.CreatedAt.After(since) {
			sum += e.SignedAmount()
		}
	}
	return sum, nil
}

func (r *inMemoryTransactionRepo) SumSinceInTx(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, since time.Time) (int64, error) {
	return r.SumSince(ctx, walletID, since)
}

func (r *inMemoryTransactionRepo) List(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]domain.Transaction, int64, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var all []domain.Transaction
	for i := range r.store.ledger {
		if r.store.ledger[i].WalletID == walletID {
			all = append(all, r.store.ledger[i])
		}
	}
	// Newest first; entries were appended in creation order.
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}

	total := int64(len(all))
	if offset >= len(all) {
		return []domain.Transaction{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}
