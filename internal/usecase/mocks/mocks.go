package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iho/marketledger/internal/domain"
	"github.com/iho/marketledger/internal/usecase"
)

// Store is an in-memory database shared by the repository mocks. Every
// transaction begun through MockTransactionManager snapshots the store and
// restores the snapshot unless it is committed.
type Store struct {
	mu          sync.Mutex
	accounts    map[string]*domain.Account
	txns        []*domain.LedgerTransaction
	withdrawals []*domain.WithdrawalRequest
	outbox      []*domain.OutboxEvent
	audit       []*domain.AuditLog
}

func NewStore() *Store {
	return &Store{accounts: make(map[string]*domain.Account)}
}

type snapshot struct {
	accounts    map[string]*domain.Account
	txns        []*domain.LedgerTransaction
	withdrawals []*domain.WithdrawalRequest
	outbox      []*domain.OutboxEvent
	audit       []*domain.AuditLog
}

func (s *Store) snapshot() *snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &snapshot{accounts: make(map[string]*domain.Account, len(s.accounts))}
	for id, a := range s.accounts {
		snap.accounts[id] = copyAccount(a)
	}
	for _, t := range s.txns {
		snap.txns = append(snap.txns, copyTxn(t))
	}
	for _, w := range s.withdrawals {
		snap.withdrawals = append(snap.withdrawals, copyWithdrawal(w))
	}
	for _, e := range s.outbox {
		c := *e
		snap.outbox = append(snap.outbox, &c)
	}
	snap.audit = append(snap.audit, s.audit...)
	return snap
}

func (s *Store) restore(snap *snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.accounts = snap.accounts
	s.txns = snap.txns
	s.withdrawals = snap.withdrawals
	s.outbox = snap.outbox
	s.audit = snap.audit
}

func copyAccount(a *domain.Account) *domain.Account {
	c := *a
	return &c
}

func copyTxn(t *domain.LedgerTransaction) *domain.LedgerTransaction {
	c := *t
	return &c
}

func copyWithdrawal(w *domain.WithdrawalRequest) *domain.WithdrawalRequest {
	c := *w
	return &c
}

// MockAccountRepository is a mock implementation of AccountRepository.
type MockAccountRepository struct {
	store *Store

	CreateTxFunc                 func(ctx context.Context, tx usecase.Transaction, account *domain.Account) (bool, error)
	GetByPrincipalFunc           func(ctx context.Context, principalID string) (*domain.Account, error)
	GetByPrincipalForUpdateFunc  func(ctx context.Context, tx usecase.Transaction, principalID string) (*domain.Account, error)
	GetByPrincipalsForUpdateFunc func(ctx context.Context, tx usecase.Transaction, principalIDs []string) ([]*domain.Account, error)
	UpdateBalancesFunc           func(ctx context.Context, tx usecase.Transaction, account *domain.Account) error
	ListFunc                     func(ctx context.Context, limit, offset int) ([]*domain.Account, error)
}

func NewMockAccountRepository(store *Store) *MockAccountRepository {
	return &MockAccountRepository{store: store}
}

// Put stores account directly, bypassing any transaction.
func (m *MockAccountRepository) Put(account *domain.Account) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.store.accounts[account.ID] = copyAccount(account)
}

func (m *MockAccountRepository) CreateTx(ctx context.Context, tx usecase.Transaction, account *domain.Account) (bool, error) {
	if m.CreateTxFunc != nil {
		return m.CreateTxFunc(ctx, tx, account)
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	for _, a := range m.store.accounts {
		if a.PrincipalID == account.PrincipalID {
			return false, nil
		}
	}
	m.store.accounts[account.ID] = copyAccount(account)
	return true, nil
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	if a, ok := m.store.accounts[id]; ok {
		return copyAccount(a), nil
	}
	return nil, domain.ErrAccountNotFound
}

func (m *MockAccountRepository) GetByPrincipal(ctx context.Context, principalID string) (*domain.Account, error) {
	if m.GetByPrincipalFunc != nil {
		return m.GetByPrincipalFunc(ctx, principalID)
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	for _, a := range m.store.accounts {
		if a.PrincipalID == principalID {
			return copyAccount(a), nil
		}
	}
	return nil, domain.ErrAccountNotFound
}

func (m *MockAccountRepository) GetByPrincipalForUpdate(ctx context.Context, tx usecase.Transaction, principalID string) (*domain.Account, error) {
	if m.GetByPrincipalForUpdateFunc != nil {
		return m.GetByPrincipalForUpdateFunc(ctx, tx, principalID)
	}
	return m.GetByPrincipal(ctx, principalID)
}

func (m *MockAccountRepository) GetByPrincipalsForUpdate(ctx context.Context, tx usecase.Transaction, principalIDs []string) ([]*domain.Account, error) {
	if m.GetByPrincipalsForUpdateFunc != nil {
		return m.GetByPrincipalsForUpdateFunc(ctx, tx, principalIDs)
	}
	var accounts []*domain.Account
	for _, id := range principalIDs {
		a, err := m.GetByPrincipal(ctx, id)
		if err != nil {
			continue
		}
		accounts = append(accounts, a)
	}
	return accounts, nil
}

func (m *MockAccountRepository) UpdateBalances(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	if m.UpdateBalancesFunc != nil {
		return m.UpdateBalancesFunc(ctx, tx, account)
	}
	return m.update(account, func(stored *domain.Account) {
		stored.Balance = account.Balance
		stored.TotalEarnings = account.TotalEarnings
		stored.TotalWithdrawals = account.TotalWithdrawals
		stored.LastWithdrawalAt = account.LastWithdrawalAt
		stored.Version = account.Version
		stored.UpdatedAt = account.UpdatedAt
	})
}

func (m *MockAccountRepository) UpdateStatus(ctx context.Context, tx usecase.Transaction, account *domain.Account) error {
	return m.update(account, func(stored *domain.Account) {
		stored.IsActive = account.IsActive
		stored.SuspendedReason = account.SuspendedReason
		stored.SuspendedAt = account.SuspendedAt
		stored.UpdatedAt = account.UpdatedAt
	})
}

func (m *MockAccountRepository) update(account *domain.Account, apply func(stored *domain.Account)) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	stored, ok := m.store.accounts[account.ID]
	if !ok {
		return domain.ErrAccountNotFound
	}
	if account.Balance.IsNegative() {
		return fmt.Errorf("balance check violated for account %s", account.ID)
	}
	apply(stored)
	return nil
}

func (m *MockAccountRepository) List(ctx context.Context, limit, offset int) ([]*domain.Account, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	accounts := make([]*domain.Account, 0, len(m.store.accounts))
	for _, a := range m.store.accounts {
		accounts = append(accounts, copyAccount(a))
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].PrincipalID < accounts[j].PrincipalID })
	return paginate(accounts, limit, offset), nil
}

// MockTransactionRepository is a mock implementation of TransactionRepository.
type MockTransactionRepository struct {
	store *Store

	CreateFunc         func(ctx context.Context, tx usecase.Transaction, txn *domain.LedgerTransaction) error
	ListByPurchaseFunc func(ctx context.Context, tx usecase.Transaction, purchaseID string) ([]*domain.LedgerTransaction, error)
	SumByAccountFunc   func(ctx context.Context, accountID string) (decimal.Decimal, error)
}

func NewMockTransactionRepository(store *Store) *MockTransactionRepository {
	return &MockTransactionRepository{store: store}
}

// All returns every entry in insertion order.
func (m *MockTransactionRepository) All() []*domain.LedgerTransaction {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	out := make([]*domain.LedgerTransaction, 0, len(m.store.txns))
	for _, t := range m.store.txns {
		out = append(out, copyTxn(t))
	}
	return out
}

func (m *MockTransactionRepository) Create(ctx context.Context, tx usecase.Transaction, txn *domain.LedgerTransaction) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, txn)
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.store.txns = append(m.store.txns, copyTxn(txn))
	return nil
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, id string) (*domain.LedgerTransaction, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	for _, t := range m.store.txns {
		if t.ID == id {
			return copyTxn(t), nil
		}
	}
	return nil, domain.ErrTransactionNotFound
}

func (m *MockTransactionRepository) UpdateStatus(ctx context.Context, tx usecase.Transaction, id string, from, to domain.TransactionStatus, updatedAt time.Time) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	for _, t := range m.store.txns {
		if t.ID != id {
			continue
		}
		if t.Status != from {
			return fmt.Errorf("%w: transaction %s is %s", domain.ErrInvalidStateTransition, id, t.Status)
		}
		t.Status = to
		t.UpdatedAt = updatedAt
		return nil
	}
	return domain.ErrTransactionNotFound
}

func (m *MockTransactionRepository) ListByPurchase(ctx context.Context, tx usecase.Transaction, purchaseID string) ([]*domain.LedgerTransaction, error) {
	if m.ListByPurchaseFunc != nil {
		return m.ListByPurchaseFunc(ctx, tx, purchaseID)
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	var out []*domain.LedgerTransaction
	for _, t := range m.store.txns {
		if t.PurchaseID == purchaseID {
			out = append(out, copyTxn(t))
		}
	}
	return out, nil
}

func (m *MockTransactionRepository) List(ctx context.Context, filter domain.TransactionFilter) ([]*domain.LedgerTransaction, int, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	var out []*domain.LedgerTransaction
	for i := len(m.store.txns) - 1; i >= 0; i-- {
		t := m.store.txns[i]
		if filter.PrincipalID != "" && t.PrincipalID != filter.PrincipalID {
			continue
		}
		if filter.Type != "" && t.Type != filter.Type {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		out = append(out, copyTxn(t))
	}
	return paginate(out, filter.Limit, filter.Offset), len(out), nil
}

func (m *MockTransactionRepository) SumByAccount(ctx context.Context, accountID string) (decimal.Decimal, error) {
	if m.SumByAccountFunc != nil {
		return m.SumByAccountFunc(ctx, accountID)
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	sum := decimal.Zero
	for _, t := range m.store.txns {
		if t.AccountID == accountID && t.Status.AffectsBalance() {
			sum = sum.Add(t.Amount)
		}
	}
	return sum, nil
}

func (m *MockTransactionRepository) DailyTotals(ctx context.Context, principalID string, txnType domain.TransactionType, since time.Time) ([]domain.EarningsBucket, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	byDay := make(map[time.Time]*domain.EarningsBucket)
	for _, t := range m.store.txns {
		if t.PrincipalID != principalID || t.Type != txnType || !t.Status.AffectsBalance() || t.CreatedAt.Before(since) {
			continue
		}
		day := t.CreatedAt.UTC().Truncate(24 * time.Hour)
		b, ok := byDay[day]
		if !ok {
			b = &domain.EarningsBucket{Date: day, Amount: decimal.Zero}
			byDay[day] = b
		}
		b.Amount = b.Amount.Add(t.Amount)
		b.Transactions++
	}
	buckets := make([]domain.EarningsBucket, 0, len(byDay))
	for _, b := range byDay {
		buckets = append(buckets, *b)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].Date.Before(buckets[j].Date) })
	return buckets, nil
}

// MockWithdrawalRepository is a mock implementation of WithdrawalRepository.
type MockWithdrawalRepository struct {
	store *Store

	UpdateFunc func(ctx context.Context, tx usecase.Transaction, w *domain.WithdrawalRequest) error
}

func NewMockWithdrawalRepository(store *Store) *MockWithdrawalRepository {
	return &MockWithdrawalRepository{store: store}
}

func (m *MockWithdrawalRepository) Create(ctx context.Context, tx usecase.Transaction, w *domain.WithdrawalRequest) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.store.withdrawals = append(m.store.withdrawals, copyWithdrawal(w))
	return nil
}

func (m *MockWithdrawalRepository) GetByID(ctx context.Context, id string) (*domain.WithdrawalRequest, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	for _, w := range m.store.withdrawals {
		if w.ID == id {
			return copyWithdrawal(w), nil
		}
	}
	return nil, domain.ErrWithdrawalNotFound
}

func (m *MockWithdrawalRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.WithdrawalRequest, error) {
	return m.GetByID(ctx, id)
}

func (m *MockWithdrawalRepository) Update(ctx context.Context, tx usecase.Transaction, w *domain.WithdrawalRequest) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, tx, w)
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	for i, stored := range m.store.withdrawals {
		if stored.ID == w.ID {
			m.store.withdrawals[i] = copyWithdrawal(w)
			return nil
		}
	}
	return domain.ErrWithdrawalNotFound
}

func (m *MockWithdrawalRepository) List(ctx context.Context, filter domain.WithdrawalFilter) ([]*domain.WithdrawalRequest, int, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	var out []*domain.WithdrawalRequest
	for i := len(m.store.withdrawals) - 1; i >= 0; i-- {
		w := m.store.withdrawals[i]
		if filter.PrincipalID != "" && w.PrincipalID != filter.PrincipalID {
			continue
		}
		if filter.Status != "" && w.Status != filter.Status {
			continue
		}
		out = append(out, copyWithdrawal(w))
	}
	return paginate(out, filter.Limit, filter.Offset), len(out), nil
}

// MockLedgerRepository is a mock implementation of LedgerRepository.
type MockLedgerRepository struct {
	store *Store

	CheckConsistencyFunc func(ctx context.Context) (decimal.Decimal, decimal.Decimal, error)
}

func NewMockLedgerRepository(store *Store) *MockLedgerRepository {
	return &MockLedgerRepository{store: store}
}

func (m *MockLedgerRepository) CheckConsistency(ctx context.Context) (decimal.Decimal, decimal.Decimal, error) {
	if m.CheckConsistencyFunc != nil {
		return m.CheckConsistencyFunc(ctx)
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	balances, amounts := decimal.Zero, decimal.Zero
	for _, a := range m.store.accounts {
		balances = balances.Add(a.Balance)
	}
	for _, t := range m.store.txns {
		if t.Status.AffectsBalance() {
			amounts = amounts.Add(t.Amount)
		}
	}
	return balances, amounts, nil
}

// MockOutboxRepository is a mock implementation of OutboxRepository.
type MockOutboxRepository struct {
	store *Store

	CreateFunc func(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error
}

func NewMockOutboxRepository(store *Store) *MockOutboxRepository {
	return &MockOutboxRepository{store: store}
}

// Events returns every stored event in insertion order.
func (m *MockOutboxRepository) Events() []*domain.OutboxEvent {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	return append([]*domain.OutboxEvent(nil), m.store.outbox...)
}

func (m *MockOutboxRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, event)
	}
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	c := *event
	m.store.outbox = append(m.store.outbox, &c)
	return nil
}

func (m *MockOutboxRepository) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	var out []*domain.OutboxEvent
	for _, e := range m.store.outbox {
		if !e.Published {
			out = append(out, e)
		}
	}
	return paginate(out, limit, 0), nil
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	for _, e := range m.store.outbox {
		if e.ID == id {
			e.Published = true
			e.PublishedAt = &publishedAt
			return nil
		}
	}
	return fmt.Errorf("outbox event %s not found", id)
}

func (m *MockOutboxRepository) GetByAggregate(ctx context.Context, aggregateType, aggregateID string, limit, offset int) ([]*domain.OutboxEvent, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	var out []*domain.OutboxEvent
	for _, e := range m.store.outbox {
		if e.AggregateType == aggregateType && e.AggregateID == aggregateID {
			out = append(out, e)
		}
	}
	return paginate(out, limit, offset), nil
}

func (m *MockOutboxRepository) DeletePublished(ctx context.Context, before time.Time) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	kept := m.store.outbox[:0]
	for _, e := range m.store.outbox {
		if e.Published && e.PublishedAt != nil && e.PublishedAt.Before(before) {
			continue
		}
		kept = append(kept, e)
	}
	m.store.outbox = kept
	return nil
}

// MockAuditRepository is a mock implementation of AuditRepository.
type MockAuditRepository struct {
	store *Store
}

func NewMockAuditRepository(store *Store) *MockAuditRepository {
	return &MockAuditRepository{store: store}
}

// Logs returns every stored audit log in insertion order.
func (m *MockAuditRepository) Logs() []*domain.AuditLog {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	return append([]*domain.AuditLog(nil), m.store.audit...)
}

func (m *MockAuditRepository) Create(ctx context.Context, log *domain.AuditLog) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.store.audit = append(m.store.audit, log)
	return nil
}

func (m *MockAuditRepository) CreateTx(ctx context.Context, tx usecase.Transaction, log *domain.AuditLog) error {
	return m.Create(ctx, log)
}

func (m *MockAuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	var out []*domain.AuditLog
	for i := len(m.store.audit) - 1; i >= 0; i-- {
		l := m.store.audit[i]
		if filter.Action != "" && l.Action != filter.Action {
			continue
		}
		if filter.UserID != "" && l.UserID != filter.UserID {
			continue
		}
		if filter.ResourceID != "" && l.ResourceID != filter.ResourceID {
			continue
		}
		out = append(out, l)
	}
	return paginate(out, filter.Limit, filter.Offset), nil
}

func (m *MockAuditRepository) GetByResourceID(ctx context.Context, resourceType, resourceID string) ([]*domain.AuditLog, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	var out []*domain.AuditLog
	for i := len(m.store.audit) - 1; i >= 0; i-- {
		l := m.store.audit[i]
		if l.ResourceType == resourceType && l.ResourceID == resourceID {
			out = append(out, l)
		}
	}
	return out, nil
}

// MockTransactionManager is a mock implementation of TransactionManager.
type MockTransactionManager struct {
	store *Store

	BeginFunc func(ctx context.Context) (usecase.Transaction, error)
	// Commits counts successful commits.
	Commits int

	failCommits int
	commitErr   error
}

// FailCommits makes the next n commits fail with err.
func (m *MockTransactionManager) FailCommits(n int, err error) {
	m.failCommits = n
	m.commitErr = err
}

func NewMockTransactionManager(store *Store) *MockTransactionManager {
	return &MockTransactionManager{store: store}
}

func (m *MockTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	tx := &MockTransaction{store: m.store, manager: m}
	if m.store != nil {
		tx.snap = m.store.snapshot()
	}
	return tx, nil
}

// MockTransaction is a mock implementation of Transaction.
type MockTransaction struct {
	store   *Store
	manager *MockTransactionManager
	snap    *snapshot
	done    bool

	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error
}

func (m *MockTransaction) Commit(ctx context.Context) error {
	if m.CommitFunc != nil {
		return m.CommitFunc(ctx)
	}
	if m.manager != nil && m.manager.failCommits > 0 {
		m.manager.failCommits--
		return m.manager.commitErr
	}
	m.done = true
	if m.manager != nil {
		m.manager.Commits++
	}
	return nil
}

func (m *MockTransaction) Rollback(ctx context.Context) error {
	if m.RollbackFunc != nil {
		return m.RollbackFunc(ctx)
	}
	if m.done {
		return nil
	}
	m.done = true
	if m.store != nil && m.snap != nil {
		m.store.restore(m.snap)
	}
	return nil
}

// MockIDGenerator is a mock implementation of IDGenerator.
type MockIDGenerator struct {
	GenerateFunc func() string
	counter      int
	mu           sync.Mutex
}

func NewMockIDGenerator() *MockIDGenerator {
	return &MockIDGenerator{}
}

func (m *MockIDGenerator) Generate() string {
	if m.GenerateFunc != nil {
		return m.GenerateFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counter++
	return fmt.Sprintf("mock-id-%04d", m.counter)
}

// MockCache is a mock implementation of Cache.
type MockCache struct {
	mu   sync.Mutex
	data map[string][]byte

	GetFunc    func(ctx context.Context, key string) ([]byte, error)
	SetFunc    func(ctx context.Context, key string, value []byte, ttl time.Duration) error
	DeleteFunc func(ctx context.Context, keys ...string) error
}

func NewMockCache() *MockCache {
	return &MockCache{data: make(map[string][]byte)}
}

// Has reports whether key is cached.
func (m *MockCache) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

func (m *MockCache) Get(ctx context.Context, key string) ([]byte, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, usecase.ErrCacheMiss
}

func (m *MockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.SetFunc != nil {
		return m.SetFunc(ctx, key, value, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MockCache) Delete(ctx context.Context, keys ...string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, keys...)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

// MockIdempotencyStore is a mock implementation of IdempotencyStore.
type MockIdempotencyStore struct {
	mu   sync.RWMutex
	data map[string][]byte

	CheckAndSetFunc func(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	UpdateFunc      func(ctx context.Context, key string, response []byte, ttl time.Duration) error
}

// Value returns the stored response for key.
func (m *MockIdempotencyStore) Value(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}

func NewMockIdempotencyStore() *MockIdempotencyStore {
	return &MockIdempotencyStore{
		data: make(map[string][]byte),
	}
}

func (m *MockIdempotencyStore) CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error) {
	if m.CheckAndSetFunc != nil {
		return m.CheckAndSetFunc(ctx, key, response, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.data[key]; ok {
		return true, existing, nil
	}
	if response != nil {
		m.data[key] = response
	} else {
		m.data[key] = []byte("processing")
	}
	return false, nil, nil
}

func (m *MockIdempotencyStore) Update(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, key, response, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = response
	return nil
}

func (m *MockIdempotencyStore) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
