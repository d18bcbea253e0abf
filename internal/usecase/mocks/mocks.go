package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iho/clubmarket/internal/domain"
	"github.com/iho/clubmarket/internal/usecase"
)

// trackUndo registers f to run if tx rolls back. Non-mock transactions are ignored.
func trackUndo(tx usecase.Transaction, f func()) {
	if mt, ok := tx.(*MockTransaction); ok {
		mt.OnRollback(f)
	}
}

func window[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// MockOfferRepository is an in-memory OfferRepository.
type MockOfferRepository struct {
	mu     sync.RWMutex
	offers map[string]*domain.Offer
	order  []string

	// Players resolves player ids for ListDangling. Nil reports nothing as dangling.
	Players *MockPlayerRepository

	CreateFunc                    func(ctx context.Context, tx usecase.Transaction, offer *domain.Offer) error
	GetByIDFunc                   func(ctx context.Context, id string) (*domain.Offer, error)
	UpdateFunc                    func(ctx context.Context, tx usecase.Transaction, offer *domain.Offer, expectedVersion int64) error
	ListOpenByPlayerForUpdateFunc func(ctx context.Context, tx usecase.Transaction, playerID string) ([]*domain.Offer, error)
}

func NewMockOfferRepository() *MockOfferRepository {
	return &MockOfferRepository{
		offers: make(map[string]*domain.Offer),
	}
}

func (m *MockOfferRepository) Create(ctx context.Context, tx usecase.Transaction, offer *domain.Offer) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, offer)
	}
	m.mu.Lock()
	if _, exists := m.offers[offer.ID]; exists {
		m.mu.Unlock()
		return domain.ErrDuplicate
	}
	stored := *offer
	m.offers[offer.ID] = &stored
	m.order = append(m.order, offer.ID)
	m.mu.Unlock()

	trackUndo(tx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.offers, offer.ID)
		m.order = m.order[:len(m.order)-1]
	})
	return nil
}

func (m *MockOfferRepository) GetByID(ctx context.Context, id string) (*domain.Offer, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if o, ok := m.offers[id]; ok {
		c := *o
		return &c, nil
	}
	return nil, domain.ErrOfferNotFound
}

func (m *MockOfferRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Offer, error) {
	return m.GetByID(ctx, id)
}

func (m *MockOfferRepository) ListOpenByPlayerForUpdate(ctx context.Context, tx usecase.Transaction, playerID string) ([]*domain.Offer, error) {
	if m.ListOpenByPlayerForUpdateFunc != nil {
		return m.ListOpenByPlayerForUpdateFunc(ctx, tx, playerID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var offers []*domain.Offer
	for _, o := range m.offers {
		if o.PlayerID == playerID && !o.Status.IsTerminal() {
			c := *o
			offers = append(offers, &c)
		}
	}
	sort.Slice(offers, func(i, j int) bool { return offers[i].ID < offers[j].ID })
	return offers, nil
}

func (m *MockOfferRepository) Update(ctx context.Context, tx usecase.Transaction, offer *domain.Offer, expectedVersion int64) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, tx, offer, expectedVersion)
	}
	m.mu.Lock()
	current, ok := m.offers[offer.ID]
	if !ok {
		m.mu.Unlock()
		return domain.ErrOfferNotFound
	}
	if current.Version != expectedVersion {
		m.mu.Unlock()
		return domain.ErrConcurrentUpdate
	}
	if offer.Status == domain.OfferStatusAccepted {
		for id, o := range m.offers {
			if id != offer.ID && o.PlayerID == offer.PlayerID && o.Status == domain.OfferStatusAccepted {
				m.mu.Unlock()
				return domain.ErrPlayerAlreadySold
			}
		}
	}
	previous := *current
	offer.Version = expectedVersion + 1
	stored := *offer
	m.offers[offer.ID] = &stored
	m.mu.Unlock()

	trackUndo(tx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.offers[previous.ID] = &previous
	})
	return nil
}

func (m *MockOfferRepository) List(ctx context.Context, filter domain.OfferFilter) ([]*domain.Offer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var offers []*domain.Offer
	for i := len(m.order) - 1; i >= 0; i-- {
		o := m.offers[m.order[i]]
		if filter.PlayerID != "" && o.PlayerID != filter.PlayerID {
			continue
		}
		if filter.ClubID != "" && !o.InvolvesClub(filter.ClubID) {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		c := *o
		offers = append(offers, &c)
	}
	return window(offers, filter.Limit, filter.Offset), nil
}

func (m *MockOfferRepository) ListDangling(ctx context.Context, limit int) ([]*domain.Offer, error) {
	if m.Players == nil {
		return nil, nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var offers []*domain.Offer
	for _, id := range m.order {
		o := m.offers[id]
		if _, err := m.Players.GetByID(ctx, o.PlayerID); err != nil {
			c := *o
			offers = append(offers, &c)
		}
	}
	return window(offers, limit, 0), nil
}

func (m *MockOfferRepository) RelinkPlayer(ctx context.Context, tx usecase.Transaction, offerID, playerID string) error {
	m.mu.Lock()
	o, ok := m.offers[offerID]
	if !ok {
		m.mu.Unlock()
		return domain.ErrOfferNotFound
	}
	previous := *o
	o.PlayerID = playerID
	o.Version++
	m.mu.Unlock()

	trackUndo(tx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		*m.offers[offerID] = previous
	})
	return nil
}

// MockClubRepository is an in-memory ClubRepository.
type MockClubRepository struct {
	mu    sync.RWMutex
	clubs map[string]*domain.Club
	order []string

	GetByIDFunc func(ctx context.Context, id string) (*domain.Club, error)
}

func NewMockClubRepository() *MockClubRepository {
	return &MockClubRepository{
		clubs: make(map[string]*domain.Club),
	}
}

func (m *MockClubRepository) Create(ctx context.Context, tx usecase.Transaction, club *domain.Club) error {
	m.mu.Lock()
	if _, exists := m.clubs[club.ID]; exists {
		m.mu.Unlock()
		return domain.ErrDuplicate
	}
	stored := *club
	m.clubs[club.ID] = &stored
	m.order = append(m.order, club.ID)
	m.mu.Unlock()

	trackUndo(tx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.clubs, club.ID)
		m.order = m.order[:len(m.order)-1]
	})
	return nil
}

func (m *MockClubRepository) GetByID(ctx context.Context, id string) (*domain.Club, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if c, ok := m.clubs[id]; ok {
		club := *c
		return &club, nil
	}
	return nil, domain.ErrClubNotFound
}

func (m *MockClubRepository) List(ctx context.Context, limit, offset int) ([]*domain.Club, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	clubs := make([]*domain.Club, 0, len(m.order))
	for _, id := range m.order {
		c := *m.clubs[id]
		clubs = append(clubs, &c)
	}
	return window(clubs, limit, offset), nil
}

// MockPlayerRepository is an in-memory PlayerRepository.
type MockPlayerRepository struct {
	mu      sync.RWMutex
	players map[string]*domain.Player
	order   []string

	GetByIDForUpdateFunc func(ctx context.Context, tx usecase.Transaction, id string) (*domain.Player, error)
	UpdateFunc           func(ctx context.Context, tx usecase.Transaction, player *domain.Player, expectedVersion int64) error
}

func NewMockPlayerRepository() *MockPlayerRepository {
	return &MockPlayerRepository{
		players: make(map[string]*domain.Player),
	}
}

func (m *MockPlayerRepository) Create(ctx context.Context, tx usecase.Transaction, player *domain.Player) error {
	m.mu.Lock()
	if _, exists := m.players[player.ID]; exists {
		m.mu.Unlock()
		return domain.ErrDuplicate
	}
	stored := *player
	m.players[player.ID] = &stored
	m.order = append(m.order, player.ID)
	m.mu.Unlock()

	trackUndo(tx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.players, player.ID)
		m.order = m.order[:len(m.order)-1]
	})
	return nil
}

// Delete removes a player, leaving offers that reference it dangling.
func (m *MockPlayerRepository) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.players, id)
	for i, pid := range m.order {
		if pid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
}

func (m *MockPlayerRepository) GetByID(ctx context.Context, id string) (*domain.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.players[id]; ok {
		c := *p
		return &c, nil
	}
	return nil, domain.ErrPlayerNotFound
}

func (m *MockPlayerRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Player, error) {
	if m.GetByIDForUpdateFunc != nil {
		return m.GetByIDForUpdateFunc(ctx, tx, id)
	}
	return m.GetByID(ctx, id)
}

func (m *MockPlayerRepository) Update(ctx context.Context, tx usecase.Transaction, player *domain.Player, expectedVersion int64) error {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, tx, player, expectedVersion)
	}
	m.mu.Lock()
	current, ok := m.players[player.ID]
	if !ok {
		m.mu.Unlock()
		return domain.ErrPlayerNotFound
	}
	if current.Version != expectedVersion {
		m.mu.Unlock()
		return domain.ErrConcurrentUpdate
	}
	previous := *current
	player.Version = expectedVersion + 1
	stored := *player
	m.players[player.ID] = &stored
	m.mu.Unlock()

	trackUndo(tx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.players[previous.ID] = &previous
	})
	return nil
}

func (m *MockPlayerRepository) ListByClub(ctx context.Context, clubID string) ([]*domain.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var players []*domain.Player
	for _, id := range m.order {
		p := m.players[id]
		if p.BelongsTo(clubID) {
			c := *p
			players = append(players, &c)
		}
	}
	return players, nil
}

func (m *MockPlayerRepository) FindByName(ctx context.Context, name string) ([]*domain.Player, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var players []*domain.Player
	for _, id := range m.order {
		p := m.players[id]
		if p.Name == name {
			c := *p
			players = append(players, &c)
		}
	}
	return players, nil
}

// MockTransferRepository is an in-memory TransferRepository.
type MockTransferRepository struct {
	mu        sync.RWMutex
	transfers []*domain.Transfer

	CreateFunc func(ctx context.Context, tx usecase.Transaction, transfer *domain.Transfer) error
}

func NewMockTransferRepository() *MockTransferRepository {
	return &MockTransferRepository{}
}

func (m *MockTransferRepository) Create(ctx context.Context, tx usecase.Transaction, transfer *domain.Transfer) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, transfer)
	}
	m.mu.Lock()
	stored := *transfer
	m.transfers = append(m.transfers, &stored)
	m.mu.Unlock()

	trackUndo(tx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.transfers = m.transfers[:len(m.transfers)-1]
	})
	return nil
}

func (m *MockTransferRepository) GetByID(ctx context.Context, id string) (*domain.Transfer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.transfers {
		if t.ID == id {
			c := *t
			return &c, nil
		}
	}
	return nil, domain.ErrTransferNotFound
}

func (m *MockTransferRepository) List(ctx context.Context, filter domain.TransferFilter) ([]*domain.Transfer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var transfers []*domain.Transfer
	for i := len(m.transfers) - 1; i >= 0; i-- {
		t := m.transfers[i]
		if filter.PlayerID != "" && t.PlayerID != filter.PlayerID {
			continue
		}
		if filter.ClubID != "" && t.SellerClubID != filter.ClubID && t.BuyerClubID != filter.ClubID {
			continue
		}
		c := *t
		transfers = append(transfers, &c)
	}
	return window(transfers, filter.Limit, filter.Offset), nil
}

// MockWalletRepository is an in-memory WalletRepository.
type MockWalletRepository struct {
	mu       sync.RWMutex
	accounts map[string]*domain.WalletAccount
	txns     []*domain.WalletTransaction

	LockAccountsFunc      func(ctx context.Context, tx usecase.Transaction, ids []string) ([]*domain.WalletAccount, error)
	CreateTransactionFunc func(ctx context.Context, tx usecase.Transaction, txn *domain.WalletTransaction) error
}

func NewMockWalletRepository() *MockWalletRepository {
	return &MockWalletRepository{
		accounts: make(map[string]*domain.WalletAccount),
	}
}

// Seed funds an account outside any transaction, recording an opening transaction
// so balances stay equal to the sum of their effects.
func (m *MockWalletRepository) Seed(id string, balance int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	account, ok := m.accounts[id]
	if !ok {
		account = &domain.WalletAccount{ID: id, CreatedAt: now}
		m.accounts[id] = account
	}
	m.txns = append(m.txns, &domain.WalletTransaction{
		ID:             fmt.Sprintf("seed-%s-%d", id, len(m.txns)),
		AccountID:      id,
		Type:           domain.TransactionTypeCredit,
		Category:       domain.CategoryOpening,
		Reason:         "seed",
		Effect:         balance,
		BalanceBefore:  account.Balance,
		BalanceAfter:   account.Balance + balance,
		AccountVersion: account.Version + 1,
		CreatedAt:      now,
	})
	account.Balance += balance
	account.Version++
	account.UpdatedAt = now
}

// Corrupt overwrites a cached balance without a transaction.
func (m *MockWalletRepository) Corrupt(id string, balance int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if account, ok := m.accounts[id]; ok {
		account.Balance = balance
	}
}

// Transactions returns every stored transaction in posting order.
func (m *MockWalletRepository) Transactions() []*domain.WalletTransaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.WalletTransaction, len(m.txns))
	copy(out, m.txns)
	return out
}

func (m *MockWalletRepository) GetAccount(ctx context.Context, id string) (*domain.WalletAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if a, ok := m.accounts[id]; ok {
		c := *a
		return &c, nil
	}
	return nil, domain.ErrAccountNotFound
}

func (m *MockWalletRepository) LockAccounts(ctx context.Context, tx usecase.Transaction, ids []string) ([]*domain.WalletAccount, error) {
	if m.LockAccountsFunc != nil {
		return m.LockAccountsFunc(ctx, tx, ids)
	}
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	m.mu.Lock()
	var created []string
	accounts := make([]*domain.WalletAccount, 0, len(sorted))
	for _, id := range sorted {
		a, ok := m.accounts[id]
		if !ok {
			now := time.Now().UTC()
			a = &domain.WalletAccount{ID: id, CreatedAt: now, UpdatedAt: now}
			m.accounts[id] = a
			created = append(created, id)
		}
		c := *a
		accounts = append(accounts, &c)
	}
	m.mu.Unlock()

	if len(created) > 0 {
		trackUndo(tx, func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for _, id := range created {
				delete(m.accounts, id)
			}
		})
	}
	return accounts, nil
}

func (m *MockWalletRepository) UpdateBalance(ctx context.Context, tx usecase.Transaction, id string, balance, expectedVersion int64, updatedAt time.Time) error {
	m.mu.Lock()
	a, ok := m.accounts[id]
	if !ok {
		m.mu.Unlock()
		return domain.ErrAccountNotFound
	}
	if a.Version != expectedVersion {
		m.mu.Unlock()
		return domain.ErrConcurrentUpdate
	}
	previous := *a
	a.Balance = balance
	a.Version = expectedVersion + 1
	a.UpdatedAt = updatedAt
	m.mu.Unlock()

	trackUndo(tx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if current, ok := m.accounts[id]; ok {
			*current = previous
		}
	})
	return nil
}

func (m *MockWalletRepository) CreateTransaction(ctx context.Context, tx usecase.Transaction, txn *domain.WalletTransaction) error {
	if m.CreateTransactionFunc != nil {
		return m.CreateTransactionFunc(ctx, tx, txn)
	}
	m.mu.Lock()
	stored := *txn
	m.txns = append(m.txns, &stored)
	m.mu.Unlock()

	trackUndo(tx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, t := range m.txns {
			if t.ID == txn.ID {
				m.txns = append(m.txns[:i], m.txns[i+1:]...)
				break
			}
		}
	})
	return nil
}

func (m *MockWalletRepository) ListTransactions(ctx context.Context, accountID string, limit, offset int) ([]*domain.WalletTransaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var txns []*domain.WalletTransaction
	for i := len(m.txns) - 1; i >= 0; i-- {
		if m.txns[i].AccountID == accountID {
			c := *m.txns[i]
			txns = append(txns, &c)
		}
	}
	return window(txns, limit, offset), nil
}

func (m *MockWalletRepository) SumEffects(ctx context.Context, accountID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var sum int64
	for _, t := range m.txns {
		if t.AccountID == accountID {
			sum += t.Effect
		}
	}
	return sum, nil
}

func (m *MockWalletRepository) ListAccounts(ctx context.Context, limit, offset int) ([]*domain.WalletAccount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	accounts := make([]*domain.WalletAccount, 0, len(m.accounts))
	for _, a := range m.accounts {
		c := *a
		accounts = append(accounts, &c)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return window(accounts, limit, offset), nil
}

func (m *MockWalletRepository) Totals(ctx context.Context) (int64, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var balances, effects int64
	for _, a := range m.accounts {
		balances += a.Balance
	}
	for _, t := range m.txns {
		effects += t.Effect
	}
	return balances, effects, nil
}

// MockRuleRepository is an in-memory RuleRepository.
type MockRuleRepository struct {
	mu    sync.RWMutex
	rules []*domain.Rule
}

func NewMockRuleRepository() *MockRuleRepository {
	return &MockRuleRepository{}
}

func (m *MockRuleRepository) Create(ctx context.Context, tx usecase.Transaction, rule *domain.Rule) error {
	m.mu.Lock()
	stored := *rule
	m.rules = append(m.rules, &stored)
	m.mu.Unlock()

	trackUndo(tx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.rules = m.rules[:len(m.rules)-1]
	})
	return nil
}

func (m *MockRuleRepository) GetByID(ctx context.Context, id string) (*domain.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.rules {
		if r.ID == id {
			c := *r
			return &c, nil
		}
	}
	return nil, domain.ErrRuleNotFound
}

func (m *MockRuleRepository) List(ctx context.Context) ([]*domain.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rules := make([]*domain.Rule, 0, len(m.rules))
	for _, r := range m.rules {
		c := *r
		rules = append(rules, &c)
	}
	return rules, nil
}

func (m *MockRuleRepository) ListActiveByTrigger(ctx context.Context, tx usecase.Transaction, trigger string) ([]*domain.Rule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var rules []*domain.Rule
	for _, r := range m.rules {
		if r.Active && r.Trigger == trigger {
			c := *r
			rules = append(rules, &c)
		}
	}
	return rules, nil
}

func (m *MockRuleRepository) SetActive(ctx context.Context, tx usecase.Transaction, id string, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rules {
		if r.ID == id {
			previous := r.Active
			r.Active = active
			rule := r
			trackUndo(tx, func() {
				m.mu.Lock()
				defer m.mu.Unlock()
				rule.Active = previous
			})
			return nil
		}
	}
	return domain.ErrRuleNotFound
}

// MockOutboxRepository is an in-memory OutboxRepository.
type MockOutboxRepository struct {
	mu     sync.RWMutex
	events []*domain.OutboxEvent

	CreateFunc func(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error
}

func NewMockOutboxRepository() *MockOutboxRepository {
	return &MockOutboxRepository{}
}

// EventTypes returns the types of all stored events in write order.
func (m *MockOutboxRepository) EventTypes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	types := make([]string, 0, len(m.events))
	for _, e := range m.events {
		types = append(types, e.EventType)
	}
	return types
}

func (m *MockOutboxRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, event)
	}
	m.mu.Lock()
	m.events = append(m.events, event)
	m.mu.Unlock()

	trackUndo(tx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, e := range m.events {
			if e.ID == event.ID {
				m.events = append(m.events[:i], m.events[i+1:]...)
				break
			}
		}
	})
	return nil
}

func (m *MockOutboxRepository) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var events []*domain.OutboxEvent
	for _, e := range m.events {
		if !e.Published {
			events = append(events, e)
		}
	}
	return window(events, limit, 0), nil
}

func (m *MockOutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.ID == id {
			e.Published = true
			at := publishedAt
			e.PublishedAt = &at
		}
	}
	return nil
}

func (m *MockOutboxRepository) GetByAggregate(ctx context.Context, aggregateType, aggregateID string, limit, offset int) ([]*domain.OutboxEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var events []*domain.OutboxEvent
	for _, e := range m.events {
		if e.AggregateType == aggregateType && e.AggregateID == aggregateID {
			events = append(events, e)
		}
	}
	return window(events, limit, offset), nil
}

func (m *MockOutboxRepository) DeletePublished(ctx context.Context, before time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.events[:0]
	for _, e := range m.events {
		if e.Published && e.PublishedAt != nil && e.PublishedAt.Before(before) {
			continue
		}
		kept = append(kept, e)
	}
	m.events = kept
	return nil
}

// MockAuditRepository is an in-memory AuditRepository.
type MockAuditRepository struct {
	mu   sync.RWMutex
	logs []*domain.AuditLog
}

func NewMockAuditRepository() *MockAuditRepository {
	return &MockAuditRepository{}
}

func (m *MockAuditRepository) Create(ctx context.Context, log *domain.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, log)
	return nil
}

func (m *MockAuditRepository) CreateTx(ctx context.Context, tx usecase.Transaction, log *domain.AuditLog) error {
	if err := m.Create(ctx, log); err != nil {
		return err
	}
	trackUndo(tx, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.logs = m.logs[:len(m.logs)-1]
	})
	return nil
}

func (m *MockAuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var logs []*domain.AuditLog
	for _, l := range m.logs {
		if filter.Action != "" && l.Action != filter.Action {
			continue
		}
		if filter.ResourceID != "" && l.ResourceID != filter.ResourceID {
			continue
		}
		if filter.UserID != "" && l.UserID != filter.UserID {
			continue
		}
		logs = append(logs, l)
	}
	return window(logs, filter.Limit, filter.Offset), nil
}

func (m *MockAuditRepository) GetByResourceID(ctx context.Context, resourceType, resourceID string) ([]*domain.AuditLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var logs []*domain.AuditLog
	for _, l := range m.logs {
		if l.ResourceType == resourceType && l.ResourceID == resourceID {
			logs = append(logs, l)
		}
	}
	return logs, nil
}

// MockTransactionManager is a mock implementation of TransactionManager.
// Transactions it begins run one at a time, like rows locked by a single writer.
type MockTransactionManager struct {
	BeginFunc func(ctx context.Context) (usecase.Transaction, error)

	mu        sync.Mutex
	Commits   atomic.Int64
	Rollbacks atomic.Int64
}

func NewMockTransactionManager() *MockTransactionManager {
	return &MockTransactionManager{}
}

func (m *MockTransactionManager) Begin(ctx context.Context) (usecase.Transaction, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx)
	}
	m.mu.Lock()
	return &MockTransaction{manager: m, release: m.mu.Unlock}, nil
}

// MockTransaction is a mock implementation of Transaction. Repositories register undo
// functions on it, which run in reverse order on rollback.
type MockTransaction struct {
	CommitFunc   func(ctx context.Context) error
	RollbackFunc func(ctx context.Context) error

	mu      sync.Mutex
	undo    []func()
	done    bool
	manager *MockTransactionManager
	release func()
}

// OnRollback registers f to run if the transaction rolls back.
func (m *MockTransaction) OnRollback(f func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.undo = append(m.undo, f)
}

func (m *MockTransaction) Commit(ctx context.Context) error {
	if m.CommitFunc != nil {
		if err := m.CommitFunc(ctx); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done {
		return nil
	}
	m.undo = nil
	m.finish()
	if m.manager != nil {
		m.manager.Commits.Add(1)
	}
	return nil
}

func (m *MockTransaction) Rollback(ctx context.Context) error {
	if m.RollbackFunc != nil {
		if err := m.RollbackFunc(ctx); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.done {
		return nil
	}
	for i := len(m.undo) - 1; i >= 0; i-- {
		m.undo[i]()
	}
	m.undo = nil
	m.finish()
	if m.manager != nil {
		m.manager.Rollbacks.Add(1)
	}
	return nil
}

func (m *MockTransaction) finish() {
	m.done = true
	if m.release != nil {
		m.release()
	}
}

// MockIDGenerator is a mock implementation of IDGenerator.
// Default ids sort in generation order.
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
	return fmt.Sprintf("mock-id-%06d", m.counter)
}

// MockRetrier is a mock implementation of Retrier. It runs the operation once by default.
type MockRetrier struct {
	RetryFunc func(ctx context.Context, operation func() error) error
	Calls     atomic.Int64
}

func (m *MockRetrier) Retry(ctx context.Context, operation func() error) error {
	m.Calls.Add(1)
	if m.RetryFunc != nil {
		return m.RetryFunc(ctx, operation)
	}
	return operation()
}

// MockPlayerLocker is an in-process keyed mutex implementing Locker.
type MockPlayerLocker struct {
	mu       sync.Mutex
	held     map[string]chan struct{}
	Acquired atomic.Int64
}

func NewMockPlayerLocker() *MockPlayerLocker {
	return &MockPlayerLocker{held: make(map[string]chan struct{})}
}

func (m *MockPlayerLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	for {
		m.mu.Lock()
		ch, busy := m.held[key]
		if !busy {
			ch = make(chan struct{})
			m.held[key] = ch
			m.mu.Unlock()
			m.Acquired.Add(1)

			var once sync.Once
			return func(context.Context) error {
				once.Do(func() {
					m.mu.Lock()
					delete(m.held, key)
					m.mu.Unlock()
					close(ch)
				})
				return nil
			}, nil
		}
		m.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return nil, domain.ErrSettlementInFlight
		}
	}
}

// FakeMarketGate is an in-memory MarketGate.
type FakeMarketGate struct {
	open atomic.Bool

	SetOpenFunc func(ctx context.Context, open bool) error
}

func NewFakeMarketGate(open bool) *FakeMarketGate {
	g := &FakeMarketGate{}
	g.open.Store(open)
	return g
}

func (g *FakeMarketGate) IsOpen(ctx context.Context) (bool, error) {
	return g.open.Load(), nil
}

func (g *FakeMarketGate) SetOpen(ctx context.Context, open bool) error {
	if g.SetOpenFunc != nil {
		if err := g.SetOpenFunc(ctx, open); err != nil {
			return err
		}
	}
	g.open.Store(open)
	return nil
}

// MockIdempotencyStore is a mock implementation of IdempotencyStore.
type MockIdempotencyStore struct {
	mu   sync.RWMutex
	data map[string][]byte

	CheckAndSetFunc func(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	UpdateFunc      func(ctx context.Context, key string, response []byte, ttl time.Duration) error
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

// Get returns the stored value for key.
func (m *MockIdempotencyStore) Get(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}
