package usecase

import (
	"context"
	"time"

	"github.com/iho/clubmarket/internal/domain"
)

//go:generate mockgen -destination=mocks/mock_interfaces.go -package=mocks github.com/iho/clubmarket/internal/usecase MarketGate,Locker

// OfferRepository defines data access for offers.
type OfferRepository interface {
	Create(ctx context.Context, tx Transaction, offer *domain.Offer) error
	GetByID(ctx context.Context, id string) (*domain.Offer, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.Offer, error)
	// ListOpenByPlayerForUpdate locks every pending or counter-offered offer on the player, ordered by id.
	ListOpenByPlayerForUpdate(ctx context.Context, tx Transaction, playerID string) ([]*domain.Offer, error)
	// Update writes the mutable fields of offer if its stored version still equals expectedVersion.
	// It returns domain.ErrConcurrentUpdate otherwise and bumps offer.Version on success.
	Update(ctx context.Context, tx Transaction, offer *domain.Offer, expectedVersion int64) error
	List(ctx context.Context, filter domain.OfferFilter) ([]*domain.Offer, error)
	// ListDangling returns offers whose player id no longer resolves to a player.
	ListDangling(ctx context.Context, limit int) ([]*domain.Offer, error)
	RelinkPlayer(ctx context.Context, tx Transaction, offerID, playerID string) error
}

// ClubRepository defines data access for clubs.
type ClubRepository interface {
	Create(ctx context.Context, tx Transaction, club *domain.Club) error
	GetByID(ctx context.Context, id string) (*domain.Club, error)
	List(ctx context.Context, limit, offset int) ([]*domain.Club, error)
}

// PlayerRepository defines data access for players.
type PlayerRepository interface {
	Create(ctx context.Context, tx Transaction, player *domain.Player) error
	GetByID(ctx context.Context, id string) (*domain.Player, error)
	GetByIDForUpdate(ctx context.Context, tx Transaction, id string) (*domain.Player, error)
	// Update writes club and listing if the stored version still equals expectedVersion.
	Update(ctx context.Context, tx Transaction, player *domain.Player, expectedVersion int64) error
	ListByClub(ctx context.Context, clubID string) ([]*domain.Player, error)
	FindByName(ctx context.Context, name string) ([]*domain.Player, error)
}

// TransferRepository defines data access for transfer records.
type TransferRepository interface {
	Create(ctx context.Context, tx Transaction, transfer *domain.Transfer) error
	GetByID(ctx context.Context, id string) (*domain.Transfer, error)
	List(ctx context.Context, filter domain.TransferFilter) ([]*domain.Transfer, error)
}

// WalletRepository defines data access for wallet accounts and their transactions.
type WalletRepository interface {
	GetAccount(ctx context.Context, id string) (*domain.WalletAccount, error)
	// LockAccounts returns the accounts locked in id order, creating empty ones for unseen ids.
	LockAccounts(ctx context.Context, tx Transaction, ids []string) ([]*domain.WalletAccount, error)
	// UpdateBalance sets the balance if the stored version still equals expectedVersion.
	UpdateBalance(ctx context.Context, tx Transaction, id string, balance, expectedVersion int64, updatedAt time.Time) error
	CreateTransaction(ctx context.Context, tx Transaction, txn *domain.WalletTransaction) error
	ListTransactions(ctx context.Context, accountID string, limit, offset int) ([]*domain.WalletTransaction, error)
	SumEffects(ctx context.Context, accountID string) (int64, error)
	ListAccounts(ctx context.Context, limit, offset int) ([]*domain.WalletAccount, error)
	// Totals returns the sum of all cached balances and the sum of all transaction effects.
	Totals(ctx context.Context) (balances, effects int64, err error)
}

// RuleRepository defines data access for automatic ledger rules.
type RuleRepository interface {
	Create(ctx context.Context, tx Transaction, rule *domain.Rule) error
	GetByID(ctx context.Context, id string) (*domain.Rule, error)
	List(ctx context.Context) ([]*domain.Rule, error)
	// ListActiveByTrigger returns active rules for trigger in creation order.
	ListActiveByTrigger(ctx context.Context, tx Transaction, trigger string) ([]*domain.Rule, error)
	SetActive(ctx context.Context, tx Transaction, id string, active bool) error
}

// OutboxRepository defines data access for outbox events.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	GetByAggregate(ctx context.Context, aggregateType, aggregateID string, limit, offset int) ([]*domain.OutboxEvent, error)
	DeletePublished(ctx context.Context, before time.Time) error
}

// AuditRepository defines data access for audit logs.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
	CreateTx(ctx context.Context, tx Transaction, log *domain.AuditLog) error
	List(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditLog, error)
	GetByResourceID(ctx context.Context, resourceType, resourceID string) ([]*domain.AuditLog, error)
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// Retrier re-runs an operation on transient storage failures.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// Locker provides named mutual exclusion across processes.
type Locker interface {
	// Acquire blocks until key is held or ctx ends. The returned release func is safe to call once.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

// MarketGate stores the global transfer-window flag.
type MarketGate interface {
	IsOpen(ctx context.Context) (bool, error)
	SetOpen(ctx context.Context, open bool) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Release drops a key so the request can be retried.
	Release(ctx context.Context, key string) error
}
