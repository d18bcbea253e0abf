package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	// This prevents long-running transactions from blocking tables
	DefaultTransactionTimeout = 10 * time.Second

	// DefaultSettlementLockTTL is how long a per-player settlement lock lives if its holder dies
	DefaultSettlementLockTTL = 15 * time.Second

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour

	// ReconcileBatchSize is the page size used when walking every wallet account
	ReconcileBatchSize = 500

	// RepairBatchSize caps the number of dangling offers examined per repair run
	RepairBatchSize = 1000
)

// SettlementLockKey returns the lock name serializing settlements of one player.
func SettlementLockKey(playerID string) string {
	return "settlement:player:" + playerID
}
