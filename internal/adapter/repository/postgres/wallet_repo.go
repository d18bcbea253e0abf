package postgres

import (
	"context"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/iho/clubmarket/internal/domain"
	"github.com/iho/clubmarket/internal/usecase"
)

const (
	accountColumns     = `id, balance, version, created_at, updated_at`
	transactionColumns = `id, account_id, type, category, reason, related_id, effect,
	balance_before, balance_after, account_version, created_at`
)

// WalletRepository implements usecase.WalletRepository.
type WalletRepository struct {
	db DB
}

// NewWalletRepository creates a new WalletRepository.
func NewWalletRepository(db DB) *WalletRepository {
	return &WalletRepository{db: db}
}

func scanAccount(row pgx.Row) (*domain.WalletAccount, error) {
	var a domain.WalletAccount
	if err := row.Scan(&a.ID, &a.Balance, &a.Version, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func collectAccounts(rows pgx.Rows, err error) ([]*domain.WalletAccount, error) {
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.WalletAccount, error) {
		return scanAccount(row)
	})
}

func scanWalletTransaction(row pgx.Row) (*domain.WalletTransaction, error) {
	var t domain.WalletTransaction
	var txType string
	err := row.Scan(
		&t.ID,
		&t.AccountID,
		&txType,
		&t.Category,
		&t.Reason,
		&t.RelatedID,
		&t.Effect,
		&t.BalanceBefore,
		&t.BalanceAfter,
		&t.AccountVersion,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Type = domain.TransactionType(txType)
	return &t, nil
}

// GetAccount retrieves an account.
func (r *WalletRepository) GetAccount(ctx context.Context, id string) (*domain.WalletAccount, error) {
	account, err := scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM wallet_accounts WHERE id = $1`, id))
	if err != nil {
		return nil, translateError(err, domain.ErrAccountNotFound)
	}
	return account, nil
}

// LockAccounts creates missing accounts and locks all of them in id order.
func (r *WalletRepository) LockAccounts(ctx context.Context, tx usecase.Transaction, ids []string) ([]*domain.WalletAccount, error) {
	q, err := conn(r.db, tx)
	if err != nil {
		return nil, err
	}

	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	if _, err := q.Exec(ctx, `
		INSERT INTO wallet_accounts (id)
		SELECT unnest($1::text[]) ORDER BY 1
		ON CONFLICT (id) DO NOTHING`,
		sorted,
	); err != nil {
		return nil, translateError(err, nil)
	}

	return collectAccounts(q.Query(ctx, `
		SELECT `+accountColumns+`
		FROM wallet_accounts
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE`,
		sorted,
	))
}

// UpdateBalance sets a new balance when the stored version matches.
func (r *WalletRepository) UpdateBalance(ctx context.Context, tx usecase.Transaction, id string, balance, expectedVersion int64, updatedAt time.Time) error {
	q, err := conn(r.db, tx)
	if err != nil {
		return err
	}

	return expectOne(q.Exec(ctx, `
		UPDATE wallet_accounts
		SET balance = $2, version = version + 1, updated_at = $3
		WHERE id = $1 AND version = $4`,
		id, balance, updatedAt, expectedVersion))
}

// CreateTransaction appends a ledger row.
func (r *WalletRepository) CreateTransaction(ctx context.Context, tx usecase.Transaction, txn *domain.WalletTransaction) error {
	q, err := conn(r.db, tx)
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx, `
		INSERT INTO wallet_transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		txn.ID,
		txn.AccountID,
		string(txn.Type),
		txn.Category,
		txn.Reason,
		txn.RelatedID,
		txn.Effect,
		txn.BalanceBefore,
		txn.BalanceAfter,
		txn.AccountVersion,
		txn.CreatedAt,
	)
	return translateError(err, nil)
}

// ListTransactions returns an account's ledger rows newest first.
func (r *WalletRepository) ListTransactions(ctx context.Context, accountID string, limit, offset int) ([]*domain.WalletTransaction, error) {
	page, args := paging([]any{accountID}, limit, offset)
	rows, err := r.db.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM wallet_transactions
		WHERE account_id = $1
		ORDER BY account_version DESC`+page,
		args...,
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.WalletTransaction, error) {
		return scanWalletTransaction(row)
	})
}

// SumEffects replays the ledger of an account.
func (r *WalletRepository) SumEffects(ctx context.Context, accountID string) (int64, error) {
	var sum int64
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(effect), 0)::bigint FROM wallet_transactions WHERE account_id = $1`,
		accountID,
	).Scan(&sum)
	return sum, err
}

// ListAccounts returns accounts ordered by id.
func (r *WalletRepository) ListAccounts(ctx context.Context, limit, offset int) ([]*domain.WalletAccount, error) {
	page, args := paging(nil, limit, offset)
	return collectAccounts(r.db.Query(ctx, `SELECT `+accountColumns+` FROM wallet_accounts ORDER BY id`+page, args...))
}

// Totals returns the sum of cached balances and the sum of all effects.
func (r *WalletRepository) Totals(ctx context.Context) (balances, effects int64, err error) {
	err = r.db.QueryRow(ctx, `
		SELECT
			(SELECT COALESCE(SUM(balance), 0)::bigint FROM wallet_accounts),
			(SELECT COALESCE(SUM(effect), 0)::bigint FROM wallet_transactions)`,
	).Scan(&balances, &effects)
	return balances, effects, err
}
