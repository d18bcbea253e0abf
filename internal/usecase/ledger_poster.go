package usecase

import (
	"context"
	"time"

	"github.com/iho/clubmarket/internal/domain"
	"github.com/iho/clubmarket/internal/infrastructure/metrics"
)

// ledgerPoster is the only writer of wallet balances. Callers own the transaction
// and must hold the account row lock.
type ledgerPoster struct {
	walletRepo WalletRepository
	outboxRepo OutboxRepository
	idGen      IDGenerator
}

type posting struct {
	Type      domain.TransactionType
	Category  string
	Reason    string
	RelatedID string
	Effect    int64
}

// post appends one transaction and moves the cached balance with it.
func (p *ledgerPoster) post(ctx context.Context, tx Transaction, account *domain.WalletAccount, in posting, now time.Time) (*domain.WalletTransaction, error) {
	if err := account.ValidateEffect(in.Effect); err != nil {
		return nil, err
	}

	newBalance := account.ApplyEffect(in.Effect)
	txn := &domain.WalletTransaction{
		ID:             p.idGen.Generate(),
		AccountID:      account.ID,
		Type:           in.Type,
		Category:       in.Category,
		Reason:         in.Reason,
		RelatedID:      in.RelatedID,
		Effect:         in.Effect,
		BalanceBefore:  account.Balance,
		BalanceAfter:   newBalance,
		AccountVersion: account.Version + 1,
		CreatedAt:      now,
	}

	if err := p.walletRepo.CreateTransaction(ctx, tx, txn); err != nil {
		return nil, err
	}

	if err := p.walletRepo.UpdateBalance(ctx, tx, account.ID, newBalance, account.Version, now); err != nil {
		return nil, err
	}

	account.Balance = newBalance
	account.Version++
	account.UpdatedAt = now

	event := newOutboxEvent(p.idGen, domain.AggregateTypeWallet, account.ID, domain.EventTypeWalletPosted, map[string]any{
		"transaction_id": txn.ID,
		"account_id":     account.ID,
		"type":           string(txn.Type),
		"category":       txn.Category,
		"effect":         txn.Effect,
		"balance_after":  txn.BalanceAfter,
		"related_id":     txn.RelatedID,
	}, now)
	if err := p.outboxRepo.Create(ctx, tx, event); err != nil {
		return nil, err
	}

	return txn, nil
}

func recordPostings(m *metrics.Metrics, txns ...*domain.WalletTransaction) {
	if m == nil {
		return
	}
	for _, txn := range txns {
		m.LedgerPostings.WithLabelValues(string(txn.Type)).Inc()
	}
}
