package usecase

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/iho/clubmarket/internal/domain"
	"github.com/iho/clubmarket/internal/infrastructure/metrics"
)

// WalletUseCase is the wallet ledger: balances, postings and automatic rules.
type WalletUseCase struct {
	txManager  TransactionManager
	walletRepo WalletRepository
	ruleRepo   RuleRepository
	auditRepo  AuditRepository
	idGen      IDGenerator
	retrier    Retrier
	metrics    *metrics.Metrics
	poster     *ledgerPoster
}

// NewWalletUseCase creates a new WalletUseCase.
func NewWalletUseCase(
	txManager TransactionManager,
	walletRepo WalletRepository,
	ruleRepo RuleRepository,
	outboxRepo OutboxRepository,
	auditRepo AuditRepository,
	idGen IDGenerator,
	retrier Retrier,
	metrics *metrics.Metrics,
) *WalletUseCase {
	return &WalletUseCase{
		txManager:  txManager,
		walletRepo: walletRepo,
		ruleRepo:   ruleRepo,
		auditRepo:  auditRepo,
		idGen:      idGen,
		retrier:    retrier,
		metrics:    metrics,
		poster: &ledgerPoster{
			walletRepo: walletRepo,
			outboxRepo: outboxRepo,
			idGen:      idGen,
		},
	}
}

// PostingInput represents input for a credit or debit.
type PostingInput struct {
	AccountID string
	Category  string
	Reason    string
	RelatedID string
	Amount    int64
}

func (in PostingInput) validate() error {
	if strings.TrimSpace(in.AccountID) == "" {
		return domain.ErrMissingAccountID
	}
	if err := domain.ValidateAmount(in.Amount); err != nil {
		return err
	}
	if strings.TrimSpace(in.Category) == "" {
		return domain.ErrMissingCategory
	}
	return domain.ValidateReason(in.Reason)
}

// AdjustInput represents an administrative signed correction.
type AdjustInput struct {
	AccountID string
	Reason    string
	Delta     int64
}

// GetAccount returns the wallet account. Unseen accounts are reported with a zero balance.
func (uc *WalletUseCase) GetAccount(ctx context.Context, accountID string) (*domain.WalletAccount, error) {
	account, err := uc.walletRepo.GetAccount(ctx, accountID)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return &domain.WalletAccount{ID: accountID}, nil
	}
	if err != nil {
		return nil, err
	}
	return account, nil
}

// GetBalance returns the current balance, 0 for unseen accounts.
func (uc *WalletUseCase) GetBalance(ctx context.Context, accountID string) (int64, error) {
	account, err := uc.GetAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

// Credit increases the balance by a positive amount.
func (uc *WalletUseCase) Credit(ctx context.Context, input PostingInput) (*domain.WalletTransaction, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	return uc.postSingle(ctx, input.AccountID, posting{
		Type:      domain.TransactionTypeCredit,
		Category:  input.Category,
		Reason:    input.Reason,
		RelatedID: input.RelatedID,
		Effect:    input.Amount,
	}, domain.AuditActionWalletCredit)
}

// Debit decreases the balance by a positive amount, refusing to go below zero.
func (uc *WalletUseCase) Debit(ctx context.Context, input PostingInput) (*domain.WalletTransaction, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	return uc.postSingle(ctx, input.AccountID, posting{
		Type:      domain.TransactionTypeDebit,
		Category:  input.Category,
		Reason:    input.Reason,
		RelatedID: input.RelatedID,
		Effect:    -input.Amount,
	}, domain.AuditActionWalletDebit)
}

// Adjust posts a signed manual correction. The result must stay non-negative.
func (uc *WalletUseCase) Adjust(ctx context.Context, input AdjustInput) (*domain.WalletTransaction, error) {
	if strings.TrimSpace(input.AccountID) == "" {
		return nil, domain.ErrMissingAccountID
	}
	if input.Delta == 0 {
		return nil, domain.ErrInvalidDelta
	}
	if err := domain.ValidateReason(input.Reason); err != nil {
		return nil, err
	}

	return uc.postSingle(ctx, input.AccountID, posting{
		Type:     domain.TransactionTypeAdjust,
		Category: domain.CategoryAdjustment,
		Reason:   input.Reason,
		Effect:   input.Delta,
	}, domain.AuditActionWalletAdjust)
}

func (uc *WalletUseCase) postSingle(ctx context.Context, accountID string, in posting, action domain.AuditAction) (*domain.WalletTransaction, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	var txn *domain.WalletTransaction
	err := withRetry(txCtx, uc.retrier, func() error {
		var err error
		txn, err = uc.postSingleTx(txCtx, accountID, in, action)
		return err
	})
	if err != nil {
		return nil, err
	}

	recordPostings(uc.metrics, txn)
	return txn, nil
}

func (uc *WalletUseCase) postSingleTx(ctx context.Context, accountID string, in posting, action domain.AuditAction) (*domain.WalletTransaction, error) {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	txn, err := uc.postInTx(ctx, tx, accountID, in, action)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return txn, nil
}

// postInTx locks the account and posts inside tx, which the caller commits.
func (uc *WalletUseCase) postInTx(ctx context.Context, tx Transaction, accountID string, in posting, action domain.AuditAction) (*domain.WalletTransaction, error) {
	accounts, err := uc.walletRepo.LockAccounts(ctx, tx, []string{accountID})
	if err != nil {
		return nil, err
	}
	if len(accounts) != 1 {
		return nil, domain.ErrAccountNotFound
	}

	account := accounts[0]
	before := *account
	now := time.Now().UTC()

	txn, err := uc.poster.post(ctx, tx, account, in, now)
	if err != nil {
		return nil, err
	}

	if uc.auditRepo != nil {
		auditLog := newAuditLog(ctx, uc.idGen, action, domain.AggregateTypeWallet, accountID, before, account, now)
		if err := uc.auditRepo.CreateTx(ctx, tx, auditLog); err != nil {
			return nil, err
		}
	}

	return txn, nil
}

// ApplyRule fires trigger for accountID: every active rule on that trigger posts one
// transaction. Either all postings land or none do.
func (uc *WalletUseCase) ApplyRule(ctx context.Context, trigger, accountID string) ([]*domain.WalletTransaction, error) {
	if err := domain.ValidateTrigger(trigger); err != nil {
		return nil, err
	}
	if strings.TrimSpace(accountID) == "" {
		return nil, domain.ErrMissingAccountID
	}

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	var txns []*domain.WalletTransaction
	err := withRetry(txCtx, uc.retrier, func() error {
		var err error
		txns, err = uc.applyRuleTx(txCtx, trigger, accountID)
		return err
	})
	if err != nil {
		return nil, err
	}

	recordPostings(uc.metrics, txns...)
	if uc.metrics != nil {
		uc.metrics.RuleFirings.WithLabelValues(trigger).Inc()
	}

	return txns, nil
}

func (uc *WalletUseCase) applyRuleTx(ctx context.Context, trigger, accountID string) ([]*domain.WalletTransaction, error) {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rules, err := uc.ruleRepo.ListActiveByTrigger(ctx, tx, trigger)
	if err != nil {
		return nil, err
	}

	txns := make([]*domain.WalletTransaction, 0, len(rules))
	if len(rules) == 0 {
		return txns, tx.Commit(ctx)
	}

	accounts, err := uc.walletRepo.LockAccounts(ctx, tx, []string{accountID})
	if err != nil {
		return nil, err
	}
	if len(accounts) != 1 {
		return nil, domain.ErrAccountNotFound
	}

	account := accounts[0]
	before := *account
	now := time.Now().UTC()

	for _, rule := range rules {
		txn, err := uc.poster.post(ctx, tx, account, posting{
			Type:      rule.TransactionType(),
			Category:  domain.CategoryRule,
			Reason:    rule.Name,
			RelatedID: rule.ID,
			Effect:    rule.Delta,
		}, now)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}

	if uc.auditRepo != nil {
		auditLog := newAuditLog(ctx, uc.idGen, domain.AuditActionRuleFire, domain.AggregateTypeWallet, accountID, before, map[string]any{
			"trigger":      trigger,
			"account":      account,
			"transactions": len(txns),
		}, now)
		if err := uc.auditRepo.CreateTx(ctx, tx, auditLog); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return txns, nil
}

// ListTransactions lists an account's transactions, newest first.
func (uc *WalletUseCase) ListTransactions(ctx context.Context, accountID string, limit, offset int) ([]*domain.WalletTransaction, error) {
	limit, offset = domain.ValidatePagination(limit, offset)
	return uc.walletRepo.ListTransactions(ctx, accountID, limit, offset)
}

var csvHeader = []string{
	"id", "created_at", "type", "category", "reason", "related_id",
	"effect", "balance_before", "balance_after",
}

// ExportCSV writes every transaction of the account as CSV, newest first.
func (uc *WalletUseCase) ExportCSV(ctx context.Context, accountID string, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	for offset := 0; ; offset += domain.MaxPageSize {
		txns, err := uc.walletRepo.ListTransactions(ctx, accountID, domain.MaxPageSize, offset)
		if err != nil {
			return err
		}

		for _, txn := range txns {
			record := []string{
				txn.ID,
				txn.CreatedAt.UTC().Format(time.RFC3339),
				string(txn.Type),
				txn.Category,
				txn.Reason,
				txn.RelatedID,
				strconv.FormatInt(txn.Effect, 10),
				strconv.FormatInt(txn.BalanceBefore, 10),
				strconv.FormatInt(txn.BalanceAfter, 10),
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}

		if len(txns) < domain.MaxPageSize {
			break
		}
	}

	cw.Flush()
	return cw.Error()
}
