package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iho/clubmarket/internal/domain"
)

// ReconciliationUseCase checks cached balances against the transaction log
type ReconciliationUseCase struct {
	walletRepo WalletRepository
}

// NewReconciliationUseCase creates a new reconciliation use case
func NewReconciliationUseCase(walletRepo WalletRepository) *ReconciliationUseCase {
	return &ReconciliationUseCase{walletRepo: walletRepo}
}

// ReconciliationResult represents the result of a reconciliation check
type ReconciliationResult struct {
	AccountID         string
	RecordedBalance   int64
	CalculatedBalance int64
	Difference        int64
	IsReconciled      bool
	LastChecked       time.Time
}

// ReconcileAccount replays an account's transaction effects and compares the sum to its balance
func (uc *ReconciliationUseCase) ReconcileAccount(ctx context.Context, accountID string) (*ReconciliationResult, error) {
	var recorded int64

	account, err := uc.walletRepo.GetAccount(ctx, accountID)
	switch {
	case errors.Is(err, domain.ErrAccountNotFound):
		// unseen account, balance 0
	case err != nil:
		return nil, err
	default:
		recorded = account.Balance
	}

	calculated, err := uc.walletRepo.SumEffects(ctx, accountID)
	if err != nil {
		return nil, err
	}

	return &ReconciliationResult{
		AccountID:         accountID,
		RecordedBalance:   recorded,
		CalculatedBalance: calculated,
		Difference:        recorded - calculated,
		IsReconciled:      recorded == calculated,
		LastChecked:       time.Now().UTC(),
	}, nil
}

// ReconcileAllAccounts reconciles every wallet account
func (uc *ReconciliationUseCase) ReconcileAllAccounts(ctx context.Context) ([]*ReconciliationResult, error) {
	var results []*ReconciliationResult

	for offset := 0; ; offset += ReconcileBatchSize {
		accounts, err := uc.walletRepo.ListAccounts(ctx, ReconcileBatchSize, offset)
		if err != nil {
			return nil, err
		}

		for _, account := range accounts {
			result, err := uc.ReconcileAccount(ctx, account.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to reconcile account %s: %w", account.ID, err)
			}
			results = append(results, result)
		}

		if len(accounts) < ReconcileBatchSize {
			break
		}
	}

	return results, nil
}

// CheckLedgerConsistency verifies that all balances together equal all effects together
func (uc *ReconciliationUseCase) CheckLedgerConsistency(ctx context.Context) error {
	balances, effects, err := uc.walletRepo.Totals(ctx)
	if err != nil {
		return err
	}

	if balances != effects {
		return fmt.Errorf(
			"ledger inconsistency detected: balances=%d effects=%d difference=%d",
			balances,
			effects,
			balances-effects,
		)
	}

	return nil
}

// ReconciliationReport represents a full reconciliation report
type ReconciliationReport struct {
	TotalAccounts      int
	ReconciledAccounts int
	Discrepancies      []*ReconciliationResult
	LedgerConsistent   bool
	CheckedAt          time.Time
}

// GenerateReconciliationReport generates a comprehensive reconciliation report
func (uc *ReconciliationUseCase) GenerateReconciliationReport(ctx context.Context) (*ReconciliationReport, error) {
	results, err := uc.ReconcileAllAccounts(ctx)
	if err != nil {
		return nil, err
	}

	ledgerErr := uc.CheckLedgerConsistency(ctx)

	report := &ReconciliationReport{
		TotalAccounts:    len(results),
		Discrepancies:    make([]*ReconciliationResult, 0),
		LedgerConsistent: ledgerErr == nil,
		CheckedAt:        time.Now().UTC(),
	}

	for _, result := range results {
		if result.IsReconciled {
			report.ReconciledAccounts++
		} else {
			report.Discrepancies = append(report.Discrepancies, result)
		}
	}

	return report, nil
}
