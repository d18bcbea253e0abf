package usecase_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/clubmarket/internal/domain"
	"github.com/iho/clubmarket/internal/usecase"
)

func TestWalletUseCase_Postings(t *testing.T) {
	tests := []struct {
		name        string
		run         func(uc *usecase.WalletUseCase) (*domain.WalletTransaction, error)
		wantBalance int64
		errorType   error
	}{
		{
			name: "credit",
			run: func(uc *usecase.WalletUseCase) (*domain.WalletTransaction, error) {
				return uc.Credit(context.Background(), usecase.PostingInput{AccountID: "acc", Category: "sponsor", Reason: "kit deal", Amount: 70})
			},
			wantBalance: 100,
		},
		{
			name: "debit",
			run: func(uc *usecase.WalletUseCase) (*domain.WalletTransaction, error) {
				return uc.Debit(context.Background(), usecase.PostingInput{AccountID: "acc", Category: "wages", Reason: "june", Amount: 30})
			},
			wantBalance: 0,
		},
		{
			name: "debit below zero",
			run: func(uc *usecase.WalletUseCase) (*domain.WalletTransaction, error) {
				return uc.Debit(context.Background(), usecase.PostingInput{AccountID: "acc", Category: "wages", Reason: "june", Amount: 31})
			},
			wantBalance: 30,
			errorType:   domain.ErrInsufficientFunds,
		},
		{
			name: "positive adjust",
			run: func(uc *usecase.WalletUseCase) (*domain.WalletTransaction, error) {
				return uc.Adjust(context.Background(), usecase.AdjustInput{AccountID: "acc", Delta: 20, Reason: "correction"})
			},
			wantBalance: 50,
		},
		{
			name: "adjust below zero",
			run: func(uc *usecase.WalletUseCase) (*domain.WalletTransaction, error) {
				return uc.Adjust(context.Background(), usecase.AdjustInput{AccountID: "acc", Delta: -50, Reason: "correction"})
			},
			wantBalance: 30,
			errorType:   domain.ErrInsufficientFunds,
		},
		{
			name: "zero adjust",
			run: func(uc *usecase.WalletUseCase) (*domain.WalletTransaction, error) {
				return uc.Adjust(context.Background(), usecase.AdjustInput{AccountID: "acc", Reason: "noop"})
			},
			wantBalance: 30,
			errorType:   domain.ErrInvalidDelta,
		},
		{
			name: "adjust without reason",
			run: func(uc *usecase.WalletUseCase) (*domain.WalletTransaction, error) {
				return uc.Adjust(context.Background(), usecase.AdjustInput{AccountID: "acc", Delta: 5, Reason: "  "})
			},
			wantBalance: 30,
			errorType:   domain.ErrMissingReason,
		},
		{
			name: "zero credit",
			run: func(uc *usecase.WalletUseCase) (*domain.WalletTransaction, error) {
				return uc.Credit(context.Background(), usecase.PostingInput{AccountID: "acc", Category: "sponsor", Reason: "x"})
			},
			wantBalance: 30,
			errorType:   domain.ErrInvalidAmount,
		},
		{
			name: "missing category",
			run: func(uc *usecase.WalletUseCase) (*domain.WalletTransaction, error) {
				return uc.Credit(context.Background(), usecase.PostingInput{AccountID: "acc", Reason: "x", Amount: 1})
			},
			wantBalance: 30,
			errorType:   domain.ErrMissingCategory,
		},
		{
			name: "missing account",
			run: func(uc *usecase.WalletUseCase) (*domain.WalletTransaction, error) {
				return uc.Debit(context.Background(), usecase.PostingInput{Category: "wages", Reason: "x", Amount: 1})
			},
			wantBalance: 30,
			errorType:   domain.ErrMissingAccountID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMarket(t)
			m.wallets.Seed("acc", 30)
			before := len(m.wallets.Transactions())

			txn, err := tt.run(m.wallet)

			if tt.errorType != nil {
				require.ErrorIs(t, err, tt.errorType)
				assert.Len(t, m.wallets.Transactions(), before)
			} else {
				require.NoError(t, err)
				assert.Equal(t, int64(30), txn.BalanceBefore)
				assert.Equal(t, tt.wantBalance, txn.BalanceAfter)
				assert.Equal(t, txn.BalanceAfter-txn.BalanceBefore, txn.Effect)
				assert.Len(t, m.wallets.Transactions(), before+1)
			}

			assert.Equal(t, tt.wantBalance, m.balance(t, "acc"))
			m.assertReplay(t, "acc")
		})
	}
}

func TestWalletUseCase_UnseenAccount(t *testing.T) {
	m := newMarket(t)

	account, err := m.wallet.GetAccount(context.Background(), "new-club")
	require.NoError(t, err)
	assert.Equal(t, int64(0), account.Balance)

	_, err = m.wallet.Debit(context.Background(), usecase.PostingInput{AccountID: "new-club", Category: "fine", Reason: "late", Amount: 1})
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	// The failed debit must not leave an account row behind.
	_, err = m.wallets.GetAccount(context.Background(), "new-club")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)

	txn, err := m.wallet.Credit(context.Background(), usecase.PostingInput{AccountID: "new-club", Category: "prize", Reason: "cup", Amount: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(1), txn.AccountVersion)
	assert.Equal(t, int64(10), m.balance(t, "new-club"))
}

func TestWalletUseCase_CreditOverflow(t *testing.T) {
	ctx := context.Background()
	m := newMarket(t)
	m.wallets.Seed("club-a", 10)

	_, err := m.wallet.Credit(ctx, usecase.PostingInput{AccountID: "club-a", Category: "prize", Reason: "jackpot", Amount: math.MaxInt64})
	require.ErrorIs(t, err, domain.ErrBalanceOverflow)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.NotErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, int64(10), m.balance(t, "club-a"))
	m.assertReplay(t, "club-a")
}

func TestWalletUseCase_AuditTrail(t *testing.T) {
	m := newMarket(t)
	ctx := domain.WithActor(context.Background(), &domain.Actor{UserID: "admin-1", Role: domain.RoleAdmin})

	_, err := m.wallet.Adjust(ctx, usecase.AdjustInput{AccountID: "acc", Delta: 25, Reason: "bonus"})
	require.NoError(t, err)

	logs, err := m.audit.List(ctx, domain.AuditFilter{Action: string(domain.AuditActionWalletAdjust)})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "admin-1", logs[0].UserID)
	assert.Equal(t, "acc", logs[0].ResourceID)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.LedgerPostings.WithLabelValues(string(domain.TransactionTypeAdjust))))
}

func TestWalletUseCase_ApplyRule(t *testing.T) {
	ctx := context.Background()
	m := newMarket(t)
	m.wallets.Seed("club-a", 100)

	_, err := m.rule.CreateRule(ctx, usecase.CreateRuleInput{Name: "win bonus", Trigger: "match_won", Delta: 50, Active: true})
	require.NoError(t, err)
	_, err = m.rule.CreateRule(ctx, usecase.CreateRuleInput{Name: "tv share", Trigger: "match_won", Delta: 20, Active: true})
	require.NoError(t, err)
	_, err = m.rule.CreateRule(ctx, usecase.CreateRuleInput{Name: "inactive", Trigger: "match_won", Delta: 1_000, Active: false})
	require.NoError(t, err)

	txns, err := m.wallet.ApplyRule(ctx, "match_won", "club-a")
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, domain.CategoryRule, txns[0].Category)
	assert.Equal(t, int64(100), txns[0].BalanceBefore)
	assert.Equal(t, int64(150), txns[1].BalanceBefore)
	assert.Equal(t, int64(170), m.balance(t, "club-a"))

	txns, err = m.wallet.ApplyRule(ctx, "no_such_trigger", "club-a")
	require.NoError(t, err)
	assert.Empty(t, txns)

	// Each call counts once per trigger, whether or not a rule matched.
	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.RuleFirings.WithLabelValues("match_won")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.RuleFirings.WithLabelValues("no_such_trigger")))
	m.assertReplay(t, "club-a")
}

func TestWalletUseCase_ApplyRuleIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	m := newMarket(t)
	m.wallets.Seed("club-a", 30)

	_, err := m.rule.CreateRule(ctx, usecase.CreateRuleInput{Name: "prize", Trigger: "match_lost", Delta: 10, Active: true})
	require.NoError(t, err)
	_, err = m.rule.CreateRule(ctx, usecase.CreateRuleInput{Name: "fine", Trigger: "match_lost", Delta: -100, Active: true})
	require.NoError(t, err)

	before := len(m.wallets.Transactions())
	_, err = m.wallet.ApplyRule(ctx, "match_lost", "club-a")
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)

	assert.Equal(t, int64(30), m.balance(t, "club-a"))
	assert.Len(t, m.wallets.Transactions(), before)
	m.assertReplay(t, "club-a")
}

func TestWalletUseCase_ConcurrentPostings(t *testing.T) {
	m := newMarket(t)
	m.wallets.Seed("acc", 1_000)

	var wg sync.WaitGroup
	var mu sync.Mutex
	failures := 0
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = m.wallet.Credit(context.Background(), usecase.PostingInput{AccountID: "acc", Category: "c", Reason: "in", Amount: 10})
			} else {
				_, err = m.wallet.Debit(context.Background(), usecase.PostingInput{AccountID: "acc", Category: "c", Reason: "out", Amount: 10})
			}
			if err != nil {
				mu.Lock()
				failures++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Zero(t, failures)
	assert.Equal(t, int64(1_000), m.balance(t, "acc"))
	m.assertReplay(t, "acc")

	// Versions are a gapless sequence.
	txns := m.wallets.Transactions()
	seen := make(map[int64]bool, len(txns))
	for _, txn := range txns {
		assert.False(t, seen[txn.AccountVersion], "duplicate version %d", txn.AccountVersion)
		seen[txn.AccountVersion] = true
	}
	assert.Len(t, seen, 41)
}

func TestWalletUseCase_ExportCSV(t *testing.T) {
	ctx := context.Background()
	m := newMarket(t)

	_, err := m.wallet.Credit(ctx, usecase.PostingInput{AccountID: "acc", Category: "prize", Reason: "league, first place", Amount: 500})
	require.NoError(t, err)
	_, err = m.wallet.Debit(ctx, usecase.PostingInput{AccountID: "acc", Category: "wages", Reason: "july", Amount: 200})
	require.NoError(t, err)
	_, err = m.wallet.Credit(ctx, usecase.PostingInput{AccountID: "other", Category: "prize", Reason: "x", Amount: 1})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, m.wallet.ExportCSV(ctx, "acc", &buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"id", "created_at", "type", "category", "reason", "related_id", "effect", "balance_before", "balance_after"}, records[0])

	// Newest first.
	assert.Equal(t, "debit", records[1][2])
	assert.Equal(t, "-200", records[1][6])
	assert.Equal(t, "league, first place", records[2][4])
	assert.Equal(t, "500", records[2][8])
}

func TestWalletUseCase_ListTransactions(t *testing.T) {
	ctx := context.Background()
	m := newMarket(t)
	for i := 0; i < 5; i++ {
		_, err := m.wallet.Credit(ctx, usecase.PostingInput{AccountID: "acc", Category: "c", Reason: "r", Amount: int64(i + 1)})
		require.NoError(t, err)
	}

	txns, err := m.wallet.ListTransactions(ctx, "acc", 2, 0)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, int64(5), txns[0].Effect)

	txns, err = m.wallet.ListTransactions(ctx, "acc", 0, 4)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, int64(1), txns[0].Effect)
}

func TestWalletUseCase_CommitFailure(t *testing.T) {
	m := newMarket(t)
	m.wallets.Seed("acc", 10)

	boom := errors.New("connection reset")
	m.txMgr.BeginFunc = func(ctx context.Context) (usecase.Transaction, error) {
		return nil, boom
	}

	_, err := m.wallet.Credit(context.Background(), usecase.PostingInput{AccountID: "acc", Category: "c", Reason: "r", Amount: 5})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int64(10), m.balance(t, "acc"))
}
