package domain

import (
	"math"
	"time"
)

// WalletAccount holds the cached balance of a club or user wallet.
// The balance always equals the sum of the account's transaction effects.
type WalletAccount struct {
	CreatedAt time.Time
	UpdatedAt time.Time
	ID        string
	Balance   int64
	Version   int64
}

// ValidateEffect checks that applying a signed effect keeps the balance non-negative
// and representable.
func (a *WalletAccount) ValidateEffect(effect int64) error {
	if effect > 0 && a.Balance > math.MaxInt64-effect {
		return ErrBalanceOverflow
	}
	if a.Balance+effect < 0 {
		return ErrInsufficientFunds
	}
	return nil
}

// ApplyEffect returns the balance after a signed effect.
func (a *WalletAccount) ApplyEffect(effect int64) int64 {
	return a.Balance + effect
}

// TransactionType tags how a wallet transaction was produced.
type TransactionType string

const (
	TransactionTypeCredit TransactionType = "credit"
	TransactionTypeDebit  TransactionType = "debit"
	TransactionTypeAdjust TransactionType = "adjust"
)

// Transaction categories used by the core.
const (
	CategoryTransfer   = "transfer"
	CategoryAdjustment = "adjustment"
	CategoryRule       = "rule"
	CategoryOpening    = "opening"
)

// WalletTransaction is one immutable row of the wallet ledger.
type WalletTransaction struct {
	CreatedAt      time.Time
	ID             string
	AccountID      string
	Type           TransactionType
	Category       string
	Reason         string
	RelatedID      string
	Effect         int64
	BalanceBefore  int64
	BalanceAfter   int64
	AccountVersion int64
}

// Rule posts an automatic credit or debit whenever its trigger fires.
type Rule struct {
	CreatedAt time.Time
	ID        string
	Name      string
	Trigger   string
	Delta     int64
	Active    bool
}

// Validate validates a rule definition.
func (r *Rule) Validate() error {
	if r.Name == "" {
		return ErrInvalidName
	}
	if r.Trigger == "" {
		return ErrInvalidTrigger
	}
	if r.Delta == 0 {
		return ErrInvalidDelta
	}
	return nil
}

// TransactionType returns the ledger type used when the rule fires.
func (r *Rule) TransactionType() TransactionType {
	if r.Delta > 0 {
		return TransactionTypeCredit
	}
	return TransactionTypeDebit
}
