package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/iho/clubmarket/internal/domain"
)

// RuleUseCase manages automatic ledger rules. Firing lives on WalletUseCase.ApplyRule.
type RuleUseCase struct {
	txManager TransactionManager
	ruleRepo  RuleRepository
	idGen     IDGenerator
}

// NewRuleUseCase creates a new RuleUseCase.
func NewRuleUseCase(txManager TransactionManager, ruleRepo RuleRepository, idGen IDGenerator) *RuleUseCase {
	return &RuleUseCase{
		txManager: txManager,
		ruleRepo:  ruleRepo,
		idGen:     idGen,
	}
}

// CreateRuleInput represents input for creating a rule.
type CreateRuleInput struct {
	Name    string
	Trigger string
	Delta   int64
	Active  bool
}

// CreateRule creates a rule.
func (uc *RuleUseCase) CreateRule(ctx context.Context, input CreateRuleInput) (*domain.Rule, error) {
	if err := domain.ValidateName(input.Name); err != nil {
		return nil, err
	}
	if err := domain.ValidateTrigger(input.Trigger); err != nil {
		return nil, err
	}

	rule := &domain.Rule{
		ID:        uc.idGen.Generate(),
		Name:      strings.TrimSpace(input.Name),
		Trigger:   strings.TrimSpace(input.Trigger),
		Delta:     input.Delta,
		Active:    input.Active,
		CreatedAt: time.Now().UTC(),
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := uc.ruleRepo.Create(ctx, tx, rule); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return rule, nil
}

// GetRule retrieves a rule by ID.
func (uc *RuleUseCase) GetRule(ctx context.Context, id string) (*domain.Rule, error) {
	return uc.ruleRepo.GetByID(ctx, id)
}

// ListRules lists every rule in creation order.
func (uc *RuleUseCase) ListRules(ctx context.Context) ([]*domain.Rule, error) {
	return uc.ruleRepo.List(ctx)
}

// SetActive switches a rule on or off.
func (uc *RuleUseCase) SetActive(ctx context.Context, id string, active bool) (*domain.Rule, error) {
	rule, err := uc.ruleRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rule.Active == active {
		return rule, nil
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := uc.ruleRepo.SetActive(ctx, tx, id, active); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	rule.Active = active
	return rule, nil
}
