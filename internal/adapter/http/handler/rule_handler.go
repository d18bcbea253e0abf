package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/clubmarket/internal/adapter/http/dto"
	"github.com/iho/clubmarket/internal/domain"
	"github.com/iho/clubmarket/internal/usecase"
)

// RuleService defines the behavior needed by RuleHandler.
type RuleService interface {
	CreateRule(ctx context.Context, input usecase.CreateRuleInput) (*domain.Rule, error)
	ListRules(ctx context.Context) ([]*domain.Rule, error)
	SetActive(ctx context.Context, id string, active bool) (*domain.Rule, error)
}

// RuleFirer applies the active rules of a trigger to an account.
type RuleFirer interface {
	ApplyRule(ctx context.Context, trigger, accountID string) ([]*domain.WalletTransaction, error)
}

// RuleHandler administers automatic ledger rules.
type RuleHandler struct {
	ruleUC RuleService
	firer  RuleFirer
}

// NewRuleHandler creates a new RuleHandler.
func NewRuleHandler(ruleUC RuleService, firer RuleFirer) *RuleHandler {
	return &RuleHandler{ruleUC: ruleUC, firer: firer}
}

// Create defines a rule.
func (h *RuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, "invalid request body", err)
		return
	}

	rule, err := h.ruleUC.CreateRule(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeDomainError(w, r, "failed to create rule", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.RuleFromDomain(rule))
}

// List lists every rule.
func (h *RuleHandler) List(w http.ResponseWriter, r *http.Request) {
	rules, err := h.ruleUC.ListRules(r.Context())
	if err != nil {
		writeDomainError(w, r, "failed to list rules", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.RulesFromDomain(rules))
}

// SetActive switches a rule on or off.
func (h *RuleHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	var req dto.SetActiveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, "invalid request body", err)
		return
	}
	if err := req.Validate(); err != nil {
		writeDomainError(w, r, "invalid request body", err)
		return
	}

	rule, err := h.ruleUC.SetActive(r.Context(), chi.URLParam(r, "id"), *req.Active)
	if err != nil {
		writeDomainError(w, r, "failed to update rule", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.RuleFromDomain(rule))
}

// Fire applies a trigger to an account. All postings succeed or none do.
func (h *RuleHandler) Fire(w http.ResponseWriter, r *http.Request) {
	var req dto.FireRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, "invalid request body", err)
		return
	}

	txns, err := h.firer.ApplyRule(r.Context(), req.Trigger, req.AccountID)
	if err != nil {
		writeDomainError(w, r, "failed to fire rule", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.FireRuleResponse{
		Trigger:      req.Trigger,
		AccountID:    req.AccountID,
		Transactions: dto.WalletTransactionsFromDomain(txns),
	})
}
