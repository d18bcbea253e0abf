package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/iho/clubmarket/internal/adapter/http/dto"
	"github.com/iho/clubmarket/internal/domain"
	"github.com/iho/clubmarket/internal/usecase"
)

type ruleServiceStub struct {
	rules map[string]*domain.Rule
}

func (s *ruleServiceStub) CreateRule(ctx context.Context, input usecase.CreateRuleInput) (*domain.Rule, error) {
	if input.Name == "" {
		return nil, domain.ErrInvalidName
	}
	rule := &domain.Rule{ID: "r-1", Name: input.Name, Trigger: input.Trigger, Delta: input.Delta, Active: input.Active}
	s.rules[rule.ID] = rule
	return rule, nil
}

func (s *ruleServiceStub) ListRules(ctx context.Context) ([]*domain.Rule, error) {
	var out []*domain.Rule
	for _, r := range s.rules {
		out = append(out, r)
	}
	return out, nil
}

func (s *ruleServiceStub) SetActive(ctx context.Context, id string, active bool) (*domain.Rule, error) {
	rule, ok := s.rules[id]
	if !ok {
		return nil, domain.ErrRuleNotFound
	}
	rule.Active = active
	return rule, nil
}

type ruleFirerStub struct {
	trigger, accountID string
	err                error
}

func (s *ruleFirerStub) ApplyRule(ctx context.Context, trigger, accountID string) ([]*domain.WalletTransaction, error) {
	s.trigger, s.accountID = trigger, accountID
	if s.err != nil {
		return nil, s.err
	}
	return []*domain.WalletTransaction{{ID: "wt-1", AccountID: accountID, Effect: 100}}, nil
}

func TestRuleHandler_Lifecycle(t *testing.T) {
	rules := &ruleServiceStub{rules: map[string]*domain.Rule{}}
	handler := NewRuleHandler(rules, &ruleFirerStub{})

	rec := httptest.NewRecorder()
	handler.Create(rec, httptest.NewRequest(http.MethodPost, "/rules",
		bytes.NewBufferString(`{"name":"tv money","trigger":"season_end","delta":100,"active":true}`)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.Create(rec, httptest.NewRequest(http.MethodPost, "/rules", bytes.NewBufferString(`{"trigger":"x"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("create without name: expected 400, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.List(rec, httptest.NewRequest(http.MethodGet, "/rules", nil))
	var listed []*dto.RuleResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected one rule, got %d", len(listed))
	}

	req := setChiURLParam(httptest.NewRequest(http.MethodPut, "/rules/r-1/active", bytes.NewBufferString(`{"active":false}`)), "id", "r-1")
	rec = httptest.NewRecorder()
	handler.SetActive(rec, req)
	if rec.Code != http.StatusOK || rules.rules["r-1"].Active {
		t.Fatalf("expected deactivated rule, got %d", rec.Code)
	}

	req = setChiURLParam(httptest.NewRequest(http.MethodPut, "/rules/nope/active", bytes.NewBufferString(`{"active":false}`)), "id", "nope")
	rec = httptest.NewRecorder()
	handler.SetActive(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRuleHandler_Fire(t *testing.T) {
	firer := &ruleFirerStub{}
	handler := NewRuleHandler(&ruleServiceStub{rules: map[string]*domain.Rule{}}, firer)

	rec := httptest.NewRecorder()
	handler.Fire(rec, httptest.NewRequest(http.MethodPost, "/rules/fire",
		bytes.NewBufferString(`{"trigger":"season_end","account_id":"ajax"}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if firer.trigger != "season_end" || firer.accountID != "ajax" {
		t.Fatalf("unexpected fire input %s/%s", firer.trigger, firer.accountID)
	}
	var resp dto.FireRuleResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Transactions) != 1 {
		t.Fatalf("expected one posting, got %d", len(resp.Transactions))
	}

	firer.err = domain.ErrInsufficientFunds
	rec = httptest.NewRecorder()
	handler.Fire(rec, httptest.NewRequest(http.MethodPost, "/rules/fire",
		bytes.NewBufferString(`{"trigger":"fine","account_id":"ajax"}`)))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}
