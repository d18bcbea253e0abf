package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/iho/clubmarket/internal/adapter/http/dto"
	"github.com/iho/clubmarket/internal/domain"
	"github.com/iho/clubmarket/internal/usecase"
)

type walletServiceStub struct {
	accounts map[string]int64
	posted   []usecase.PostingInput
	adjusted []usecase.AdjustInput
	err      error
}

func (s *walletServiceStub) GetAccount(ctx context.Context, accountID string) (*domain.WalletAccount, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.WalletAccount{ID: accountID, Balance: s.accounts[accountID]}, nil
}

func (s *walletServiceStub) Credit(ctx context.Context, input usecase.PostingInput) (*domain.WalletTransaction, error) {
	return s.post(input, input.Amount, domain.TransactionTypeCredit)
}

func (s *walletServiceStub) Debit(ctx context.Context, input usecase.PostingInput) (*domain.WalletTransaction, error) {
	return s.post(input, -input.Amount, domain.TransactionTypeDebit)
}

func (s *walletServiceStub) post(input usecase.PostingInput, effect int64, typ domain.TransactionType) (*domain.WalletTransaction, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.posted = append(s.posted, input)
	return &domain.WalletTransaction{ID: fmt.Sprintf("wt-%d", len(s.posted)), AccountID: input.AccountID, Type: typ, Effect: effect}, nil
}

func (s *walletServiceStub) Adjust(ctx context.Context, input usecase.AdjustInput) (*domain.WalletTransaction, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.adjusted = append(s.adjusted, input)
	return &domain.WalletTransaction{ID: "wt-adj", AccountID: input.AccountID, Effect: input.Delta}, nil
}

func (s *walletServiceStub) ListTransactions(ctx context.Context, accountID string, limit, offset int) ([]*domain.WalletTransaction, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []*domain.WalletTransaction{{ID: "wt-1", AccountID: accountID}}, nil
}

func (s *walletServiceStub) ExportCSV(ctx context.Context, accountID string, w io.Writer) error {
	if s.err != nil {
		return s.err
	}
	_, err := io.WriteString(w, "id,effect\nwt-1,100\n")
	return err
}

func TestWalletHandler_Get(t *testing.T) {
	handler := NewWalletHandler(&walletServiceStub{accounts: map[string]int64{"ajax": 1_500}})

	req := setChiURLParam(httptest.NewRequest(http.MethodGet, "/wallets/ajax", nil), "id", "ajax")
	rec := httptest.NewRecorder()

	handler.Get(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp dto.WalletResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.AccountID != "ajax" || resp.Balance != 1_500 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestWalletHandler_CreditAndDebit(t *testing.T) {
	stub := &walletServiceStub{}
	handler := NewWalletHandler(stub)

	body := `{"category":"prize","reason":"cup win","amount":250}`
	req := setChiURLParam(httptest.NewRequest(http.MethodPost, "/wallets/ajax/credit", bytes.NewBufferString(body)), "id", "ajax")
	rec := httptest.NewRecorder()
	handler.Credit(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("credit: expected 201, got %d", rec.Code)
	}

	req = setChiURLParam(httptest.NewRequest(http.MethodPost, "/wallets/ajax/debit", bytes.NewBufferString(body)), "id", "ajax")
	rec = httptest.NewRecorder()
	handler.Debit(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("debit: expected 201, got %d", rec.Code)
	}

	var resp dto.WalletTransactionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Effect != -250 {
		t.Fatalf("expected negative effect, got %d", resp.Effect)
	}
	if len(stub.posted) != 2 || stub.posted[0].AccountID != "ajax" || stub.posted[0].Category != "prize" {
		t.Fatalf("unexpected postings %+v", stub.posted)
	}
}

func TestWalletHandler_DebitInsufficientFunds(t *testing.T) {
	handler := NewWalletHandler(&walletServiceStub{err: domain.ErrInsufficientFunds})

	req := setChiURLParam(httptest.NewRequest(http.MethodPost, "/wallets/ajax/debit",
		bytes.NewBufferString(`{"category":"wages","reason":"june","amount":10}`)), "id", "ajax")
	rec := httptest.NewRecorder()

	handler.Debit(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestWalletHandler_Adjust(t *testing.T) {
	stub := &walletServiceStub{}
	handler := NewWalletHandler(stub)

	req := setChiURLParam(httptest.NewRequest(http.MethodPost, "/wallets/ajax/adjust",
		bytes.NewBufferString(`{"reason":"fix","delta":-40}`)), "id", "ajax")
	rec := httptest.NewRecorder()

	handler.Adjust(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if len(stub.adjusted) != 1 || stub.adjusted[0].Delta != -40 {
		t.Fatalf("unexpected adjustments %+v", stub.adjusted)
	}
}

func TestWalletHandler_Transactions(t *testing.T) {
	handler := NewWalletHandler(&walletServiceStub{})

	req := setChiURLParam(httptest.NewRequest(http.MethodGet, "/wallets/ajax/transactions", nil), "id", "ajax")
	rec := httptest.NewRecorder()

	handler.Transactions(rec, req)

	var resp dto.ListWalletTransactionsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if rec.Code != http.StatusOK || resp.Total != 1 {
		t.Fatalf("expected one transaction, got %d %+v", rec.Code, resp)
	}
}

func TestWalletHandler_ExportCSV(t *testing.T) {
	handler := NewWalletHandler(&walletServiceStub{})

	req := setChiURLParam(httptest.NewRequest(http.MethodGet, "/wallets/ajax/transactions.csv", nil), "id", "ajax")
	rec := httptest.NewRecorder()

	handler.ExportCSV(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Fatalf("expected text/csv, got %s", ct)
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "ajax-transactions.csv") {
		t.Fatalf("unexpected disposition %q", rec.Header().Get("Content-Disposition"))
	}
	if !strings.HasPrefix(rec.Body.String(), "id,effect\n") {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestWalletHandler_ExportCSV_FailureIsJSON(t *testing.T) {
	handler := NewWalletHandler(&walletServiceStub{err: errors.New("db down")})

	req := setChiURLParam(httptest.NewRequest(http.MethodGet, "/wallets/ajax/transactions.csv", nil), "id", "ajax")
	rec := httptest.NewRecorder()

	handler.ExportCSV(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected JSON error, got %s", ct)
	}
}
