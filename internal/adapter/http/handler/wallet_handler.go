package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/clubmarket/internal/adapter/http/dto"
	"github.com/iho/clubmarket/internal/domain"
	"github.com/iho/clubmarket/internal/usecase"
)

// WalletService defines the behavior needed by WalletHandler.
type WalletService interface {
	GetAccount(ctx context.Context, accountID string) (*domain.WalletAccount, error)
	Credit(ctx context.Context, input usecase.PostingInput) (*domain.WalletTransaction, error)
	Debit(ctx context.Context, input usecase.PostingInput) (*domain.WalletTransaction, error)
	Adjust(ctx context.Context, input usecase.AdjustInput) (*domain.WalletTransaction, error)
	ListTransactions(ctx context.Context, accountID string, limit, offset int) ([]*domain.WalletTransaction, error)
	ExportCSV(ctx context.Context, accountID string, w io.Writer) error
}

// WalletHandler handles wallet ledger HTTP requests.
type WalletHandler struct {
	walletUC WalletService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletUC WalletService) *WalletHandler {
	return &WalletHandler{walletUC: walletUC}
}

// Get returns the balance of a wallet. Unseen wallets read as zero.
func (h *WalletHandler) Get(w http.ResponseWriter, r *http.Request) {
	account, err := h.walletUC.GetAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, "failed to get wallet", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.WalletFromDomain(account))
}

// Transactions lists the ledger rows of a wallet, newest first.
func (h *WalletHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	txns, err := h.walletUC.ListTransactions(r.Context(),
		chi.URLParam(r, "id"),
		parseIntQuery(r, "limit", domain.DefaultPageSize),
		parseIntQuery(r, "offset", 0),
	)
	if err != nil {
		writeDomainError(w, r, "failed to list transactions", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListWalletTransactionsResponse{
		Transactions: dto.WalletTransactionsFromDomain(txns),
		Total:        int64(len(txns)),
	})
}

// ExportCSV streams every ledger row of a wallet as CSV.
func (h *WalletHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// Buffer so a failed export still gets a JSON error instead of a truncated file.
	var buf bytes.Buffer
	if err := h.walletUC.ExportCSV(r.Context(), id, &buf); err != nil {
		writeDomainError(w, r, "failed to export transactions", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+"-transactions.csv"))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

// Credit posts a manual credit.
func (h *WalletHandler) Credit(w http.ResponseWriter, r *http.Request) {
	h.post(w, r, h.walletUC.Credit, "failed to credit wallet")
}

// Debit posts a manual debit.
func (h *WalletHandler) Debit(w http.ResponseWriter, r *http.Request) {
	h.post(w, r, h.walletUC.Debit, "failed to debit wallet")
}

func (h *WalletHandler) post(
	w http.ResponseWriter,
	r *http.Request,
	apply func(context.Context, usecase.PostingInput) (*domain.WalletTransaction, error),
	message string,
) {
	var req dto.PostingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, "invalid request body", err)
		return
	}

	txn, err := apply(r.Context(), req.ToUseCaseInput(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, r, message, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.WalletTransactionFromDomain(txn))
}

// Adjust posts a signed administrative correction.
func (h *WalletHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req dto.AdjustRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, "invalid request body", err)
		return
	}

	txn, err := h.walletUC.Adjust(r.Context(), req.ToUseCaseInput(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, r, "failed to adjust wallet", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.WalletTransactionFromDomain(txn))
}
