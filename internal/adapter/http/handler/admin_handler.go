package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/clubmarket/internal/adapter/http/dto"
	"github.com/iho/clubmarket/internal/usecase"
)

// ReconciliationService defines the behavior needed by ReconciliationHandler.
type ReconciliationService interface {
	ReconcileAccount(ctx context.Context, accountID string) (*usecase.ReconciliationResult, error)
	GenerateReconciliationReport(ctx context.Context) (*usecase.ReconciliationReport, error)
}

// ReconciliationHandler replays wallet ledgers against cached balances.
type ReconciliationHandler struct {
	reconcileUC ReconciliationService
}

// NewReconciliationHandler creates a new ReconciliationHandler.
func NewReconciliationHandler(reconcileUC ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{reconcileUC: reconcileUC}
}

// Account reconciles a single wallet.
func (h *ReconciliationHandler) Account(w http.ResponseWriter, r *http.Request) {
	result, err := h.reconcileUC.ReconcileAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, "failed to reconcile wallet", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ReconciliationFromUseCase(result))
}

// Report reconciles every wallet and the ledger totals.
func (h *ReconciliationHandler) Report(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconcileUC.GenerateReconciliationReport(r.Context())
	if err != nil {
		writeDomainError(w, r, "failed to reconcile ledger", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ReconciliationReportFromUseCase(report))
}

// RepairService defines the behavior needed by RepairHandler.
type RepairService interface {
	RelinkOffers(ctx context.Context, dryRun bool) (*usecase.RepairReport, error)
}

// RepairHandler exposes offline data repair.
type RepairHandler struct {
	repairUC RepairService
}

// NewRepairHandler creates a new RepairHandler.
func NewRepairHandler(repairUC RepairService) *RepairHandler {
	return &RepairHandler{repairUC: repairUC}
}

// RelinkOffers re-resolves offers whose player no longer exists. An empty body is a real run.
func (h *RepairHandler) RelinkOffers(w http.ResponseWriter, r *http.Request) {
	var req dto.RepairRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeDomainError(w, r, "invalid request body", err)
			return
		}
	}

	report, err := h.repairUC.RelinkOffers(r.Context(), req.DryRun)
	if err != nil {
		writeDomainError(w, r, "failed to relink offers", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.RepairReportFromUseCase(report))
}
