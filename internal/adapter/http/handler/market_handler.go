package handler

import (
	"context"
	"net/http"

	"github.com/iho/clubmarket/internal/adapter/http/dto"
)

// MarketService defines the behavior needed by MarketHandler.
type MarketService interface {
	IsOpen(ctx context.Context) (bool, error)
	SetOpen(ctx context.Context, open bool) error
}

// MarketHandler reads and toggles the transfer window.
type MarketHandler struct {
	marketUC MarketService
}

// NewMarketHandler creates a new MarketHandler.
func NewMarketHandler(marketUC MarketService) *MarketHandler {
	return &MarketHandler{marketUC: marketUC}
}

// Get reports whether the window is open.
func (h *MarketHandler) Get(w http.ResponseWriter, r *http.Request) {
	open, err := h.marketUC.IsOpen(r.Context())
	if err != nil {
		writeDomainError(w, r, "failed to read market state", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.MarketResponse{Open: open})
}

// Set opens or closes the window.
func (h *MarketHandler) Set(w http.ResponseWriter, r *http.Request) {
	var req dto.SetMarketRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, "invalid request body", err)
		return
	}
	if err := req.Validate(); err != nil {
		writeDomainError(w, r, "invalid request body", err)
		return
	}

	if err := h.marketUC.SetOpen(r.Context(), *req.Open); err != nil {
		writeDomainError(w, r, "failed to set market state", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.MarketResponse{Open: *req.Open})
}
