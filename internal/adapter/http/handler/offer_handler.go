package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/clubmarket/internal/adapter/http/dto"
	"github.com/iho/clubmarket/internal/domain"
	"github.com/iho/clubmarket/internal/usecase"
)

// OfferService defines the behavior needed by OfferHandler.
type OfferService interface {
	CreateOffer(ctx context.Context, input usecase.CreateOfferInput) (*domain.Offer, error)
	CounterOffer(ctx context.Context, input usecase.CounterOfferInput) (*domain.Offer, error)
	RespondToInitial(ctx context.Context, input usecase.RespondInput) (*usecase.RespondResult, error)
	RespondToCounter(ctx context.Context, input usecase.RespondInput) (*usecase.RespondResult, error)
	GetOffer(ctx context.Context, id string) (*domain.Offer, error)
	ListOffers(ctx context.Context, filter domain.OfferFilter) ([]*domain.Offer, error)
}

// OfferHandler handles offer negotiation HTTP requests.
type OfferHandler struct {
	offerUC OfferService
}

// NewOfferHandler creates a new OfferHandler.
func NewOfferHandler(offerUC OfferService) *OfferHandler {
	return &OfferHandler{offerUC: offerUC}
}

// Create places a bid on behalf of the caller's club.
func (h *OfferHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	if !actor.Role.CanNegotiate() {
		writeDomainError(w, r, "failed to create offer", domain.ErrReadOnly)
		return
	}

	var req dto.CreateOfferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, "invalid request body", err)
		return
	}

	buyer := actor.ClubID
	if actor.IsAdmin() && req.BuyerClubID != "" {
		buyer = req.BuyerClubID
	}

	offer, err := h.offerUC.CreateOffer(r.Context(), req.ToUseCaseInput(buyer, actor.UserID))
	if err != nil {
		writeDomainError(w, r, "failed to create offer", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.OfferFromDomain(offer))
}

// Get retrieves an offer by ID.
func (h *OfferHandler) Get(w http.ResponseWriter, r *http.Request) {
	offer, err := h.offerUC.GetOffer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, "failed to get offer", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.OfferFromDomain(offer))
}

// List lists offers filtered by player, club and status.
func (h *OfferHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	offers, err := h.offerUC.ListOffers(r.Context(), domain.OfferFilter{
		PlayerID: q.Get("player_id"),
		ClubID:   q.Get("club_id"),
		Status:   domain.OfferStatus(q.Get("status")),
		Limit:    parseIntQuery(r, "limit", domain.DefaultPageSize),
		Offset:   parseIntQuery(r, "offset", 0),
	})
	if err != nil {
		writeDomainError(w, r, "failed to list offers", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ListOffersResponse{
		Offers: dto.OffersFromDomain(offers),
		Total:  int64(len(offers)),
	})
}

// Counter lets the selling club answer with a new price.
func (h *OfferHandler) Counter(w http.ResponseWriter, r *http.Request) {
	party, ok := h.partyOf(w, r, "failed to counter offer")
	if !ok {
		return
	}

	var req dto.CounterOfferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, "invalid request body", err)
		return
	}

	offer, err := h.offerUC.CounterOffer(r.Context(), usecase.CounterOfferInput{
		OfferID: chi.URLParam(r, "id"),
		Party:   party,
		Message: req.Message,
		Amount:  req.Amount,
	})
	if err != nil {
		writeDomainError(w, r, "failed to counter offer", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.OfferFromDomain(offer))
}

// Respond lets the selling club accept or reject a pending offer.
func (h *OfferHandler) Respond(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.offerUC.RespondToInitial, "failed to respond to offer")
}

// RespondToCounter lets the buying club accept or reject a counter-offer.
func (h *OfferHandler) RespondToCounter(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.offerUC.RespondToCounter, "failed to respond to counter-offer")
}

func (h *OfferHandler) respond(
	w http.ResponseWriter,
	r *http.Request,
	answer func(context.Context, usecase.RespondInput) (*usecase.RespondResult, error),
	message string,
) {
	party, ok := h.partyOf(w, r, message)
	if !ok {
		return
	}

	var req dto.RespondRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, "invalid request body", err)
		return
	}
	if err := req.Validate(); err != nil {
		writeDomainError(w, r, "invalid request body", err)
		return
	}

	result, err := answer(r.Context(), usecase.RespondInput{
		OfferID: chi.URLParam(r, "id"),
		Party:   party,
		Accept:  *req.Accept,
	})
	if err != nil {
		writeDomainError(w, r, message, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.RespondFromUseCase(result))
}

// partyOf resolves the side the caller's club plays in the offer named by the URL.
// A missing offer resolves to PartyNone so the use case reports it after the market check.
func (h *OfferHandler) partyOf(w http.ResponseWriter, r *http.Request, message string) (domain.Party, bool) {
	actor := actorFrom(r)
	if !actor.Role.CanNegotiate() {
		writeDomainError(w, r, message, domain.ErrReadOnly)
		return domain.PartyNone, false
	}

	offer, err := h.offerUC.GetOffer(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, domain.ErrNotFound) {
		return domain.PartyNone, true
	}
	if err != nil {
		writeDomainError(w, r, message, err)
		return domain.PartyNone, false
	}

	return offer.PartyOf(actor.ClubID), true
}
