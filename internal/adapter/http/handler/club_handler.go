package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/clubmarket/internal/adapter/http/dto"
	"github.com/iho/clubmarket/internal/domain"
	"github.com/iho/clubmarket/internal/usecase"
)

// ClubService defines the behavior needed by ClubHandler.
type ClubService interface {
	RegisterClub(ctx context.Context, input usecase.RegisterClubInput) (*domain.ClubView, error)
	GetClub(ctx context.Context, id string) (*domain.ClubView, error)
	RegisterPlayer(ctx context.Context, input usecase.RegisterPlayerInput) (*domain.Player, error)
	GetPlayer(ctx context.Context, id string) (*domain.Player, error)
	ListSquad(ctx context.Context, clubID string) ([]*domain.Player, error)
	SetTransferListed(ctx context.Context, playerID string, listed bool) (*domain.Player, error)
}

// ClubHandler serves the club and roster boundary.
type ClubHandler struct {
	clubUC ClubService
}

// NewClubHandler creates a new ClubHandler.
func NewClubHandler(clubUC ClubService) *ClubHandler {
	return &ClubHandler{clubUC: clubUC}
}

func (h *ClubHandler) CreateClub(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateClubRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, "invalid request body", err)
		return
	}

	club, err := h.clubUC.RegisterClub(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeDomainError(w, r, "failed to register club", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.ClubFromDomain(club))
}

func (h *ClubHandler) GetClub(w http.ResponseWriter, r *http.Request) {
	club, err := h.clubUC.GetClub(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, "failed to get club", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ClubFromDomain(club))
}

func (h *ClubHandler) ListPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := h.clubUC.ListSquad(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, "failed to list players", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PlayersFromDomain(players))
}

func (h *ClubHandler) CreatePlayer(w http.ResponseWriter, r *http.Request) {
	var req dto.CreatePlayerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, "invalid request body", err)
		return
	}

	player, err := h.clubUC.RegisterPlayer(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeDomainError(w, r, "failed to register player", err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.PlayerFromDomain(player))
}

func (h *ClubHandler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	player, err := h.clubUC.GetPlayer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, "failed to get player", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PlayerFromDomain(player))
}

// SetListing puts a player on or off the transfer list.
func (h *ClubHandler) SetListing(w http.ResponseWriter, r *http.Request) {
	var req dto.SetListingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, r, "invalid request body", err)
		return
	}
	if err := req.Validate(); err != nil {
		writeDomainError(w, r, "invalid request body", err)
		return
	}

	player, err := h.clubUC.SetTransferListed(r.Context(), chi.URLParam(r, "id"), *req.Listed)
	if err != nil {
		writeDomainError(w, r, "failed to update listing", err)
		return
	}

	writeJSON(w, http.StatusOK, dto.PlayerFromDomain(player))
}
