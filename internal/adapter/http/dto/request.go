package dto

import (
	"fmt"

	"github.com/iho/clubmarket/internal/domain"
	"github.com/iho/clubmarket/internal/usecase"
)

// CreateOfferRequest represents a request to bid for a player.
// BuyerClubID is only honoured for administrators; managers always bid for their own club.
type CreateOfferRequest struct {
	PlayerID     string `json:"player_id"`
	SellerClubID string `json:"seller_club_id,omitempty"`
	BuyerClubID  string `json:"buyer_club_id,omitempty"`
	Amount       int64  `json:"amount"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateOfferRequest) ToUseCaseInput(buyerClubID, initiatedBy string) usecase.CreateOfferInput {
	return usecase.CreateOfferInput{
		PlayerID:     r.PlayerID,
		SellerClubID: r.SellerClubID,
		BuyerClubID:  buyerClubID,
		InitiatedBy:  initiatedBy,
		Amount:       r.Amount,
	}
}

// CounterOfferRequest represents the seller's counter price.
type CounterOfferRequest struct {
	Message string `json:"message"`
	Amount  int64  `json:"amount"`
}

// RespondRequest accepts or rejects an offer or a counter-offer.
type RespondRequest struct {
	Accept *bool `json:"accept"`
}

// Validate checks that the decision was given explicitly.
func (r *RespondRequest) Validate() error {
	return requireBool(r.Accept, "accept")
}

// SetMarketRequest opens or closes the transfer window.
type SetMarketRequest struct {
	Open *bool `json:"open"`
}

// Validate checks that the flag was given explicitly.
func (r *SetMarketRequest) Validate() error {
	return requireBool(r.Open, "open")
}

// PostingRequest represents a manual credit or debit.
type PostingRequest struct {
	Category  string `json:"category"`
	Reason    string `json:"reason"`
	RelatedID string `json:"related_id,omitempty"`
	Amount    int64  `json:"amount"`
}

// ToUseCaseInput converts to use case input.
func (r *PostingRequest) ToUseCaseInput(accountID string) usecase.PostingInput {
	return usecase.PostingInput{
		AccountID: accountID,
		Category:  r.Category,
		Reason:    r.Reason,
		RelatedID: r.RelatedID,
		Amount:    r.Amount,
	}
}

// AdjustRequest represents a signed administrative correction.
type AdjustRequest struct {
	Reason string `json:"reason"`
	Delta  int64  `json:"delta"`
}

// ToUseCaseInput converts to use case input.
func (r *AdjustRequest) ToUseCaseInput(accountID string) usecase.AdjustInput {
	return usecase.AdjustInput{
		AccountID: accountID,
		Reason:    r.Reason,
		Delta:     r.Delta,
	}
}

// CreateRuleRequest represents a new automatic rule.
type CreateRuleRequest struct {
	Name    string `json:"name"`
	Trigger string `json:"trigger"`
	Delta   int64  `json:"delta"`
	Active  bool   `json:"active"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateRuleRequest) ToUseCaseInput() usecase.CreateRuleInput {
	return usecase.CreateRuleInput{
		Name:    r.Name,
		Trigger: r.Trigger,
		Delta:   r.Delta,
		Active:  r.Active,
	}
}

// SetActiveRequest switches a rule on or off.
type SetActiveRequest struct {
	Active *bool `json:"active"`
}

// Validate checks that the flag was given explicitly.
func (r *SetActiveRequest) Validate() error {
	return requireBool(r.Active, "active")
}

// FireRuleRequest applies every active rule of a trigger to an account.
type FireRuleRequest struct {
	Trigger   string `json:"trigger"`
	AccountID string `json:"account_id"`
}

// CreateClubRequest registers a club with an optional opening budget.
type CreateClubRequest struct {
	ID            string `json:"id,omitempty"`
	Name          string `json:"name"`
	OpeningBudget int64  `json:"opening_budget"`
}

// ToUseCaseInput converts to use case input.
func (r *CreateClubRequest) ToUseCaseInput() usecase.RegisterClubInput {
	return usecase.RegisterClubInput{
		ID:            r.ID,
		Name:          r.Name,
		OpeningBudget: r.OpeningBudget,
	}
}

// CreatePlayerRequest registers a player, optionally at a club.
type CreatePlayerRequest struct {
	ID             string `json:"id,omitempty"`
	Name           string `json:"name"`
	ClubID         string `json:"club_id,omitempty"`
	TransferListed bool   `json:"transfer_listed"`
}

// ToUseCaseInput converts to use case input.
func (r *CreatePlayerRequest) ToUseCaseInput() usecase.RegisterPlayerInput {
	return usecase.RegisterPlayerInput{
		ID:             r.ID,
		Name:           r.Name,
		ClubID:         r.ClubID,
		TransferListed: r.TransferListed,
	}
}

// SetListingRequest puts a player on or off the transfer list.
type SetListingRequest struct {
	Listed *bool `json:"listed"`
}

// Validate checks that the flag was given explicitly.
func (r *SetListingRequest) Validate() error {
	return requireBool(r.Listed, "listed")
}

// RepairRequest controls an offer relink run.
type RepairRequest struct {
	DryRun bool `json:"dry_run"`
}

func requireBool(v *bool, field string) error {
	if v == nil {
		return fmt.Errorf("%w: %s is required", domain.ErrValidation, field)
	}
	return nil
}
