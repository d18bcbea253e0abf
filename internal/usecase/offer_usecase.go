package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/iho/clubmarket/internal/domain"
	"github.com/iho/clubmarket/internal/infrastructure/metrics"
)

// OfferUseCase is the offer store: creation, counter-offers and responses.
// Acceptances are delegated to the SettlementUseCase.
type OfferUseCase struct {
	txManager  TransactionManager
	offerRepo  OfferRepository
	clubRepo   ClubRepository
	playerRepo PlayerRepository
	outboxRepo OutboxRepository
	idGen      IDGenerator
	gate       MarketGate
	settlement *SettlementUseCase
	policy     domain.CounterPolicy
	retrier    Retrier
	metrics    *metrics.Metrics
}

// OfferConfig wires the OfferUseCase collaborators.
type OfferConfig struct {
	TxManager  TransactionManager
	OfferRepo  OfferRepository
	ClubRepo   ClubRepository
	PlayerRepo PlayerRepository
	OutboxRepo OutboxRepository
	IDGen      IDGenerator
	Gate       MarketGate
	Settlement *SettlementUseCase
	Policy     domain.CounterPolicy
	Retrier    Retrier
	Metrics    *metrics.Metrics
}

// NewOfferUseCase creates a new OfferUseCase.
func NewOfferUseCase(cfg OfferConfig) *OfferUseCase {
	return &OfferUseCase{
		txManager:  cfg.TxManager,
		offerRepo:  cfg.OfferRepo,
		clubRepo:   cfg.ClubRepo,
		playerRepo: cfg.PlayerRepo,
		outboxRepo: cfg.OutboxRepo,
		idGen:      cfg.IDGen,
		gate:       cfg.Gate,
		settlement: cfg.Settlement,
		policy:     cfg.Policy,
		retrier:    cfg.Retrier,
		metrics:    cfg.Metrics,
	}
}

// CreateOfferInput represents input for creating an offer.
// An empty SellerClubID means the player's current club.
type CreateOfferInput struct {
	PlayerID     string
	SellerClubID string
	BuyerClubID  string
	InitiatedBy  string
	Amount       int64
}

// CounterOfferInput represents the seller's counter-proposal.
type CounterOfferInput struct {
	OfferID string
	Party   domain.Party
	Message string
	Amount  int64
}

// RespondInput represents an accept or reject decision.
type RespondInput struct {
	OfferID string
	Party   domain.Party
	Accept  bool
}

// RespondResult carries the offer after a response. Settlement is set on acceptance.
type RespondResult struct {
	Offer      *domain.Offer
	Settlement *SettlementResult
}

// CreateOffer records a new pending offer.
func (uc *OfferUseCase) CreateOffer(ctx context.Context, input CreateOfferInput) (*domain.Offer, error) {
	if err := domain.ValidateAmount(input.Amount); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.PlayerID) == "" {
		return nil, domain.ErrMissingPlayerID
	}
	if strings.TrimSpace(input.BuyerClubID) == "" {
		return nil, domain.ErrMissingBuyer
	}
	if input.SellerClubID != "" && input.SellerClubID == input.BuyerClubID {
		return nil, domain.ErrSelfDealing
	}

	player, err := uc.playerRepo.GetByID(ctx, input.PlayerID)
	if err != nil {
		return nil, err
	}

	sellerID := input.SellerClubID
	if sellerID == "" && !player.IsFreeAgent() {
		sellerID = *player.ClubID
	}
	if sellerID == input.BuyerClubID {
		return nil, domain.ErrSelfDealing
	}
	if !player.BelongsTo(sellerID) {
		return nil, domain.ErrSellerNotOwner
	}
	if !player.TransferListed {
		return nil, domain.ErrPlayerNotListed
	}

	if _, err := uc.clubRepo.GetByID(ctx, sellerID); err != nil {
		return nil, err
	}
	if _, err := uc.clubRepo.GetByID(ctx, input.BuyerClubID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	offer := &domain.Offer{
		ID:           uc.idGen.Generate(),
		PlayerID:     player.ID,
		PlayerName:   player.Name,
		SellerClubID: sellerID,
		BuyerClubID:  input.BuyerClubID,
		Amount:       input.Amount,
		Status:       domain.OfferStatusPending,
		InitiatedBy:  input.InitiatedBy,
		CreatedAt:    now,
	}
	if err := offer.Validate(); err != nil {
		return nil, err
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := uc.offerRepo.Create(ctx, tx, offer); err != nil {
		return nil, err
	}

	event := newOutboxEvent(uc.idGen, domain.AggregateTypeOffer, offer.ID, domain.EventTypeOfferCreated, offerPayload(offer), now)
	if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	uc.countStatus(offer.Status)
	return offer, nil
}

// CounterOffer lets the seller answer a pending offer with a new price.
func (uc *OfferUseCase) CounterOffer(ctx context.Context, input CounterOfferInput) (*domain.Offer, error) {
	if err := ensureMarketOpen(ctx, uc.gate); err != nil {
		return nil, err
	}
	if err := domain.ValidateAmount(input.Amount); err != nil {
		return nil, err
	}
	if err := domain.ValidateCounterMessage(input.Message); err != nil {
		return nil, err
	}

	var offer *domain.Offer
	err := withRetry(ctx, uc.retrier, func() error {
		var err error
		offer, err = uc.transition(ctx, input.OfferID, func(o *domain.Offer, now time.Time) (*domain.OutboxEvent, error) {
			if err := o.CanCounter(input.Party); err != nil {
				return nil, err
			}
			if err := uc.policy.Check(o.Amount, input.Amount); err != nil {
				return nil, err
			}
			if err := o.ApplyCounter(input.Amount, input.Message, now); err != nil {
				return nil, err
			}
			return newOutboxEvent(uc.idGen, domain.AggregateTypeOffer, o.ID, domain.EventTypeOfferCountered, offerPayload(o), now), nil
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	uc.countStatus(offer.Status)
	return offer, nil
}

// RespondToInitial lets the seller accept or reject a pending offer.
func (uc *OfferUseCase) RespondToInitial(ctx context.Context, input RespondInput) (*RespondResult, error) {
	return uc.respond(ctx, input, domain.OfferStatusPending)
}

// RespondToCounter lets the buyer accept or reject the seller's counter-offer.
func (uc *OfferUseCase) RespondToCounter(ctx context.Context, input RespondInput) (*RespondResult, error) {
	return uc.respond(ctx, input, domain.OfferStatusCounterOffered)
}

func (uc *OfferUseCase) respond(ctx context.Context, input RespondInput, from domain.OfferStatus) (*RespondResult, error) {
	if err := ensureMarketOpen(ctx, uc.gate); err != nil {
		return nil, err
	}

	if input.Accept {
		result, err := uc.settlement.Settle(ctx, SettleInput{
			OfferID: input.OfferID,
			Party:   input.Party,
			From:    from,
		})
		if err != nil {
			return nil, err
		}
		return &RespondResult{Offer: result.Offer, Settlement: result}, nil
	}

	var offer *domain.Offer
	err := withRetry(ctx, uc.retrier, func() error {
		var err error
		offer, err = uc.transition(ctx, input.OfferID, func(o *domain.Offer, now time.Time) (*domain.OutboxEvent, error) {
			if err := checkAcceptance(o, SettleInput{Party: input.Party, From: from}); err != nil {
				return nil, err
			}
			o.Reject(now)
			payload := offerPayload(o)
			payload["reason"] = domain.RejectReasonDeclined
			return newOutboxEvent(uc.idGen, domain.AggregateTypeOffer, o.ID, domain.EventTypeOfferRejected, payload, now), nil
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	uc.countStatus(offer.Status)
	return &RespondResult{Offer: offer}, nil
}

// transition locks the offer, applies mutate and writes it back with a version check.
func (uc *OfferUseCase) transition(
	ctx context.Context,
	offerID string,
	mutate func(o *domain.Offer, now time.Time) (*domain.OutboxEvent, error),
) (*domain.Offer, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	offer, err := uc.offerRepo.GetByIDForUpdate(txCtx, tx, offerID)
	if err != nil {
		return nil, err
	}

	version := offer.Version
	event, err := mutate(offer, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if err := uc.offerRepo.Update(txCtx, tx, offer, version); err != nil {
		return nil, err
	}

	if err := uc.outboxRepo.Create(txCtx, tx, event); err != nil {
		return nil, err
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	return offer, nil
}

// GetOffer retrieves an offer by ID.
func (uc *OfferUseCase) GetOffer(ctx context.Context, id string) (*domain.Offer, error) {
	return uc.offerRepo.GetByID(ctx, id)
}

// ListOffers lists offers matching filter, newest first.
func (uc *OfferUseCase) ListOffers(ctx context.Context, filter domain.OfferFilter) ([]*domain.Offer, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, domain.ErrInvalidStatus
	}
	filter.Limit, filter.Offset = domain.ValidatePagination(filter.Limit, filter.Offset)
	return uc.offerRepo.List(ctx, filter)
}

func (uc *OfferUseCase) countStatus(status domain.OfferStatus) {
	if uc.metrics != nil {
		uc.metrics.Offers.WithLabelValues(string(status)).Inc()
	}
}
