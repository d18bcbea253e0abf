package usecase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/iho/clubmarket/internal/domain"
	"github.com/iho/clubmarket/internal/infrastructure/metrics"
)

// SettlementUseCase executes accepted offers: funds, ownership, transfer record and
// the cascade over competing offers move together or not at all.
type SettlementUseCase struct {
	txManager    TransactionManager
	offerRepo    OfferRepository
	clubRepo     ClubRepository
	playerRepo   PlayerRepository
	transferRepo TransferRepository
	walletRepo   WalletRepository
	outboxRepo   OutboxRepository
	auditRepo    AuditRepository
	idGen        IDGenerator
	locker       Locker
	retrier      Retrier
	metrics      *metrics.Metrics
	poster       *ledgerPoster
	lockTTL      time.Duration
}

// SettlementConfig wires the SettlementUseCase collaborators.
type SettlementConfig struct {
	TxManager    TransactionManager
	OfferRepo    OfferRepository
	ClubRepo     ClubRepository
	PlayerRepo   PlayerRepository
	TransferRepo TransferRepository
	WalletRepo   WalletRepository
	OutboxRepo   OutboxRepository
	AuditRepo    AuditRepository
	IDGen        IDGenerator
	Locker       Locker  // optional, serializes settlements per player across processes
	Retrier      Retrier // optional
	Metrics      *metrics.Metrics
	LockTTL      time.Duration // defaults to DefaultSettlementLockTTL
}

// NewSettlementUseCase creates a new SettlementUseCase.
func NewSettlementUseCase(cfg SettlementConfig) *SettlementUseCase {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultSettlementLockTTL
	}

	return &SettlementUseCase{
		txManager:    cfg.TxManager,
		offerRepo:    cfg.OfferRepo,
		clubRepo:     cfg.ClubRepo,
		playerRepo:   cfg.PlayerRepo,
		transferRepo: cfg.TransferRepo,
		walletRepo:   cfg.WalletRepo,
		outboxRepo:   cfg.OutboxRepo,
		auditRepo:    cfg.AuditRepo,
		idGen:        cfg.IDGen,
		locker:       cfg.Locker,
		retrier:      cfg.Retrier,
		metrics:      cfg.Metrics,
		lockTTL:      cfg.LockTTL,
		poster: &ledgerPoster{
			walletRepo: cfg.WalletRepo,
			outboxRepo: cfg.OutboxRepo,
			idGen:      cfg.IDGen,
		},
	}
}

// SettleInput identifies the acceptance being settled.
// From is the status the acting party saw: pending for the seller accepting the
// original offer, counter-offered for the buyer accepting a counter.
type SettleInput struct {
	OfferID string
	Party   domain.Party
	From    domain.OfferStatus
}

// SettlementResult is everything a successful settlement wrote.
type SettlementResult struct {
	Offer             *domain.Offer
	Transfer          *domain.Transfer
	BuyerTransaction  *domain.WalletTransaction
	SellerTransaction *domain.WalletTransaction
	Rejected          []*domain.Offer
}

// Settle accepts the offer and executes the transfer.
func (uc *SettlementUseCase) Settle(ctx context.Context, input SettleInput) (*SettlementResult, error) {
	start := time.Now()

	result, err := uc.settle(ctx, input)
	uc.observe(start, result, err)

	return result, err
}

func (uc *SettlementUseCase) settle(ctx context.Context, input SettleInput) (*SettlementResult, error) {
	// The player id is needed to pick the lock before anything is locked.
	offer, err := uc.offerRepo.GetByID(ctx, input.OfferID)
	if err != nil {
		return nil, err
	}
	if err := checkAcceptance(offer, input); err != nil {
		return nil, err
	}

	if uc.locker != nil {
		release, err := uc.locker.Acquire(ctx, SettlementLockKey(offer.PlayerID), uc.lockTTL)
		if err != nil {
			return nil, err
		}
		defer func() { _ = release(context.WithoutCancel(ctx)) }()
	}

	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	var result *SettlementResult
	err = withRetry(txCtx, uc.retrier, func() error {
		var err error
		result, err = uc.settleTx(txCtx, offer.PlayerID, input)
		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// checkAcceptance applies the permission and state guard of the transition being settled.
func checkAcceptance(offer *domain.Offer, input SettleInput) error {
	switch input.From {
	case domain.OfferStatusPending:
		return offer.CanRespondToInitial(input.Party)
	case domain.OfferStatusCounterOffered:
		return offer.CanRespondToCounter(input.Party)
	default:
		return domain.ErrOfferNotPending
	}
}

func (uc *SettlementUseCase) settleTx(ctx context.Context, playerID string, input SettleInput) (*SettlementResult, error) {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Lock order: player, open offers of the player, wallet accounts by id.
	player, err := uc.playerRepo.GetByIDForUpdate(ctx, tx, playerID)
	if err != nil {
		return nil, err
	}

	open, err := uc.offerRepo.ListOpenByPlayerForUpdate(ctx, tx, playerID)
	if err != nil {
		return nil, err
	}

	offer := findOffer(open, input.OfferID)
	if offer == nil {
		// No longer open: re-read to report the state it reached.
		offer, err = uc.offerRepo.GetByIDForUpdate(ctx, tx, input.OfferID)
		if err != nil {
			return nil, err
		}
	}
	if err := checkAcceptance(offer, input); err != nil {
		return nil, err
	}

	sold, err := uc.offerRepo.List(ctx, domain.OfferFilter{
		PlayerID: playerID,
		Status:   domain.OfferStatusAccepted,
		Limit:    1,
	})
	if err != nil {
		return nil, err
	}
	if len(sold) > 0 {
		return nil, domain.ErrPlayerAlreadySold
	}

	seller, err := uc.clubRepo.GetByID(ctx, offer.SellerClubID)
	if err != nil {
		return nil, err
	}
	buyer, err := uc.clubRepo.GetByID(ctx, offer.BuyerClubID)
	if err != nil {
		return nil, err
	}

	if !player.BelongsTo(seller.ID) {
		return nil, domain.ErrPlayerMoved
	}

	amount := offer.AgreedAmount()
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}

	accounts, err := uc.lockAccounts(ctx, tx, seller.AccountID(), buyer.AccountID())
	if err != nil {
		return nil, err
	}
	buyerAccount := accounts[buyer.AccountID()]
	sellerAccount := accounts[seller.AccountID()]

	// Funds gate: nothing has been written yet.
	if err := buyerAccount.ValidateEffect(-amount); err != nil {
		return nil, err
	}

	before := map[string]any{
		"offer_status":   string(offer.Status),
		"player_club_id": *player.ClubID,
		"buyer_balance":  buyerAccount.Balance,
		"seller_balance": sellerAccount.Balance,
	}

	now := time.Now().UTC()
	reason := fmt.Sprintf("transfer of %s", player.Name)

	buyerTxn, err := uc.poster.post(ctx, tx, buyerAccount, posting{
		Type:      domain.TransactionTypeDebit,
		Category:  domain.CategoryTransfer,
		Reason:    reason,
		RelatedID: offer.ID,
		Effect:    -amount,
	}, now)
	if err != nil {
		return nil, err
	}

	sellerTxn, err := uc.poster.post(ctx, tx, sellerAccount, posting{
		Type:      domain.TransactionTypeCredit,
		Category:  domain.CategoryTransfer,
		Reason:    reason,
		RelatedID: offer.ID,
		Effect:    amount,
	}, now)
	if err != nil {
		return nil, err
	}

	playerVersion := player.Version
	player.MoveTo(buyer.ID, now)
	if err := uc.playerRepo.Update(ctx, tx, player, playerVersion); err != nil {
		return nil, err
	}

	transfer := &domain.Transfer{
		ID:           uc.idGen.Generate(),
		OfferID:      offer.ID,
		PlayerID:     player.ID,
		PlayerName:   player.Name,
		SellerClubID: seller.ID,
		BuyerClubID:  buyer.ID,
		Fee:          amount,
		CreatedAt:    now,
	}
	if err := transfer.Validate(); err != nil {
		return nil, err
	}
	if err := uc.transferRepo.Create(ctx, tx, transfer); err != nil {
		return nil, err
	}

	offerVersion := offer.Version
	offer.Accept(now)
	if err := uc.offerRepo.Update(ctx, tx, offer, offerVersion); err != nil {
		return nil, err
	}

	rejected, err := uc.rejectCompeting(ctx, tx, open, offer.ID, now)
	if err != nil {
		return nil, err
	}

	if err := uc.writeEvents(ctx, tx, offer, transfer, rejected, now); err != nil {
		return nil, err
	}

	if uc.auditRepo != nil {
		after := map[string]any{
			"offer_status":   string(offer.Status),
			"player_club_id": buyer.ID,
			"buyer_balance":  buyerAccount.Balance,
			"seller_balance": sellerAccount.Balance,
			"transfer_id":    transfer.ID,
			"rejected":       len(rejected),
		}
		auditLog := newAuditLog(ctx, uc.idGen, domain.AuditActionOfferSettle, domain.AggregateTypeOffer, offer.ID, before, after, now)
		if err := uc.auditRepo.CreateTx(ctx, tx, auditLog); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return &SettlementResult{
		Offer:             offer,
		Transfer:          transfer,
		BuyerTransaction:  buyerTxn,
		SellerTransaction: sellerTxn,
		Rejected:          rejected,
	}, nil
}

func (uc *SettlementUseCase) lockAccounts(ctx context.Context, tx Transaction, ids ...string) (map[string]*domain.WalletAccount, error) {
	sort.Strings(ids)

	accounts, err := uc.walletRepo.LockAccounts(ctx, tx, ids)
	if err != nil {
		return nil, err
	}

	m := make(map[string]*domain.WalletAccount, len(accounts))
	for _, a := range accounts {
		m[a.ID] = a
	}

	for _, id := range ids {
		if m[id] == nil {
			return nil, domain.ErrAccountNotFound
		}
	}

	return m, nil
}

// rejectCompeting moves every other open offer on the player to rejected.
func (uc *SettlementUseCase) rejectCompeting(ctx context.Context, tx Transaction, open []*domain.Offer, acceptedID string, now time.Time) ([]*domain.Offer, error) {
	rejected := make([]*domain.Offer, 0, len(open))

	for _, other := range open {
		if other.ID == acceptedID {
			continue
		}

		version := other.Version
		other.Reject(now)
		if err := uc.offerRepo.Update(ctx, tx, other, version); err != nil {
			return nil, err
		}

		rejected = append(rejected, other)
	}

	return rejected, nil
}

func (uc *SettlementUseCase) writeEvents(
	ctx context.Context,
	tx Transaction,
	offer *domain.Offer,
	transfer *domain.Transfer,
	rejected []*domain.Offer,
	now time.Time,
) error {
	accepted := offerPayload(offer)
	accepted["transfer_id"] = transfer.ID
	accepted["fee"] = transfer.Fee

	events := []*domain.OutboxEvent{
		newOutboxEvent(uc.idGen, domain.AggregateTypeOffer, offer.ID, domain.EventTypeOfferAccepted, accepted, now),
		newOutboxEvent(uc.idGen, domain.AggregateTypeTransfer, transfer.ID, domain.EventTypeTransferCompleted, map[string]any{
			"transfer_id":    transfer.ID,
			"offer_id":       transfer.OfferID,
			"player_id":      transfer.PlayerID,
			"player_name":    transfer.PlayerName,
			"seller_club_id": transfer.SellerClubID,
			"buyer_club_id":  transfer.BuyerClubID,
			"fee":            transfer.Fee,
		}, now),
	}

	for _, other := range rejected {
		payload := offerPayload(other)
		payload["reason"] = domain.RejectReasonPlayerTransferred
		payload["transfer_id"] = transfer.ID
		events = append(events, newOutboxEvent(uc.idGen, domain.AggregateTypeOffer, other.ID, domain.EventTypeOfferRejected, payload, now))
	}

	for _, event := range events {
		if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
			return err
		}
	}

	return nil
}

func (uc *SettlementUseCase) observe(start time.Time, result *SettlementResult, err error) {
	if uc.metrics == nil {
		return
	}

	uc.metrics.SettlementDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		uc.metrics.SettlementFailures.WithLabelValues(errorLabel(err)).Inc()
		return
	}

	uc.metrics.Settlements.Inc()
	uc.metrics.TransferFee.Observe(float64(result.Transfer.Fee))
	uc.metrics.Offers.WithLabelValues(string(domain.OfferStatusAccepted)).Inc()
	uc.metrics.Offers.WithLabelValues(string(domain.OfferStatusRejected)).Add(float64(len(result.Rejected)))
	uc.metrics.CascadeRejections.Add(float64(len(result.Rejected)))
	recordPostings(uc.metrics, result.BuyerTransaction, result.SellerTransaction)
}

func findOffer(offers []*domain.Offer, id string) *domain.Offer {
	for _, o := range offers {
		if o.ID == id {
			return o
		}
	}
	return nil
}
