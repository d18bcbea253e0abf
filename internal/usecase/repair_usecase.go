package usecase

import (
	"context"
	"time"

	"github.com/iho/clubmarket/internal/domain"
)

// RepairUseCase fixes legacy offers whose player id no longer resolves.
// Settlement never calls it: the core only resolves players by id.
type RepairUseCase struct {
	txManager  TransactionManager
	offerRepo  OfferRepository
	playerRepo PlayerRepository
	auditRepo  AuditRepository
	idGen      IDGenerator
}

// NewRepairUseCase creates a new RepairUseCase.
func NewRepairUseCase(
	txManager TransactionManager,
	offerRepo OfferRepository,
	playerRepo PlayerRepository,
	auditRepo AuditRepository,
	idGen IDGenerator,
) *RepairUseCase {
	return &RepairUseCase{
		txManager:  txManager,
		offerRepo:  offerRepo,
		playerRepo: playerRepo,
		auditRepo:  auditRepo,
		idGen:      idGen,
	}
}

// Repair outcomes.
const (
	RepairRelinked  = "relinked"
	RepairWouldLink = "would_relink"
	RepairNoMatch   = "no_match"
	RepairAmbiguous = "ambiguous"
)

// RepairItem describes what happened to one dangling offer.
type RepairItem struct {
	OfferID      string
	OldPlayerID  string
	PlayerName   string
	NewPlayerID  string
	Outcome      string
	CandidateIDs []string
}

// RepairReport summarizes a relink run.
type RepairReport struct {
	Items     []RepairItem
	Relinked  int
	Unchanged int
	DryRun    bool
}

// RelinkOffers re-resolves dangling offers by exact player name. Only a unique match is
// relinked; missing or ambiguous names are reported and left alone.
func (uc *RepairUseCase) RelinkOffers(ctx context.Context, dryRun bool) (*RepairReport, error) {
	offers, err := uc.offerRepo.ListDangling(ctx, RepairBatchSize)
	if err != nil {
		return nil, err
	}

	report := &RepairReport{DryRun: dryRun, Items: make([]RepairItem, 0, len(offers))}

	for _, offer := range offers {
		item := RepairItem{
			OfferID:     offer.ID,
			OldPlayerID: offer.PlayerID,
			PlayerName:  offer.PlayerName,
		}

		candidates, err := uc.playerRepo.FindByName(ctx, offer.PlayerName)
		if err != nil {
			return nil, err
		}

		switch len(candidates) {
		case 0:
			item.Outcome = RepairNoMatch
		case 1:
			item.NewPlayerID = candidates[0].ID
			if dryRun {
				item.Outcome = RepairWouldLink
			} else {
				if err := uc.relink(ctx, offer, candidates[0]); err != nil {
					return nil, err
				}
				item.Outcome = RepairRelinked
				report.Relinked++
			}
		default:
			item.Outcome = RepairAmbiguous
			for _, c := range candidates {
				item.CandidateIDs = append(item.CandidateIDs, c.ID)
			}
		}

		if item.Outcome != RepairRelinked {
			report.Unchanged++
		}
		report.Items = append(report.Items, item)
	}

	return report, nil
}

func (uc *RepairUseCase) relink(ctx context.Context, offer *domain.Offer, player *domain.Player) error {
	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := uc.offerRepo.RelinkPlayer(ctx, tx, offer.ID, player.ID); err != nil {
		return err
	}

	if uc.auditRepo != nil {
		now := time.Now().UTC()
		auditLog := newAuditLog(ctx, uc.idGen, domain.AuditActionOfferRelink, domain.AggregateTypeOffer, offer.ID,
			map[string]any{"player_id": offer.PlayerID},
			map[string]any{"player_id": player.ID, "player_name": player.Name}, now)
		if err := uc.auditRepo.CreateTx(ctx, tx, auditLog); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
