package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/iho/clubmarket/internal/domain"
)

// ClubUseCase is the roster boundary the transfer market reads from: clubs, players
// and the transfer-listed flag. A club's budget is its wallet balance.
type ClubUseCase struct {
	txManager  TransactionManager
	clubRepo   ClubRepository
	playerRepo PlayerRepository
	auditRepo  AuditRepository
	wallet     *WalletUseCase
	idGen      IDGenerator
}

// NewClubUseCase creates a new ClubUseCase.
func NewClubUseCase(
	txManager TransactionManager,
	clubRepo ClubRepository,
	playerRepo PlayerRepository,
	auditRepo AuditRepository,
	wallet *WalletUseCase,
	idGen IDGenerator,
) *ClubUseCase {
	return &ClubUseCase{
		txManager:  txManager,
		clubRepo:   clubRepo,
		playerRepo: playerRepo,
		auditRepo:  auditRepo,
		wallet:     wallet,
		idGen:      idGen,
	}
}

// RegisterClubInput represents input for registering a club.
// A positive OpeningBudget is credited to the club wallet.
type RegisterClubInput struct {
	ID            string
	Name          string
	OpeningBudget int64
}

// RegisterClub creates a club and, optionally, funds its wallet.
func (uc *ClubUseCase) RegisterClub(ctx context.Context, input RegisterClubInput) (*domain.ClubView, error) {
	if err := domain.ValidateName(input.Name); err != nil {
		return nil, err
	}
	if input.OpeningBudget < 0 {
		return nil, domain.ErrInvalidAmount
	}

	id := strings.TrimSpace(input.ID)
	if id == "" {
		id = uc.idGen.Generate()
	}

	club := &domain.Club{
		ID:        id,
		Name:      strings.TrimSpace(input.Name),
		CreatedAt: time.Now().UTC(),
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := uc.clubRepo.Create(ctx, tx, club); err != nil {
		return nil, err
	}

	// The club and its opening credit commit together.
	var opening *domain.WalletTransaction
	if input.OpeningBudget > 0 {
		opening, err = uc.wallet.postInTx(ctx, tx, club.AccountID(), posting{
			Type:      domain.TransactionTypeCredit,
			Category:  domain.CategoryOpening,
			Reason:    "opening budget",
			RelatedID: club.ID,
			Effect:    input.OpeningBudget,
		}, domain.AuditActionWalletCredit)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	if opening != nil {
		recordPostings(uc.wallet.metrics, opening)
	}

	return uc.GetClub(ctx, club.ID)
}

// GetClub returns the club with its budget derived from the ledger.
func (uc *ClubUseCase) GetClub(ctx context.Context, id string) (*domain.ClubView, error) {
	club, err := uc.clubRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	budget, err := uc.wallet.GetBalance(ctx, club.AccountID())
	if err != nil {
		return nil, err
	}

	return &domain.ClubView{Club: *club, Budget: budget}, nil
}

// ListClubs lists clubs with their budgets.
func (uc *ClubUseCase) ListClubs(ctx context.Context, limit, offset int) ([]*domain.ClubView, error) {
	limit, offset = domain.ValidatePagination(limit, offset)

	clubs, err := uc.clubRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}

	views := make([]*domain.ClubView, 0, len(clubs))
	for _, club := range clubs {
		budget, err := uc.wallet.GetBalance(ctx, club.AccountID())
		if err != nil {
			return nil, err
		}
		views = append(views, &domain.ClubView{Club: *club, Budget: budget})
	}

	return views, nil
}

// RegisterPlayerInput represents input for registering a player.
// An empty ClubID registers a free agent.
type RegisterPlayerInput struct {
	ID             string
	Name           string
	ClubID         string
	TransferListed bool
}

// RegisterPlayer creates a player.
func (uc *ClubUseCase) RegisterPlayer(ctx context.Context, input RegisterPlayerInput) (*domain.Player, error) {
	if err := domain.ValidateName(input.Name); err != nil {
		return nil, err
	}

	id := strings.TrimSpace(input.ID)
	if id == "" {
		id = uc.idGen.Generate()
	}

	player := &domain.Player{
		ID:             id,
		Name:           strings.TrimSpace(input.Name),
		TransferListed: input.TransferListed,
		UpdatedAt:      time.Now().UTC(),
	}

	if input.ClubID != "" {
		if _, err := uc.clubRepo.GetByID(ctx, input.ClubID); err != nil {
			return nil, err
		}
		clubID := input.ClubID
		player.ClubID = &clubID
	}

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := uc.playerRepo.Create(ctx, tx, player); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	return player, nil
}

// GetPlayer retrieves a player by ID.
func (uc *ClubUseCase) GetPlayer(ctx context.Context, id string) (*domain.Player, error) {
	return uc.playerRepo.GetByID(ctx, id)
}

// ListSquad lists the players registered to a club.
func (uc *ClubUseCase) ListSquad(ctx context.Context, clubID string) ([]*domain.Player, error) {
	if _, err := uc.clubRepo.GetByID(ctx, clubID); err != nil {
		return nil, err
	}
	return uc.playerRepo.ListByClub(ctx, clubID)
}

// SetTransferListed puts a player on or off the transfer list.
func (uc *ClubUseCase) SetTransferListed(ctx context.Context, playerID string, listed bool) (*domain.Player, error) {
	txCtx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(txCtx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(txCtx) }()

	player, err := uc.playerRepo.GetByIDForUpdate(txCtx, tx, playerID)
	if err != nil {
		return nil, err
	}
	if player.TransferListed == listed {
		return player, nil
	}

	before := *player
	version := player.Version
	now := time.Now().UTC()

	player.TransferListed = listed
	player.UpdatedAt = now
	if err := uc.playerRepo.Update(txCtx, tx, player, version); err != nil {
		return nil, err
	}

	if uc.auditRepo != nil {
		auditLog := newAuditLog(ctx, uc.idGen, domain.AuditActionPlayerListing, "player", player.ID, before, player, now)
		if err := uc.auditRepo.CreateTx(txCtx, tx, auditLog); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(txCtx); err != nil {
		return nil, err
	}

	return player, nil
}
