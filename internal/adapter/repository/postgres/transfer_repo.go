package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/iho/clubmarket/internal/domain"
	"github.com/iho/clubmarket/internal/usecase"
)

const transferColumns = `id, offer_id, player_id, player_name, seller_club_id, buyer_club_id, fee, created_at`

// TransferRepository implements usecase.TransferRepository.
type TransferRepository struct {
	db DB
}

// NewTransferRepository creates a new TransferRepository.
func NewTransferRepository(db DB) *TransferRepository {
	return &TransferRepository{db: db}
}

func scanTransfer(row pgx.Row) (*domain.Transfer, error) {
	var t domain.Transfer
	err := row.Scan(
		&t.ID,
		&t.OfferID,
		&t.PlayerID,
		&t.PlayerName,
		&t.SellerClubID,
		&t.BuyerClubID,
		&t.Fee,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Create inserts a transfer record. A second transfer for the same offer is a duplicate.
func (r *TransferRepository) Create(ctx context.Context, tx usecase.Transaction, transfer *domain.Transfer) error {
	q, err := conn(r.db, tx)
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx, `
		INSERT INTO transfers (`+transferColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		transfer.ID,
		transfer.OfferID,
		transfer.PlayerID,
		transfer.PlayerName,
		transfer.SellerClubID,
		transfer.BuyerClubID,
		transfer.Fee,
		transfer.CreatedAt,
	)
	return translateError(err, nil)
}

// GetByID retrieves a transfer.
func (r *TransferRepository) GetByID(ctx context.Context, id string) (*domain.Transfer, error) {
	transfer, err := scanTransfer(r.db.QueryRow(ctx, `SELECT `+transferColumns+` FROM transfers WHERE id = $1`, id))
	if err != nil {
		return nil, translateError(err, domain.ErrTransferNotFound)
	}
	return transfer, nil
}

// List returns transfers newest first.
func (r *TransferRepository) List(ctx context.Context, filter domain.TransferFilter) ([]*domain.Transfer, error) {
	var w where
	if filter.PlayerID != "" {
		w.add("player_id = $%d", filter.PlayerID)
	}
	if filter.ClubID != "" {
		w.addRaw(func(n int) string {
			return fmt.Sprintf("(seller_club_id = $%d OR buyer_club_id = $%d)", n, n)
		}, filter.ClubID)
	}

	page, args := paging(w.args, filter.Limit, filter.Offset)
	rows, err := r.db.Query(ctx,
		`SELECT `+transferColumns+` FROM transfers`+w.String()+` ORDER BY created_at DESC, id DESC`+page,
		args...,
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Transfer, error) {
		return scanTransfer(row)
	})
}
