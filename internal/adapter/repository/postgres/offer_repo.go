package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/iho/clubmarket/internal/domain"
	"github.com/iho/clubmarket/internal/usecase"
)

const offerColumns = `id, player_id, player_name, seller_club_id, buyer_club_id, amount, status,
	counter_amount, counter_message, initiated_by, version, created_at, responded_at`

// OfferRepository implements usecase.OfferRepository.
type OfferRepository struct {
	db DB
}

// NewOfferRepository creates a new OfferRepository.
func NewOfferRepository(db DB) *OfferRepository {
	return &OfferRepository{db: db}
}

func scanOffer(row pgx.Row) (*domain.Offer, error) {
	var o domain.Offer
	var status string
	err := row.Scan(
		&o.ID,
		&o.PlayerID,
		&o.PlayerName,
		&o.SellerClubID,
		&o.BuyerClubID,
		&o.Amount,
		&status,
		&o.CounterAmount,
		&o.CounterMessage,
		&o.InitiatedBy,
		&o.Version,
		&o.CreatedAt,
		&o.RespondedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Status = domain.OfferStatus(status)
	return &o, nil
}

func collectOffers(rows pgx.Rows, err error) ([]*domain.Offer, error) {
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Offer, error) {
		return scanOffer(row)
	})
}

// Create inserts a new offer.
func (r *OfferRepository) Create(ctx context.Context, tx usecase.Transaction, offer *domain.Offer) error {
	q, err := conn(r.db, tx)
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx, `
		INSERT INTO offers (`+offerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		offer.ID,
		offer.PlayerID,
		offer.PlayerName,
		offer.SellerClubID,
		offer.BuyerClubID,
		offer.Amount,
		string(offer.Status),
		offer.CounterAmount,
		offer.CounterMessage,
		offer.InitiatedBy,
		offer.Version,
		offer.CreatedAt,
		offer.RespondedAt,
	)
	return translateError(err, nil)
}

// GetByID retrieves an offer.
func (r *OfferRepository) GetByID(ctx context.Context, id string) (*domain.Offer, error) {
	offer, err := scanOffer(r.db.QueryRow(ctx, `SELECT `+offerColumns+` FROM offers WHERE id = $1`, id))
	if err != nil {
		return nil, translateError(err, domain.ErrOfferNotFound)
	}
	return offer, nil
}

// GetByIDForUpdate retrieves and row-locks an offer.
func (r *OfferRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Offer, error) {
	q, err := conn(r.db, tx)
	if err != nil {
		return nil, err
	}

	offer, err := scanOffer(q.QueryRow(ctx, `SELECT `+offerColumns+` FROM offers WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, translateError(err, domain.ErrOfferNotFound)
	}
	return offer, nil
}

// ListOpenByPlayerForUpdate locks every open offer on the player in id order.
func (r *OfferRepository) ListOpenByPlayerForUpdate(ctx context.Context, tx usecase.Transaction, playerID string) ([]*domain.Offer, error) {
	q, err := conn(r.db, tx)
	if err != nil {
		return nil, err
	}

	return collectOffers(q.Query(ctx, `
		SELECT `+offerColumns+`
		FROM offers
		WHERE player_id = $1 AND status IN ($2, $3)
		ORDER BY id
		FOR UPDATE`,
		playerID,
		string(domain.OfferStatusPending),
		string(domain.OfferStatusCounterOffered),
	))
}

// Update writes the negotiation fields when the stored version matches.
func (r *OfferRepository) Update(ctx context.Context, tx usecase.Transaction, offer *domain.Offer, expectedVersion int64) error {
	q, err := conn(r.db, tx)
	if err != nil {
		return err
	}

	err = expectOne(q.Exec(ctx, `
		UPDATE offers
		SET status = $2, counter_amount = $3, counter_message = $4, responded_at = $5, version = version + 1
		WHERE id = $1 AND version = $6`,
		offer.ID,
		string(offer.Status),
		offer.CounterAmount,
		offer.CounterMessage,
		offer.RespondedAt,
		expectedVersion,
	))
	if err != nil {
		return err
	}

	offer.Version = expectedVersion + 1
	return nil
}

// List returns offers newest first.
func (r *OfferRepository) List(ctx context.Context, filter domain.OfferFilter) ([]*domain.Offer, error) {
	var w where
	if filter.PlayerID != "" {
		w.add("player_id = $%d", filter.PlayerID)
	}
	if filter.ClubID != "" {
		w.addRaw(func(n int) string {
			return fmt.Sprintf("(seller_club_id = $%d OR buyer_club_id = $%d)", n, n)
		}, filter.ClubID)
	}
	if filter.Status != "" {
		w.add("status = $%d", string(filter.Status))
	}

	page, args := paging(w.args, filter.Limit, filter.Offset)
	return collectOffers(r.db.Query(ctx,
		`SELECT `+offerColumns+` FROM offers`+w.String()+` ORDER BY created_at DESC, id DESC`+page,
		args...,
	))
}

// ListDangling returns offers whose player id has no player row, oldest first.
func (r *OfferRepository) ListDangling(ctx context.Context, limit int) ([]*domain.Offer, error) {
	limit, _ = domain.ValidatePagination(limit, 0)
	return collectOffers(r.db.Query(ctx, `
		SELECT `+offerColumns+`
		FROM offers o
		WHERE NOT EXISTS (SELECT 1 FROM players p WHERE p.id = o.player_id)
		ORDER BY created_at, id
		LIMIT $1`,
		limit,
	))
}

// RelinkPlayer points an offer at a different player id.
func (r *OfferRepository) RelinkPlayer(ctx context.Context, tx usecase.Transaction, offerID, playerID string) error {
	q, err := conn(r.db, tx)
	if err != nil {
		return err
	}

	tag, err := q.Exec(ctx, `UPDATE offers SET player_id = $2, version = version + 1 WHERE id = $1`, offerID, playerID)
	if err != nil {
		return translateError(err, nil)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrOfferNotFound
	}
	return nil
}
