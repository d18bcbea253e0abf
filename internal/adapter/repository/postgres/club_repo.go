package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/iho/clubmarket/internal/domain"
	"github.com/iho/clubmarket/internal/usecase"
)

// ClubRepository implements usecase.ClubRepository.
type ClubRepository struct {
	db DB
}

// NewClubRepository creates a new ClubRepository.
func NewClubRepository(db DB) *ClubRepository {
	return &ClubRepository{db: db}
}

func scanClub(row pgx.Row) (*domain.Club, error) {
	var c domain.Club
	if err := row.Scan(&c.ID, &c.Name, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts a club.
func (r *ClubRepository) Create(ctx context.Context, tx usecase.Transaction, club *domain.Club) error {
	q, err := conn(r.db, tx)
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx, `INSERT INTO clubs (id, name, created_at) VALUES ($1, $2, $3)`,
		club.ID, club.Name, club.CreatedAt)
	return translateError(err, nil)
}

// GetByID retrieves a club.
func (r *ClubRepository) GetByID(ctx context.Context, id string) (*domain.Club, error) {
	club, err := scanClub(r.db.QueryRow(ctx, `SELECT id, name, created_at FROM clubs WHERE id = $1`, id))
	if err != nil {
		return nil, translateError(err, domain.ErrClubNotFound)
	}
	return club, nil
}

// List returns clubs ordered by id.
func (r *ClubRepository) List(ctx context.Context, limit, offset int) ([]*domain.Club, error) {
	page, args := paging(nil, limit, offset)
	rows, err := r.db.Query(ctx, `SELECT id, name, created_at FROM clubs ORDER BY id`+page, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Club, error) {
		return scanClub(row)
	})
}
