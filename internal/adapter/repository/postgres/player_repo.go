package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/iho/clubmarket/internal/domain"
	"github.com/iho/clubmarket/internal/usecase"
)

const playerColumns = `id, name, club_id, transfer_listed, version, updated_at`

// PlayerRepository implements usecase.PlayerRepository.
type PlayerRepository struct {
	db DB
}

// NewPlayerRepository creates a new PlayerRepository.
func NewPlayerRepository(db DB) *PlayerRepository {
	return &PlayerRepository{db: db}
}

func scanPlayer(row pgx.Row) (*domain.Player, error) {
	var p domain.Player
	if err := row.Scan(&p.ID, &p.Name, &p.ClubID, &p.TransferListed, &p.Version, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func collectPlayers(rows pgx.Rows, err error) ([]*domain.Player, error) {
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Player, error) {
		return scanPlayer(row)
	})
}

// Create inserts a player.
func (r *PlayerRepository) Create(ctx context.Context, tx usecase.Transaction, player *domain.Player) error {
	q, err := conn(r.db, tx)
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx, `
		INSERT INTO players (`+playerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		player.ID, player.Name, player.ClubID, player.TransferListed, player.Version, player.UpdatedAt)
	return translateError(err, nil)
}

// GetByID retrieves a player.
func (r *PlayerRepository) GetByID(ctx context.Context, id string) (*domain.Player, error) {
	player, err := scanPlayer(r.db.QueryRow(ctx, `SELECT `+playerColumns+` FROM players WHERE id = $1`, id))
	if err != nil {
		return nil, translateError(err, domain.ErrPlayerNotFound)
	}
	return player, nil
}

// GetByIDForUpdate retrieves and row-locks a player.
func (r *PlayerRepository) GetByIDForUpdate(ctx context.Context, tx usecase.Transaction, id string) (*domain.Player, error) {
	q, err := conn(r.db, tx)
	if err != nil {
		return nil, err
	}

	player, err := scanPlayer(q.QueryRow(ctx, `SELECT `+playerColumns+` FROM players WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, translateError(err, domain.ErrPlayerNotFound)
	}
	return player, nil
}

// Update writes club and listing when the stored version matches.
func (r *PlayerRepository) Update(ctx context.Context, tx usecase.Transaction, player *domain.Player, expectedVersion int64) error {
	q, err := conn(r.db, tx)
	if err != nil {
		return err
	}

	err = expectOne(q.Exec(ctx, `
		UPDATE players
		SET club_id = $2, transfer_listed = $3, updated_at = $4, version = version + 1
		WHERE id = $1 AND version = $5`,
		player.ID, player.ClubID, player.TransferListed, player.UpdatedAt, expectedVersion))
	if err != nil {
		return err
	}

	player.Version = expectedVersion + 1
	return nil
}

// ListByClub returns the squad of clubID ordered by name.
func (r *PlayerRepository) ListByClub(ctx context.Context, clubID string) ([]*domain.Player, error) {
	return collectPlayers(r.db.Query(ctx,
		`SELECT `+playerColumns+` FROM players WHERE club_id = $1 ORDER BY name, id`, clubID))
}

// FindByName returns players whose name matches exactly.
func (r *PlayerRepository) FindByName(ctx context.Context, name string) ([]*domain.Player, error) {
	return collectPlayers(r.db.Query(ctx,
		`SELECT `+playerColumns+` FROM players WHERE name = $1 ORDER BY id`, name))
}
