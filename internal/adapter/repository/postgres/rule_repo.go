package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/iho/clubmarket/internal/domain"
	"github.com/iho/clubmarket/internal/usecase"
)

const ruleColumns = `id, name, trigger, delta, active, created_at`

// RuleRepository implements usecase.RuleRepository.
type RuleRepository struct {
	db DB
}

// NewRuleRepository creates a new RuleRepository.
func NewRuleRepository(db DB) *RuleRepository {
	return &RuleRepository{db: db}
}

func scanRule(row pgx.Row) (*domain.Rule, error) {
	var rule domain.Rule
	if err := row.Scan(&rule.ID, &rule.Name, &rule.Trigger, &rule.Delta, &rule.Active, &rule.CreatedAt); err != nil {
		return nil, err
	}
	return &rule, nil
}

func collectRules(rows pgx.Rows, err error) ([]*domain.Rule, error) {
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Rule, error) {
		return scanRule(row)
	})
}

// Create inserts a rule.
func (r *RuleRepository) Create(ctx context.Context, tx usecase.Transaction, rule *domain.Rule) error {
	q, err := conn(r.db, tx)
	if err != nil {
		return err
	}

	_, err = q.Exec(ctx, `INSERT INTO rules (`+ruleColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		rule.ID, rule.Name, rule.Trigger, rule.Delta, rule.Active, rule.CreatedAt)
	return translateError(err, nil)
}

// GetByID retrieves a rule.
func (r *RuleRepository) GetByID(ctx context.Context, id string) (*domain.Rule, error) {
	rule, err := scanRule(r.db.QueryRow(ctx, `SELECT `+ruleColumns+` FROM rules WHERE id = $1`, id))
	if err != nil {
		return nil, translateError(err, domain.ErrRuleNotFound)
	}
	return rule, nil
}

// List returns all rules in creation order.
func (r *RuleRepository) List(ctx context.Context) ([]*domain.Rule, error) {
	return collectRules(r.db.Query(ctx, `SELECT `+ruleColumns+` FROM rules ORDER BY created_at, id`))
}

// ListActiveByTrigger returns the active rules for trigger, locking them so a concurrent
// deactivation waits for the firing to finish.
func (r *RuleRepository) ListActiveByTrigger(ctx context.Context, tx usecase.Transaction, trigger string) ([]*domain.Rule, error) {
	q, err := conn(r.db, tx)
	if err != nil {
		return nil, err
	}

	return collectRules(q.Query(ctx,
		`SELECT `+ruleColumns+` FROM rules WHERE trigger = $1 AND active ORDER BY created_at, id FOR SHARE`,
		trigger))
}

// SetActive switches a rule on or off.
func (r *RuleRepository) SetActive(ctx context.Context, tx usecase.Transaction, id string, active bool) error {
	q, err := conn(r.db, tx)
	if err != nil {
		return err
	}

	tag, err := q.Exec(ctx, `UPDATE rules SET active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return translateError(err, nil)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRuleNotFound
	}
	return nil
}
