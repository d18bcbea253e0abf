package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iho/clubmarket/internal/domain"
	"github.com/iho/clubmarket/internal/usecase"
)

// DB is the query surface shared by *pgxpool.Pool and pgx.Tx.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// conn returns the transaction's connection, or db when tx is nil.
func conn(db DB, tx usecase.Transaction) (DB, error) {
	if tx == nil {
		return db, nil
	}
	t, ok := tx.(*Tx)
	if !ok {
		return nil, fmt.Errorf("unsupported transaction type %T", tx)
	}
	return t.PgxTx(), nil
}

const acceptedOfferIndex = "offers_one_accepted_per_player"

// translateError maps driver errors onto domain errors. notFound is returned for pgx.ErrNoRows.
func translateError(err error, notFound error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) && notFound != nil {
		return notFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			if pgErr.ConstraintName == acceptedOfferIndex {
				return domain.ErrPlayerAlreadySold
			}
			return fmt.Errorf("%w: %s", domain.ErrDuplicate, pgErr.ConstraintName)
		case pgerrcode.CheckViolation:
			if pgErr.ConstraintName == "wallet_accounts_balance_non_negative" {
				return domain.ErrInsufficientFunds
			}
			return fmt.Errorf("%w: %s", domain.ErrValidation, pgErr.ConstraintName)
		case pgerrcode.ForeignKeyViolation:
			return fmt.Errorf("%w: %s references a missing row", domain.ErrValidation, pgErr.ConstraintName)
		}
	}

	return err
}

// expectOne reports ErrConcurrentUpdate when a compare-and-swap touched no row.
func expectOne(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return translateError(err, nil)
	}
	if tag.RowsAffected() != 1 {
		return domain.ErrConcurrentUpdate
	}
	return nil
}

// paging is a builder for trailing LIMIT/OFFSET clauses.
func paging(args []any, limit, offset int) (string, []any) {
	limit, offset = domain.ValidatePagination(limit, offset)
	args = append(args, limit, offset)
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args)), args
}

// where accumulates numbered conditions.
type where struct {
	clauses []string
	args    []any
}

func (w *where) add(format string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, fmt.Sprintf(format, len(w.args)))
}

// addRaw adds a condition whose placeholders are all the same next argument.
func (w *where) addRaw(fn func(n int) string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, fn(len(w.args)))
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	s := " WHERE " + w.clauses[0]
	for _, c := range w.clauses[1:] {
		s += " AND " + c
	}
	return s
}
