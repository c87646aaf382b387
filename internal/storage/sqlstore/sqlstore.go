// Package sqlstore implements storage.Store on database/sql for both sqlite and postgres.
// Queries are written with '?' placeholders and rebound for postgres.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/ageniuscoder/shopdesk/backend/internal/apperr"
	"github.com/ageniuscoder/shopdesk/backend/internal/storage"
)

type Dialect int

const (
	Question Dialect = iota // sqlite
	Dollar                  // postgres
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db      *sql.DB
	q       querier
	tx      *sql.Tx
	dialect Dialect
}

var _ storage.Store = (*Store)(nil)

func New(db *sql.DB, d Dialect) *Store {
	return &Store{db: db, q: db, dialect: d}
}

func (s *Store) InTx(ctx context.Context, fn func(tx storage.Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.ServerFault, "begin transaction", err)
	}
	defer tx.Rollback() // no-op after commit

	if err := fn(&Store{db: s.db, q: tx, tx: tx, dialect: s.dialect}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperr.Wrap(apperr.ServerFault, "commit transaction", err)
	}
	return nil
}

func (s *Store) rebind(query string) string {
	if s.dialect != Dollar {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.q.ExecContext(ctx, s.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.q.QueryContext(ctx, s.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.q.QueryRowContext(ctx, s.rebind(query), args...)
}

// execOne runs an UPDATE/DELETE and reports NotFound when no row matched.
func (s *Store) execOne(ctx context.Context, what, query string, args ...any) error {
	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return fault(what, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fault(what, err)
	}
	if n == 0 {
		return apperr.Missing(what)
	}
	return nil
}

func fault(what string, err error) error {
	return apperr.Wrap(apperr.ServerFault, what, err)
}

func notFoundOr(what string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.Missing(what)
	}
	return fault(what, err)
}

// Timestamps are stored as unix milliseconds; NULL reads back as the zero time.
func fromMs(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.UnixMilli(v.Int64).UTC()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
