package pgx

import (
	"context"
	"time"

	pgxv5 "github.com/jackc/pgx/v5"
)

type pgxIConn interface {
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
}

// Storage implements store.EntityStorage, store.ScopeLookup and
// store.AccessChecker on top of PostgreSQL.
type Storage struct {
	conn         pgxIConn
	queryTimeout time.Duration
}

type StorageOption func(*Storage)

// WithQueryTimeout bounds every query. Zero disables the bound.
func WithQueryTimeout(d time.Duration) StorageOption {
	return func(s *Storage) {
		s.queryTimeout = d
	}
}

// NewStorageWithConnection creates a Storage on an existing connection or
// pool.
func NewStorageWithConnection(conn pgxIConn, opts ...StorageOption) *Storage {
	s := &Storage{conn: conn}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}

func (s *Storage) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

type scanner interface {
	Scan(dest ...any) error
}

func collect[T any](rows pgxv5.Rows, scan func(scanner) (T, error)) ([]T, error) {
	defer rows.Close()

	out := make([]T, 0)
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
