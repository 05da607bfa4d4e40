package services

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrProfileNotFound is returned when a user id resolves to no stored
// profile. Ranking aborts on it; the core never fabricates a profile.
var ErrProfileNotFound = errors.New("user profile not found")

// DatabasePool is the subset of pgxpool.Pool the services depend on,
// narrow enough to be satisfied by pgxmock in tests.
type DatabasePool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}
