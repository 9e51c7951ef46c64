package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// queryTimeout is applied to every database query.
const queryTimeout = 5 * time.Second

// querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx, so the
// same repository code runs inside and outside transactions.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pgStore is the PostgreSQL-backed Store. The zero pool field marks a store
// that is already scoped to a transaction.
type pgStore struct {
	db   querier
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Store backed by the given connection pool.
func NewPostgresStore(pool *pgxpool.Pool) Store {
	return &pgStore{db: pool, pool: pool}
}

func (s *pgStore) Trips() TripsRepository       { return &pgTripsRepository{db: s.db} }
func (s *pgStore) Stops() StopsRepository       { return &pgStopsRepository{db: s.db} }
func (s *pgStore) Segments() SegmentsRepository { return &pgSegmentsRepository{db: s.db} }
func (s *pgStore) Timeline() TimelineRepository { return &pgTimelineRepository{db: s.db} }

// WithinTx runs fn against a transaction-scoped Store. The per-trip position
// uniqueness constraint is deferred to commit, so multi-row position shifts
// and reorder staging cannot collide on intermediate states. Nested calls
// reuse the enclosing transaction.
func (s *pgStore) WithinTx(ctx context.Context, fn func(Store) error) error {
	if s.pool == nil {
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SET CONSTRAINTS stops_trip_position_uniq DEFERRED`); err != nil {
		return fmt.Errorf("storage: defer position constraint: %w", err)
	}

	if err := fn(&pgStore{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage: commit tx: %w", err)
	}
	return nil
}
