package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// pgTripsRepository is the pgx-backed implementation of TripsRepository.
type pgTripsRepository struct {
	db querier
}

func (r *pgTripsRepository) CreateTrip(ctx context.Context, t *Trip) (*Trip, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	err := r.db.QueryRow(ctx, `
		INSERT INTO trips (name, description, color)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''))
		RETURNING id, created_at, updated_at`,
		t.Name, t.Description, t.Color,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("storage: CreateTrip: %w", err)
	}
	return t, nil
}

func (r *pgTripsRepository) ListTrips(ctx context.Context) ([]TripSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT t.id, t.name, COALESCE(t.description, ''), COALESCE(t.color, ''),
		       t.created_at, t.updated_at, COUNT(s.id)
		FROM trips t
		LEFT JOIN stops s ON s.trip_id = t.id
		GROUP BY t.id
		ORDER BY t.created_at DESC, t.id DESC`)
	if err != nil {
		return nil, fmt.Errorf("storage: ListTrips: %w", err)
	}
	defer rows.Close()

	var out []TripSummary
	for rows.Next() {
		var ts TripSummary
		if err := rows.Scan(
			&ts.ID, &ts.Name, &ts.Description, &ts.Color,
			&ts.CreatedAt, &ts.UpdatedAt, &ts.StopCount,
		); err != nil {
			return nil, fmt.Errorf("storage: ListTrips: scan: %w", err)
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

func (r *pgTripsRepository) GetTrip(ctx context.Context, id int32) (*Trip, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	t := &Trip{}
	err := r.db.QueryRow(ctx, `
		SELECT id, name, COALESCE(description, ''), COALESCE(color, ''),
		       created_at, updated_at
		FROM trips
		WHERE id = $1`,
		id,
	).Scan(&t.ID, &t.Name, &t.Description, &t.Color, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: GetTrip: %w", err)
	}
	return t, nil
}

func (r *pgTripsRepository) UpdateTrip(ctx context.Context, t *Trip) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		UPDATE trips
		SET name = $2, description = NULLIF($3, ''), color = NULLIF($4, ''),
		    updated_at = NOW()
		WHERE id = $1`,
		t.ID, t.Name, t.Description, t.Color)
	if err != nil {
		return fmt.Errorf("storage: UpdateTrip: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &NotFoundError{Resource: "trip", ID: t.ID}
	}
	return nil
}

func (r *pgTripsRepository) DeleteTrip(ctx context.Context, id int32) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	// Stops and segments go with the trip via ON DELETE CASCADE.
	tag, err := r.db.Exec(ctx, `DELETE FROM trips WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("storage: DeleteTrip: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
