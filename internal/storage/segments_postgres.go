package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// pgSegmentsRepository is the pgx-backed implementation of
// SegmentsRepository. Geometry is stored as a JSONB array of (lon, lat)
// pairs; staleness is enforced purely by row deletion, so a present row is
// always a valid adjacency.
type pgSegmentsRepository struct {
	db querier
}

func (r *pgSegmentsRepository) GetSegment(ctx context.Context, tripID, fromStopID, toStopID int32) (*Segment, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	seg := &Segment{}
	var geomRaw []byte
	err := r.db.QueryRow(ctx, `
		SELECT trip_id, from_stop_id, to_stop_id, geometry,
		       distance_m, duration_s, profile, fetched_at
		FROM segments
		WHERE trip_id = $1 AND from_stop_id = $2 AND to_stop_id = $3`,
		tripID, fromStopID, toStopID,
	).Scan(
		&seg.TripID, &seg.FromStopID, &seg.ToStopID, &geomRaw,
		&seg.DistanceM, &seg.DurationS, &seg.Profile, &seg.FetchedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil // cache miss
	}
	if err != nil {
		return nil, fmt.Errorf("storage: GetSegment: %w", err)
	}

	if err := json.Unmarshal(geomRaw, &seg.Geometry); err != nil {
		return nil, fmt.Errorf("storage: GetSegment: parse geometry: %w", err)
	}
	return seg, nil
}

func (r *pgSegmentsRepository) ListSegments(ctx context.Context, tripID int32) ([]Segment, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT trip_id, from_stop_id, to_stop_id, geometry,
		       distance_m, duration_s, profile, fetched_at
		FROM segments
		WHERE trip_id = $1`,
		tripID)
	if err != nil {
		return nil, fmt.Errorf("storage: ListSegments: %w", err)
	}
	defer rows.Close()

	var out []Segment
	for rows.Next() {
		var seg Segment
		var geomRaw []byte
		if err := rows.Scan(
			&seg.TripID, &seg.FromStopID, &seg.ToStopID, &geomRaw,
			&seg.DistanceM, &seg.DurationS, &seg.Profile, &seg.FetchedAt,
		); err != nil {
			return nil, fmt.Errorf("storage: ListSegments: scan: %w", err)
		}
		if err := json.Unmarshal(geomRaw, &seg.Geometry); err != nil {
			return nil, fmt.Errorf("storage: ListSegments: parse geometry: %w", err)
		}
		out = append(out, seg)
	}
	return out, rows.Err()
}

func (r *pgSegmentsRepository) UpsertSegment(ctx context.Context, seg *Segment) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	geomRaw, err := json.Marshal(seg.Geometry)
	if err != nil {
		return fmt.Errorf("storage: UpsertSegment: marshal geometry: %w", err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO segments
			(trip_id, from_stop_id, to_stop_id, geometry, distance_m, duration_s, profile, fetched_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (trip_id, from_stop_id, to_stop_id)
		DO UPDATE SET
			geometry   = EXCLUDED.geometry,
			distance_m = EXCLUDED.distance_m,
			duration_s = EXCLUDED.duration_s,
			profile    = EXCLUDED.profile,
			fetched_at = EXCLUDED.fetched_at`,
		seg.TripID, seg.FromStopID, seg.ToStopID, geomRaw,
		seg.DistanceM, seg.DurationS, seg.Profile, seg.FetchedAt)
	if err != nil {
		return fmt.Errorf("storage: UpsertSegment: %w", err)
	}
	return nil
}

func (r *pgSegmentsRepository) DeleteSegment(ctx context.Context, tripID, fromStopID, toStopID int32) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		DELETE FROM segments
		WHERE trip_id = $1 AND from_stop_id = $2 AND to_stop_id = $3`,
		tripID, fromStopID, toStopID)
	if err != nil {
		return fmt.Errorf("storage: DeleteSegment: %w", err)
	}
	return nil
}

func (r *pgSegmentsRepository) DeleteTripSegments(ctx context.Context, tripID int32) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.Exec(ctx, `DELETE FROM segments WHERE trip_id = $1`, tripID)
	if err != nil {
		return fmt.Errorf("storage: DeleteTripSegments: %w", err)
	}
	return nil
}
