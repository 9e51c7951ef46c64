package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// pgStopsRepository is the pgx-backed implementation of StopsRepository.
//
// Position mutations here assume the surrounding WithinTx has deferred the
// stops_trip_position_uniq constraint: shifting and compaction run as single
// set-based UPDATEs whose intermediate states may collide, and uniqueness is
// checked once at commit.
type pgStopsRepository struct {
	db querier
}

// stopColumns resolves a stop's display name and coordinate from whichever
// source it uses: the joined timeline entry or the inline waypoint fields.
const stopColumns = `
	s.id, s.trip_id, s.position, s.timeline_entry_id,
	COALESCE(t.label, s.name, '')  AS name,
	COALESCE(t.lat, s.lat)         AS lat,
	COALESCE(t.lon, s.lon)         AS lon,
	s.created_at`

func (r *pgStopsRepository) ListStops(ctx context.Context, tripID int32) ([]Stop, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT `+stopColumns+`
		FROM stops s
		LEFT JOIN timeline_entries t ON t.id = s.timeline_entry_id
		WHERE s.trip_id = $1
		ORDER BY s.position`,
		tripID)
	if err != nil {
		return nil, fmt.Errorf("storage: ListStops: %w", err)
	}
	defer rows.Close()

	var out []Stop
	for rows.Next() {
		var s Stop
		if err := rows.Scan(
			&s.ID, &s.TripID, &s.Position, &s.TimelineEntryID,
			&s.Name, &s.Lat, &s.Lon, &s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("storage: ListStops: scan: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *pgStopsRepository) GetStop(ctx context.Context, tripID, stopID int32) (*Stop, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	s := &Stop{}
	err := r.db.QueryRow(ctx, `
		SELECT `+stopColumns+`
		FROM stops s
		LEFT JOIN timeline_entries t ON t.id = s.timeline_entry_id
		WHERE s.trip_id = $1 AND s.id = $2`,
		tripID, stopID,
	).Scan(
		&s.ID, &s.TripID, &s.Position, &s.TimelineEntryID,
		&s.Name, &s.Lat, &s.Lon, &s.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: GetStop: %w", err)
	}
	return s, nil
}

func (r *pgStopsRepository) InsertStop(ctx context.Context, tripID int32, position *int32, src StopSource) (*Stop, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var pos int32
	if position == nil {
		// Append: max(position)+1, or 0 for an empty trip.
		err := r.db.QueryRow(ctx, `
			SELECT COALESCE(MAX(position) + 1, 0) FROM stops WHERE trip_id = $1`,
			tripID,
		).Scan(&pos)
		if err != nil {
			return nil, fmt.Errorf("storage: InsertStop: next position: %w", err)
		}
	} else {
		pos = *position
		// Make room: every stop at or after the target moves up by one.
		_, err := r.db.Exec(ctx, `
			UPDATE stops SET position = position + 1
			WHERE trip_id = $1 AND position >= $2`,
			tripID, pos)
		if err != nil {
			return nil, fmt.Errorf("storage: InsertStop: shift positions: %w", err)
		}
	}

	var entryID *int32
	var lat, lon *float64
	var name *string
	switch src.Kind {
	case SourceTimelineEntry:
		entryID = &src.TimelineEntryID
	case SourceWaypoint:
		lat, lon = &src.Lat, &src.Lon
		if src.Name != "" {
			name = &src.Name
		}
	}

	var id int32
	err := r.db.QueryRow(ctx, `
		INSERT INTO stops (trip_id, position, timeline_entry_id, lat, lon, name)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		tripID, pos, entryID, lat, lon, name,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("storage: InsertStop: %w", err)
	}

	stop, err := r.GetStop(ctx, tripID, id)
	if err != nil {
		return nil, err
	}
	if stop == nil {
		return nil, fmt.Errorf("storage: InsertStop: inserted stop %d not readable", id)
	}
	return stop, nil
}

func (r *pgStopsRepository) RemoveStop(ctx context.Context, tripID, stopID int32) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	// Segments referencing the stop go with it via ON DELETE CASCADE.
	var removedPos int32
	err := r.db.QueryRow(ctx, `
		DELETE FROM stops WHERE trip_id = $1 AND id = $2 RETURNING position`,
		tripID, stopID,
	).Scan(&removedPos)
	if errors.Is(err, pgx.ErrNoRows) {
		return &NotFoundError{Resource: "stop", ID: stopID}
	}
	if err != nil {
		return fmt.Errorf("storage: RemoveStop: %w", err)
	}

	// Close the gap so positions stay contiguous from zero.
	_, err = r.db.Exec(ctx, `
		UPDATE stops SET position = position - 1
		WHERE trip_id = $1 AND position > $2`,
		tripID, removedPos)
	if err != nil {
		return fmt.Errorf("storage: RemoveStop: compact positions: %w", err)
	}
	return nil
}

func (r *pgStopsRepository) ReorderStops(ctx context.Context, tripID int32, orderedIDs []int32) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	// Stage through the negative range first: list order i maps to -(i+1).
	// The staged values are disjoint from every live position, so the
	// uniqueness constraint holds at each intermediate step even outside a
	// deferred-constraint transaction.
	tag, err := r.db.Exec(ctx, `
		UPDATE stops
		SET position = -u.ord
		FROM unnest($2::int4[]) WITH ORDINALITY AS u(id, ord)
		WHERE stops.id = u.id AND stops.trip_id = $1`,
		tripID, orderedIDs)
	if err != nil {
		return fmt.Errorf("storage: ReorderStops: stage positions: %w", err)
	}
	if int(tag.RowsAffected()) != len(orderedIDs) {
		return Invalidf("reorder list does not match trip %d stops", tripID)
	}

	// Second pass flips the staged values to final zero-based positions:
	// -(i+1) becomes i.
	_, err = r.db.Exec(ctx, `
		UPDATE stops SET position = -position - 1
		WHERE trip_id = $1 AND position < 0`,
		tripID)
	if err != nil {
		return fmt.Errorf("storage: ReorderStops: finalize positions: %w", err)
	}
	return nil
}
