package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	"github.com/pcktbot/google-timeline/internal/geo"
)

// pgTimelineRepository is the pgx-backed implementation of
// TimelineRepository. Radius searches use the geohash column with prefix
// matching, then filter candidates by exact great-circle distance.
type pgTimelineRepository struct {
	db querier
}

func (r *pgTimelineRepository) GetEntry(ctx context.Context, id int32) (*TimelineEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	e := &TimelineEntry{}
	err := r.db.QueryRow(ctx, `
		SELECT id, label, lat, lon, recorded_at
		FROM timeline_entries
		WHERE id = $1`,
		id,
	).Scan(&e.ID, &e.Label, &e.Lat, &e.Lon, &e.RecordedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: GetEntry: %w", err)
	}
	return e, nil
}

func (r *pgTimelineRepository) FindEntriesNear(ctx context.Context, lat, lon, radiusMeters float64) ([]TimelineEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	prefixes := geo.PrefixesForRadius(lat, lon, radiusMeters)
	patterns := make([]string, len(prefixes))
	for i, p := range prefixes {
		patterns[i] = p + "%"
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, label, lat, lon, recorded_at
		FROM timeline_entries
		WHERE geohash LIKE ANY($1::text[])`,
		patterns)
	if err != nil {
		return nil, fmt.Errorf("storage: FindEntriesNear: %w", err)
	}
	defer rows.Close()

	type candidate struct {
		entry TimelineEntry
		dist  float64
	}
	var candidates []candidate
	for rows.Next() {
		var e TimelineEntry
		if err := rows.Scan(&e.ID, &e.Label, &e.Lat, &e.Lon, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("storage: FindEntriesNear: scan: %w", err)
		}
		d := geo.HaversineMeters(lat, lon, e.Lat, e.Lon)
		if d <= radiusMeters {
			candidates = append(candidates, candidate{entry: e, dist: d})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: FindEntriesNear: %w", err)
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })

	out := make([]TimelineEntry, len(candidates))
	for i, c := range candidates {
		out[i] = c.entry
	}
	return out, nil
}
