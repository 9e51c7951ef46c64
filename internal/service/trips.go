// Package service orchestrates trip mutations against the stores and the
// route provider.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/pcktbot/google-timeline/internal/metrics"
	"github.com/pcktbot/google-timeline/internal/routing"
	"github.com/pcktbot/google-timeline/internal/storage"
)

// TripService is the mutation engine for trips and their ordered stops.
// It decides which cached segments a mutation invalidates and drives the
// route provider to repopulate missing segments in position order.
//
// Single-writer-per-trip is assumed: there is no per-trip lock, but every
// read-then-write sequence runs inside one store transaction, so positions
// stay contiguous and no stale segment survives its broken adjacency even
// if a request dies halfway.
type TripService struct {
	store   storage.Store
	router  routing.Router
	log     *logrus.Logger
	profile string
}

// NewTripService creates a TripService. profile is the travel profile used
// when a request does not name one; empty means driving.
func NewTripService(store storage.Store, router routing.Router, log *logrus.Logger, profile string) *TripService {
	if profile == "" {
		profile = routing.ProfileDriving
	}
	return &TripService{store: store, router: router, log: log, profile: profile}
}

// CreateTrip creates an empty trip.
func (s *TripService) CreateTrip(ctx context.Context, name, description, color string) (*storage.Trip, error) {
	if strings.TrimSpace(name) == "" {
		return nil, storage.Invalidf("trip name is required")
	}
	t := &storage.Trip{Name: name, Description: description, Color: color}
	return s.store.Trips().CreateTrip(ctx, t)
}

// ListTrips returns all trips with their stop counts.
func (s *TripService) ListTrips(ctx context.Context) ([]storage.TripSummary, error) {
	return s.store.Trips().ListTrips(ctx)
}

// TripDetail is a trip with its ordered stops and the assembled route as a
// GeoJSON feature collection.
type TripDetail struct {
	Trip   storage.Trip
	Stops  []storage.Stop
	Routes FeatureCollection
}

// GetTripDetail returns the trip, its stops in position order, and a
// feature collection of stop points plus the cached segments that connect
// currently adjacent pairs.
func (s *TripService) GetTripDetail(ctx context.Context, tripID int32) (*TripDetail, error) {
	trip, err := s.store.Trips().GetTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if trip == nil {
		return nil, &storage.NotFoundError{Resource: "trip", ID: tripID}
	}

	stops, err := s.store.Stops().ListStops(ctx, tripID)
	if err != nil {
		return nil, err
	}
	segments, err := s.store.Segments().ListSegments(ctx, tripID)
	if err != nil {
		return nil, err
	}

	return &TripDetail{
		Trip:   *trip,
		Stops:  stops,
		Routes: assembleFeatureCollection(stops, segments),
	}, nil
}

// UpdateTrip applies the non-nil fields to the trip's metadata.
func (s *TripService) UpdateTrip(ctx context.Context, tripID int32, name, description, color *string) (*storage.Trip, error) {
	var out *storage.Trip
	err := s.store.WithinTx(ctx, func(tx storage.Store) error {
		trip, err := tx.Trips().GetTrip(ctx, tripID)
		if err != nil {
			return err
		}
		if trip == nil {
			return &storage.NotFoundError{Resource: "trip", ID: tripID}
		}
		if name != nil {
			if strings.TrimSpace(*name) == "" {
				return storage.Invalidf("trip name is required")
			}
			trip.Name = *name
		}
		if description != nil {
			trip.Description = *description
		}
		if color != nil {
			trip.Color = *color
		}
		if err := tx.Trips().UpdateTrip(ctx, trip); err != nil {
			return err
		}
		out = trip
		return nil
	})
	return out, err
}

// DeleteTrip removes the trip; its stops and segments cascade with it.
func (s *TripService) DeleteTrip(ctx context.Context, tripID int32) error {
	deleted, err := s.store.Trips().DeleteTrip(ctx, tripID)
	if err != nil {
		return err
	}
	if !deleted {
		return &storage.NotFoundError{Resource: "trip", ID: tripID}
	}
	return nil
}

// AddStop inserts a stop at the given position (nil appends). When the new
// stop lands strictly between two existing stops, the cached segment that
// directly joined those two former neighbors is no longer a valid adjacency
// and is deleted — segments touching the neighbors on their far sides stay.
func (s *TripService) AddStop(ctx context.Context, tripID int32, position *int32, src storage.StopSource) (*storage.Stop, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}

	var out *storage.Stop
	err := s.store.WithinTx(ctx, func(tx storage.Store) error {
		trip, err := tx.Trips().GetTrip(ctx, tripID)
		if err != nil {
			return err
		}
		if trip == nil {
			return &storage.NotFoundError{Resource: "trip", ID: tripID}
		}

		stops, err := tx.Stops().ListStops(ctx, tripID)
		if err != nil {
			return err
		}
		if position != nil && (*position < 0 || int(*position) > len(stops)) {
			return storage.Invalidf("position %d out of range 0..%d", *position, len(stops))
		}

		if src.Kind == storage.SourceTimelineEntry {
			entry, err := tx.Timeline().GetEntry(ctx, src.TimelineEntryID)
			if err != nil {
				return err
			}
			if entry == nil {
				return storage.Invalidf("timeline entry %d not found", src.TimelineEntryID)
			}
		}

		inserted, err := tx.Stops().InsertStop(ctx, tripID, position, src)
		if err != nil {
			return err
		}

		// Strictly between two stops: the bridge between the former
		// neighbors is stale. Exactly that one entry goes.
		if position != nil && *position > 0 && int(*position) < len(stops) {
			left := stops[*position-1]
			right := stops[*position]
			if err := tx.Segments().DeleteSegment(ctx, tripID, left.ID, right.ID); err != nil {
				return err
			}
			metrics.SegmentInvalidations.WithLabelValues("insert").Inc()
		}

		out = inserted
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"trip": tripID, "stop": out.ID, "position": out.Position}).Debug("stop added")
	return out, nil
}

// RemoveStop deletes the stop and compacts the trip's positions. The two
// segments touching the stop are removed by cascade; compaction cannot
// revive a stale cache hit because segments are keyed by stop ID, not
// position.
func (s *TripService) RemoveStop(ctx context.Context, tripID, stopID int32) error {
	err := s.store.WithinTx(ctx, func(tx storage.Store) error {
		stop, err := tx.Stops().GetStop(ctx, tripID, stopID)
		if err != nil {
			return err
		}
		if stop == nil {
			return &storage.NotFoundError{Resource: "stop", ID: stopID}
		}
		return tx.Stops().RemoveStop(ctx, tripID, stopID)
	})
	if err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{"trip": tripID, "stop": stopID}).Debug("stop removed")
	return nil
}

// ReorderStops reassigns positions to match orderedIDs, which must be a
// permutation of the trip's current stop IDs. Every cached segment of the
// trip is invalidated first: an arbitrary permutation can change every
// adjacency, and a minimal diff is not worth the complexity at this scale.
func (s *TripService) ReorderStops(ctx context.Context, tripID int32, orderedIDs []int32) error {
	err := s.store.WithinTx(ctx, func(tx storage.Store) error {
		trip, err := tx.Trips().GetTrip(ctx, tripID)
		if err != nil {
			return err
		}
		if trip == nil {
			return &storage.NotFoundError{Resource: "trip", ID: tripID}
		}

		stops, err := tx.Stops().ListStops(ctx, tripID)
		if err != nil {
			return err
		}
		if err := checkPermutation(stops, orderedIDs); err != nil {
			return err
		}

		if err := tx.Segments().DeleteTripSegments(ctx, tripID); err != nil {
			return err
		}
		metrics.SegmentInvalidations.WithLabelValues("reorder").Inc()

		return tx.Stops().ReorderStops(ctx, tripID, orderedIDs)
	})
	if err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{"trip": tripID, "stops": len(orderedIDs)}).Debug("stops reordered")
	return nil
}

// checkPermutation verifies that ids is exactly a permutation of the
// current stop IDs: same length, no duplicates, no foreign IDs.
func checkPermutation(stops []storage.Stop, ids []int32) error {
	if len(ids) != len(stops) {
		return storage.Invalidf("reorder list has %d ids, trip has %d stops", len(ids), len(stops))
	}
	current := make(map[int32]bool, len(stops))
	for _, st := range stops {
		current[st.ID] = true
	}
	seen := make(map[int32]bool, len(ids))
	for _, id := range ids {
		if !current[id] {
			return storage.Invalidf("stop %d does not belong to the trip", id)
		}
		if seen[id] {
			return storage.Invalidf("stop %d appears twice in reorder list", id)
		}
		seen[id] = true
	}
	return nil
}

// RouteGeneration summarizes one generate-routes run.
type RouteGeneration struct {
	// Fetched is the number of pairs fetched from the provider.
	Fetched int
	// Cached is the number of pairs served from the segment cache.
	Cached int
	// Segments holds the trip's segments in position order after the run.
	Segments []storage.Segment
}

// GenerateRoutes walks the trip's stops in position order and ensures a
// cached segment exists for every adjacent pair, calling the provider for
// pairs that are missing or, with force, for all of them. The first
// provider failure aborts the run with the failing pair identified;
// segments fetched earlier in the run stay cached, so a retry resumes
// where it left off.
//
// Provider calls never run inside an open store transaction; each upsert
// is its own short write after the response returns.
func (s *TripService) GenerateRoutes(ctx context.Context, tripID int32, profile string, force bool) (*RouteGeneration, error) {
	if profile == "" {
		profile = s.profile
	}
	if !routing.ValidProfile(profile) {
		return nil, storage.Invalidf("unknown travel profile %q", profile)
	}

	trip, err := s.store.Trips().GetTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if trip == nil {
		return nil, &storage.NotFoundError{Resource: "trip", ID: tripID}
	}

	stops, err := s.store.Stops().ListStops(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if len(stops) < 2 {
		return nil, storage.Invalidf("trip %d has %d stops, need at least 2 to route", tripID, len(stops))
	}

	gen := &RouteGeneration{}
	for i := 0; i+1 < len(stops); i++ {
		from, to := stops[i], stops[i+1]

		if !force {
			cached, err := s.store.Segments().GetSegment(ctx, tripID, from.ID, to.ID)
			if err != nil {
				return nil, err
			}
			if cached != nil {
				metrics.SegmentCacheHits.Inc()
				gen.Cached++
				gen.Segments = append(gen.Segments, *cached)
				continue
			}
			metrics.SegmentCacheMisses.Inc()
		}

		resp, err := s.router.Route(ctx, routing.Request{
			FromLat: from.Lat, FromLon: from.Lon,
			ToLat: to.Lat, ToLon: to.Lon,
			Profile: profile,
		})
		if err != nil {
			metrics.ProviderCalls.WithLabelValues("error").Inc()
			s.log.WithFields(logrus.Fields{
				"trip": tripID, "from_stop": from.ID, "to_stop": to.ID,
			}).WithError(err).Warn("route fetch failed")
			return nil, fmt.Errorf("generate routes: trip %d: pair %d->%d (positions %d->%d): %w",
				tripID, from.ID, to.ID, from.Position, to.Position, err)
		}
		metrics.ProviderCalls.WithLabelValues("ok").Inc()

		seg := &storage.Segment{
			TripID:     tripID,
			FromStopID: from.ID,
			ToStopID:   to.ID,
			Geometry:   resp.Geometry,
			DistanceM:  resp.DistanceM,
			DurationS:  resp.DurationS,
			Profile:    profile,
			FetchedAt:  time.Now(),
		}
		if err := s.store.Segments().UpsertSegment(ctx, seg); err != nil {
			return nil, err
		}
		gen.Fetched++
		gen.Segments = append(gen.Segments, *seg)
	}

	s.log.WithFields(logrus.Fields{
		"trip": tripID, "fetched": gen.Fetched, "cached": gen.Cached,
	}).Info("routes generated")
	return gen, nil
}
