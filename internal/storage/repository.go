// Package storage provides the trip, stop, and segment stores together with
// their PostgreSQL and in-memory implementations.
package storage

import (
	"context"
	"time"
)

// Trip is a named, ordered collection of stops with a derived set of cached
// route segments. Deleting a trip cascades to its stops and segments.
type Trip struct {
	ID          int32
	Name        string
	Description string
	Color       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TripSummary is a trip with its stop count, as shown in trip listings.
type TripSummary struct {
	Trip
	StopCount int32
}

// TimelineEntry is a record from the imported location history. The import
// pipeline that fills the table lives outside this service; entries are read
// here only to resolve stop references and to offer nearby suggestions.
type TimelineEntry struct {
	ID         int32
	Label      string
	Lat        float64
	Lon        float64
	RecordedAt time.Time
}

// SourceKind discriminates the two location sources a stop can have.
type SourceKind int

const (
	// SourceTimelineEntry marks a stop that references a timeline entry.
	SourceTimelineEntry SourceKind = iota + 1
	// SourceWaypoint marks a stop that owns an inline coordinate.
	SourceWaypoint
)

// StopSource is the location source for a new stop: a reference to a
// timeline entry, or an inline waypoint coordinate with an optional name.
// The Kind tag makes the two cases mutually exclusive by construction;
// Validate rejects a zero or inconsistent value before it reaches a store.
type StopSource struct {
	Kind SourceKind

	// TimelineEntryID is set when Kind is SourceTimelineEntry.
	TimelineEntryID int32

	// Lat, Lon and Name are set when Kind is SourceWaypoint.
	Lat  float64
	Lon  float64
	Name string
}

// TimelineSource returns a StopSource referencing a timeline entry.
func TimelineSource(entryID int32) StopSource {
	return StopSource{Kind: SourceTimelineEntry, TimelineEntryID: entryID}
}

// WaypointSource returns a StopSource owning an inline coordinate.
func WaypointSource(lat, lon float64, name string) StopSource {
	return StopSource{Kind: SourceWaypoint, Lat: lat, Lon: lon, Name: name}
}

// Validate checks that exactly one location source is supplied and that its
// fields are usable.
func (s StopSource) Validate() error {
	switch s.Kind {
	case SourceTimelineEntry:
		if s.TimelineEntryID <= 0 {
			return &ValidationError{Message: "timeline entry id must be positive"}
		}
		if s.Lat != 0 || s.Lon != 0 || s.Name != "" {
			return &ValidationError{Message: "timeline-entry stop must not carry waypoint fields"}
		}
	case SourceWaypoint:
		if s.Lat < -90 || s.Lat > 90 {
			return &ValidationError{Message: "waypoint latitude out of range"}
		}
		if s.Lon < -180 || s.Lon > 180 {
			return &ValidationError{Message: "waypoint longitude out of range"}
		}
		if s.TimelineEntryID != 0 {
			return &ValidationError{Message: "waypoint stop must not reference a timeline entry"}
		}
	default:
		return &ValidationError{Message: "a location source is required: timeline entry or waypoint"}
	}
	return nil
}

// Stop is a position-ordered member of a trip. Positions within a trip are
// unique and contiguous from zero. Lat, Lon and Name are always resolved,
// regardless of which source the stop uses; TimelineEntryID is nil for
// waypoint stops.
type Stop struct {
	ID              int32
	TripID          int32
	Position        int32
	TimelineEntryID *int32
	Name            string
	Lat             float64
	Lon             float64
	CreatedAt       time.Time
}

// Segment is a cached route between two stops that were positionally
// adjacent at fetch time. Segments are keyed by stop IDs, never by
// positions; an entry whose endpoints are no longer adjacent is deleted,
// not flagged, so the cache only ever holds valid adjacencies.
type Segment struct {
	TripID     int32
	FromStopID int32
	ToStopID   int32
	// Geometry is the road-following path as ordered (lon, lat) pairs.
	Geometry  [][2]float64
	DistanceM int32
	DurationS int32
	Profile   string
	FetchedAt time.Time
}

// TripsRepository defines persistence operations on trips.
// Read methods return (nil, nil) when the trip does not exist.
type TripsRepository interface {
	CreateTrip(ctx context.Context, t *Trip) (*Trip, error)
	ListTrips(ctx context.Context) ([]TripSummary, error)
	GetTrip(ctx context.Context, id int32) (*Trip, error)
	UpdateTrip(ctx context.Context, t *Trip) error
	// DeleteTrip removes the trip and, by cascade, its stops and segments.
	// Returns false when no trip with the given id exists.
	DeleteTrip(ctx context.Context, id int32) (bool, error)
}

// StopsRepository defines persistence operations on a trip's ordered stops.
// After every mutation the positions of a trip's stops are exactly
// {0, 1, ..., count-1}.
type StopsRepository interface {
	// ListStops returns the trip's stops in position order with resolved
	// coordinates and names.
	ListStops(ctx context.Context, tripID int32) ([]Stop, error)

	// GetStop returns the stop, or (nil, nil) when it does not exist in the
	// given trip.
	GetStop(ctx context.Context, tripID, stopID int32) (*Stop, error)

	// InsertStop writes a new stop. When position is non-nil every existing
	// stop at that position or later is shifted up by one first; when nil
	// the stop is appended. Callers validate the source and position range.
	InsertStop(ctx context.Context, tripID int32, position *int32, src StopSource) (*Stop, error)

	// RemoveStop deletes the stop and compacts the positions above it.
	// Cached segments touching the stop are removed with it.
	RemoveStop(ctx context.Context, tripID, stopID int32) error

	// ReorderStops reassigns positions to match the order of orderedIDs,
	// which callers have already verified to be a permutation of the trip's
	// stop IDs. Positions are staged through a disjoint range so the
	// per-trip uniqueness constraint holds at every intermediate step.
	ReorderStops(ctx context.Context, tripID int32, orderedIDs []int32) error
}

// SegmentsRepository defines the segment cache operations.
type SegmentsRepository interface {
	// GetSegment returns the cached segment for the exact (from, to) pair,
	// or (nil, nil) on a miss.
	GetSegment(ctx context.Context, tripID, fromStopID, toStopID int32) (*Segment, error)

	// ListSegments returns every cached segment of the trip.
	ListSegments(ctx context.Context, tripID int32) ([]Segment, error)

	// UpsertSegment inserts or replaces the entry keyed by (trip, from, to).
	UpsertSegment(ctx context.Context, seg *Segment) error

	// DeleteSegment removes the one entry for the exact pair, if present.
	DeleteSegment(ctx context.Context, tripID, fromStopID, toStopID int32) error

	// DeleteTripSegments removes every segment of the trip. Used on
	// reorder, where an arbitrary permutation can change every adjacency.
	DeleteTripSegments(ctx context.Context, tripID int32) error
}

// TimelineRepository defines read access to imported timeline entries.
type TimelineRepository interface {
	// GetEntry returns the entry, or (nil, nil) when it does not exist.
	GetEntry(ctx context.Context, id int32) (*TimelineEntry, error)

	// FindEntriesNear returns entries within radiusMeters of (lat, lon),
	// ordered by distance ascending.
	FindEntriesNear(ctx context.Context, lat, lon, radiusMeters float64) ([]TimelineEntry, error)
}

// Store bundles the repositories with a transaction scope. WithinTx runs fn
// against a Store whose operations all execute in one transaction; the
// per-trip position uniqueness check is deferred until commit so multi-row
// position updates cannot collide mid-operation.
type Store interface {
	Trips() TripsRepository
	Stops() StopsRepository
	Segments() SegmentsRepository
	Timeline() TimelineRepository

	WithinTx(ctx context.Context, fn func(Store) error) error
}
