package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pcktbot/google-timeline/internal/geo"
)

// segKey identifies a cached segment within one trip.
type segKey struct {
	from int32
	to   int32
}

// memData is the mutable state behind a MemoryStore.
type memData struct {
	trips    map[int32]Trip
	stops    map[int32][]Stop // per trip, kept in position order
	segments map[int32]map[segKey]Segment
	timeline map[int32]TimelineEntry

	nextTripID  int32
	nextStopID  int32
	nextEntryID int32
}

// MemoryStore is an in-memory Store with the same ordering, cascade, and
// invalidation semantics as the PostgreSQL store. It backs unit tests and
// the database-free demo mode. WithinTx snapshots the state up front and
// restores it when fn fails, so a failed operation has no partial effect.
type MemoryStore struct {
	mu   sync.Mutex
	data *memData
	inTx bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: &memData{
		trips:       make(map[int32]Trip),
		stops:       make(map[int32][]Stop),
		segments:    make(map[int32]map[segKey]Segment),
		timeline:    make(map[int32]TimelineEntry),
		nextTripID:  1,
		nextStopID:  1,
		nextEntryID: 1,
	}}
}

func (s *MemoryStore) Trips() TripsRepository       { return s }
func (s *MemoryStore) Stops() StopsRepository       { return s }
func (s *MemoryStore) Segments() SegmentsRepository { return s }
func (s *MemoryStore) Timeline() TimelineRepository { return s }

// WithinTx runs fn with the store lock held, against the same state. On
// error the pre-transaction snapshot is restored.
func (s *MemoryStore) WithinTx(_ context.Context, fn func(Store) error) error {
	if s.inTx {
		return fn(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(&MemoryStore{data: s.data, inTx: true}); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

func (s *MemoryStore) lock() {
	if !s.inTx {
		s.mu.Lock()
	}
}

func (s *MemoryStore) unlock() {
	if !s.inTx {
		s.mu.Unlock()
	}
}

// SeedTimelineEntry inserts a timeline entry, assigning its ID. Timeline
// import is outside this service; tests and demo mode seed entries here.
func (s *MemoryStore) SeedTimelineEntry(label string, lat, lon float64, recordedAt time.Time) TimelineEntry {
	s.lock()
	defer s.unlock()

	e := TimelineEntry{ID: s.data.nextEntryID, Label: label, Lat: lat, Lon: lon, RecordedAt: recordedAt}
	s.data.nextEntryID++
	s.data.timeline[e.ID] = e
	return e
}

// --- TripsRepository ---

func (s *MemoryStore) CreateTrip(_ context.Context, t *Trip) (*Trip, error) {
	s.lock()
	defer s.unlock()

	now := time.Now()
	t.ID = s.data.nextTripID
	s.data.nextTripID++
	t.CreatedAt = now
	t.UpdatedAt = now
	s.data.trips[t.ID] = *t
	return t, nil
}

func (s *MemoryStore) ListTrips(_ context.Context) ([]TripSummary, error) {
	s.lock()
	defer s.unlock()

	out := make([]TripSummary, 0, len(s.data.trips))
	for id, t := range s.data.trips {
		out = append(out, TripSummary{Trip: t, StopCount: int32(len(s.data.stops[id]))})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) GetTrip(_ context.Context, id int32) (*Trip, error) {
	s.lock()
	defer s.unlock()

	t, ok := s.data.trips[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *MemoryStore) UpdateTrip(_ context.Context, t *Trip) error {
	s.lock()
	defer s.unlock()

	cur, ok := s.data.trips[t.ID]
	if !ok {
		return &NotFoundError{Resource: "trip", ID: t.ID}
	}
	cur.Name = t.Name
	cur.Description = t.Description
	cur.Color = t.Color
	cur.UpdatedAt = time.Now()
	s.data.trips[t.ID] = cur
	return nil
}

func (s *MemoryStore) DeleteTrip(_ context.Context, id int32) (bool, error) {
	s.lock()
	defer s.unlock()

	if _, ok := s.data.trips[id]; !ok {
		return false, nil
	}
	delete(s.data.trips, id)
	delete(s.data.stops, id)
	delete(s.data.segments, id)
	return true, nil
}

// --- StopsRepository ---

func (s *MemoryStore) ListStops(_ context.Context, tripID int32) ([]Stop, error) {
	s.lock()
	defer s.unlock()

	stops := s.data.stops[tripID]
	out := make([]Stop, len(stops))
	copy(out, stops)
	return out, nil
}

func (s *MemoryStore) GetStop(_ context.Context, tripID, stopID int32) (*Stop, error) {
	s.lock()
	defer s.unlock()

	for _, st := range s.data.stops[tripID] {
		if st.ID == stopID {
			cp := st
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) InsertStop(_ context.Context, tripID int32, position *int32, src StopSource) (*Stop, error) {
	s.lock()
	defer s.unlock()

	stops := s.data.stops[tripID]

	pos := int32(len(stops))
	if position != nil {
		pos = *position
		for i := range stops {
			if stops[i].Position >= pos {
				stops[i].Position++
			}
		}
	}

	stop := Stop{
		ID:        s.data.nextStopID,
		TripID:    tripID,
		Position:  pos,
		CreatedAt: time.Now(),
	}
	s.data.nextStopID++

	switch src.Kind {
	case SourceTimelineEntry:
		entry, ok := s.data.timeline[src.TimelineEntryID]
		if !ok {
			return nil, Invalidf("timeline entry %d not found", src.TimelineEntryID)
		}
		entryID := src.TimelineEntryID
		stop.TimelineEntryID = &entryID
		stop.Name = entry.Label
		stop.Lat = entry.Lat
		stop.Lon = entry.Lon
	case SourceWaypoint:
		stop.Name = src.Name
		stop.Lat = src.Lat
		stop.Lon = src.Lon
	}

	stops = append(stops, stop)
	sort.Slice(stops, func(i, j int) bool { return stops[i].Position < stops[j].Position })
	s.data.stops[tripID] = stops

	cp := stop
	return &cp, nil
}

func (s *MemoryStore) RemoveStop(_ context.Context, tripID, stopID int32) error {
	s.lock()
	defer s.unlock()

	stops := s.data.stops[tripID]
	idx := -1
	for i, st := range stops {
		if st.ID == stopID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return &NotFoundError{Resource: "stop", ID: stopID}
	}

	removedPos := stops[idx].Position
	stops = append(stops[:idx], stops[idx+1:]...)
	for i := range stops {
		if stops[i].Position > removedPos {
			stops[i].Position--
		}
	}
	s.data.stops[tripID] = stops

	// Cascade, mirroring the segments foreign keys.
	for key := range s.data.segments[tripID] {
		if key.from == stopID || key.to == stopID {
			delete(s.data.segments[tripID], key)
		}
	}
	return nil
}

func (s *MemoryStore) ReorderStops(_ context.Context, tripID int32, orderedIDs []int32) error {
	s.lock()
	defer s.unlock()

	stops := s.data.stops[tripID]
	byID := make(map[int32]int, len(stops))
	for i, st := range stops {
		byID[st.ID] = i
	}

	// Stage through the negative range, then flip, matching the SQL store.
	matched := 0
	for ord, id := range orderedIDs {
		if i, ok := byID[id]; ok {
			stops[i].Position = -int32(ord + 1)
			matched++
		}
	}
	if matched != len(orderedIDs) {
		return Invalidf("reorder list does not match trip %d stops", tripID)
	}
	for i := range stops {
		if stops[i].Position < 0 {
			stops[i].Position = -stops[i].Position - 1
		}
	}
	sort.Slice(stops, func(i, j int) bool { return stops[i].Position < stops[j].Position })
	s.data.stops[tripID] = stops
	return nil
}

// --- SegmentsRepository ---

func (s *MemoryStore) GetSegment(_ context.Context, tripID, fromStopID, toStopID int32) (*Segment, error) {
	s.lock()
	defer s.unlock()

	seg, ok := s.data.segments[tripID][segKey{from: fromStopID, to: toStopID}]
	if !ok {
		return nil, nil
	}
	cp := seg
	return &cp, nil
}

func (s *MemoryStore) ListSegments(_ context.Context, tripID int32) ([]Segment, error) {
	s.lock()
	defer s.unlock()

	var out []Segment
	for _, seg := range s.data.segments[tripID] {
		out = append(out, seg)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FromStopID == out[j].FromStopID {
			return out[i].ToStopID < out[j].ToStopID
		}
		return out[i].FromStopID < out[j].FromStopID
	})
	return out, nil
}

func (s *MemoryStore) UpsertSegment(_ context.Context, seg *Segment) error {
	s.lock()
	defer s.unlock()

	if s.data.segments[seg.TripID] == nil {
		s.data.segments[seg.TripID] = make(map[segKey]Segment)
	}
	cp := *seg
	cp.Geometry = append([][2]float64(nil), seg.Geometry...)
	s.data.segments[seg.TripID][segKey{from: seg.FromStopID, to: seg.ToStopID}] = cp
	return nil
}

func (s *MemoryStore) DeleteSegment(_ context.Context, tripID, fromStopID, toStopID int32) error {
	s.lock()
	defer s.unlock()

	delete(s.data.segments[tripID], segKey{from: fromStopID, to: toStopID})
	return nil
}

func (s *MemoryStore) DeleteTripSegments(_ context.Context, tripID int32) error {
	s.lock()
	defer s.unlock()

	delete(s.data.segments, tripID)
	return nil
}

// --- TimelineRepository ---

func (s *MemoryStore) GetEntry(_ context.Context, id int32) (*TimelineEntry, error) {
	s.lock()
	defer s.unlock()

	e, ok := s.data.timeline[id]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (s *MemoryStore) FindEntriesNear(_ context.Context, lat, lon, radiusMeters float64) ([]TimelineEntry, error) {
	s.lock()
	defer s.unlock()

	type candidate struct {
		entry TimelineEntry
		dist  float64
	}
	var candidates []candidate
	for _, e := range s.data.timeline {
		d := geo.HaversineMeters(lat, lon, e.Lat, e.Lon)
		if d <= radiusMeters {
			candidates = append(candidates, candidate{entry: e, dist: d})
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].dist < candidates[j].dist })

	out := make([]TimelineEntry, len(candidates))
	for i, c := range candidates {
		out[i] = c.entry
	}
	return out, nil
}

// clone deep-copies the store state for transaction rollback.
func (d *memData) clone() *memData {
	cp := &memData{
		trips:       make(map[int32]Trip, len(d.trips)),
		stops:       make(map[int32][]Stop, len(d.stops)),
		segments:    make(map[int32]map[segKey]Segment, len(d.segments)),
		timeline:    make(map[int32]TimelineEntry, len(d.timeline)),
		nextTripID:  d.nextTripID,
		nextStopID:  d.nextStopID,
		nextEntryID: d.nextEntryID,
	}
	for id, t := range d.trips {
		cp.trips[id] = t
	}
	for id, stops := range d.stops {
		ss := make([]Stop, len(stops))
		for i, st := range stops {
			if st.TimelineEntryID != nil {
				entryID := *st.TimelineEntryID
				st.TimelineEntryID = &entryID
			}
			ss[i] = st
		}
		cp.stops[id] = ss
	}
	for id, segs := range d.segments {
		m := make(map[segKey]Segment, len(segs))
		for k, seg := range segs {
			seg.Geometry = append([][2]float64(nil), seg.Geometry...)
			m[k] = seg
		}
		cp.segments[id] = m
	}
	for id, e := range d.timeline {
		cp.timeline[id] = e
	}
	return cp
}
