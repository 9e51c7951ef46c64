package service

import "github.com/pcktbot/google-timeline/internal/storage"

// FeatureCollection is a GeoJSON feature collection, consumed directly by
// the map client.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature is a single GeoJSON feature.
type Feature struct {
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// Geometry holds a GeoJSON Point or LineString. Coordinates are (lon, lat),
// per the GeoJSON spec.
type Geometry struct {
	Type        string `json:"type"`
	Coordinates any    `json:"coordinates"`
}

// assembleFeatureCollection builds the trip's renderable route: one Point
// feature per stop in position order, then one LineString feature per
// adjacent pair that has a cached segment. The cache only ever holds valid
// adjacencies, so membership is decided by walking the current stop order,
// not by trusting the segment list alone.
func assembleFeatureCollection(stops []storage.Stop, segments []storage.Segment) FeatureCollection {
	type pair struct{ from, to int32 }
	byPair := make(map[pair]storage.Segment, len(segments))
	for _, seg := range segments {
		byPair[pair{from: seg.FromStopID, to: seg.ToStopID}] = seg
	}

	fc := FeatureCollection{Type: "FeatureCollection", Features: []Feature{}}

	for _, st := range stops {
		props := map[string]any{
			"stop_id":  st.ID,
			"position": st.Position,
			"name":     st.Name,
		}
		if st.TimelineEntryID != nil {
			props["timeline_entry_id"] = *st.TimelineEntryID
		}
		fc.Features = append(fc.Features, Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type:        "Point",
				Coordinates: [2]float64{st.Lon, st.Lat},
			},
			Properties: props,
		})
	}

	for i := 0; i+1 < len(stops); i++ {
		seg, ok := byPair[pair{from: stops[i].ID, to: stops[i+1].ID}]
		if !ok {
			continue
		}
		fc.Features = append(fc.Features, Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type:        "LineString",
				Coordinates: seg.Geometry,
			},
			Properties: map[string]any{
				"from_stop_id": seg.FromStopID,
				"to_stop_id":   seg.ToStopID,
				"distance_m":   seg.DistanceM,
				"duration_s":   seg.DurationS,
				"profile":      seg.Profile,
			},
		})
	}

	return fc
}
