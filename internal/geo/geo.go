// Package geo provides small geospatial helpers shared by storage and routing.
package geo

import (
	"math"

	"github.com/mmcloughlin/geohash"
)

// geohash cell heights (latitude extent, meters) per precision level.
// Longitude extent is at most twice the latitude extent, so picking the
// precision whose cell height covers the radius keeps the prefix search
// superset-correct at any latitude.
var cellHeightMeters = map[uint]float64{
	1: 5_000_000,
	2: 1_250_000,
	3: 156_000,
	4: 39_100,
	5: 4_890,
	6: 1_220,
	7: 153,
	8: 38.2,
}

// HaversineMeters computes the great-circle distance in meters between two
// WGS84 points.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusM = 6_371_000.0
	const deg2rad = math.Pi / 180.0

	dLat := (lat2 - lat1) * deg2rad
	dLon := (lon2 - lon1) * deg2rad
	lat1r := lat1 * deg2rad
	lat2r := lat2 * deg2rad

	sinDLat := math.Sin(dLat / 2)
	sinDLon := math.Sin(dLon / 2)
	a := sinDLat*sinDLat + math.Cos(lat1r)*math.Cos(lat2r)*sinDLon*sinDLon
	c := 2 * math.Asin(math.Sqrt(a))
	return earthRadiusM * c
}

// Encode returns the full-precision geohash for a point. Stored alongside
// coordinates so radius searches can use prefix matching instead of PostGIS.
func Encode(lat, lon float64) string {
	return geohash.Encode(lat, lon)
}

// PrefixesForRadius returns the geohash prefixes that together cover a circle
// of radiusMeters around (lat, lon): the cell containing the point plus its
// eight neighbors, at the coarsest precision whose cells are at least as tall
// as the radius. Callers must still filter candidates by exact distance.
func PrefixesForRadius(lat, lon, radiusMeters float64) []string {
	precision := uint(1)
	for p := uint(8); p >= 1; p-- {
		if cellHeightMeters[p] >= radiusMeters {
			precision = p
			break
		}
	}

	center := geohash.EncodeWithPrecision(lat, lon, precision)
	prefixes := append([]string{center}, geohash.Neighbors(center)...)

	// Neighbors can repeat near the poles; deduplicate to keep queries small.
	seen := make(map[string]bool, len(prefixes))
	out := prefixes[:0]
	for _, p := range prefixes {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}
