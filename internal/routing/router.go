// Package routing calls the external route provider.
package routing

import (
	"context"
	"fmt"
)

// Travel profiles understood by the provider.
const (
	ProfileDriving = "driving"
	ProfileWalking = "walking"
	ProfileCycling = "cycling"
)

// ValidProfile reports whether p names a supported travel profile.
func ValidProfile(p string) bool {
	switch p {
	case ProfileDriving, ProfileWalking, ProfileCycling:
		return true
	}
	return false
}

// Request holds the origin and destination coordinates and the travel
// profile for one route calculation.
type Request struct {
	FromLat float64
	FromLon float64
	ToLat   float64
	ToLon   float64
	Profile string
}

// Response holds the result of a route calculation.
type Response struct {
	// Geometry is the road-following path as ordered (lon, lat) pairs.
	Geometry  [][2]float64
	DistanceM int32
	DurationS int32
}

// Router calculates a road-following route between two geographic points.
// Implementations perform exactly one provider call per Route invocation:
// no retries, no fallback estimates. The caller decides retry policy.
type Router interface {
	Route(ctx context.Context, req Request) (*Response, error)
}

// UnavailableError reports that the provider could not produce a route:
// transport failure, non-success response, empty route list, or timeout.
// It carries both coordinates so callers can tell the user which leg failed.
type UnavailableError struct {
	FromLat float64
	FromLon float64
	ToLat   float64
	ToLon   float64
	Err     error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("routing: route (%.5f,%.5f)->(%.5f,%.5f) unavailable: %v",
		e.FromLat, e.FromLon, e.ToLat, e.ToLon, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }
