package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

const (
	// osrmTimeout is the maximum duration for a provider call when the
	// caller's context carries no earlier deadline.
	osrmTimeout = 10 * time.Second

	// httpMaxIdleConns is the maximum number of idle (keep-alive)
	// connections kept in the transport pool.
	httpMaxIdleConns = 10

	// httpIdleConnTimeout is how long an idle connection is kept in the
	// pool before being closed.
	httpIdleConnTimeout = 30 * time.Second
)

// OSRMRouter implements Router against an OSRM-compatible route service.
type OSRMRouter struct {
	baseURL    string
	httpClient *http.Client
}

// NewOSRMRouter creates a Router backed by the OSRM HTTP API at baseURL,
// e.g. "https://router.project-osrm.org" or a self-hosted instance.
func NewOSRMRouter(baseURL string) *OSRMRouter {
	transport := &http.Transport{
		MaxIdleConns:        httpMaxIdleConns,
		MaxIdleConnsPerHost: httpMaxIdleConns,
		IdleConnTimeout:     httpIdleConnTimeout,
	}
	return &OSRMRouter{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout:   osrmTimeout,
			Transport: transport,
		},
	}
}

// Route calls the OSRM route endpoint and returns the primary route. Every
// failure mode — transport error, non-200 status, provider-level error
// code, empty route list, timeout — is surfaced as an UnavailableError for
// the caller to handle; there is no internal retry or fallback.
func (o *OSRMRouter) Route(ctx context.Context, req Request) (*Response, error) {
	profile := req.Profile
	if profile == "" {
		profile = ProfileDriving
	}
	if !ValidProfile(profile) {
		return nil, fmt.Errorf("routing: osrm: unsupported profile %q", profile)
	}

	// OSRM expects lon,lat coordinate order in the path.
	url := fmt.Sprintf("%s/route/v1/%s/%f,%f;%f,%f?overview=full&geometries=geojson&alternatives=false&steps=false",
		o.baseURL, profile, req.FromLon, req.FromLat, req.ToLon, req.ToLat)

	resp, err := o.callAPI(ctx, url)
	if err != nil {
		return nil, &UnavailableError{
			FromLat: req.FromLat, FromLon: req.FromLon,
			ToLat: req.ToLat, ToLon: req.ToLon,
			Err: err,
		}
	}
	return resp, nil
}

// callAPI performs the HTTP call and decodes the primary route.
func (o *OSRMRouter) callAPI(ctx context.Context, url string) (*Response, error) {
	reqCtx, cancel := context.WithTimeout(ctx, osrmTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpResp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	defer httpResp.Body.Close()

	respBytes, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", httpResp.StatusCode, string(respBytes))
	}

	var apiResp osrmResponse
	if err := json.Unmarshal(respBytes, &apiResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	if apiResp.Code != "Ok" {
		return nil, fmt.Errorf("provider code %q: %s", apiResp.Code, apiResp.Message)
	}
	if len(apiResp.Routes) == 0 {
		return nil, fmt.Errorf("no routes returned")
	}

	route := apiResp.Routes[0]
	geometry := make([][2]float64, len(route.Geometry.Coordinates))
	for i, c := range route.Geometry.Coordinates {
		if len(c) != 2 {
			return nil, fmt.Errorf("coordinate %d has %d components", i, len(c))
		}
		geometry[i] = [2]float64{c[0], c[1]}
	}

	return &Response{
		Geometry:  geometry,
		DistanceM: int32(math.Round(route.Distance)),
		DurationS: int32(math.Round(route.Duration)),
	}, nil
}

// --- JSON types for the OSRM route API ---

type osrmResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Routes  []osrmRoute `json:"routes"`
}

type osrmRoute struct {
	Distance float64      `json:"distance"`
	Duration float64      `json:"duration"`
	Geometry osrmGeometry `json:"geometry"`
}

type osrmGeometry struct {
	Type        string      `json:"type"`
	Coordinates [][]float64 `json:"coordinates"`
}
