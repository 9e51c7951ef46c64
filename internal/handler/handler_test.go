package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pcktbot/google-timeline/internal/routing"
	"github.com/pcktbot/google-timeline/internal/service"
	"github.com/pcktbot/google-timeline/internal/storage"
)

// stubRouter fabricates straight two-point routes; fail makes every call
// return an UnavailableError.
type stubRouter struct {
	fail  bool
	calls int
}

func (r *stubRouter) Route(_ context.Context, req routing.Request) (*routing.Response, error) {
	r.calls++
	if r.fail {
		return nil, &routing.UnavailableError{
			FromLat: req.FromLat, FromLon: req.FromLon,
			ToLat: req.ToLat, ToLon: req.ToLon,
			Err: errors.New("provider down"),
		}
	}
	return &routing.Response{
		Geometry:  [][2]float64{{req.FromLon, req.FromLat}, {req.ToLon, req.ToLat}},
		DistanceM: 500,
		DurationS: 60,
	}, nil
}

type testEnv struct {
	router *gin.Engine
	store  *storage.MemoryStore
	stub   *stubRouter
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logrus.New()
	log.SetOutput(io.Discard)

	store := storage.NewMemoryStore()
	stub := &stubRouter{}
	trips := service.NewTripService(store, stub, log, routing.ProfileDriving)
	h := New(trips, store.Timeline(), log)

	r := gin.New()
	api := r.Group("/api/v1")
	api.POST("/trips", h.CreateTrip)
	api.GET("/trips", h.ListTrips)
	api.GET("/trips/:id", h.GetTrip)
	api.PATCH("/trips/:id", h.UpdateTrip)
	api.DELETE("/trips/:id", h.DeleteTrip)
	api.POST("/trips/:id/stops", h.AddStop)
	api.DELETE("/trips/:id/stops/:stopID", h.DeleteStop)
	api.PUT("/trips/:id/stops/order", h.ReorderStops)
	api.POST("/trips/:id/routes", h.GenerateRoutes)
	api.GET("/timeline/nearby", h.NearbyTimelineEntries)

	return &testEnv{router: r, store: store, stub: stub}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

// seedTripWithStops creates a trip with n waypoint stops over the API and
// returns the trip ID and stop IDs in position order.
func (e *testEnv) seedTripWithStops(t *testing.T, n int) (int32, []int32) {
	t.Helper()

	w := e.do(t, http.MethodPost, "/api/v1/trips", gin.H{"name": "api trip"})
	require.Equal(t, http.StatusCreated, w.Code)
	tripID := int32(decodeBody(t, w)["id"].(float64))

	ids := make([]int32, n)
	for i := 0; i < n; i++ {
		w := e.do(t, http.MethodPost, fmt.Sprintf("/api/v1/trips/%d/stops", tripID), gin.H{
			"lat": 10.0 + float64(i), "lon": 20.0 + float64(i), "name": fmt.Sprintf("stop %d", i),
		})
		require.Equal(t, http.StatusCreated, w.Code)
		ids[i] = int32(decodeBody(t, w)["id"].(float64))
	}
	return tripID, ids
}

func TestCreateTrip(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodPost, "/api/v1/trips", gin.H{"name": "Peru 2024", "color": "#d62728"})
	require.Equal(t, http.StatusCreated, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "Peru 2024", body["name"])
	assert.Equal(t, "#d62728", body["color"])

	w = e.do(t, http.MethodPost, "/api/v1/trips", gin.H{"name": "  "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetTrip(t *testing.T) {
	e := newTestEnv(t)
	tripID, ids := e.seedTripWithStops(t, 2)

	w := e.do(t, http.MethodPost, fmt.Sprintf("/api/v1/trips/%d/routes", tripID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodGet, fmt.Sprintf("/api/v1/trips/%d", tripID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)

	stops := body["stops"].([]any)
	require.Len(t, stops, 2)
	first := stops[0].(map[string]any)
	assert.Equal(t, float64(ids[0]), first["id"])
	assert.Equal(t, float64(0), first["position"])

	routes := body["routes"].(map[string]any)
	assert.Equal(t, "FeatureCollection", routes["type"])
	// Two stop points plus one connecting segment.
	assert.Len(t, routes["features"].([]any), 3)
}

func TestGetTrip_NotFound(t *testing.T) {
	e := newTestEnv(t)

	w := e.do(t, http.MethodGet, "/api/v1/trips/42", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, http.MethodGet, "/api/v1/trips/zero", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateTrip_PatchesOnlyProvidedFields(t *testing.T) {
	e := newTestEnv(t)
	tripID, _ := e.seedTripWithStops(t, 0)

	w := e.do(t, http.MethodPatch, fmt.Sprintf("/api/v1/trips/%d", tripID), gin.H{"color": "#2ca02c"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "api trip", body["name"])
	assert.Equal(t, "#2ca02c", body["color"])
}

func TestDeleteTrip(t *testing.T) {
	e := newTestEnv(t)
	tripID, _ := e.seedTripWithStops(t, 1)

	w := e.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/trips/%d", tripID), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = e.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/trips/%d", tripID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAddStop_SourceSelection(t *testing.T) {
	e := newTestEnv(t)
	tripID, _ := e.seedTripWithStops(t, 0)
	entry := e.store.SeedTimelineEntry("Plaza Mayor", -12.0464, -77.0300, time.Now())

	w := e.do(t, http.MethodPost, fmt.Sprintf("/api/v1/trips/%d/stops", tripID), gin.H{
		"timeline_entry_id": entry.ID,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "Plaza Mayor", body["name"])
	assert.Equal(t, float64(entry.ID), body["timeline_entry_id"])

	cases := []gin.H{
		{},
		{"lat": 1.0},
		{"timeline_entry_id": entry.ID, "lat": 1.0, "lon": 2.0},
		{"timeline_entry_id": 9999},
	}
	for _, c := range cases {
		w := e.do(t, http.MethodPost, fmt.Sprintf("/api/v1/trips/%d/stops", tripID), c)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %v", c)
	}
}

func TestAddStop_AtPosition(t *testing.T) {
	e := newTestEnv(t)
	tripID, ids := e.seedTripWithStops(t, 2)

	w := e.do(t, http.MethodPost, fmt.Sprintf("/api/v1/trips/%d/stops", tripID), gin.H{
		"lat": 5.0, "lon": 6.0, "name": "middle", "position": 1,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, float64(1), decodeBody(t, w)["position"])

	w = e.do(t, http.MethodGet, fmt.Sprintf("/api/v1/trips/%d", tripID), nil)
	stops := decodeBody(t, w)["stops"].([]any)
	require.Len(t, stops, 3)
	assert.Equal(t, float64(ids[0]), stops[0].(map[string]any)["id"])
	assert.Equal(t, "middle", stops[1].(map[string]any)["name"])
	assert.Equal(t, float64(ids[1]), stops[2].(map[string]any)["id"])
}

func TestDeleteStop(t *testing.T) {
	e := newTestEnv(t)
	tripID, ids := e.seedTripWithStops(t, 3)

	w := e.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/trips/%d/stops/%d", tripID, ids[1]), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = e.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/trips/%d/stops/%d", tripID, ids[1]), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReorderStops(t *testing.T) {
	e := newTestEnv(t)
	tripID, ids := e.seedTripWithStops(t, 3)

	want := []int32{ids[2], ids[0], ids[1]}
	w := e.do(t, http.MethodPut, fmt.Sprintf("/api/v1/trips/%d/stops/order", tripID), gin.H{"stop_ids": want})
	require.Equal(t, http.StatusOK, w.Code)

	stops := decodeBody(t, w)["stops"].([]any)
	require.Len(t, stops, 3)
	for i, s := range stops {
		assert.Equal(t, float64(want[i]), s.(map[string]any)["id"])
	}

	w = e.do(t, http.MethodPut, fmt.Sprintf("/api/v1/trips/%d/stops/order", tripID), gin.H{"stop_ids": ids[:2]})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerateRoutes(t *testing.T) {
	e := newTestEnv(t)
	tripID, _ := e.seedTripWithStops(t, 3)

	w := e.do(t, http.MethodPost, fmt.Sprintf("/api/v1/trips/%d/routes", tripID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(2), body["fetched"])
	assert.Equal(t, float64(0), body["cached"])

	w = e.do(t, http.MethodPost, fmt.Sprintf("/api/v1/trips/%d/routes", tripID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeBody(t, w)
	assert.Equal(t, float64(0), body["fetched"])
	assert.Equal(t, float64(2), body["cached"])
	assert.Equal(t, 2, e.stub.calls)
}

func TestGenerateRoutes_Errors(t *testing.T) {
	e := newTestEnv(t)
	tripID, _ := e.seedTripWithStops(t, 1)

	// One stop: nothing to route.
	w := e.do(t, http.MethodPost, fmt.Sprintf("/api/v1/trips/%d/routes", tripID), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPost, fmt.Sprintf("/api/v1/trips/%d/routes?profile=rocket", tripID), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPost, "/api/v1/trips/42/routes", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGenerateRoutes_ProviderDown(t *testing.T) {
	e := newTestEnv(t)
	tripID, ids := e.seedTripWithStops(t, 2)
	e.stub.fail = true

	w := e.do(t, http.MethodPost, fmt.Sprintf("/api/v1/trips/%d/routes", tripID), nil)
	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, decodeBody(t, w)["error"], fmt.Sprintf("pair %d->%d", ids[0], ids[1]))
}

func TestNearbyTimelineEntries(t *testing.T) {
	e := newTestEnv(t)
	near := e.store.SeedTimelineEntry("near", -12.046, -77.030, time.Now())
	e.store.SeedTimelineEntry("far", -13.500, -71.970, time.Now())

	w := e.do(t, http.MethodGet, "/api/v1/timeline/nearby?lat=-12.0464&lon=-77.0299&radius=2000", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var entries []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, float64(near.ID), entries[0]["id"])

	for _, path := range []string{
		"/api/v1/timeline/nearby?lon=-77.03",
		"/api/v1/timeline/nearby?lat=-12.04",
		"/api/v1/timeline/nearby?lat=abc&lon=-77.03",
		"/api/v1/timeline/nearby?lat=-12.04&lon=-77.03&radius=-5",
		"/api/v1/timeline/nearby?lat=-12.04&lon=-77.03&radius=99999999",
	} {
		w := e.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, "path %s", path)
	}
}
