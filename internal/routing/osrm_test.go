package routing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const okBody = `{
	"code": "Ok",
	"routes": [{
		"distance": 1234.4,
		"duration": 98.6,
		"geometry": {
			"type": "LineString",
			"coordinates": [[-77.03, -12.04], [-77.02, -12.05], [-77.01, -12.06]]
		}
	}]
}`

func TestOSRMRouter_Route(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(okBody))
	}))
	defer srv.Close()

	router := NewOSRMRouter(srv.URL)
	resp, err := router.Route(context.Background(), Request{
		FromLat: -12.04, FromLon: -77.03,
		ToLat: -12.06, ToLon: -77.01,
		Profile: ProfileWalking,
	})
	require.NoError(t, err)

	assert.Equal(t, int32(1234), resp.DistanceM)
	assert.Equal(t, int32(99), resp.DurationS)
	require.Len(t, resp.Geometry, 3)
	assert.Equal(t, [2]float64{-77.03, -12.04}, resp.Geometry[0])

	assert.True(t, strings.HasPrefix(gotPath, "/route/v1/walking/"), "path %q", gotPath)
	// OSRM wants lon,lat order in the coordinate list.
	assert.Contains(t, gotPath, "-77.03")
}

func TestOSRMRouter_DefaultsToDriving(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(okBody))
	}))
	defer srv.Close()

	_, err := NewOSRMRouter(srv.URL).Route(context.Background(), Request{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(gotPath, "/route/v1/driving/"), "path %q", gotPath)
}

func TestOSRMRouter_Failures(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		errPart string
	}{
		{"http error", http.StatusBadGateway, "bad gateway", "status 502"},
		{"provider code", http.StatusOK, `{"code":"NoRoute","message":"no route found"}`, `provider code "NoRoute"`},
		{"empty routes", http.StatusOK, `{"code":"Ok","routes":[]}`, "no routes returned"},
		{"malformed body", http.StatusOK, `{"code":`, "unmarshal response"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewOSRMRouter(srv.URL).Route(context.Background(), Request{
				FromLat: 1, FromLon: 2, ToLat: 3, ToLon: 4,
			})
			require.Error(t, err)

			var uErr *UnavailableError
			require.ErrorAs(t, err, &uErr)
			assert.Equal(t, 1.0, uErr.FromLat)
			assert.Equal(t, 4.0, uErr.ToLon)
			assert.Contains(t, err.Error(), tc.errPart)
		})
	}
}

func TestOSRMRouter_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // nothing listens here anymore

	_, err := NewOSRMRouter(srv.URL).Route(context.Background(), Request{})
	var uErr *UnavailableError
	require.ErrorAs(t, err, &uErr)
}

func TestOSRMRouter_RejectsUnknownProfile(t *testing.T) {
	_, err := NewOSRMRouter("http://localhost:0").Route(context.Background(), Request{Profile: "rocket"})
	require.Error(t, err)

	var uErr *UnavailableError
	assert.False(t, errors.As(err, &uErr), "a bad profile is a caller error, not provider unavailability")
}

func TestValidProfile(t *testing.T) {
	assert.True(t, ValidProfile(ProfileDriving))
	assert.True(t, ValidProfile(ProfileWalking))
	assert.True(t, ValidProfile(ProfileCycling))
	assert.False(t, ValidProfile(""))
	assert.False(t, ValidProfile("rocket"))
}
