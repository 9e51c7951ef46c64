package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"DB_DSN", "OSRM_URL", "ROUTE_PROFILE", "PORT", "REQUEST_TIMEOUT", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.DBDSN)
	assert.Equal(t, "https://router.project-osrm.org", cfg.OSRMURL)
	assert.Equal(t, "driving", cfg.RouteProfile)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DB_DSN", "postgres://app@localhost/trips")
	t.Setenv("OSRM_URL", "http://osrm.internal:5000")
	t.Setenv("ROUTE_PROFILE", "walking")
	t.Setenv("PORT", "9000")
	t.Setenv("REQUEST_TIMEOUT", "30s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://app@localhost/trips", cfg.DBDSN)
	assert.Equal(t, "http://osrm.internal:5000", cfg.OSRMURL)
	assert.Equal(t, "walking", cfg.RouteProfile)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
}

func TestLoad_InvalidPort(t *testing.T) {
	cases := map[string]string{"not a number": "eighty", "zero": "0", "too large": "70000"}
	for name, val := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("PORT", val)
			_, err := Load()
			var cErr *ConfigError
			require.ErrorAs(t, err, &cErr)
			assert.Equal(t, "PORT", cErr.Field)
		})
	}
}

func TestParseDurationEnv_FallsBack(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT", "soon")
	assert.Equal(t, 15*time.Second, parseDurationEnv("REQUEST_TIMEOUT", 15*time.Second))

	t.Setenv("REQUEST_TIMEOUT", "45s")
	assert.Equal(t, 45*time.Second, parseDurationEnv("REQUEST_TIMEOUT", 15*time.Second))
}
