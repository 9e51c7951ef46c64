package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

const defaultRadiusMeters = 1000.0
const maxRadiusMeters = 50_000.0

// NearbyTimelineEntries handles GET /api/v1/timeline/nearby
//
// Query params:
//   - lat    (required) float64 — WGS-84 latitude
//   - lon    (required) float64 — WGS-84 longitude
//   - radius (optional) float64 — search radius in metres; default 1000
//
// Response 200: entries within the radius, nearest first. Used by the UI
// to suggest history entries when adding a stop.
func (h *Handler) NearbyTimelineEntries(c *gin.Context) {
	lat, ok := parseRequiredFloat(c, "lat")
	if !ok {
		return
	}
	lon, ok := parseRequiredFloat(c, "lon")
	if !ok {
		return
	}

	radius := defaultRadiusMeters
	if raw := c.Query("radius"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "radius must be a positive number"})
			return
		}
		if v > maxRadiusMeters {
			c.JSON(http.StatusBadRequest, gin.H{"error": "radius must not exceed 50000 metres"})
			return
		}
		radius = v
	}

	entries, err := h.timeline.FindEntriesNear(c.Request.Context(), lat, lon, radius)
	if err != nil {
		h.respondError(c, err)
		return
	}

	type entryJSON struct {
		ID         int32     `json:"id"`
		Label      string    `json:"label"`
		Lat        float64   `json:"lat"`
		Lon        float64   `json:"lon"`
		RecordedAt time.Time `json:"recorded_at"`
	}
	out := make([]entryJSON, len(entries))
	for i, e := range entries {
		out[i] = entryJSON{ID: e.ID, Label: e.Label, Lat: e.Lat, Lon: e.Lon, RecordedAt: e.RecordedAt}
	}
	c.JSON(http.StatusOK, out)
}

// parseRequiredFloat extracts a required float64 query parameter.
// On failure it writes a 400 response and returns (0, false).
func parseRequiredFloat(c *gin.Context, name string) (float64, bool) {
	raw := c.Query(name)
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " query parameter is required"})
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a valid number"})
		return 0, false
	}
	return v, true
}
