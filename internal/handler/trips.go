package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pcktbot/google-timeline/internal/storage"
)

// tripJSON is the wire shape for a trip.
type tripJSON struct {
	ID          int32     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Color       string    `json:"color,omitempty"`
	StopCount   *int32    `json:"stop_count,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toTripJSON(t storage.Trip) tripJSON {
	return tripJSON{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		Color:       t.Color,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

// stopJSON is the wire shape for a stop.
type stopJSON struct {
	ID              int32   `json:"id"`
	Position        int32   `json:"position"`
	Name            string  `json:"name"`
	Lat             float64 `json:"lat"`
	Lon             float64 `json:"lon"`
	TimelineEntryID *int32  `json:"timeline_entry_id,omitempty"`
}

func toStopJSON(s storage.Stop) stopJSON {
	return stopJSON{
		ID:              s.ID,
		Position:        s.Position,
		Name:            s.Name,
		Lat:             s.Lat,
		Lon:             s.Lon,
		TimelineEntryID: s.TimelineEntryID,
	}
}

// CreateTrip handles POST /api/v1/trips
//
// Body: {"name":"Coast drive","description":"...","color":"#1f77b4"}
// Response 201: the created trip.
func (h *Handler) CreateTrip(c *gin.Context) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Color       string `json:"color"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	trip, err := h.trips.CreateTrip(c.Request.Context(), req.Name, req.Description, req.Color)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toTripJSON(*trip))
}

// ListTrips handles GET /api/v1/trips
//
// Response 200: trips with stop counts, newest first.
func (h *Handler) ListTrips(c *gin.Context) {
	trips, err := h.trips.ListTrips(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	out := make([]tripJSON, len(trips))
	for i, t := range trips {
		j := toTripJSON(t.Trip)
		count := t.StopCount
		j.StopCount = &count
		out[i] = j
	}
	c.JSON(http.StatusOK, out)
}

// GetTrip handles GET /api/v1/trips/:id
//
// Response 200: trip metadata, ordered stops, and the assembled route as a
// GeoJSON feature collection.
func (h *Handler) GetTrip(c *gin.Context) {
	tripID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	detail, err := h.trips.GetTripDetail(c.Request.Context(), tripID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	stops := make([]stopJSON, len(detail.Stops))
	for i, s := range detail.Stops {
		stops[i] = toStopJSON(s)
	}
	c.JSON(http.StatusOK, gin.H{
		"trip":   toTripJSON(detail.Trip),
		"stops":  stops,
		"routes": detail.Routes,
	})
}

// UpdateTrip handles PATCH /api/v1/trips/:id
//
// Body: any of {"name":..., "description":..., "color":...}; absent fields
// are left unchanged.
func (h *Handler) UpdateTrip(c *gin.Context) {
	tripID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		Color       *string `json:"color"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	trip, err := h.trips.UpdateTrip(c.Request.Context(), tripID, req.Name, req.Description, req.Color)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, toTripJSON(*trip))
}

// DeleteTrip handles DELETE /api/v1/trips/:id
//
// Response 204 on success; stops and segments are removed with the trip.
func (h *Handler) DeleteTrip(c *gin.Context) {
	tripID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.trips.DeleteTrip(c.Request.Context(), tripID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// parseIDParam extracts a positive int32 path parameter.
// On failure it writes a 400 response and returns (0, false).
func parseIDParam(c *gin.Context, name string) (int32, bool) {
	raw := c.Param(name)
	id64, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || id64 <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be a positive integer"})
		return 0, false
	}
	return int32(id64), true
}
