package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pcktbot/google-timeline/internal/storage"
)

// AddStop handles POST /api/v1/trips/:id/stops
//
// Body, one of:
//
//	{"timeline_entry_id": 17, "position": 1}
//	{"lat": -12.05, "lon": -77.04, "name": "Hotel", "position": 1}
//
// position is optional; omitted means append. Supplying both a timeline
// entry reference and a coordinate, or neither, is a 400.
//
// Response 201: the created stop with its assigned position.
func (h *Handler) AddStop(c *gin.Context) {
	tripID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		TimelineEntryID *int32   `json:"timeline_entry_id"`
		Lat             *float64 `json:"lat"`
		Lon             *float64 `json:"lon"`
		Name            string   `json:"name"`
		Position        *int32   `json:"position"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	var src storage.StopSource
	switch {
	case req.TimelineEntryID != nil && (req.Lat != nil || req.Lon != nil):
		c.JSON(http.StatusBadRequest, gin.H{"error": "supply either timeline_entry_id or lat/lon, not both"})
		return
	case req.TimelineEntryID != nil:
		src = storage.TimelineSource(*req.TimelineEntryID)
	case req.Lat != nil && req.Lon != nil:
		src = storage.WaypointSource(*req.Lat, *req.Lon, req.Name)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "a location source is required: timeline_entry_id or lat/lon"})
		return
	}

	stop, err := h.trips.AddStop(c.Request.Context(), tripID, req.Position, src)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toStopJSON(*stop))
}

// DeleteStop handles DELETE /api/v1/trips/:id/stops/:stopID
//
// Response 204 on success; remaining stops are compacted to contiguous
// positions and segments touching the stop are gone.
func (h *Handler) DeleteStop(c *gin.Context) {
	tripID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	stopID, ok := parseIDParam(c, "stopID")
	if !ok {
		return
	}

	if err := h.trips.RemoveStop(c.Request.Context(), tripID, stopID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ReorderStops handles PUT /api/v1/trips/:id/stops/order
//
// Body: {"stop_ids": [5, 3, 4]} — a full permutation of the trip's stop
// IDs in the desired order. A list that is not an exact permutation is a
// 400 and leaves the trip unchanged.
//
// Response 200: the stops in their new order.
func (h *Handler) ReorderStops(c *gin.Context) {
	tripID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req struct {
		StopIDs []int32 `json:"stop_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	if err := h.trips.ReorderStops(c.Request.Context(), tripID, req.StopIDs); err != nil {
		h.respondError(c, err)
		return
	}

	detail, err := h.trips.GetTripDetail(c.Request.Context(), tripID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	out := make([]stopJSON, len(detail.Stops))
	for i, s := range detail.Stops {
		out[i] = toStopJSON(s)
	}
	c.JSON(http.StatusOK, gin.H{"stops": out})
}
