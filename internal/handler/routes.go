package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GenerateRoutes handles POST /api/v1/trips/:id/routes
//
// Query params:
//   - force   (optional) "true" refetches every adjacent pair, bypassing
//     the segment cache
//   - profile (optional) driving|walking|cycling; defaults to the
//     service-wide profile
//
// Response 200:
//
//	{"fetched":2,"cached":1,"routes":{...GeoJSON feature collection...}}
//
// Response 400: fewer than 2 stops, or an unknown profile.
// Response 502: the provider failed; the error names the failing pair and
// segments fetched earlier in the run remain cached, so retrying resumes
// where it stopped.
func (h *Handler) GenerateRoutes(c *gin.Context) {
	tripID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	force := c.Query("force") == "true"
	profile := c.Query("profile")

	gen, err := h.trips.GenerateRoutes(c.Request.Context(), tripID, profile, force)
	if err != nil {
		h.respondError(c, err)
		return
	}

	detail, err := h.trips.GetTripDetail(c.Request.Context(), tripID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"fetched": gen.Fetched,
		"cached":  gen.Cached,
		"routes":  detail.Routes,
	})
}
