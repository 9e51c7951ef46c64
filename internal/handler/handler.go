// Package handler exposes the trip mutation API over HTTP.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pcktbot/google-timeline/internal/routing"
	"github.com/pcktbot/google-timeline/internal/service"
	"github.com/pcktbot/google-timeline/internal/storage"
)

// Handler holds the domain dependencies for all HTTP handlers.
// A single Handler is shared across all route groups; individual methods
// are registered as gin handler functions.
type Handler struct {
	trips    *service.TripService
	timeline storage.TimelineRepository
	log      *logrus.Logger
}

// New creates a Handler with the given dependencies.
func New(trips *service.TripService, timeline storage.TimelineRepository, log *logrus.Logger) *Handler {
	return &Handler{trips: trips, timeline: timeline, log: log}
}

// respondError maps the domain error taxonomy to HTTP statuses:
// validation → 400, not found → 404, provider unavailable → 502,
// anything else → 500 with the detail kept out of the response.
func (h *Handler) respondError(c *gin.Context, err error) {
	var (
		vErr *storage.ValidationError
		nErr *storage.NotFoundError
		uErr *routing.UnavailableError
	)
	switch {
	case errors.As(err, &vErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": vErr.Message})
	case errors.As(err, &nErr):
		c.JSON(http.StatusNotFound, gin.H{"error": nErr.Error()})
	case errors.As(err, &uErr):
		// The wrapped message names the failing pair so the client can
		// retry precisely.
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		h.log.WithError(err).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
