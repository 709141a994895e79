package handlers

import (
	"net/http"
	"strings"
	"time"

	"bustix/internal/domain/models"

	"github.com/gin-gonic/gin"
)

type createTripRequest struct {
	ID          string    `json:"id" binding:"required"`
	RouteFrom   string    `json:"route_from"`
	RouteTo     string    `json:"route_to"`
	DepartureAt time.Time `json:"departure_at"`
	BusRef      string    `json:"bus_ref"`
	BasePrice   int64     `json:"base_price"`
	SeatIDs     []string  `json:"seat_ids"`
}

// CreateTrip registers a trip and seeds its seat map. Admin only.
func (a *API) CreateTrip(c *gin.Context) {
	var req createTripRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	trip, err := a.inventory(c).RegisterTrip(c.Request.Context(), models.Trip{
		ID:          strings.TrimSpace(req.ID),
		RouteFrom:   strings.TrimSpace(req.RouteFrom),
		RouteTo:     strings.TrimSpace(req.RouteTo),
		DepartureAt: req.DepartureAt,
		BusRef:      strings.TrimSpace(req.BusRef),
		BasePrice:   req.BasePrice,
	}, req.SeatIDs)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"trip": trip, "seats": len(req.SeatIDs)})
}

// GetTripSeats returns the seat map as of now; lapsed holds read as available.
func (a *API) GetTripSeats(c *gin.Context) {
	tripID := strings.TrimSpace(c.Param("id"))
	seats, err := a.inventory(c).SeatMap(c.Request.Context(), tripID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trip_id": tripID, "seats": seats})
}
