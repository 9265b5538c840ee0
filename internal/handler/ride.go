package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"rideledger/internal/domain"
	"rideledger/internal/service"
)

// RideHandler handles HTTP requests for rides.
type RideHandler struct {
	rideService *service.RideService
}

// NewRideHandler creates a new RideHandler.
func NewRideHandler(rideService *service.RideService) *RideHandler {
	return &RideHandler{rideService: rideService}
}

// CreateRideRequest is the HTTP request body for creating a ride.
type CreateRideRequest struct {
	Origin      string `json:"origin"`
	Destination string `json:"destination"`
}

// CompleteRideRequest is the measured trip reported by the driver.
type CompleteRideRequest struct {
	DistanceMeters  float64 `json:"distanceMeters"`
	DurationSeconds float64 `json:"durationSeconds"`
	Surge           float64 `json:"surge"`
}

// CancelRideRequest is the HTTP request body for cancelling a ride.
type CancelRideRequest struct {
	Reason string `json:"reason,omitempty"`
}

// RideResponse is the HTTP response for ride data.
type RideResponse struct {
	ID              string            `json:"id"`
	PassengerID     string            `json:"passengerId"`
	DriverID        string            `json:"driverId,omitempty"`
	Origin          string            `json:"origin"`
	Destination     string            `json:"destination"`
	Status          domain.RideStatus `json:"status"`
	Fare            float64           `json:"fare"`
	DistanceMeters  float64           `json:"distanceMeters,omitempty"`
	DurationSeconds float64           `json:"durationSeconds,omitempty"`
	CancelledBy     string            `json:"cancelledBy,omitempty"`
	CancelReason    string            `json:"cancelReason,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
	CompletedAt     *time.Time        `json:"completedAt,omitempty"`
}

// CompleteRideResponse is the completed ride with its fare and ledger entries.
type CompleteRideResponse struct {
	Ride       RideResponse      `json:"ride"`
	Fare       FareQuoteResponse `json:"fare"`
	Commission PaymentResponse   `json:"commission"`
	Payout     PaymentResponse   `json:"payout"`
}

func toRideResponse(r *domain.Ride) RideResponse {
	return RideResponse{
		ID:              r.ID,
		PassengerID:     r.PassengerID,
		DriverID:        r.DriverID,
		Origin:          r.Origin,
		Destination:     r.Destination,
		Status:          r.Status,
		Fare:            r.Fare,
		DistanceMeters:  r.DistanceMeters,
		DurationSeconds: r.DurationSeconds,
		CancelledBy:     r.CancelledBy,
		CancelReason:    r.CancelReason,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		CompletedAt:     timePtr(r.CompletedAt),
	}
}

func toRideResponses(rides []*domain.Ride) []RideResponse {
	out := make([]RideResponse, 0, len(rides))
	for _, r := range rides {
		out = append(out, toRideResponse(r))
	}
	return out
}

// CreateRide handles POST /v1/rides
func (h *RideHandler) CreateRide(c *gin.Context) {
	var req CreateRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	ride, err := h.rideService.CreateRide(c.Request.Context(), service.CreateRideRequest{
		PassengerID: caller(c).ID,
		Origin:      req.Origin,
		Destination: req.Destination,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toRideResponse(ride))
}

// ListRides handles GET /v1/rides
func (h *RideHandler) ListRides(c *gin.Context) {
	rides, err := h.rideService.ListForParticipant(c.Request.Context(), caller(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"rides": toRideResponses(rides), "count": len(rides)})
}

// GetRide handles GET /v1/rides/:id
func (h *RideHandler) GetRide(c *gin.Context) {
	ride, err := h.rideService.GetRide(c.Request.Context(), c.Param("id"), caller(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// AcceptRide handles POST /v1/rides/:id/accept
func (h *RideHandler) AcceptRide(c *gin.Context) {
	ride, err := h.rideService.AcceptRide(c.Request.Context(), c.Param("id"), caller(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// StartRide handles POST /v1/rides/:id/start
func (h *RideHandler) StartRide(c *gin.Context) {
	ride, err := h.rideService.StartRide(c.Request.Context(), c.Param("id"), caller(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// CompleteRide handles POST /v1/rides/:id/complete
func (h *RideHandler) CompleteRide(c *gin.Context) {
	var req CompleteRideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	result, err := h.rideService.CompleteRide(c.Request.Context(), service.CompleteRideRequest{
		RideID:          c.Param("id"),
		DriverID:        caller(c).ID,
		DistanceMeters:  req.DistanceMeters,
		DurationSeconds: req.DurationSeconds,
		SurgeMultiplier: req.Surge,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, CompleteRideResponse{
		Ride:       toRideResponse(result.Ride),
		Fare:       toFareQuoteResponse(result.Quote),
		Commission: toPaymentResponse(result.Commission.Commission),
		Payout:     toPaymentResponse(result.Commission.Payout),
	})
}

// CancelRide handles POST /v1/rides/:id/cancel
func (h *RideHandler) CancelRide(c *gin.Context) {
	var req CancelRideRequest
	// The body is optional.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}

	ride, err := h.rideService.CancelRide(c.Request.Context(), c.Param("id"), caller(c), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toRideResponse(ride))
}

// ListAll handles GET /v1/admin/rides?status=
func (h *RideHandler) ListAll(c *gin.Context) {
	rides, err := h.rideService.ListRides(c.Request.Context(), domain.RideStatus(c.Query("status")))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"rides": toRideResponses(rides), "count": len(rides)})
}
