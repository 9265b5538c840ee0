package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"rideledger/internal/service"
)

// AdminHandler handles admin accounts and platform reporting.
type AdminHandler struct {
	authService      *service.AuthService
	analyticsService *service.AnalyticsService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(authService *service.AuthService, analyticsService *service.AnalyticsService) *AdminHandler {
	return &AdminHandler{
		authService:      authService,
		analyticsService: analyticsService,
	}
}

// AdminResponse is the HTTP response for a created admin.
type AdminResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// AnalyticsResponse is the platform summary.
type AnalyticsResponse struct {
	TotalDrivers    int     `json:"totalDrivers"`
	ActiveRides     int     `json:"activeRides"`
	CompletedRides  int     `json:"completedRides"`
	PlatformRevenue float64 `json:"platformRevenue"`
}

// Login handles POST /v1/admins/login
func (h *AdminHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	result, err := h.authService.LoginAdmin(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toAuthResponse(result))
}

// Create handles POST /v1/admins
func (h *AdminHandler) Create(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	admin, err := h.authService.CreateAdmin(c.Request.Context(), service.RegisterRequest{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, AdminResponse{
		ID:        admin.ID,
		Name:      admin.Name,
		Email:     admin.Email,
		CreatedAt: admin.CreatedAt,
	})
}

// Analytics handles GET /v1/admin/analytics
func (h *AdminHandler) Analytics(c *gin.Context) {
	summary, err := h.analyticsService.Summary(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, AnalyticsResponse{
		TotalDrivers:    summary.TotalDrivers,
		ActiveRides:     summary.ActiveRides,
		CompletedRides:  summary.CompletedRides,
		PlatformRevenue: summary.PlatformRevenue,
	})
}
