package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"rideledger/internal/domain"
	"rideledger/internal/service"
)

// DriverHandler handles HTTP requests for drivers and their admin review.
type DriverHandler struct {
	driverService *service.DriverService
	authService   *service.AuthService
}

// NewDriverHandler creates a new DriverHandler.
func NewDriverHandler(driverService *service.DriverService, authService *service.AuthService) *DriverHandler {
	return &DriverHandler{
		driverService: driverService,
		authService:   authService,
	}
}

// RegisterDriverRequest is the HTTP request body for driver registration.
type RegisterDriverRequest struct {
	Name          string `json:"name"`
	Surname       string `json:"surname"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Password      string `json:"password"`
	CarModel      string `json:"carModel"`
	CarPlate      string `json:"carPlate"`
	DriverLicense string `json:"driverLicense"`
	IDNumber      string `json:"idNumber"`
	PlanType      string `json:"planType"`
}

// UpdatePlanRequest is the HTTP request body for changing plans.
type UpdatePlanRequest struct {
	PlanType string `json:"planType"`
}

// UpdateStatusRequest is the HTTP request body for going online or offline.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// PeriodResponse is a subscription period.
type PeriodResponse struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// LastPaymentResponse is the most recent confirmed subscription payment.
type LastPaymentResponse struct {
	Amount float64    `json:"amount"`
	Date   *time.Time `json:"date,omitempty"`
}

// SubscriptionResponse is a driver's subscription state.
type SubscriptionResponse struct {
	IsActive      bool                `json:"isActive"`
	CurrentPeriod PeriodResponse      `json:"currentPeriod"`
	LastPayment   LastPaymentResponse `json:"lastPayment"`
}

// DriverResponse is the HTTP response for driver data. Credentials are never included.
type DriverResponse struct {
	ID                  string               `json:"id"`
	Name                string               `json:"name"`
	Surname             string               `json:"surname"`
	Email               string               `json:"email"`
	Phone               string               `json:"phone"`
	CarModel            string               `json:"carModel"`
	CarPlate            string               `json:"carPlate"`
	DriverLicense       string               `json:"driverLicense"`
	PlanType            domain.PlanType      `json:"planType"`
	Status              domain.DriverStatus  `json:"status"`
	CurrentStatus       domain.Availability  `json:"currentStatus"`
	Subscription        SubscriptionResponse `json:"subscriptionStatus"`
	RidesCompleted      int                  `json:"ridesCompleted"`
	AverageRating       float64              `json:"averageRating"`
	Cancellations       int                  `json:"cancellations"`
	TotalEarnings       float64              `json:"totalEarnings"`
	TotalCommissionPaid float64              `json:"totalCommissionPaid"`
	CreatedAt           time.Time            `json:"createdAt"`
	UpdatedAt           time.Time            `json:"updatedAt"`
}

// EligibilityResponse reports both ride acceptance gates.
type EligibilityResponse struct {
	CanAcceptRides     bool       `json:"canAcceptRides"`
	SubscriptionActive bool       `json:"subscriptionActive"`
	Eligible           bool       `json:"eligible"`
	Reasons            []string   `json:"reasons"`
	SubscriptionEndsAt *time.Time `json:"subscriptionEndsAt,omitempty"`
}

func toSubscriptionResponse(s domain.SubscriptionStatus) SubscriptionResponse {
	return SubscriptionResponse{
		IsActive: s.IsActive,
		CurrentPeriod: PeriodResponse{
			Start: timePtr(s.CurrentPeriod.Start),
			End:   timePtr(s.CurrentPeriod.End),
		},
		LastPayment: LastPaymentResponse{
			Amount: s.LastPayment.Amount,
			Date:   timePtr(s.LastPayment.Date),
		},
	}
}

func toDriverResponse(d *domain.Driver) DriverResponse {
	return DriverResponse{
		ID:                  d.ID,
		Name:                d.Name,
		Surname:             d.Surname,
		Email:               d.Email,
		Phone:               d.Phone,
		CarModel:            d.CarModel,
		CarPlate:            d.CarPlate,
		DriverLicense:       d.DriverLicense,
		PlanType:            d.PlanType,
		Status:              d.Status,
		CurrentStatus:       d.CurrentStatus,
		Subscription:        toSubscriptionResponse(d.Subscription),
		RidesCompleted:      d.RidesCompleted,
		AverageRating:       d.AverageRating,
		Cancellations:       d.Cancellations,
		TotalEarnings:       d.TotalEarnings,
		TotalCommissionPaid: d.TotalCommissionPaid,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
}

func toDriverResponses(drivers []*domain.Driver) []DriverResponse {
	out := make([]DriverResponse, 0, len(drivers))
	for _, d := range drivers {
		out = append(out, toDriverResponse(d))
	}
	return out
}

// Register handles POST /v1/drivers/register
func (h *DriverHandler) Register(c *gin.Context) {
	var req RegisterDriverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	driver, err := h.driverService.Register(c.Request.Context(), service.RegisterDriverRequest{
		Name:          req.Name,
		Surname:       req.Surname,
		Email:         req.Email,
		Phone:         req.Phone,
		Password:      req.Password,
		CarModel:      req.CarModel,
		CarPlate:      req.CarPlate,
		DriverLicense: req.DriverLicense,
		IDNumber:      req.IDNumber,
		PlanType:      req.PlanType,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, toDriverResponse(driver))
}

// Login handles POST /v1/drivers/login
func (h *DriverHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	result, err := h.authService.LoginDriver(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toAuthResponse(result))
}

// Me handles GET /v1/drivers/me
func (h *DriverHandler) Me(c *gin.Context) {
	h.respondDriver(c, caller(c).ID)
}

// UpdatePlan handles PATCH /v1/drivers/me/plan
func (h *DriverHandler) UpdatePlan(c *gin.Context) {
	var req UpdatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	driver, err := h.driverService.UpdatePlan(c.Request.Context(), caller(c).ID, req.PlanType)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toDriverResponse(driver))
}

// UpdateStatus handles PATCH /v1/drivers/me/status
func (h *DriverHandler) UpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	driver, err := h.driverService.UpdateAvailability(c.Request.Context(), caller(c).ID, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toDriverResponse(driver))
}

// Eligibility handles GET /v1/drivers/me/eligibility
func (h *DriverHandler) Eligibility(c *gin.Context) {
	e, err := h.driverService.Eligibility(c.Request.Context(), caller(c).ID)
	if err != nil {
		respondError(c, err)
		return
	}

	reasons := e.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	respondJSON(c, http.StatusOK, EligibilityResponse{
		CanAcceptRides:     e.CanAcceptRides,
		SubscriptionActive: e.SubscriptionActive,
		Eligible:           e.Eligible,
		Reasons:            reasons,
		SubscriptionEndsAt: timePtr(e.SubscriptionEndsAt),
	})
}

// List handles GET /v1/admin/drivers?status=
func (h *DriverHandler) List(c *gin.Context) {
	h.respondList(c, domain.DriverStatus(c.Query("status")))
}

// ListPending handles GET /v1/admin/drivers/pending
func (h *DriverHandler) ListPending(c *gin.Context) {
	h.respondList(c, domain.DriverStatusPending)
}

// Get handles GET /v1/admin/drivers/:id
func (h *DriverHandler) Get(c *gin.Context) {
	h.respondDriver(c, c.Param("id"))
}

// Approve handles PATCH /v1/admin/drivers/:id/approve
func (h *DriverHandler) Approve(c *gin.Context) {
	h.review(c, h.driverService.Approve)
}

// Reject handles PATCH /v1/admin/drivers/:id/reject
func (h *DriverHandler) Reject(c *gin.Context) {
	h.review(c, h.driverService.Reject)
}

// Suspend handles PATCH /v1/admin/drivers/:id/suspend
func (h *DriverHandler) Suspend(c *gin.Context) {
	h.review(c, h.driverService.Suspend)
}

type reviewFunc func(ctx context.Context, driverID string) (*domain.Driver, error)

func (h *DriverHandler) review(c *gin.Context, fn reviewFunc) {
	driver, err := fn(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toDriverResponse(driver))
}

func (h *DriverHandler) respondDriver(c *gin.Context, driverID string) {
	driver, err := h.driverService.GetDriver(c.Request.Context(), driverID)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, toDriverResponse(driver))
}

func (h *DriverHandler) respondList(c *gin.Context, status domain.DriverStatus) {
	drivers, err := h.driverService.ListDrivers(c.Request.Context(), status)
	if err != nil {
		respondError(c, err)
		return
	}
	respondJSON(c, http.StatusOK, gin.H{"drivers": toDriverResponses(drivers), "count": len(drivers)})
}
