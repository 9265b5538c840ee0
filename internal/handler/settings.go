package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"rideledger/internal/domain"
	"rideledger/internal/service"
)

// SettingsHandler handles HTTP requests for the active tariff and fare estimates.
type SettingsHandler struct {
	settingsService *service.SettingsService
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(settingsService *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{settingsService: settingsService}
}

// SubscriptionFeeBody is the monthly subscription price.
type SubscriptionFeeBody struct {
	Monthly  float64 `json:"monthly"`
	Currency string  `json:"currency"`
}

// FareCalculationBody holds the fare rates.
type FareCalculationBody struct {
	BaseRate           float64 `json:"baseRate"`
	PerKilometer       float64 `json:"perKilometer"`
	PerMinute          float64 `json:"perMinute"`
	SurgeMultiplierMax float64 `json:"surgeMultiplierMax"`
}

// PayoutSettingsBody holds the payout schedule.
type PayoutSettingsBody struct {
	MinimumPayout  float64               `json:"minimumPayout"`
	PayoutSchedule domain.PayoutSchedule `json:"payoutSchedule"`
	AutoPayouts    bool                  `json:"autoPayouts"`
}

// SettingsBody is both the response for the active settings and the body of an update.
// Fields omitted from an update keep their current values.
type SettingsBody struct {
	ID              string              `json:"id,omitempty"`
	CommissionRate  float64             `json:"commissionRate"`
	SubscriptionFee SubscriptionFeeBody `json:"subscriptionFee"`
	FareCalculation FareCalculationBody `json:"fareCalculation"`
	MinFare         float64             `json:"minFare"`
	PayoutSettings  PayoutSettingsBody  `json:"payoutSettings"`
	IsActive        bool                `json:"isActive"`
	CreatedAt       *time.Time          `json:"createdAt,omitempty"`
	UpdatedAt       *time.Time          `json:"updatedAt,omitempty"`
}

// FareBreakdownResponse itemizes a fare.
type FareBreakdownResponse struct {
	BaseFare   float64 `json:"baseFare"`
	Distance   float64 `json:"distance"`
	Time       float64 `json:"time"`
	Surge      float64 `json:"surge"`
	Adjustment float64 `json:"adjustment"`
}

// FareQuoteResponse is a priced trip.
type FareQuoteResponse struct {
	Amount          float64               `json:"amount"`
	SurgeMultiplier float64               `json:"surgeMultiplier"`
	Breakdown       FareBreakdownResponse `json:"breakdown"`
}

func toSettingsBody(s *domain.Settings) SettingsBody {
	return SettingsBody{
		ID:             s.ID,
		CommissionRate: s.CommissionRate,
		SubscriptionFee: SubscriptionFeeBody{
			Monthly:  s.SubscriptionFee.Monthly,
			Currency: s.SubscriptionFee.Currency,
		},
		FareCalculation: FareCalculationBody{
			BaseRate:           s.FareCalculation.BaseRate,
			PerKilometer:       s.FareCalculation.PerKilometer,
			PerMinute:          s.FareCalculation.PerMinute,
			SurgeMultiplierMax: s.FareCalculation.SurgeMultiplierMax,
		},
		MinFare: s.MinFare,
		PayoutSettings: PayoutSettingsBody{
			MinimumPayout:  s.Payout.MinimumPayout,
			PayoutSchedule: s.Payout.PayoutSchedule,
			AutoPayouts:    s.Payout.AutoPayouts,
		},
		IsActive:  s.IsActive,
		CreatedAt: timePtr(s.CreatedAt),
		UpdatedAt: timePtr(s.UpdatedAt),
	}
}

func (b SettingsBody) toDomain() domain.Settings {
	return domain.Settings{
		CommissionRate: b.CommissionRate,
		SubscriptionFee: domain.SubscriptionFee{
			Monthly:  b.SubscriptionFee.Monthly,
			Currency: b.SubscriptionFee.Currency,
		},
		FareCalculation: domain.FareCalculation{
			BaseRate:           b.FareCalculation.BaseRate,
			PerKilometer:       b.FareCalculation.PerKilometer,
			PerMinute:          b.FareCalculation.PerMinute,
			SurgeMultiplierMax: b.FareCalculation.SurgeMultiplierMax,
		},
		MinFare: b.MinFare,
		Payout: domain.PayoutSettings{
			MinimumPayout:  b.PayoutSettings.MinimumPayout,
			PayoutSchedule: b.PayoutSettings.PayoutSchedule,
			AutoPayouts:    b.PayoutSettings.AutoPayouts,
		},
	}
}

func toFareQuoteResponse(q service.FareQuote) FareQuoteResponse {
	return FareQuoteResponse{
		Amount:          q.Amount,
		SurgeMultiplier: q.SurgeMultiplier,
		Breakdown: FareBreakdownResponse{
			BaseFare:   q.Breakdown.BaseFare,
			Distance:   q.Breakdown.Distance,
			Time:       q.Breakdown.Time,
			Surge:      q.Breakdown.Surge,
			Adjustment: q.Breakdown.Adjustment,
		},
	}
}

// GetSettings handles GET /v1/settings
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	settings, err := h.settingsService.GetActive(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toSettingsBody(settings))
}

// UpdateSettings handles PUT /v1/admin/settings
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	current, err := h.settingsService.GetActive(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	body := toSettingsBody(current)
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	settings, err := h.settingsService.SetActive(c.Request.Context(), body.toDomain())
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toSettingsBody(settings))
}

// EstimateFare handles GET /v1/fares/estimate?distanceMeters=&durationSeconds=&surge=
func (h *SettingsHandler) EstimateFare(c *gin.Context) {
	var in service.FareInput
	for _, q := range []struct {
		name   string
		target *float64
	}{
		{"distanceMeters", &in.DistanceMeters},
		{"durationSeconds", &in.DurationSeconds},
		{"surge", &in.SurgeMultiplier},
	} {
		raw := c.Query(q.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			badRequest(c, q.name+" must be a number")
			return
		}
		*q.target = v
	}

	quote, err := h.settingsService.EstimateFare(c.Request.Context(), in)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toFareQuoteResponse(quote))
}
