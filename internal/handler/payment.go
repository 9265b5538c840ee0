package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"rideledger/internal/domain"
	"rideledger/internal/service"
)

// PaymentHandler handles HTTP requests for the settlement ledger.
type PaymentHandler struct {
	ledgerService *service.LedgerService
	payoutService *service.PayoutService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(ledgerService *service.LedgerService, payoutService *service.PayoutService) *PaymentHandler {
	return &PaymentHandler{
		ledgerService: ledgerService,
		payoutService: payoutService,
	}
}

// CommissionRequest is the HTTP request body for recording a ride commission.
type CommissionRequest struct {
	RideID   string  `json:"rideId"`
	RideFare float64 `json:"rideFare"`
}

// SubscribeRequest is the HTTP request body for a subscription charge.
type SubscribeRequest struct {
	PaymentMethod string `json:"paymentMethod"`
}

// WebhookRequest is a payment status report from the payment provider.
type WebhookRequest struct {
	PaymentID     string `json:"paymentId"`
	Status        string `json:"status"`
	TransactionID string `json:"transactionId"`
	FailureReason string `json:"failureReason"`
}

// PaymentResponse is the HTTP response for a ledger entry.
type PaymentResponse struct {
	ID                 string               `json:"id"`
	DriverID           string               `json:"driverId"`
	Type               domain.PaymentType   `json:"type"`
	Amount             float64              `json:"amount"`
	Status             domain.PaymentStatus `json:"status"`
	PaymentMethod      domain.PaymentMethod `json:"paymentMethod"`
	SubscriptionPeriod *PeriodResponse      `json:"subscriptionPeriod,omitempty"`
	RideID             string               `json:"rideId,omitempty"`
	RideFare           float64              `json:"rideFare,omitempty"`
	CommissionRate     float64              `json:"commissionRate,omitempty"`
	TransactionID      string               `json:"transactionId,omitempty"`
	Notes              string               `json:"notes,omitempty"`
	FailureReason      string               `json:"failureReason,omitempty"`
	ProcessedAt        *time.Time           `json:"processedAt,omitempty"`
	CreatedAt          time.Time            `json:"createdAt"`
	UpdatedAt          time.Time            `json:"updatedAt"`
}

// TotalResponse is the sum and count of entries of one type.
type TotalResponse struct {
	Total float64 `json:"total"`
	Count int     `json:"count"`
}

// HistoryResponse is a driver's payment history.
type HistoryResponse struct {
	Payments []PaymentResponse                    `json:"payments"`
	Totals   map[domain.PaymentType]TotalResponse `json:"totals"`
}

// SubscribeResponse is the pending charge and the current subscription state.
type SubscribeResponse struct {
	Payment      PaymentResponse      `json:"payment"`
	Subscription SubscriptionResponse `json:"subscriptionStatus"`
}

// PayoutReportResponse is one driver's settled payouts.
type PayoutReportResponse struct {
	DriverID  string               `json:"driverId"`
	TotalPaid float64              `json:"totalPaid"`
	RidesPaid []string             `json:"ridesPaid"`
	Status    domain.PaymentStatus `json:"status"`
}

func toPaymentResponse(p *domain.Payment) PaymentResponse {
	resp := PaymentResponse{
		ID:             p.ID,
		DriverID:       p.DriverID,
		Type:           p.Type,
		Amount:         p.Amount,
		Status:         p.Status,
		PaymentMethod:  p.PaymentMethod,
		RideID:         p.RideID,
		RideFare:       p.RideFare,
		CommissionRate: p.CommissionRate,
		TransactionID:  p.TransactionID,
		Notes:          p.Notes,
		FailureReason:  p.FailureReason,
		ProcessedAt:    timePtr(p.ProcessedAt),
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
	if p.Type == domain.PaymentTypeSubscription {
		resp.SubscriptionPeriod = &PeriodResponse{
			Start: timePtr(p.SubscriptionPeriod.Start),
			End:   timePtr(p.SubscriptionPeriod.End),
		}
	}
	return resp
}

func toPaymentResponses(payments []*domain.Payment) []PaymentResponse {
	out := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, toPaymentResponse(p))
	}
	return out
}

// Commission handles POST /v1/payments/commission
func (h *PaymentHandler) Commission(c *gin.Context) {
	var req CommissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	result, err := h.ledgerService.ChargeCommission(c.Request.Context(), service.ChargeCommissionRequest{
		DriverID: caller(c).ID,
		RideID:   req.RideID,
		RideFare: req.RideFare,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, gin.H{
		"commission": toPaymentResponse(result.Commission),
		"payout":     toPaymentResponse(result.Payout),
	})
}

// Subscribe handles POST /v1/payments/subscribe
func (h *PaymentHandler) Subscribe(c *gin.Context) {
	var req SubscribeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}

	method, err := service.ValidatePaymentMethod(req.PaymentMethod)
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := h.ledgerService.Subscribe(c.Request.Context(), caller(c).ID, method)
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, SubscribeResponse{
		Payment:      toPaymentResponse(result.Payment),
		Subscription: toSubscriptionResponse(result.Subscription),
	})
}

// Webhook handles POST /v1/payments/webhook. The signature is checked by middleware.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	var req WebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	payment, err := h.ledgerService.ConfirmPayment(c.Request.Context(), service.ConfirmPaymentRequest{
		PaymentID:     req.PaymentID,
		Status:        domain.PaymentStatus(req.Status),
		TransactionID: req.TransactionID,
		FailureReason: req.FailureReason,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, toPaymentResponse(payment))
}

// History handles GET /v1/payments/history?type=&status=&startDate=&endDate=
func (h *PaymentHandler) History(c *gin.Context) {
	from, err := parseDate(c.Query("startDate"))
	if err != nil {
		respondError(c, err)
		return
	}
	endDate := c.Query("endDate")
	to, err := parseDate(endDate)
	if err != nil {
		respondError(c, err)
		return
	}
	if !to.IsZero() {
		to = endOfDay(endDate, to)
	}

	history, err := h.ledgerService.History(c.Request.Context(), caller(c).ID, service.HistoryFilter{
		Type:   domain.PaymentType(c.Query("type")),
		Status: domain.PaymentStatus(c.Query("status")),
		From:   from,
		To:     to,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	totals := make(map[domain.PaymentType]TotalResponse, len(history.Totals))
	for t, total := range history.Totals {
		totals[t] = TotalResponse{Total: total.Total, Count: total.Count}
	}
	respondJSON(c, http.StatusOK, HistoryResponse{
		Payments: toPaymentResponses(history.Payments),
		Totals:   totals,
	})
}

// ListAll handles GET /v1/admin/payments?status=
func (h *PaymentHandler) ListAll(c *gin.Context) {
	payments, err := h.ledgerService.ListPayments(c.Request.Context(), domain.PaymentStatus(c.Query("status")))
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"payments": toPaymentResponses(payments), "count": len(payments)})
}

// ProcessPayouts handles PATCH /v1/admin/payments/process?date=
// Pending payouts created up to the end of date are settled; no date means now.
func (h *PaymentHandler) ProcessPayouts(c *gin.Context) {
	date := c.Query("date")
	cutoff, err := parseDate(date)
	if err != nil {
		respondError(c, err)
		return
	}
	if !cutoff.IsZero() {
		cutoff = endOfDay(date, cutoff)
	}

	reports, err := h.payoutService.ProcessPending(c.Request.Context(), cutoff)
	if err != nil {
		respondError(c, err)
		return
	}

	out := make([]PayoutReportResponse, 0, len(reports))
	for _, r := range reports {
		out = append(out, PayoutReportResponse{
			DriverID:  r.DriverID,
			TotalPaid: r.TotalPaid,
			RidesPaid: r.RidesPaid,
			Status:    r.Status,
		})
	}
	respondJSON(c, http.StatusOK, out)
}
