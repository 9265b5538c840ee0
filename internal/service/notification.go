package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"rideledger/internal/domain"
)

// EventType is also the routing key the event is published under.
type EventType string

const (
	EventCommissionRecorded    EventType = "commission.recorded"
	EventSubscriptionRequested EventType = "subscription.requested"
	EventSubscriptionActivated EventType = "subscription.activated"
	EventPaymentCompleted      EventType = "payment.completed"
	EventPaymentFailed         EventType = "payment.failed"
	EventPayoutSettled         EventType = "payout.settled"
	EventRideCompleted         EventType = "ride.completed"
	EventRideCancelled         EventType = "ride.cancelled"
	EventDriverStatusChanged   EventType = "driver.status_changed"
	EventSettingsActivated     EventType = "settings.activated"
)

// Event is the message body sent to the broker.
type Event struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	DriverID   string         `json:"driver_id,omitempty"`
	Data       map[string]any `json:"data"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Publisher delivers encoded events. Implemented by broker.Publisher.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// NotificationService emits settlement events. Delivery is best effort: failures
// are logged and never fail the operation that produced the event.
type NotificationService struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewNotificationService creates a new NotificationService. A nil publisher logs events only.
func NewNotificationService(publisher Publisher, logger *slog.Logger) *NotificationService {
	return &NotificationService{
		publisher: publisher,
		logger:    logger,
	}
}

// NotifyCommissionRecorded announces a commission entry and the driver's resulting payout entry.
func (s *NotificationService) NotifyCommissionRecorded(ctx context.Context, commission, payout *domain.Payment) {
	data := map[string]any{
		"payment_id":      commission.ID,
		"ride_id":         commission.RideID,
		"ride_fare":       commission.RideFare,
		"commission_rate": commission.CommissionRate,
		"amount":          commission.Amount,
	}
	if payout != nil {
		data["payout_id"] = payout.ID
		data["driver_earnings"] = payout.Amount
	}
	s.send(ctx, Event{Type: EventCommissionRecorded, DriverID: commission.DriverID, Data: data})
}

// NotifySubscriptionRequested announces a pending subscription charge.
func (s *NotificationService) NotifySubscriptionRequested(ctx context.Context, payment *domain.Payment) {
	s.send(ctx, Event{
		Type:     EventSubscriptionRequested,
		DriverID: payment.DriverID,
		Data: map[string]any{
			"payment_id":     payment.ID,
			"amount":         payment.Amount,
			"payment_method": payment.PaymentMethod,
			"period_start":   payment.SubscriptionPeriod.Start,
			"period_end":     payment.SubscriptionPeriod.End,
		},
	})
}

// NotifyPaymentConfirmed announces the outcome of a webhook confirmation.
func (s *NotificationService) NotifyPaymentConfirmed(ctx context.Context, payment *domain.Payment) {
	eventType := EventPaymentCompleted
	if payment.Status == domain.PaymentStatusFailed {
		eventType = EventPaymentFailed
	}

	s.send(ctx, Event{
		Type:     eventType,
		DriverID: payment.DriverID,
		Data: map[string]any{
			"payment_id":     payment.ID,
			"type":           payment.Type,
			"amount":         payment.Amount,
			"transaction_id": payment.TransactionID,
			"failure_reason": payment.FailureReason,
		},
	})

	if payment.Status == domain.PaymentStatusCompleted && payment.Type == domain.PaymentTypeSubscription {
		s.send(ctx, Event{
			Type:     EventSubscriptionActivated,
			DriverID: payment.DriverID,
			Data: map[string]any{
				"payment_id":   payment.ID,
				"period_start": payment.SubscriptionPeriod.Start,
				"period_end":   payment.SubscriptionPeriod.End,
			},
		})
	}
}

// NotifyPayoutSettled announces one driver's share of a payout batch.
func (s *NotificationService) NotifyPayoutSettled(ctx context.Context, report domain.PayoutReport, cutoff time.Time) {
	s.send(ctx, Event{
		Type:     EventPayoutSettled,
		DriverID: report.DriverID,
		Data: map[string]any{
			"total_paid": report.TotalPaid,
			"rides_paid": report.RidesPaid,
			"cutoff":     cutoff,
		},
	})
}

// NotifyRideCompleted announces a completed ride and its fare.
func (s *NotificationService) NotifyRideCompleted(ctx context.Context, ride *domain.Ride) {
	s.send(ctx, Event{
		Type:     EventRideCompleted,
		DriverID: ride.DriverID,
		Data: map[string]any{
			"ride_id":      ride.ID,
			"passenger_id": ride.PassengerID,
			"fare":         ride.Fare,
		},
	})
}

// NotifyRideCancelled announces a cancellation and who made it.
func (s *NotificationService) NotifyRideCancelled(ctx context.Context, ride *domain.Ride) {
	s.send(ctx, Event{
		Type:     EventRideCancelled,
		DriverID: ride.DriverID,
		Data: map[string]any{
			"ride_id":      ride.ID,
			"passenger_id": ride.PassengerID,
			"cancelled_by": ride.CancelledBy,
			"reason":       ride.CancelReason,
		},
	})
}

// NotifyDriverStatusChanged announces an approval workflow change.
func (s *NotificationService) NotifyDriverStatusChanged(ctx context.Context, driverID string, from, to domain.DriverStatus) {
	s.send(ctx, Event{
		Type:     EventDriverStatusChanged,
		DriverID: driverID,
		Data: map[string]any{
			"from": from,
			"to":   to,
		},
	})
}

// NotifySettingsActivated announces a new active configuration.
func (s *NotificationService) NotifySettingsActivated(ctx context.Context, settings *domain.Settings) {
	s.send(ctx, Event{
		Type: EventSettingsActivated,
		Data: map[string]any{
			"settings_id":     settings.ID,
			"commission_rate": settings.CommissionRate,
			"min_fare":        settings.MinFare,
		},
	})
}

func (s *NotificationService) send(ctx context.Context, event Event) {
	event.ID = uuid.New().String()
	event.OccurredAt = time.Now().UTC()

	if s.publisher == nil {
		s.logger.Info("event", "type", event.Type, "driver_id", event.DriverID, "event_id", event.ID)
		return
	}

	body, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("encode event", "type", event.Type, "error", err)
		return
	}

	if err := s.publisher.Publish(ctx, string(event.Type), body); err != nil {
		s.logger.Warn("publish event failed", "type", event.Type, "event_id", event.ID, "error", err)
	}
}
