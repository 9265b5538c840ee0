package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"rideledger/internal/domain"
	"rideledger/internal/repository"
)

// historyLimit caps the entries returned by History. Totals cover the full filter.
const historyLimit = 50

// LedgerService records commissions and subscription charges and confirms payments.
type LedgerService struct {
	tx       repository.TxManager
	payments repository.PaymentRepository
	drivers  repository.DriverRepository
	rides    repository.RideRepository
	settings *SettingsService
	notifier *NotificationService
	logger   *slog.Logger
	now      func() time.Time
}

// NewLedgerService creates a new LedgerService.
func NewLedgerService(
	store repository.Store,
	tx repository.TxManager,
	settings *SettingsService,
	notifier *NotificationService,
	logger *slog.Logger,
) *LedgerService {
	return &LedgerService{
		tx:       tx,
		payments: store.Payments(),
		drivers:  store.Drivers(),
		rides:    store.Rides(),
		settings: settings,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock replaces the time source.
func (s *LedgerService) SetClock(now func() time.Time) {
	s.now = now
}

// RecordCommissionRequest contains the parameters for recording a ride commission.
type RecordCommissionRequest struct {
	DriverID       string
	RideID         string
	RideFare       float64
	CommissionRate float64
}

// CommissionResult is the commission entry and the pending payout entry created with it.
type CommissionResult struct {
	Commission *domain.Payment
	Payout     *domain.Payment
}

// RecordCommission records a ride commission in its own transaction.
func (s *LedgerService) RecordCommission(ctx context.Context, req RecordCommissionRequest) (*CommissionResult, error) {
	var result *CommissionResult
	err := s.tx.WithTx(ctx, func(store repository.Store) error {
		var err error
		result, err = s.RecordCommissionTx(ctx, store, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyCommissionRecorded(ctx, result.Commission, result.Payout)
	return result, nil
}

// RecordCommissionTx records a ride commission using store, which the caller binds to a
// transaction. It creates the completed commission entry, the driver's pending payout
// entry for the remainder, and increments the driver's earnings aggregates.
func (s *LedgerService) RecordCommissionTx(ctx context.Context, store repository.Store, req RecordCommissionRequest) (*CommissionResult, error) {
	if req.DriverID == "" {
		return nil, ErrInvalidDriverID
	}
	if req.RideID == "" {
		return nil, ErrInvalidRideID
	}
	if !validMeasure(req.RideFare) {
		return nil, ErrInvalidPaymentAmount
	}
	if !inRange(req.CommissionRate, 0, 1) {
		return nil, fmt.Errorf("%w: commission rate must be between 0 and 1", ErrValidation)
	}

	now := s.now()
	commission := domain.NewCommissionPayment(uuid.New().String(), req.DriverID, req.RideID, req.RideFare, req.CommissionRate, now)
	if err := store.Payments().Create(ctx, commission); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrCommissionExists
		}
		return nil, err
	}

	payout := &domain.Payment{
		ID:             uuid.New().String(),
		DriverID:       req.DriverID,
		Type:           domain.PaymentTypePayout,
		Amount:         commission.DriverEarnings(),
		Status:         domain.PaymentStatusPending,
		PaymentMethod:  domain.PaymentMethodBankTransfer,
		RideID:         req.RideID,
		RideFare:       req.RideFare,
		CommissionRate: req.CommissionRate,
		Notes:          "driver earnings for ride " + req.RideID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := store.Payments().Create(ctx, payout); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrCommissionExists
		}
		return nil, err
	}

	if err := store.Drivers().AddEarnings(ctx, req.DriverID, payout.Amount, commission.Amount); err != nil {
		return nil, err
	}

	s.logger.Info("commission recorded",
		"driver_id", req.DriverID,
		"ride_id", req.RideID,
		"ride_fare", req.RideFare,
		"commission", commission.Amount,
	)
	return &CommissionResult{Commission: commission, Payout: payout}, nil
}

// ChargeCommissionRequest is a driver reporting the fare of one of their rides.
// RideFare is optional; when set it must match the fare recorded at completion.
type ChargeCommissionRequest struct {
	DriverID string
	RideID   string
	RideFare float64
}

// ChargeCommission records the commission for a completed ride the driver carried out,
// priced from the recorded fare at the commission rate active now. Completion already
// records the commission, so this only succeeds for completed rides that lack one.
func (s *LedgerService) ChargeCommission(ctx context.Context, req ChargeCommissionRequest) (*CommissionResult, error) {
	if req.RideID == "" {
		return nil, ErrInvalidRideID
	}

	ride, err := s.rides.GetByID(ctx, req.RideID)
	if err != nil {
		return nil, err
	}
	if ride.DriverID != req.DriverID {
		return nil, ErrNotPaymentOwner
	}
	if ride.Status != domain.RideStatusCompleted {
		return nil, ErrRideNotCompleted
	}
	if req.RideFare != 0 && math.Abs(req.RideFare-ride.Fare) >= 0.005 {
		return nil, ErrFareMismatch
	}

	settings, err := s.settings.GetActive(ctx)
	if err != nil {
		return nil, err
	}

	return s.RecordCommission(ctx, RecordCommissionRequest{
		DriverID:       req.DriverID,
		RideID:         req.RideID,
		RideFare:       ride.Fare,
		CommissionRate: settings.CommissionRate,
	})
}

// SubscriptionChargeRequest contains the parameters for a subscription charge.
type SubscriptionChargeRequest struct {
	DriverID      string
	Fee           float64
	PeriodStart   time.Time
	PeriodEnd     time.Time
	PaymentMethod domain.PaymentMethod
}

// RecordSubscriptionCharge creates a pending subscription entry. The subscription is
// activated only when the payment is confirmed.
func (s *LedgerService) RecordSubscriptionCharge(ctx context.Context, req SubscriptionChargeRequest) (*domain.Payment, error) {
	if req.DriverID == "" {
		return nil, ErrInvalidDriverID
	}
	if !validMeasure(req.Fee) {
		return nil, ErrInvalidPaymentAmount
	}
	if req.PeriodStart.IsZero() || !req.PeriodEnd.After(req.PeriodStart) {
		return nil, ErrInvalidPeriod
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = domain.PaymentMethodCard
	}
	if !req.PaymentMethod.Valid() || req.PaymentMethod == domain.PaymentMethodAutomatic {
		return nil, ErrInvalidPaymentMethod
	}

	if _, err := s.drivers.GetByID(ctx, req.DriverID); err != nil {
		return nil, err
	}

	now := s.now()
	payment := &domain.Payment{
		ID:            uuid.New().String(),
		DriverID:      req.DriverID,
		Type:          domain.PaymentTypeSubscription,
		Amount:        req.Fee,
		Status:        domain.PaymentStatusPending,
		PaymentMethod: req.PaymentMethod,
		SubscriptionPeriod: domain.Period{
			Start: req.PeriodStart,
			End:   req.PeriodEnd,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, err
	}

	s.notifier.NotifySubscriptionRequested(ctx, payment)
	return payment, nil
}

// SubscribeResult is the pending charge and the driver's subscription as it stands.
type SubscribeResult struct {
	Payment      *domain.Payment
	Subscription domain.SubscriptionStatus
}

// Subscribe charges the active monthly fee for the next subscription period. A renewal
// made while a period is still running starts when that period ends.
func (s *LedgerService) Subscribe(ctx context.Context, driverID string, method domain.PaymentMethod) (*SubscribeResult, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	driver, err := s.drivers.GetByID(ctx, driverID)
	if err != nil {
		return nil, err
	}

	settings, err := s.settings.GetActive(ctx)
	if err != nil {
		return nil, err
	}

	start := s.now()
	current := driver.Subscription.CurrentPeriod
	if driver.PlanType == domain.PlanTypeSubscription && current.Contains(start) {
		start = current.End
	}

	payment, err := s.RecordSubscriptionCharge(ctx, SubscriptionChargeRequest{
		DriverID:      driverID,
		Fee:           settings.SubscriptionFee.Monthly,
		PeriodStart:   start,
		PeriodEnd:     start.AddDate(0, 1, 0),
		PaymentMethod: method,
	})
	if err != nil {
		return nil, err
	}

	return &SubscribeResult{Payment: payment, Subscription: driver.Subscription}, nil
}

// ConfirmPaymentRequest is an external payment status report.
type ConfirmPaymentRequest struct {
	PaymentID     string
	Status        domain.PaymentStatus
	TransactionID string
	FailureReason string
}

// ConfirmPayment moves a pending or processing entry to the reported status. A completed
// subscription entry activates the driver's subscription in the same transaction.
// Confirming a completed entry as completed again returns it unchanged.
func (s *LedgerService) ConfirmPayment(ctx context.Context, req ConfirmPaymentRequest) (*domain.Payment, error) {
	if req.PaymentID == "" {
		return nil, ErrInvalidPaymentID
	}
	switch req.Status {
	case domain.PaymentStatusProcessing, domain.PaymentStatusCompleted, domain.PaymentStatusFailed:
	default:
		return nil, ErrInvalidPaymentStatus
	}

	now := s.now()
	update := repository.StatusUpdate{
		Status:        req.Status,
		TransactionID: req.TransactionID,
		FailureReason: req.FailureReason,
	}
	if req.Status.Terminal() {
		update.ProcessedAt = now
	}

	var payment *domain.Payment
	changed := false
	err := s.tx.WithTx(ctx, func(store repository.Store) error {
		updated, err := store.Payments().TransitionStatus(ctx, req.PaymentID,
			[]domain.PaymentStatus{domain.PaymentStatusPending, domain.PaymentStatusProcessing}, update)
		if errors.Is(err, repository.ErrStaleState) {
			existing, getErr := store.Payments().GetByID(ctx, req.PaymentID)
			if getErr != nil {
				return getErr
			}
			if existing.Status == domain.PaymentStatusCompleted && req.Status == domain.PaymentStatusCompleted {
				payment = existing
				return nil
			}
			return ErrPaymentAlreadySettled
		}
		if err != nil {
			return err
		}

		payment = updated
		changed = true

		if updated.Type == domain.PaymentTypeSubscription && updated.Status == domain.PaymentStatusCompleted {
			return store.Drivers().ActivateSubscription(ctx, updated.DriverID, updated.SubscriptionPeriod, domain.LastPayment{
				Amount: updated.Amount,
				Date:   now,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.logger.Info("payment confirmed",
			"payment_id", payment.ID,
			"type", payment.Type,
			"status", payment.Status,
			"driver_id", payment.DriverID,
		)
		s.notifier.NotifyPaymentConfirmed(ctx, payment)
	}
	return payment, nil
}

// HistoryFilter narrows a driver's payment history. Zero values are ignored.
type HistoryFilter struct {
	Type   domain.PaymentType
	Status domain.PaymentStatus
	From   time.Time
	To     time.Time
}

// PaymentHistory is the newest entries plus per-type totals over the whole filter.
type PaymentHistory struct {
	Payments []*domain.Payment
	Totals   map[domain.PaymentType]domain.PaymentTotal
}

// History returns a driver's entries, newest first, with totals grouped by type.
func (s *LedgerService) History(ctx context.Context, driverID string, filter HistoryFilter) (*PaymentHistory, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown payment type %q", ErrValidation, filter.Type)
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown payment status %q", ErrValidation, filter.Status)
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return nil, ErrInvalidDateRange
	}

	query := repository.PaymentFilter{
		DriverID: driverID,
		Type:     filter.Type,
		Status:   filter.Status,
		From:     filter.From,
		To:       filter.To,
	}

	totals, err := s.payments.Totals(ctx, query)
	if err != nil {
		return nil, err
	}

	query.Limit = historyLimit
	payments, err := s.payments.List(ctx, query)
	if err != nil {
		return nil, err
	}

	return &PaymentHistory{Payments: payments, Totals: totals}, nil
}

// ListPayments returns all entries, optionally filtered by status, newest first.
func (s *LedgerService) ListPayments(ctx context.Context, status domain.PaymentStatus) ([]*domain.Payment, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown payment status %q", ErrValidation, status)
	}
	return s.payments.List(ctx, repository.PaymentFilter{Status: status})
}
