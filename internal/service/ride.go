package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"rideledger/internal/domain"
	"rideledger/internal/repository"
)

// RideService handles the ride lifecycle and settles completed rides.
type RideService struct {
	tx         repository.TxManager
	rideRepo   repository.RideRepository
	driverRepo repository.DriverRepository
	settings   *SettingsService
	ledger     *LedgerService
	notifier   *NotificationService
	logger     *slog.Logger
	now        func() time.Time
}

// NewRideService creates a new RideService.
func NewRideService(
	store repository.Store,
	tx repository.TxManager,
	settings *SettingsService,
	ledger *LedgerService,
	notifier *NotificationService,
	logger *slog.Logger,
) *RideService {
	return &RideService{
		tx:         tx,
		rideRepo:   store.Rides(),
		driverRepo: store.Drivers(),
		settings:   settings,
		ledger:     ledger,
		notifier:   notifier,
		logger:     logger,
		now:        time.Now,
	}
}

// SetClock replaces the time source.
func (s *RideService) SetClock(now func() time.Time) {
	s.now = now
}

// CreateRideRequest contains the parameters for creating a ride.
type CreateRideRequest struct {
	PassengerID string
	Origin      string
	Destination string
}

// CreateRide creates a ride in requested status.
func (s *RideService) CreateRide(ctx context.Context, req CreateRideRequest) (*domain.Ride, error) {
	if req.PassengerID == "" {
		return nil, fmt.Errorf("%w: invalid passenger id", ErrValidation)
	}
	if strings.TrimSpace(req.Origin) == "" || strings.TrimSpace(req.Destination) == "" {
		return nil, fmt.Errorf("%w: origin and destination are required", ErrValidation)
	}

	now := s.now()
	ride := &domain.Ride{
		ID:          uuid.New().String(),
		PassengerID: req.PassengerID,
		Origin:      req.Origin,
		Destination: req.Destination,
		Status:      domain.RideStatusRequested,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.rideRepo.Create(ctx, ride); err != nil {
		return nil, err
	}
	return ride, nil
}

// GetRide retrieves a ride visible to the caller.
func (s *RideService) GetRide(ctx context.Context, rideID string, caller Identity) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if caller.Role != domain.RoleAdmin && !isParticipant(ride, caller.ID) {
		return nil, ErrNotRideParticipant
	}
	return ride, nil
}

// ListForParticipant returns the rides where the caller is passenger or driver, newest first.
func (s *RideService) ListForParticipant(ctx context.Context, participantID string) ([]*domain.Ride, error) {
	return s.rideRepo.ListByParticipant(ctx, participantID)
}

// ListRides returns all rides, optionally filtered by status.
func (s *RideService) ListRides(ctx context.Context, status domain.RideStatus) ([]*domain.Ride, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown ride status %q", ErrValidation, status)
	}
	return s.rideRepo.List(ctx, status)
}

// AcceptRide assigns a requested ride to the driver if both eligibility gates pass.
func (s *RideService) AcceptRide(ctx context.Context, rideID, driverID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if e := Evaluate(driver, s.now()); !e.Eligible {
		return nil, fmt.Errorf("%w: %s", ErrDriverNotEligible, strings.Join(e.Reasons, "; "))
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}

	from := ride.Status
	if !from.CanTransition(domain.RideStatusAccepted) {
		return nil, ErrInvalidRideTransition
	}

	ride.DriverID = driverID
	ride.Status = domain.RideStatusAccepted
	if err := s.transition(ctx, s.rideRepo, ride, from); err != nil {
		return nil, err
	}

	s.logger.Info("ride accepted", "ride_id", ride.ID, "driver_id", driverID)
	return ride, nil
}

// StartRide moves an accepted ride to started. Only the assigned driver may start it.
func (s *RideService) StartRide(ctx context.Context, rideID, driverID string) (*domain.Ride, error) {
	ride, err := s.assignedRide(ctx, rideID, driverID)
	if err != nil {
		return nil, err
	}

	from := ride.Status
	if !from.CanTransition(domain.RideStatusStarted) {
		return nil, ErrInvalidRideTransition
	}

	ride.Status = domain.RideStatusStarted
	if err := s.transition(ctx, s.rideRepo, ride, from); err != nil {
		return nil, err
	}
	return ride, nil
}

// CompleteRideRequest contains the measured trip reported by the driver.
type CompleteRideRequest struct {
	RideID          string
	DriverID        string
	DistanceMeters  float64
	DurationSeconds float64
	SurgeMultiplier float64
}

// CompleteRideResult is the completed ride, its fare quote and the ledger entries it produced.
type CompleteRideResult struct {
	Ride       *domain.Ride
	Quote      FareQuote
	Commission *CommissionResult
}

// CompleteRide prices the ride with the active settings and, in one transaction, marks it
// completed, records the commission and increments the driver's completed rides.
func (s *RideService) CompleteRide(ctx context.Context, req CompleteRideRequest) (*CompleteRideResult, error) {
	ride, err := s.assignedRide(ctx, req.RideID, req.DriverID)
	if err != nil {
		return nil, err
	}

	from := ride.Status
	if !from.CanTransition(domain.RideStatusCompleted) {
		return nil, ErrInvalidRideTransition
	}

	settings, err := s.settings.GetActive(ctx)
	if err != nil {
		return nil, err
	}

	quote, err := CalculateFare(*settings, FareInput{
		DistanceMeters:  req.DistanceMeters,
		DurationSeconds: req.DurationSeconds,
		SurgeMultiplier: req.SurgeMultiplier,
	})
	if err != nil {
		return nil, err
	}

	ride.Status = domain.RideStatusCompleted
	ride.Fare = quote.Amount
	ride.DistanceMeters = req.DistanceMeters
	ride.DurationSeconds = req.DurationSeconds
	ride.CompletedAt = s.now()

	var commission *CommissionResult
	err = s.tx.WithTx(ctx, func(store repository.Store) error {
		if err := s.transition(ctx, store.Rides(), ride, from); err != nil {
			return err
		}

		recorded, err := s.ledger.RecordCommissionTx(ctx, store, RecordCommissionRequest{
			DriverID:       ride.DriverID,
			RideID:         ride.ID,
			RideFare:       ride.Fare,
			CommissionRate: settings.CommissionRate,
		})
		if err != nil {
			return err
		}
		commission = recorded

		return store.Drivers().IncrementRidesCompleted(ctx, ride.DriverID)
	})
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyRideCompleted(ctx, ride)
	s.notifier.NotifyCommissionRecorded(ctx, commission.Commission, commission.Payout)
	s.logger.Info("ride completed", "ride_id", ride.ID, "driver_id", ride.DriverID, "fare", ride.Fare)

	return &CompleteRideResult{Ride: ride, Quote: quote, Commission: commission}, nil
}

// CancelRide cancels a ride that has not finished. The passenger, the assigned driver
// or an admin may cancel; a driver cancellation counts against the driver.
func (s *RideService) CancelRide(ctx context.Context, rideID string, caller Identity, reason string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if caller.Role != domain.RoleAdmin && !isParticipant(ride, caller.ID) {
		return nil, ErrNotRideParticipant
	}

	from := ride.Status
	if !from.CanTransition(domain.RideStatusCancelled) {
		return nil, ErrInvalidRideTransition
	}

	ride.Status = domain.RideStatusCancelled
	ride.CancelledBy = string(caller.Role)
	ride.CancelReason = reason

	byDriver := caller.Role == domain.RoleDriver && caller.ID == ride.DriverID
	err = s.tx.WithTx(ctx, func(store repository.Store) error {
		if err := s.transition(ctx, store.Rides(), ride, from); err != nil {
			return err
		}
		if byDriver {
			return store.Drivers().IncrementCancellations(ctx, ride.DriverID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyRideCancelled(ctx, ride)
	return ride, nil
}

func (s *RideService) assignedRide(ctx context.Context, rideID, driverID string) (*domain.Ride, error) {
	if rideID == "" {
		return nil, ErrInvalidRideID
	}
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	ride, err := s.rideRepo.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.DriverID != driverID {
		return nil, ErrNotRideParticipant
	}
	return ride, nil
}

// transition writes the ride through rides, mapping a lost race to a conflict.
func (s *RideService) transition(ctx context.Context, rides repository.RideRepository, ride *domain.Ride, from domain.RideStatus) error {
	err := rides.Transition(ctx, ride, from)
	if errors.Is(err, repository.ErrStaleState) {
		return ErrInvalidRideTransition
	}
	return err
}

func isParticipant(ride *domain.Ride, id string) bool {
	return id != "" && (ride.PassengerID == id || ride.DriverID == id)
}

// ValidatePaymentMethod validates a payment method string. Empty defaults to card.
func ValidatePaymentMethod(method string) (domain.PaymentMethod, error) {
	switch m := domain.PaymentMethod(strings.ToLower(method)); m {
	case domain.PaymentMethodBankTransfer, domain.PaymentMethodCard, domain.PaymentMethodCash:
		return m, nil
	case "":
		return domain.PaymentMethodCard, nil
	default:
		return "", ErrInvalidPaymentMethod
	}
}
