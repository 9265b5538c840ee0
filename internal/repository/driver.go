package repository

import (
	"context"

	"rideledger/internal/domain"
)

// DriverRepository defines the persistence operations for drivers.
type DriverRepository interface {
	// Create adds a new driver. Returns ErrDuplicate on email or license clash.
	Create(ctx context.Context, driver *domain.Driver) error

	// GetByID retrieves a driver by ID.
	GetByID(ctx context.Context, id string) (*domain.Driver, error)

	// GetByEmail retrieves a driver by email.
	GetByEmail(ctx context.Context, email string) (*domain.Driver, error)

	// GetByLicense retrieves a driver by license number.
	GetByLicense(ctx context.Context, license string) (*domain.Driver, error)

	// List retrieves drivers, optionally filtered by approval status.
	List(ctx context.Context, status domain.DriverStatus) ([]*domain.Driver, error)

	// Count returns the number of registered drivers.
	Count(ctx context.Context) (int, error)

	// TransitionStatus moves a driver from one approval status to another.
	// Returns ErrStaleState if the driver is not in the expected status.
	TransitionStatus(ctx context.Context, id string, from, to domain.DriverStatus) error

	// UpdatePlan changes the plan type.
	UpdatePlan(ctx context.Context, id string, plan domain.PlanType) error

	// UpdateAvailability sets the online/offline toggle.
	UpdateAvailability(ctx context.Context, id string, availability domain.Availability) error

	// ActivateSubscription switches the driver to the subscription plan with the given period.
	ActivateSubscription(ctx context.Context, id string, period domain.Period, payment domain.LastPayment) error

	// AddEarnings increments the earnings and commission aggregates.
	AddEarnings(ctx context.Context, id string, earnings, commission float64) error

	// IncrementRidesCompleted increments the completed rides counter.
	IncrementRidesCompleted(ctx context.Context, id string) error

	// IncrementCancellations increments the cancellations counter.
	IncrementCancellations(ctx context.Context, id string) error
}
