package repository

import (
	"context"

	"rideledger/internal/domain"
)

// RideRepository defines the persistence operations for rides.
type RideRepository interface {
	// Create persists a new ride.
	Create(ctx context.Context, ride *domain.Ride) error

	// GetByID retrieves a ride by ID.
	GetByID(ctx context.Context, id string) (*domain.Ride, error)

	// ListByParticipant retrieves rides where the id is the passenger or the driver.
	ListByParticipant(ctx context.Context, id string) ([]*domain.Ride, error)

	// List retrieves rides, optionally filtered by status.
	List(ctx context.Context, status domain.RideStatus) ([]*domain.Ride, error)

	// CountByStatus counts rides in any of the given statuses.
	CountByStatus(ctx context.Context, statuses ...domain.RideStatus) (int, error)

	// Transition writes the ride only if its stored status still equals from.
	// Returns ErrStaleState otherwise.
	Transition(ctx context.Context, ride *domain.Ride, from domain.RideStatus) error
}
