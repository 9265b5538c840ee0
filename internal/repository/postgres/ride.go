package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"rideledger/internal/domain"
	"rideledger/internal/repository"
)

// RideRepository is a PostgreSQL implementation of repository.RideRepository.
type RideRepository struct {
	q Querier
}

// NewRideRepository creates a new PostgreSQL ride repository.
func NewRideRepository(db *sql.DB) *RideRepository {
	return &RideRepository{q: db}
}

// NewRideRepositoryWithTx creates a ride repository using a transaction.
func NewRideRepositoryWithTx(tx *sql.Tx) *RideRepository {
	return &RideRepository{q: tx}
}

const rideColumns = `id, passenger_id, driver_id, origin, destination, status, fare,
	distance_meters, duration_seconds, cancelled_by, cancel_reason, completed_at, created_at, updated_at`

func scanRide(row rowScanner) (*domain.Ride, error) {
	var ride domain.Ride
	var driverID, cancelledBy, cancelReason sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(
		&ride.ID,
		&ride.PassengerID,
		&driverID,
		&ride.Origin,
		&ride.Destination,
		&ride.Status,
		&ride.Fare,
		&ride.DistanceMeters,
		&ride.DurationSeconds,
		&cancelledBy,
		&cancelReason,
		&completedAt,
		&ride.CreatedAt,
		&ride.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if driverID.Valid {
		ride.DriverID = driverID.String
	}
	if cancelledBy.Valid {
		ride.CancelledBy = cancelledBy.String
	}
	if cancelReason.Valid {
		ride.CancelReason = cancelReason.String
	}
	if completedAt.Valid {
		ride.CompletedAt = completedAt.Time
	}

	return &ride, nil
}

// Create persists a new ride.
func (r *RideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	query := `
		INSERT INTO rides (id, passenger_id, driver_id, origin, destination, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	return r.q.QueryRowContext(ctx, query,
		ride.ID,
		ride.PassengerID,
		nullString(ride.DriverID),
		ride.Origin,
		ride.Destination,
		ride.Status,
	).Scan(&ride.CreatedAt, &ride.UpdatedAt)
}

// GetByID retrieves a ride by ID.
func (r *RideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE id = $1`

	ride, err := scanRide(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return ride, nil
}

// ListByParticipant retrieves rides where id is the passenger or the driver.
func (r *RideRepository) ListByParticipant(ctx context.Context, id string) ([]*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE passenger_id = $1 OR driver_id = $1 ORDER BY created_at DESC LIMIT 100`
	return r.list(ctx, query, id)
}

// List retrieves rides, optionally filtered by status.
func (r *RideRepository) List(ctx context.Context, status domain.RideStatus) ([]*domain.Ride, error) {
	query := `SELECT ` + rideColumns + ` FROM rides WHERE ($1 = '' OR status = $1) ORDER BY created_at DESC LIMIT 100`
	return r.list(ctx, query, string(status))
}

func (r *RideRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Ride, error) {
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rides []*domain.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, err
		}
		rides = append(rides, ride)
	}
	return rides, rows.Err()
}

// CountByStatus counts rides in any of the given statuses.
func (r *RideRepository) CountByStatus(ctx context.Context, statuses ...domain.RideStatus) (int, error) {
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}

	var n int
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM rides WHERE status = ANY($1)`, pq.Array(values)).Scan(&n)
	return n, err
}

// Transition writes the ride only while its stored status equals from.
func (r *RideRepository) Transition(ctx context.Context, ride *domain.Ride, from domain.RideStatus) error {
	query := `
		UPDATE rides
		SET driver_id = $1, status = $2, fare = $3, distance_meters = $4, duration_seconds = $5,
			cancelled_by = $6, cancel_reason = $7, completed_at = $8, updated_at = NOW()
		WHERE id = $9 AND status = $10
		RETURNING updated_at
	`

	err := r.q.QueryRowContext(ctx, query,
		nullString(ride.DriverID),
		ride.Status,
		ride.Fare,
		ride.DistanceMeters,
		ride.DurationSeconds,
		nullString(ride.CancelledBy),
		nullString(ride.CancelReason),
		nullTime(ride.CompletedAt),
		ride.ID,
		from,
	).Scan(&ride.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, getErr := r.GetByID(ctx, ride.ID); getErr != nil {
				return getErr
			}
			return repository.ErrStaleState
		}
		return err
	}

	return nil
}

var _ repository.RideRepository = (*RideRepository)(nil)
