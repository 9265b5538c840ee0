package repository

import (
	"context"
	"time"

	"rideledger/internal/domain"
)

// PaymentFilter narrows ledger queries. Zero values are ignored.
type PaymentFilter struct {
	DriverID string
	Type     domain.PaymentType
	Status   domain.PaymentStatus
	From     time.Time
	To       time.Time
	Limit    int
}

// StatusUpdate is applied by TransitionStatus.
type StatusUpdate struct {
	Status        domain.PaymentStatus
	TransactionID string
	FailureReason string
	ProcessedAt   time.Time
}

// PaymentRepository defines the persistence operations for ledger entries.
type PaymentRepository interface {
	// Create persists a new entry. Returns ErrDuplicate for a second commission on one ride.
	Create(ctx context.Context, payment *domain.Payment) error

	// GetByID retrieves an entry by ID.
	GetByID(ctx context.Context, id string) (*domain.Payment, error)

	// List retrieves entries matching the filter, newest first.
	List(ctx context.Context, filter PaymentFilter) ([]*domain.Payment, error)

	// Totals groups entries matching the filter by type. Limit is ignored.
	Totals(ctx context.Context, filter PaymentFilter) (map[domain.PaymentType]domain.PaymentTotal, error)

	// TransitionStatus applies the update only while the entry is in one of the
	// from statuses and returns the updated entry. Returns ErrStaleState otherwise.
	TransitionStatus(ctx context.Context, id string, from []domain.PaymentStatus, update StatusUpdate) (*domain.Payment, error)

	// SettlePendingPayouts marks every pending payout entry created at or before
	// cutoff as completed in a single statement and returns the settled entries.
	SettlePendingPayouts(ctx context.Context, cutoff, processedAt time.Time) ([]*domain.Payment, error)

	// SumCompleted sums the amounts of completed entries of the given types.
	SumCompleted(ctx context.Context, types ...domain.PaymentType) (float64, error)
}
