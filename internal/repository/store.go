package repository

import "context"

// Store groups the repositories that take part in settlement transactions.
type Store interface {
	Drivers() DriverRepository
	Rides() RideRepository
	Payments() PaymentRepository
	Settings() SettingsRepository
}

// TxManager runs fn against a Store bound to a single transaction.
// The transaction commits if fn returns nil and rolls back otherwise.
type TxManager interface {
	WithTx(ctx context.Context, fn func(Store) error) error
}
