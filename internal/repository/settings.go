package repository

import (
	"context"

	"rideledger/internal/domain"
)

// SettingsRepository defines the persistence operations for settings.
type SettingsRepository interface {
	// GetActive retrieves the active record. Returns ErrNotFound if none exists.
	GetActive(ctx context.Context) (*domain.Settings, error)

	// Activate deactivates every other record and stores settings as the active one.
	// Callers run it inside a transaction so readers never see a half-applied swap.
	Activate(ctx context.Context, settings *domain.Settings) error
}
