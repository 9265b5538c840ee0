package postgres

import (
	"context"
	"database/sql"
	"errors"

	"rideledger/internal/domain"
	"rideledger/internal/repository"
)

// SettingsRepository is a PostgreSQL implementation of repository.SettingsRepository.
type SettingsRepository struct {
	q Querier
}

// NewSettingsRepository creates a new PostgreSQL settings repository.
func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{q: db}
}

// NewSettingsRepositoryWithTx creates a settings repository using a transaction.
func NewSettingsRepositoryWithTx(tx *sql.Tx) *SettingsRepository {
	return &SettingsRepository{q: tx}
}

const settingsColumns = `id, commission_rate, subscription_fee_monthly, subscription_currency,
	base_rate, per_kilometer, per_minute, surge_multiplier_max, min_fare,
	minimum_payout, payout_schedule, auto_payouts, is_active, created_at, updated_at`

// GetActive retrieves the active settings record.
func (r *SettingsRepository) GetActive(ctx context.Context) (*domain.Settings, error) {
	query := `SELECT ` + settingsColumns + ` FROM settings WHERE is_active LIMIT 1`

	var s domain.Settings
	err := r.q.QueryRowContext(ctx, query).Scan(
		&s.ID,
		&s.CommissionRate,
		&s.SubscriptionFee.Monthly,
		&s.SubscriptionFee.Currency,
		&s.FareCalculation.BaseRate,
		&s.FareCalculation.PerKilometer,
		&s.FareCalculation.PerMinute,
		&s.FareCalculation.SurgeMultiplierMax,
		&s.MinFare,
		&s.Payout.MinimumPayout,
		&s.Payout.PayoutSchedule,
		&s.Payout.AutoPayouts,
		&s.IsActive,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return &s, nil
}

// Activate deactivates all other records and inserts settings as the active one.
// The partial unique index on is_active rejects a concurrent second activation.
func (r *SettingsRepository) Activate(ctx context.Context, s *domain.Settings) error {
	deactivate := `UPDATE settings SET is_active = FALSE, updated_at = NOW() WHERE is_active AND id <> $1`
	if _, err := r.q.ExecContext(ctx, deactivate, s.ID); err != nil {
		return err
	}

	insert := `
		INSERT INTO settings (id, commission_rate, subscription_fee_monthly, subscription_currency,
			base_rate, per_kilometer, per_minute, surge_multiplier_max, min_fare,
			minimum_payout, payout_schedule, auto_payouts, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, TRUE)
		RETURNING created_at, updated_at
	`

	err := r.q.QueryRowContext(ctx, insert,
		s.ID,
		s.CommissionRate,
		s.SubscriptionFee.Monthly,
		s.SubscriptionFee.Currency,
		s.FareCalculation.BaseRate,
		s.FareCalculation.PerKilometer,
		s.FareCalculation.PerMinute,
		s.FareCalculation.SurgeMultiplierMax,
		s.MinFare,
		s.Payout.MinimumPayout,
		s.Payout.PayoutSchedule,
		s.Payout.AutoPayouts,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return err
	}

	s.IsActive = true
	return nil
}

var _ repository.SettingsRepository = (*SettingsRepository)(nil)
