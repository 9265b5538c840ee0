package postgres

import (
	"context"
	"database/sql"
	"errors"

	"rideledger/internal/domain"
	"rideledger/internal/repository"
)

// DriverRepository is a PostgreSQL implementation of repository.DriverRepository.
type DriverRepository struct {
	q Querier
}

// NewDriverRepository creates a new PostgreSQL driver repository.
func NewDriverRepository(db *sql.DB) *DriverRepository {
	return &DriverRepository{q: db}
}

// NewDriverRepositoryWithTx creates a driver repository using a transaction.
func NewDriverRepositoryWithTx(tx *sql.Tx) *DriverRepository {
	return &DriverRepository{q: tx}
}

const driverColumns = `id, name, surname, email, phone, password_hash, car_model, car_plate,
	driver_license, id_number, plan_type, status, current_status,
	subscription_active, period_start, period_end, last_payment_amount, last_payment_date,
	rides_completed, average_rating, cancellations, total_earnings, total_commission_paid,
	created_at, updated_at`

func scanDriver(row rowScanner) (*domain.Driver, error) {
	var d domain.Driver
	var periodStart, periodEnd, lastPaymentDate sql.NullTime

	err := row.Scan(
		&d.ID,
		&d.Name,
		&d.Surname,
		&d.Email,
		&d.Phone,
		&d.PasswordHash,
		&d.CarModel,
		&d.CarPlate,
		&d.DriverLicense,
		&d.IDNumber,
		&d.PlanType,
		&d.Status,
		&d.CurrentStatus,
		&d.Subscription.IsActive,
		&periodStart,
		&periodEnd,
		&d.Subscription.LastPayment.Amount,
		&lastPaymentDate,
		&d.RidesCompleted,
		&d.AverageRating,
		&d.Cancellations,
		&d.TotalEarnings,
		&d.TotalCommissionPaid,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if periodStart.Valid {
		d.Subscription.CurrentPeriod.Start = periodStart.Time
	}
	if periodEnd.Valid {
		d.Subscription.CurrentPeriod.End = periodEnd.Time
	}
	if lastPaymentDate.Valid {
		d.Subscription.LastPayment.Date = lastPaymentDate.Time
	}

	return &d, nil
}

// Create adds a new driver.
func (r *DriverRepository) Create(ctx context.Context, d *domain.Driver) error {
	query := `
		INSERT INTO drivers (id, name, surname, email, phone, password_hash, car_model, car_plate,
			driver_license, id_number, plan_type, status, current_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`

	err := r.q.QueryRowContext(ctx, query,
		d.ID,
		d.Name,
		d.Surname,
		d.Email,
		d.Phone,
		d.PasswordHash,
		d.CarModel,
		d.CarPlate,
		d.DriverLicense,
		d.IDNumber,
		d.PlanType,
		d.Status,
		d.CurrentStatus,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return err
	}

	return nil
}

// GetByID retrieves a driver by ID.
func (r *DriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	return r.getOne(ctx, `SELECT `+driverColumns+` FROM drivers WHERE id = $1`, id)
}

// GetByEmail retrieves a driver by email.
func (r *DriverRepository) GetByEmail(ctx context.Context, email string) (*domain.Driver, error) {
	return r.getOne(ctx, `SELECT `+driverColumns+` FROM drivers WHERE email = $1`, email)
}

// GetByLicense retrieves a driver by license number.
func (r *DriverRepository) GetByLicense(ctx context.Context, license string) (*domain.Driver, error) {
	return r.getOne(ctx, `SELECT `+driverColumns+` FROM drivers WHERE driver_license = $1`, license)
}

func (r *DriverRepository) getOne(ctx context.Context, query string, arg any) (*domain.Driver, error) {
	driver, err := scanDriver(r.q.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return driver, nil
}

// List retrieves drivers, optionally filtered by status.
func (r *DriverRepository) List(ctx context.Context, status domain.DriverStatus) ([]*domain.Driver, error) {
	query := `SELECT ` + driverColumns + ` FROM drivers WHERE ($1 = '' OR status = $1) ORDER BY created_at DESC`
	rows, err := r.q.QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drivers []*domain.Driver
	for rows.Next() {
		driver, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		drivers = append(drivers, driver)
	}
	return drivers, rows.Err()
}

// Count returns the number of registered drivers.
func (r *DriverRepository) Count(ctx context.Context) (int, error) {
	var n int
	err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM drivers`).Scan(&n)
	return n, err
}

// TransitionStatus moves a driver between approval statuses.
func (r *DriverRepository) TransitionStatus(ctx context.Context, id string, from, to domain.DriverStatus) error {
	query := `UPDATE drivers SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`

	result, err := r.q.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return err
	}

	if err := checkAffected(result); err != nil {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return repository.ErrStaleState
	}

	return nil
}

// UpdatePlan changes the plan type.
func (r *DriverRepository) UpdatePlan(ctx context.Context, id string, plan domain.PlanType) error {
	return r.exec(ctx, `UPDATE drivers SET plan_type = $1, updated_at = NOW() WHERE id = $2`, plan, id)
}

// UpdateAvailability sets the online/offline toggle.
func (r *DriverRepository) UpdateAvailability(ctx context.Context, id string, availability domain.Availability) error {
	return r.exec(ctx, `UPDATE drivers SET current_status = $1, updated_at = NOW() WHERE id = $2`, availability, id)
}

// ActivateSubscription switches the driver to an active subscription period. A period
// that starts at or before the stored end extends the stored one, matching Period.Extend.
func (r *DriverRepository) ActivateSubscription(ctx context.Context, id string, period domain.Period, payment domain.LastPayment) error {
	query := `
		UPDATE drivers
		SET plan_type = $1, subscription_active = TRUE,
			period_start = CASE WHEN period_start IS NOT NULL AND period_end >= $2 THEN period_start ELSE $2 END,
			period_end = CASE WHEN period_start IS NOT NULL AND period_end >= $2 THEN GREATEST(period_end, $3) ELSE $3 END,
			last_payment_amount = $4, last_payment_date = $5, updated_at = NOW()
		WHERE id = $6
	`
	return r.exec(ctx, query,
		domain.PlanTypeSubscription,
		period.Start,
		period.End,
		payment.Amount,
		nullTime(payment.Date),
		id,
	)
}

// AddEarnings increments the earnings and commission aggregates.
func (r *DriverRepository) AddEarnings(ctx context.Context, id string, earnings, commission float64) error {
	query := `
		UPDATE drivers
		SET total_earnings = total_earnings + $1, total_commission_paid = total_commission_paid + $2, updated_at = NOW()
		WHERE id = $3
	`
	return r.exec(ctx, query, earnings, commission, id)
}

// IncrementRidesCompleted increments the completed rides counter.
func (r *DriverRepository) IncrementRidesCompleted(ctx context.Context, id string) error {
	return r.exec(ctx, `UPDATE drivers SET rides_completed = rides_completed + 1, updated_at = NOW() WHERE id = $1`, id)
}

// IncrementCancellations increments the cancellations counter.
func (r *DriverRepository) IncrementCancellations(ctx context.Context, id string) error {
	return r.exec(ctx, `UPDATE drivers SET cancellations = cancellations + 1, updated_at = NOW() WHERE id = $1`, id)
}

func (r *DriverRepository) exec(ctx context.Context, query string, args ...any) error {
	result, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return checkAffected(result)
}

var _ repository.DriverRepository = (*DriverRepository)(nil)
