package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"rideledger/internal/domain"
	"rideledger/internal/repository"
)

// PaymentRepository is a PostgreSQL implementation of repository.PaymentRepository.
type PaymentRepository struct {
	q Querier
}

// NewPaymentRepository creates a new PostgreSQL payment repository.
func NewPaymentRepository(db *sql.DB) *PaymentRepository {
	return &PaymentRepository{q: db}
}

// NewPaymentRepositoryWithTx creates a payment repository using a transaction.
func NewPaymentRepositoryWithTx(tx *sql.Tx) *PaymentRepository {
	return &PaymentRepository{q: tx}
}

const paymentColumns = `id, driver_id, type, amount, status, payment_method, period_start, period_end,
	ride_id, ride_fare, commission_rate, transaction_id, notes, failure_reason, processed_at,
	created_at, updated_at`

func scanPayment(row rowScanner) (*domain.Payment, error) {
	var p domain.Payment
	var periodStart, periodEnd, processedAt sql.NullTime
	var rideID, transactionID, notes, failureReason sql.NullString

	err := row.Scan(
		&p.ID,
		&p.DriverID,
		&p.Type,
		&p.Amount,
		&p.Status,
		&p.PaymentMethod,
		&periodStart,
		&periodEnd,
		&rideID,
		&p.RideFare,
		&p.CommissionRate,
		&transactionID,
		&notes,
		&failureReason,
		&processedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.SubscriptionPeriod.Start = periodStart.Time
	p.SubscriptionPeriod.End = periodEnd.Time
	p.ProcessedAt = processedAt.Time
	p.RideID = rideID.String
	p.TransactionID = transactionID.String
	p.Notes = notes.String
	p.FailureReason = failureReason.String

	return &p, nil
}

// Create persists a new ledger entry.
func (r *PaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	query := `
		INSERT INTO payments (id, driver_id, type, amount, status, payment_method, period_start, period_end,
			ride_id, ride_fare, commission_rate, transaction_id, notes, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at
	`

	err := r.q.QueryRowContext(ctx, query,
		p.ID,
		p.DriverID,
		p.Type,
		p.Amount,
		p.Status,
		p.PaymentMethod,
		nullTime(p.SubscriptionPeriod.Start),
		nullTime(p.SubscriptionPeriod.End),
		nullString(p.RideID),
		p.RideFare,
		p.CommissionRate,
		nullString(p.TransactionID),
		nullString(p.Notes),
		nullTime(p.ProcessedAt),
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return err
	}

	return nil
}

// GetByID retrieves a ledger entry by ID.
func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	payment, err := scanPayment(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return payment, nil
}

// paymentWhere renders the filter as a WHERE clause with positional args.
func paymentWhere(f repository.PaymentFilter) (string, []any) {
	var conds []string
	var args []any

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.DriverID != "" {
		add("driver_id = $%d", f.DriverID)
	}
	if f.Type != "" {
		add("type = $%d", f.Type)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if !f.From.IsZero() {
		add("created_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("created_at <= $%d", f.To)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List retrieves entries matching the filter, newest first.
func (r *PaymentRepository) List(ctx context.Context, filter repository.PaymentFilter) ([]*domain.Payment, error) {
	where, args := paymentWhere(filter)
	query := `SELECT ` + paymentColumns + ` FROM payments` + where + ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return collectPayments(rows)
}

// Totals groups entries matching the filter by type.
func (r *PaymentRepository) Totals(ctx context.Context, filter repository.PaymentFilter) (map[domain.PaymentType]domain.PaymentTotal, error) {
	where, args := paymentWhere(filter)
	query := `SELECT type, COALESCE(SUM(amount), 0), COUNT(*) FROM payments` + where + ` GROUP BY type`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make(map[domain.PaymentType]domain.PaymentTotal)
	for rows.Next() {
		var t domain.PaymentType
		var total domain.PaymentTotal
		if err := rows.Scan(&t, &total.Total, &total.Count); err != nil {
			return nil, err
		}
		totals[t] = total
	}
	return totals, rows.Err()
}

// TransitionStatus applies the update while the entry is in one of the from statuses.
func (r *PaymentRepository) TransitionStatus(ctx context.Context, id string, from []domain.PaymentStatus, u repository.StatusUpdate) (*domain.Payment, error) {
	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}

	query := `
		UPDATE payments
		SET status = $1,
			transaction_id = COALESCE($2, transaction_id),
			failure_reason = COALESCE($3, failure_reason),
			processed_at = $4,
			updated_at = NOW()
		WHERE id = $5 AND status = ANY($6)
		RETURNING ` + paymentColumns

	payment, err := scanPayment(r.q.QueryRowContext(ctx, query,
		u.Status,
		nullString(u.TransactionID),
		nullString(u.FailureReason),
		nullTime(u.ProcessedAt),
		id,
		pq.Array(allowed),
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, getErr := r.GetByID(ctx, id); getErr != nil {
				return nil, getErr
			}
			return nil, repository.ErrStaleState
		}
		return nil, err
	}

	return payment, nil
}

// SettlePendingPayouts completes every pending payout created at or before cutoff.
// Concurrent callers serialize on the row locks and the loser re-evaluates the
// status predicate, so an entry is returned by exactly one call.
func (r *PaymentRepository) SettlePendingPayouts(ctx context.Context, cutoff, processedAt time.Time) ([]*domain.Payment, error) {
	query := `
		UPDATE payments
		SET status = $1, processed_at = $2, updated_at = NOW()
		WHERE status = $3 AND type = $4 AND created_at <= $5
		RETURNING ` + paymentColumns

	rows, err := r.q.QueryContext(ctx, query,
		domain.PaymentStatusCompleted,
		processedAt,
		domain.PaymentStatusPending,
		domain.PaymentTypePayout,
		cutoff,
	)
	if err != nil {
		return nil, err
	}
	return collectPayments(rows)
}

// SumCompleted sums the amounts of completed entries of the given types.
func (r *PaymentRepository) SumCompleted(ctx context.Context, types ...domain.PaymentType) (float64, error) {
	values := make([]string, len(types))
	for i, t := range types {
		values[i] = string(t)
	}

	var total float64
	query := `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE status = $1 AND type = ANY($2)`
	err := r.q.QueryRowContext(ctx, query, domain.PaymentStatusCompleted, pq.Array(values)).Scan(&total)
	return total, err
}

func collectPayments(rows *sql.Rows) ([]*domain.Payment, error) {
	defer rows.Close()

	var payments []*domain.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	return payments, rows.Err()
}

var _ repository.PaymentRepository = (*PaymentRepository)(nil)
