package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"rideledger/internal/repository"
)

// Querier is an interface satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Ensure interfaces are satisfied.
var (
	_ Querier              = (*sql.DB)(nil)
	_ Querier              = (*sql.Tx)(nil)
	_ repository.Store     = (*Store)(nil)
	_ repository.TxManager = (*Store)(nil)
)

// Store exposes the settlement repositories over a single Querier and
// opens transactions when constructed over a *sql.DB.
type Store struct {
	db *sql.DB
	q  Querier
}

// NewStore creates a Store backed by the connection pool.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, q: db}
}

func (s *Store) Drivers() repository.DriverRepository { return &DriverRepository{q: s.q} }
func (s *Store) Rides() repository.RideRepository { return &RideRepository{q: s.q} }
func (s *Store) Payments() repository.PaymentRepository { return &PaymentRepository{q: s.q} }
func (s *Store) Settings() repository.SettingsRepository {
	return &SettingsRepository{q: s.q}
}

// WithTx runs fn with repositories bound to one transaction.
func (s *Store) WithTx(ctx context.Context, fn func(repository.Store) error) (err error) {
	if s.db == nil {
		return errors.New("postgres: nested transactions are not supported")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(&Store{q: tx}); err != nil {
		return err
	}

	return tx.Commit()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// isUniqueViolation reports whether err is a PostgreSQL unique_violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// checkAffected maps a zero-row update to ErrNotFound.
func checkAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
