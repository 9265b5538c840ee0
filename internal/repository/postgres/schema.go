package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// schema creates every table the service needs. Statements are idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS settings (
	id                       TEXT PRIMARY KEY,
	commission_rate          DOUBLE PRECISION NOT NULL CHECK (commission_rate >= 0 AND commission_rate <= 1),
	subscription_fee_monthly DOUBLE PRECISION NOT NULL CHECK (subscription_fee_monthly >= 0),
	subscription_currency    TEXT NOT NULL DEFAULT 'ZAR',
	base_rate                DOUBLE PRECISION NOT NULL CHECK (base_rate >= 0),
	per_kilometer            DOUBLE PRECISION NOT NULL CHECK (per_kilometer >= 0),
	per_minute               DOUBLE PRECISION NOT NULL CHECK (per_minute >= 0),
	surge_multiplier_max     DOUBLE PRECISION NOT NULL CHECK (surge_multiplier_max >= 0),
	min_fare                 DOUBLE PRECISION NOT NULL CHECK (min_fare >= 0),
	minimum_payout           DOUBLE PRECISION NOT NULL DEFAULT 0,
	payout_schedule          TEXT NOT NULL DEFAULT 'weekly',
	auto_payouts             BOOLEAN NOT NULL DEFAULT TRUE,
	is_active                BOOLEAN NOT NULL DEFAULT TRUE,
	created_at               TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at               TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS settings_single_active ON settings (is_active) WHERE is_active;

CREATE TABLE IF NOT EXISTS drivers (
	id                    TEXT PRIMARY KEY,
	name                  TEXT NOT NULL,
	surname               TEXT NOT NULL DEFAULT '',
	email                 TEXT NOT NULL UNIQUE,
	phone                 TEXT NOT NULL DEFAULT '',
	password_hash         TEXT NOT NULL,
	car_model             TEXT NOT NULL DEFAULT '',
	car_plate             TEXT NOT NULL DEFAULT '',
	driver_license        TEXT NOT NULL UNIQUE,
	id_number             TEXT NOT NULL DEFAULT '',
	plan_type             TEXT NOT NULL DEFAULT 'commission',
	status                TEXT NOT NULL DEFAULT 'pending',
	current_status        TEXT NOT NULL DEFAULT 'offline',
	subscription_active   BOOLEAN NOT NULL DEFAULT FALSE,
	period_start          TIMESTAMPTZ,
	period_end            TIMESTAMPTZ,
	last_payment_amount   DOUBLE PRECISION NOT NULL DEFAULT 0,
	last_payment_date     TIMESTAMPTZ,
	rides_completed       INTEGER NOT NULL DEFAULT 0,
	average_rating        DOUBLE PRECISION NOT NULL DEFAULT 0,
	cancellations         INTEGER NOT NULL DEFAULT 0,
	total_earnings        DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_commission_paid DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS drivers_status ON drivers (status);

CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS admins (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS rides (
	id               TEXT PRIMARY KEY,
	passenger_id     TEXT NOT NULL,
	driver_id        TEXT,
	origin           TEXT NOT NULL,
	destination      TEXT NOT NULL,
	status           TEXT NOT NULL,
	fare             DOUBLE PRECISION NOT NULL DEFAULT 0,
	distance_meters  DOUBLE PRECISION NOT NULL DEFAULT 0,
	duration_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
	cancelled_by     TEXT,
	cancel_reason    TEXT,
	completed_at     TIMESTAMPTZ,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS rides_passenger ON rides (passenger_id);
CREATE INDEX IF NOT EXISTS rides_driver ON rides (driver_id);
CREATE INDEX IF NOT EXISTS rides_status ON rides (status);

CREATE TABLE IF NOT EXISTS payments (
	id              TEXT PRIMARY KEY,
	driver_id       TEXT NOT NULL REFERENCES drivers (id),
	type            TEXT NOT NULL,
	amount          DOUBLE PRECISION NOT NULL,
	status          TEXT NOT NULL,
	payment_method  TEXT NOT NULL,
	period_start    TIMESTAMPTZ,
	period_end      TIMESTAMPTZ,
	ride_id         TEXT,
	ride_fare       DOUBLE PRECISION NOT NULL DEFAULT 0,
	commission_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
	transaction_id  TEXT,
	notes           TEXT,
	failure_reason  TEXT,
	processed_at    TIMESTAMPTZ,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS payments_driver_type ON payments (driver_id, type);
CREATE INDEX IF NOT EXISTS payments_status ON payments (status);
CREATE INDEX IF NOT EXISTS payments_period_end ON payments (period_end) WHERE period_end IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS payments_ride_type ON payments (ride_id, type) WHERE ride_id IS NOT NULL;
`

// Migrate applies the schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
