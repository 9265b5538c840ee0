package domain

import "time"

// PaymentType is the kind of ledger entry.
type PaymentType string

const (
	PaymentTypeSubscription PaymentType = "subscription"
	PaymentTypeCommission   PaymentType = "commission"
	PaymentTypePayout       PaymentType = "payout"
)

// Valid reports whether the type is known.
func (t PaymentType) Valid() bool {
	switch t {
	case PaymentTypeSubscription, PaymentTypeCommission, PaymentTypePayout:
		return true
	}
	return false
}

// PaymentStatus represents the current status of a ledger entry.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
)

// Valid reports whether the status is known.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusProcessing, PaymentStatusCompleted, PaymentStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether the entry can no longer change.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed
}

// PaymentMethod is how money moved.
type PaymentMethod string

const (
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodAutomatic    PaymentMethod = "automatic"
)

// Valid reports whether the method is known.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodBankTransfer, PaymentMethodCard, PaymentMethodCash, PaymentMethodAutomatic:
		return true
	}
	return false
}

// Payment is a ledger entry tied to a driver.
type Payment struct {
	ID            string
	DriverID      string
	Type          PaymentType
	Amount        float64
	Status        PaymentStatus
	PaymentMethod PaymentMethod

	// Subscription entries.
	SubscriptionPeriod Period

	// Commission and payout entries.
	RideID         string
	RideFare       float64
	CommissionRate float64

	TransactionID string
	Notes         string
	FailureReason string
	ProcessedAt   time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewCommissionPayment builds a commission entry. The amount is fixed here and
// never recomputed, so later commission rate changes do not affect it.
func NewCommissionPayment(id, driverID, rideID string, rideFare, commissionRate float64, now time.Time) *Payment {
	return &Payment{
		ID:             id,
		DriverID:       driverID,
		Type:           PaymentTypeCommission,
		Amount:         rideFare * commissionRate,
		Status:         PaymentStatusCompleted,
		PaymentMethod:  PaymentMethodAutomatic,
		RideID:         rideID,
		RideFare:       rideFare,
		CommissionRate: commissionRate,
		ProcessedAt:    now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// DriverEarnings is the driver's share of a ride fare after commission.
func (p *Payment) DriverEarnings() float64 {
	return p.RideFare - p.RideFare*p.CommissionRate
}

// PaymentTotal aggregates entries of one type.
type PaymentTotal struct {
	Total float64
	Count int
}

// PayoutReport summarizes one driver's settled payouts in a batch.
type PayoutReport struct {
	DriverID  string
	TotalPaid float64
	RidesPaid []string
	Status    PaymentStatus
}
