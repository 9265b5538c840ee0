package domain

import "time"

// PayoutSchedule is how often automatic payouts run.
type PayoutSchedule string

const (
	PayoutScheduleDaily    PayoutSchedule = "daily"
	PayoutScheduleWeekly   PayoutSchedule = "weekly"
	PayoutScheduleBiweekly PayoutSchedule = "biweekly"
	PayoutScheduleMonthly  PayoutSchedule = "monthly"
)

// Valid reports whether the schedule is one of the known values.
func (s PayoutSchedule) Valid() bool {
	switch s {
	case PayoutScheduleDaily, PayoutScheduleWeekly, PayoutScheduleBiweekly, PayoutScheduleMonthly:
		return true
	}
	return false
}

// SubscriptionFee is the recurring charge for subscription-plan drivers.
type SubscriptionFee struct {
	Monthly  float64
	Currency string
}

// FareCalculation holds the tariff used by the fare calculator.
type FareCalculation struct {
	BaseRate           float64
	PerKilometer       float64
	PerMinute          float64
	SurgeMultiplierMax float64
}

// PayoutSettings controls payout batches.
type PayoutSettings struct {
	MinimumPayout  float64
	PayoutSchedule PayoutSchedule
	AutoPayouts    bool
}

// Settings is the platform tariff and commission configuration.
// Exactly one record is active at any time.
type Settings struct {
	ID              string
	CommissionRate  float64 // fraction in [0,1]
	SubscriptionFee SubscriptionFee
	FareCalculation FareCalculation
	MinFare         float64
	Payout          PayoutSettings
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// DefaultSettings returns the configuration used when no active record exists.
func DefaultSettings() Settings {
	return Settings{
		CommissionRate: 0.15,
		SubscriptionFee: SubscriptionFee{
			Monthly:  200,
			Currency: "ZAR",
		},
		FareCalculation: FareCalculation{
			BaseRate:           20,
			PerKilometer:       10,
			PerMinute:          2,
			SurgeMultiplierMax: 3,
		},
		MinFare: 50,
		Payout: PayoutSettings{
			MinimumPayout:  500,
			PayoutSchedule: PayoutScheduleWeekly,
			AutoPayouts:    true,
		},
		IsActive: true,
	}
}
