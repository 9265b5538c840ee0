package domain

import "time"

// PlanType is how a driver pays the platform.
type PlanType string

const (
	PlanTypeSubscription PlanType = "subscription"
	PlanTypeCommission   PlanType = "commission"
)

// ParsePlanType normalizes client input. "free" is the legacy name of the commission plan.
func ParsePlanType(s string) (PlanType, bool) {
	switch s {
	case "subscription":
		return PlanTypeSubscription, true
	case "commission", "free":
		return PlanTypeCommission, true
	}
	return "", false
}

// DriverStatus is the approval status of a driver.
type DriverStatus string

const (
	DriverStatusPending   DriverStatus = "pending"
	DriverStatusActive    DriverStatus = "active"
	DriverStatusSuspended DriverStatus = "suspended"
	DriverStatusRejected  DriverStatus = "rejected"
)

// Availability is the online/offline toggle controlled by the driver.
type Availability string

const (
	AvailabilityOnline  Availability = "online"
	AvailabilityOffline Availability = "offline"
)

// Period is a closed time window.
type Period struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls within the period, bounds included.
func (p Period) Contains(t time.Time) bool {
	if p.Start.IsZero() || p.End.IsZero() {
		return false
	}
	return !t.Before(p.Start) && !t.After(p.End)
}

// Extend merges a newly paid period into p. A period that starts at or before p ends
// keeps p's start and runs to the later end; otherwise next replaces p.
func (p Period) Extend(next Period) Period {
	if p.Start.IsZero() || p.End.IsZero() || p.End.Before(next.Start) {
		return next
	}
	if next.End.After(p.End) {
		p.End = next.End
	}
	return p
}

// LastPayment records the most recent confirmed subscription payment.
type LastPayment struct {
	Amount float64
	Date   time.Time
}

// SubscriptionStatus is only meaningful for subscription-plan drivers.
type SubscriptionStatus struct {
	IsActive      bool
	CurrentPeriod Period
	LastPayment   LastPayment
}

// Driver represents a driver in the system.
type Driver struct {
	ID            string
	Name          string
	Surname       string
	Email         string
	Phone         string
	PasswordHash  string
	CarModel      string
	CarPlate      string
	DriverLicense string
	IDNumber      string

	PlanType      PlanType
	Status        DriverStatus
	CurrentStatus Availability
	Subscription  SubscriptionStatus

	// Aggregates, only ever incremented.
	RidesCompleted      int
	AverageRating       float64
	Cancellations       int
	TotalEarnings       float64
	TotalCommissionPaid float64

	CreatedAt time.Time
	UpdatedAt time.Time
}
