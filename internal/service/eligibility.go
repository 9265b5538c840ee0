package service

import (
	"time"

	"rideledger/internal/domain"
)

// Eligibility reasons reported to drivers and admins.
const (
	ReasonNotApproved         = "driver account is not active"
	ReasonSubscriptionExpired = "subscription period does not cover the current time"
)

// Eligibility is the result of evaluating both ride acceptance gates.
type Eligibility struct {
	CanAcceptRides     bool
	SubscriptionActive bool
	Eligible           bool
	Reasons            []string
	SubscriptionEndsAt time.Time
}

// CanAcceptRides reports whether the driver's approval status allows rides.
func CanAcceptRides(d *domain.Driver) bool {
	return d.Status == domain.DriverStatusActive
}

// IsSubscriptionActive reports whether the driver is clear of the subscription gate.
// Commission-plan drivers always are; subscription-plan drivers need a period covering now.
func IsSubscriptionActive(d *domain.Driver, now time.Time) bool {
	if d.PlanType != domain.PlanTypeSubscription {
		return true
	}
	return d.Subscription.CurrentPeriod.Contains(now)
}

// Evaluate applies both gates and collects the reasons for any failure.
func Evaluate(d *domain.Driver, now time.Time) Eligibility {
	e := Eligibility{
		CanAcceptRides:     CanAcceptRides(d),
		SubscriptionActive: IsSubscriptionActive(d, now),
		SubscriptionEndsAt: d.Subscription.CurrentPeriod.End,
	}
	if !e.CanAcceptRides {
		e.Reasons = append(e.Reasons, ReasonNotApproved)
	}
	if !e.SubscriptionActive {
		e.Reasons = append(e.Reasons, ReasonSubscriptionExpired)
	}
	e.Eligible = e.CanAcceptRides && e.SubscriptionActive
	return e
}
