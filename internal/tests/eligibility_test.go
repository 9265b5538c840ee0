package tests

import (
	"testing"
	"time"

	"rideledger/internal/domain"
	"rideledger/internal/service"
)

func TestEvaluateEligibility(t *testing.T) {
	t.Parallel()

	now := testNow
	running := domain.Period{Start: now.Add(-24 * time.Hour), End: now.Add(24 * time.Hour)}
	expired := domain.Period{Start: now.Add(-60 * 24 * time.Hour), End: now.Add(-24 * time.Hour)}

	testCases := []struct {
		name             string
		status           domain.DriverStatus
		plan             domain.PlanType
		period           domain.Period
		wantCanAccept    bool
		wantSubscription bool
		wantReasons      int
	}{
		{"active commission driver", domain.DriverStatusActive, domain.PlanTypeCommission, domain.Period{}, true, true, 0},
		{"active subscriber in period", domain.DriverStatusActive, domain.PlanTypeSubscription, running, true, true, 0},
		{"active subscriber expired", domain.DriverStatusActive, domain.PlanTypeSubscription, expired, true, false, 1},
		{"active subscriber never paid", domain.DriverStatusActive, domain.PlanTypeSubscription, domain.Period{}, true, false, 1},
		{"pending driver", domain.DriverStatusPending, domain.PlanTypeCommission, domain.Period{}, false, true, 1},
		{"suspended subscriber expired", domain.DriverStatusSuspended, domain.PlanTypeSubscription, expired, false, false, 2},
		{"rejected driver", domain.DriverStatusRejected, domain.PlanTypeCommission, domain.Period{}, false, true, 1},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			driver := &domain.Driver{
				ID:           "driver-1",
				Status:       tc.status,
				PlanType:     tc.plan,
				Subscription: domain.SubscriptionStatus{CurrentPeriod: tc.period},
			}

			e := service.Evaluate(driver, now)
			if e.CanAcceptRides != tc.wantCanAccept {
				t.Errorf("expected CanAcceptRides=%v, got %v", tc.wantCanAccept, e.CanAcceptRides)
			}
			if e.SubscriptionActive != tc.wantSubscription {
				t.Errorf("expected SubscriptionActive=%v, got %v", tc.wantSubscription, e.SubscriptionActive)
			}
			if e.Eligible != (tc.wantCanAccept && tc.wantSubscription) {
				t.Errorf("Eligible=%v does not match both gates", e.Eligible)
			}
			if len(e.Reasons) != tc.wantReasons {
				t.Errorf("expected %d reasons, got %v", tc.wantReasons, e.Reasons)
			}
		})
	}
}

func TestIsSubscriptionActive_PeriodBoundsAreInclusive(t *testing.T) {
	t.Parallel()

	start := testNow
	end := start.AddDate(0, 1, 0)
	driver := &domain.Driver{
		PlanType:     domain.PlanTypeSubscription,
		Subscription: domain.SubscriptionStatus{CurrentPeriod: domain.Period{Start: start, End: end}},
	}

	if !service.IsSubscriptionActive(driver, start) {
		t.Error("expected subscription active at period start")
	}
	if !service.IsSubscriptionActive(driver, end) {
		t.Error("expected subscription active at period end")
	}
	if service.IsSubscriptionActive(driver, end.Add(time.Second)) {
		t.Error("expected subscription inactive after period end")
	}
}

func TestPeriodExtend(t *testing.T) {
	t.Parallel()

	start := testNow.AddDate(0, -1, 0)
	end := testNow.Add(10 * 24 * time.Hour)
	current := domain.Period{Start: start, End: end}

	testCases := []struct {
		name    string
		current domain.Period
		next    domain.Period
		want    domain.Period
	}{
		{"no previous period", domain.Period{}, domain.Period{Start: testNow, End: end}, domain.Period{Start: testNow, End: end}},
		{"renewal from the running end", current, domain.Period{Start: end, End: end.AddDate(0, 1, 0)}, domain.Period{Start: start, End: end.AddDate(0, 1, 0)}},
		{"overlapping shorter period", current, domain.Period{Start: testNow, End: testNow.Add(time.Hour)}, current},
		{"after a lapse", current, domain.Period{Start: end.Add(time.Hour), End: end.AddDate(0, 1, 0)}, domain.Period{Start: end.Add(time.Hour), End: end.AddDate(0, 1, 0)}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.current.Extend(tc.next)
			if !got.Start.Equal(tc.want.Start) || !got.End.Equal(tc.want.End) {
				t.Errorf("expected %v - %v, got %v - %v", tc.want.Start, tc.want.End, got.Start, got.End)
			}
		})
	}
}
