package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"rideledger/internal/domain"
	"rideledger/internal/service"
)

func TestRecordCommission_CreatesCommissionAndPayout(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addDriver("driver-1", domain.DriverStatusActive, domain.PlanTypeCommission)

	result, err := f.ledger.RecordCommission(context.Background(), service.RecordCommissionRequest{
		DriverID:       "driver-1",
		RideID:         "ride-1",
		RideFare:       100,
		CommissionRate: 0.15,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c := result.Commission
	if !approxEqual(c.Amount, 15) {
		t.Errorf("expected commission 15, got %v", c.Amount)
	}
	if c.Status != domain.PaymentStatusCompleted || c.PaymentMethod != domain.PaymentMethodAutomatic {
		t.Errorf("expected completed automatic entry, got %s/%s", c.Status, c.PaymentMethod)
	}

	p := result.Payout
	if p.Type != domain.PaymentTypePayout || p.Status != domain.PaymentStatusPending {
		t.Errorf("expected pending payout, got %s/%s", p.Type, p.Status)
	}
	if !approxEqual(p.Amount, 85) {
		t.Errorf("expected payout 85, got %v", p.Amount)
	}

	driver := f.store.DriverRepo.GetDriver("driver-1")
	if !approxEqual(driver.TotalCommissionPaid, 15) {
		t.Errorf("expected totalCommissionPaid 15, got %v", driver.TotalCommissionPaid)
	}
	if !approxEqual(driver.TotalEarnings, 85) {
		t.Errorf("expected totalEarnings 85, got %v", driver.TotalEarnings)
	}

	if f.publisher.Count(string(service.EventCommissionRecorded)) != 1 {
		t.Errorf("expected one commission event, got %v", f.publisher.RoutingKeys())
	}
}

func TestRecordCommission_RateFixedAtRecording(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.addDriver("driver-1", domain.DriverStatusActive, domain.PlanTypeCommission)

	result, err := f.ledger.RecordCommission(ctx, service.RecordCommissionRequest{
		DriverID: "driver-1", RideID: "ride-1", RideFare: 100, CommissionRate: 0.15,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	next := domain.DefaultSettings()
	next.CommissionRate = 0.25
	if _, err := f.settings.SetActive(ctx, next); err != nil {
		t.Fatalf("failed to change settings: %v", err)
	}

	stored, err := f.store.PaymentRepo.GetByID(ctx, result.Commission.ID)
	if err != nil {
		t.Fatalf("failed to load commission: %v", err)
	}
	if !approxEqual(stored.Amount, 15) || stored.CommissionRate != 0.15 {
		t.Errorf("expected stored commission 15 at 0.15, got %v at %v", stored.Amount, stored.CommissionRate)
	}
}

func TestRecordCommission_DuplicateRideIsConflict(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.addDriver("driver-1", domain.DriverStatusActive, domain.PlanTypeCommission)

	req := service.RecordCommissionRequest{DriverID: "driver-1", RideID: "ride-1", RideFare: 100, CommissionRate: 0.15}
	if _, err := f.ledger.RecordCommission(ctx, req); err != nil {
		t.Fatalf("first commission failed: %v", err)
	}

	_, err := f.ledger.RecordCommission(ctx, req)
	if !errors.Is(err, service.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	// The failed attempt must not have touched the aggregates.
	driver := f.store.DriverRepo.GetDriver("driver-1")
	if !approxEqual(driver.TotalCommissionPaid, 15) {
		t.Errorf("expected totalCommissionPaid 15, got %v", driver.TotalCommissionPaid)
	}
	if len(f.store.PaymentRepo.All()) != 2 {
		t.Errorf("expected 2 entries, got %d", len(f.store.PaymentRepo.All()))
	}
}

func TestRecordCommission_Validation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	testCases := []struct {
		name string
		req  service.RecordCommissionRequest
	}{
		{"missing driver", service.RecordCommissionRequest{RideID: "r", RideFare: 10, CommissionRate: 0.1}},
		{"missing ride", service.RecordCommissionRequest{DriverID: "d", RideFare: 10, CommissionRate: 0.1}},
		{"negative fare", service.RecordCommissionRequest{DriverID: "d", RideID: "r", RideFare: -10, CommissionRate: 0.1}},
		{"rate above one", service.RecordCommissionRequest{DriverID: "d", RideID: "r", RideFare: 10, CommissionRate: 1.5}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.ledger.RecordCommission(context.Background(), tc.req)
			if !errors.Is(err, service.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestChargeCommission_RequiresOwnCompletedRide(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.addDriver("driver-1", domain.DriverStatusActive, domain.PlanTypeCommission)
	f.addDriver("driver-2", domain.DriverStatusActive, domain.PlanTypeCommission)
	f.addRide("ride-1", "user-1", "driver-1", domain.RideStatusCompleted)
	f.store.RideRepo.GetRide("ride-1").Fare = 200

	_, err := f.ledger.ChargeCommission(ctx, service.ChargeCommissionRequest{DriverID: "driver-2", RideID: "ride-1", RideFare: 200})
	if !errors.Is(err, service.ErrForbidden) {
		t.Errorf("expected forbidden for another driver's ride, got %v", err)
	}

	_, err = f.ledger.ChargeCommission(ctx, service.ChargeCommissionRequest{DriverID: "driver-1", RideID: "ride-1", RideFare: 1})
	if !errors.Is(err, service.ErrFareMismatch) || !errors.Is(err, service.ErrValidation) {
		t.Errorf("expected fare mismatch, got %v", err)
	}

	result, err := f.ledger.ChargeCommission(ctx, service.ChargeCommissionRequest{DriverID: "driver-1", RideID: "ride-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !approxEqual(result.Commission.Amount, 30) || !approxEqual(result.Commission.RideFare, 200) {
		t.Errorf("expected commission 30 on the recorded fare 200, got %v on %v", result.Commission.Amount, result.Commission.RideFare)
	}
}

func TestChargeCommission_RejectsUnfinishedRides(t *testing.T) {
	t.Parallel()

	for _, status := range []domain.RideStatus{
		domain.RideStatusAccepted,
		domain.RideStatusStarted,
		domain.RideStatusCancelled,
	} {
		status := status
		t.Run(string(status), func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			f.addDriver("driver-1", domain.DriverStatusActive, domain.PlanTypeCommission)
			f.addRide("ride-1", "user-1", "driver-1", status)

			_, err := f.ledger.ChargeCommission(context.Background(), service.ChargeCommissionRequest{DriverID: "driver-1", RideID: "ride-1", RideFare: 0})
			if !errors.Is(err, service.ErrRideNotCompleted) || !errors.Is(err, service.ErrConflict) {
				t.Errorf("expected ErrRideNotCompleted, got %v", err)
			}
			if n := len(f.store.PaymentRepo.All()); n != 0 {
				t.Errorf("expected no ledger entries, got %d", n)
			}
		})
	}
}

func TestChargeCommission_CannotBlockRideCompletion(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.addDriver("driver-1", domain.DriverStatusActive, domain.PlanTypeCommission)
	f.addRide("ride-1", "user-1", "driver-1", domain.RideStatusStarted)

	if _, err := f.ledger.ChargeCommission(ctx, service.ChargeCommissionRequest{DriverID: "driver-1", RideID: "ride-1"}); err == nil {
		t.Fatal("expected the started ride to be rejected")
	}

	result, err := f.rides.CompleteRide(ctx, service.CompleteRideRequest{RideID: "ride-1", DriverID: "driver-1", DistanceMeters: 5000, DurationSeconds: 600})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if !approxEqual(result.Commission.Commission.Amount, 13.5) {
		t.Errorf("expected commission 13.5, got %v", result.Commission.Commission.Amount)
	}

	_, err = f.ledger.ChargeCommission(ctx, service.ChargeCommissionRequest{DriverID: "driver-1", RideID: "ride-1"})
	if !errors.Is(err, service.ErrCommissionExists) {
		t.Errorf("expected ErrCommissionExists after completion, got %v", err)
	}
}

func TestSubscribe_CreatesPendingChargeWithoutActivating(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addDriver("driver-1", domain.DriverStatusActive, domain.PlanTypeCommission)

	result, err := f.ledger.Subscribe(context.Background(), "driver-1", domain.PaymentMethodCard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := result.Payment
	if p.Type != domain.PaymentTypeSubscription || p.Status != domain.PaymentStatusPending {
		t.Errorf("expected pending subscription entry, got %s/%s", p.Type, p.Status)
	}
	if !approxEqual(p.Amount, 200) {
		t.Errorf("expected the configured monthly fee 200, got %v", p.Amount)
	}
	if !p.SubscriptionPeriod.Start.Equal(testNow) || !p.SubscriptionPeriod.End.Equal(testNow.AddDate(0, 1, 0)) {
		t.Errorf("unexpected period %v - %v", p.SubscriptionPeriod.Start, p.SubscriptionPeriod.End)
	}

	driver := f.store.DriverRepo.GetDriver("driver-1")
	if driver.Subscription.IsActive || driver.PlanType != domain.PlanTypeCommission {
		t.Error("expected the subscription to stay inactive until payment is confirmed")
	}
}

func TestSubscribe_RenewalStartsAtEndOfRunningPeriod(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	end := testNow.Add(10 * 24 * time.Hour)
	d := &domain.Driver{
		ID:       "driver-1",
		Email:    "driver-1@example.com",
		Status:   domain.DriverStatusActive,
		PlanType: domain.PlanTypeSubscription,
		Subscription: domain.SubscriptionStatus{
			IsActive:      true,
			CurrentPeriod: domain.Period{Start: end.AddDate(0, -1, 0), End: end},
		},
	}
	f.store.DriverRepo.AddDriver(d)

	result, err := f.ledger.Subscribe(context.Background(), "driver-1", domain.PaymentMethodCard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Payment.SubscriptionPeriod.Start.Equal(end) {
		t.Errorf("expected renewal to start at %v, got %v", end, result.Payment.SubscriptionPeriod.Start)
	}
}

func TestConfirmPayment_EarlyRenewalKeepsDriverEligible(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	start := testNow.AddDate(0, -1, 0).Add(10 * 24 * time.Hour)
	end := testNow.Add(10 * 24 * time.Hour)
	f.store.DriverRepo.AddDriver(&domain.Driver{
		ID:       "driver-1",
		Email:    "driver-1@example.com",
		Status:   domain.DriverStatusActive,
		PlanType: domain.PlanTypeSubscription,
		Subscription: domain.SubscriptionStatus{
			IsActive:      true,
			CurrentPeriod: domain.Period{Start: start, End: end},
		},
	})

	sub, err := f.ledger.Subscribe(ctx, "driver-1", domain.PaymentMethodCard)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	if _, err := f.ledger.ConfirmPayment(ctx, service.ConfirmPaymentRequest{
		PaymentID: sub.Payment.ID,
		Status:    domain.PaymentStatusCompleted,
	}); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}

	driver := f.store.DriverRepo.GetDriver("driver-1")
	if e := service.Evaluate(driver, testNow); !e.Eligible {
		t.Errorf("expected driver to stay eligible after renewing early, reasons %v", e.Reasons)
	}
	period := driver.Subscription.CurrentPeriod
	if !period.Start.Equal(start) || !period.End.Equal(end.AddDate(0, 1, 0)) {
		t.Errorf("expected period %v - %v, got %v - %v", start, end.AddDate(0, 1, 0), period.Start, period.End)
	}
}

func TestRecordSubscriptionCharge_Validation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addDriver("driver-1", domain.DriverStatusActive, domain.PlanTypeCommission)

	testCases := []struct {
		name string
		req  service.SubscriptionChargeRequest
	}{
		{"negative fee", service.SubscriptionChargeRequest{DriverID: "driver-1", Fee: -1, PeriodStart: testNow, PeriodEnd: testNow.Add(time.Hour)}},
		{"end before start", service.SubscriptionChargeRequest{DriverID: "driver-1", Fee: 200, PeriodStart: testNow, PeriodEnd: testNow.Add(-time.Hour)}},
		{"automatic method", service.SubscriptionChargeRequest{DriverID: "driver-1", Fee: 200, PeriodStart: testNow, PeriodEnd: testNow.Add(time.Hour), PaymentMethod: domain.PaymentMethodAutomatic}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.ledger.RecordSubscriptionCharge(context.Background(), tc.req)
			if !errors.Is(err, service.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestConfirmPayment_ActivatesSubscriptionOnce(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.addDriver("driver-1", domain.DriverStatusActive, domain.PlanTypeCommission)

	sub, err := f.ledger.Subscribe(ctx, "driver-1", domain.PaymentMethodCard)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	confirm := service.ConfirmPaymentRequest{
		PaymentID:     sub.Payment.ID,
		Status:        domain.PaymentStatusCompleted,
		TransactionID: "txn-1",
	}
	payment, err := f.ledger.ConfirmPayment(ctx, confirm)
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if payment.Status != domain.PaymentStatusCompleted || payment.TransactionID != "txn-1" {
		t.Errorf("unexpected confirmed entry %+v", payment)
	}

	driver := f.store.DriverRepo.GetDriver("driver-1")
	if driver.PlanType != domain.PlanTypeSubscription || !driver.Subscription.IsActive {
		t.Fatalf("expected active subscription, got plan %s active=%v", driver.PlanType, driver.Subscription.IsActive)
	}
	if !driver.Subscription.CurrentPeriod.End.Equal(sub.Payment.SubscriptionPeriod.End) {
		t.Errorf("expected period end %v, got %v", sub.Payment.SubscriptionPeriod.End, driver.Subscription.CurrentPeriod.End)
	}

	// A repeated delivery is a no-op.
	again, err := f.ledger.ConfirmPayment(ctx, confirm)
	if err != nil {
		t.Fatalf("repeated confirm failed: %v", err)
	}
	if again.ID != payment.ID || again.Status != domain.PaymentStatusCompleted {
		t.Errorf("expected the same completed entry, got %+v", again)
	}
	if n := f.publisher.Count(string(service.EventSubscriptionActivated)); n != 1 {
		t.Errorf("expected one activation event, got %d", n)
	}
}

func TestConfirmPayment_TerminalStatesAreFinal(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.addDriver("driver-1", domain.DriverStatusActive, domain.PlanTypeCommission)

	sub, err := f.ledger.Subscribe(ctx, "driver-1", domain.PaymentMethodCard)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	if _, err := f.ledger.ConfirmPayment(ctx, service.ConfirmPaymentRequest{
		PaymentID: sub.Payment.ID, Status: domain.PaymentStatusFailed, FailureReason: "card declined",
	}); err != nil {
		t.Fatalf("fail transition failed: %v", err)
	}

	_, err = f.ledger.ConfirmPayment(ctx, service.ConfirmPaymentRequest{
		PaymentID: sub.Payment.ID, Status: domain.PaymentStatusCompleted,
	})
	if !errors.Is(err, service.ErrPaymentAlreadySettled) {
		t.Errorf("expected ErrPaymentAlreadySettled, got %v", err)
	}

	driver := f.store.DriverRepo.GetDriver("driver-1")
	if driver.Subscription.IsActive {
		t.Error("a failed payment must not activate the subscription")
	}
}

func TestConfirmPayment_ProcessingThenCompleted(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	f.addDriver("driver-1", domain.DriverStatusActive, domain.PlanTypeCommission)

	sub, err := f.ledger.Subscribe(ctx, "driver-1", domain.PaymentMethodBankTransfer)
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	for _, status := range []domain.PaymentStatus{domain.PaymentStatusProcessing, domain.PaymentStatusCompleted} {
		if _, err := f.ledger.ConfirmPayment(ctx, service.ConfirmPaymentRequest{PaymentID: sub.Payment.ID, Status: status}); err != nil {
			t.Fatalf("transition to %s failed: %v", status, err)
		}
	}

	if !f.store.DriverRepo.GetDriver("driver-1").Subscription.IsActive {
		t.Error("expected subscription active after completion")
	}
}

func TestConfirmPayment_Validation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ledger.ConfirmPayment(ctx, service.ConfirmPaymentRequest{PaymentID: "p", Status: domain.PaymentStatusPending})
	if !errors.Is(err, service.ErrValidation) {
		t.Errorf("expected validation error for pending status, got %v", err)
	}

	_, err = f.ledger.ConfirmPayment(ctx, service.ConfirmPaymentRequest{PaymentID: "missing", Status: domain.PaymentStatusCompleted})
	if err == nil {
		t.Error("expected error for unknown payment")
	}
}

func TestHistory_NewestFirstWithTotals(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	for i, amount := range []float64{10, 20, 30} {
		f.store.PaymentRepo.AddPayment(&domain.Payment{
			ID:        "c" + string(rune('1'+i)),
			DriverID:  "driver-1",
			Type:      domain.PaymentTypeCommission,
			Amount:    amount,
			Status:    domain.PaymentStatusCompleted,
			CreatedAt: testNow.Add(time.Duration(i) * time.Hour),
		})
	}
	f.store.PaymentRepo.AddPayment(&domain.Payment{
		ID: "s1", DriverID: "driver-1", Type: domain.PaymentTypeSubscription, Amount: 200,
		Status: domain.PaymentStatusPending, CreatedAt: testNow,
	})
	f.store.PaymentRepo.AddPayment(&domain.Payment{
		ID: "other", DriverID: "driver-2", Type: domain.PaymentTypeCommission, Amount: 99,
		Status: domain.PaymentStatusCompleted, CreatedAt: testNow,
	})

	history, err := f.ledger.History(ctx, "driver-1", service.HistoryFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history.Payments) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(history.Payments))
	}
	if history.Payments[0].ID != "c3" {
		t.Errorf("expected newest entry first, got %s", history.Payments[0].ID)
	}

	commission := history.Totals[domain.PaymentTypeCommission]
	if !approxEqual(commission.Total, 60) || commission.Count != 3 {
		t.Errorf("expected commission totals 60/3, got %v/%d", commission.Total, commission.Count)
	}

	filtered, err := f.ledger.History(ctx, "driver-1", service.HistoryFilter{Type: domain.PaymentTypeSubscription})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(filtered.Payments) != 1 || len(filtered.Totals) != 1 {
		t.Errorf("expected only subscription entries, got %d entries and %d totals", len(filtered.Payments), len(filtered.Totals))
	}

	_, err = f.ledger.History(ctx, "driver-1", service.HistoryFilter{From: testNow, To: testNow.Add(-time.Hour)})
	if !errors.Is(err, service.ErrValidation) {
		t.Errorf("expected validation error for reversed range, got %v", err)
	}
}
