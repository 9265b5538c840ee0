package tests

import (
	"context"
	"errors"
	"sync"
	"testing"

	"rideledger/internal/domain"
	"rideledger/internal/repository"
	"rideledger/internal/service"
)

func TestGetActive_CreatesDefaultsOnce(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.settings.GetActive(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.CommissionRate != 0.15 || first.MinFare != 50 || first.SubscriptionFee.Monthly != 200 {
		t.Errorf("unexpected defaults %+v", first)
	}

	second, err := f.settings.GetActive(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected the same record, got %s and %s", first.ID, second.ID)
	}
	if len(f.store.SettingsRepo.Records()) != 1 {
		t.Errorf("expected one record, got %d", len(f.store.SettingsRepo.Records()))
	}
	if f.cache.SettingsHits == 0 {
		t.Error("expected the second read to be served from cache")
	}
}

func TestGetActive_ConcurrentFirstReadsLeaveOneActive(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	const readers = 8
	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := f.settings.GetActive(ctx); err != nil {
				t.Errorf("reader %d failed: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if f.store.SettingsRepo.ActiveCount() != 1 {
		t.Errorf("expected exactly one active record, got %d", f.store.SettingsRepo.ActiveCount())
	}
}

func TestSetActive_LeavesSingleActiveRecord(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	a := domain.DefaultSettings()
	a.CommissionRate = 0.1
	b := domain.DefaultSettings()
	b.CommissionRate = 0.2

	if _, err := f.settings.SetActive(ctx, a); err != nil {
		t.Fatalf("first SetActive failed: %v", err)
	}
	if _, err := f.settings.SetActive(ctx, b); err != nil {
		t.Fatalf("second SetActive failed: %v", err)
	}

	if n := f.store.SettingsRepo.ActiveCount(); n != 1 {
		t.Fatalf("expected one active record, got %d", n)
	}
	active, err := f.settings.GetActive(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if active.CommissionRate != 0.2 {
		t.Errorf("expected the last write to win, got rate %v", active.CommissionRate)
	}
	if f.cache.InvalidateSettingsCnt != 2 {
		t.Errorf("expected cache invalidated per write, got %d", f.cache.InvalidateSettingsCnt)
	}
}

func TestGetActive_ReaderRacingSetActiveDoesNotCacheStaleRecord(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	old := domain.DefaultSettings()
	old.CommissionRate = 0.1
	if _, err := f.settings.SetActive(ctx, old); err != nil {
		t.Fatalf("seed SetActive failed: %v", err)
	}

	// The update commits after the reader loaded the old record but before it caches it.
	updated := domain.DefaultSettings()
	updated.CommissionRate = 0.25
	f.store.SettingsRepo.AfterGetActive = func() {
		if _, err := f.settings.SetActive(ctx, updated); err != nil {
			t.Errorf("concurrent SetActive failed: %v", err)
		}
	}

	stale, err := f.settings.GetActive(ctx)
	if err != nil {
		t.Fatalf("racing read failed: %v", err)
	}
	if stale.CommissionRate != 0.1 {
		t.Fatalf("expected the racing reader to see the old record, got %v", stale.CommissionRate)
	}

	current, err := f.settings.GetActive(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if current.CommissionRate != 0.25 {
		t.Errorf("expected the committed rate 0.25, got %v", current.CommissionRate)
	}
}

func TestSetActive_RetriesCollision(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.store.SettingsRepo.ActivateErrors = []error{repository.ErrDuplicate}

	if _, err := f.settings.SetActive(context.Background(), domain.DefaultSettings()); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if f.store.SettingsRepo.ActivateCallCount != 2 {
		t.Errorf("expected 2 activation attempts, got %d", f.store.SettingsRepo.ActivateCallCount)
	}
}

func TestSetActive_GivesUpAfterRepeatedCollisions(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.store.SettingsRepo.ActivateErrors = []error{repository.ErrDuplicate, repository.ErrDuplicate, repository.ErrDuplicate}

	_, err := f.settings.SetActive(context.Background(), domain.DefaultSettings())
	if !errors.Is(err, service.ErrSettingsContention) {
		t.Errorf("expected ErrSettingsContention, got %v", err)
	}
}

func TestValidateSettings(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		mutate  func(*domain.Settings)
		wantErr bool
	}{
		{"defaults", func(*domain.Settings) {}, false},
		{"rate zero", func(s *domain.Settings) { s.CommissionRate = 0 }, false},
		{"rate one", func(s *domain.Settings) { s.CommissionRate = 1 }, false},
		{"rate above one", func(s *domain.Settings) { s.CommissionRate = 1.01 }, true},
		{"negative rate", func(s *domain.Settings) { s.CommissionRate = -0.1 }, true},
		{"negative min fare", func(s *domain.Settings) { s.MinFare = -1 }, true},
		{"negative per kilometer", func(s *domain.Settings) { s.FareCalculation.PerKilometer = -5 }, true},
		{"unknown schedule", func(s *domain.Settings) { s.Payout.PayoutSchedule = "hourly" }, true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := domain.DefaultSettings()
			tc.mutate(&s)
			err := service.ValidateSettings(&s)
			if tc.wantErr && !errors.Is(err, service.ErrValidation) {
				t.Errorf("expected validation error, got %v", err)
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateSettings_FillsDefaults(t *testing.T) {
	t.Parallel()

	s := domain.DefaultSettings()
	s.SubscriptionFee.Currency = ""
	s.Payout.PayoutSchedule = ""
	if err := service.ValidateSettings(&s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.SubscriptionFee.Currency != "ZAR" || s.Payout.PayoutSchedule != domain.PayoutScheduleWeekly {
		t.Errorf("expected defaults filled, got %q / %q", s.SubscriptionFee.Currency, s.Payout.PayoutSchedule)
	}
}

func TestEstimateFare_UsesActiveSettings(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	s := domain.DefaultSettings()
	s.MinFare = 100
	if _, err := f.settings.SetActive(ctx, s); err != nil {
		t.Fatalf("SetActive failed: %v", err)
	}

	quote, err := f.settings.EstimateFare(ctx, service.FareInput{DistanceMeters: 5000, DurationSeconds: 600})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !approxEqual(quote.Amount, 100) || !approxEqual(quote.Breakdown.Adjustment, 10) {
		t.Errorf("expected clamp to 100 with adjustment 10, got %v / %v", quote.Amount, quote.Breakdown.Adjustment)
	}
}
