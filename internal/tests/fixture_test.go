package tests

import (
	"math"
	"testing"
	"time"

	"rideledger/internal/domain"
	"rideledger/internal/service"
)

var testNow = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

// fixture wires every settlement service over the mocks with a frozen clock.
type fixture struct {
	store     *MockStore
	cache     *MockCacheStore
	lock      *MockLockStore
	publisher *MockPublisher

	settings *service.SettingsService
	ledger   *service.LedgerService
	payouts  *service.PayoutService
	rides    *service.RideService
	drivers  *service.DriverService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:     NewMockStore(),
		cache:     NewMockCacheStore(),
		lock:      NewMockLockStore(),
		publisher: NewMockPublisher(),
	}
	logger := NewTestLogger()
	notifier := service.NewNotificationService(f.publisher, logger)

	f.settings = service.NewSettingsService(f.store.SettingsRepo, f.store, f.cache, notifier, logger)
	f.ledger = service.NewLedgerService(f.store, f.store, f.settings, notifier, logger)
	f.payouts = service.NewPayoutService(f.store.PaymentRepo, f.lock, notifier, logger)
	f.rides = service.NewRideService(f.store, f.store, f.settings, f.ledger, notifier, logger)
	f.drivers = service.NewDriverService(f.store.DriverRepo, f.cache, notifier, logger)

	clock := FixedClock(testNow)
	f.ledger.SetClock(clock)
	f.payouts.SetClock(clock)
	f.rides.SetClock(clock)
	f.drivers.SetClock(clock)
	return f
}

// addDriver seeds a driver with the given approval status and plan.
func (f *fixture) addDriver(id string, status domain.DriverStatus, plan domain.PlanType) *domain.Driver {
	d := &domain.Driver{
		ID:            id,
		Name:          "Driver " + id,
		Email:         id + "@example.com",
		DriverLicense: "LIC-" + id,
		PlanType:      plan,
		Status:        status,
		CurrentStatus: domain.AvailabilityOnline,
		CreatedAt:     testNow.Add(-30 * 24 * time.Hour),
	}
	f.store.DriverRepo.AddDriver(d)
	return d
}

// addRide seeds a ride in the given status, assigned to driverID unless it is empty.
func (f *fixture) addRide(id, passengerID, driverID string, status domain.RideStatus) *domain.Ride {
	r := &domain.Ride{
		ID:          id,
		PassengerID: passengerID,
		DriverID:    driverID,
		Origin:      "Sea Point",
		Destination: "Observatory",
		Status:      status,
		CreatedAt:   testNow.Add(-time.Hour),
		UpdatedAt:   testNow.Add(-time.Hour),
	}
	f.store.RideRepo.AddRide(r)
	return r
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
