package service

import (
	"context"

	"rideledger/internal/domain"
	"rideledger/internal/repository"
)

// AnalyticsService builds the admin dashboard summary.
type AnalyticsService struct {
	drivers  repository.DriverRepository
	rides    repository.RideRepository
	payments repository.PaymentRepository
}

// NewAnalyticsService creates a new AnalyticsService.
func NewAnalyticsService(store repository.Store) *AnalyticsService {
	return &AnalyticsService{
		drivers:  store.Drivers(),
		rides:    store.Rides(),
		payments: store.Payments(),
	}
}

// Summary counts drivers and rides and sums platform revenue, which is every completed
// commission and subscription amount.
func (s *AnalyticsService) Summary(ctx context.Context) (*domain.Analytics, error) {
	totalDrivers, err := s.drivers.Count(ctx)
	if err != nil {
		return nil, err
	}

	activeRides, err := s.rides.CountByStatus(ctx, domain.RideStatusAccepted, domain.RideStatusStarted)
	if err != nil {
		return nil, err
	}

	completedRides, err := s.rides.CountByStatus(ctx, domain.RideStatusCompleted)
	if err != nil {
		return nil, err
	}

	revenue, err := s.payments.SumCompleted(ctx, domain.PaymentTypeCommission, domain.PaymentTypeSubscription)
	if err != nil {
		return nil, err
	}

	return &domain.Analytics{
		TotalDrivers:    totalDrivers,
		ActiveRides:     activeRides,
		CompletedRides:  completedRides,
		PlatformRevenue: roundCents(revenue),
	}, nil
}
