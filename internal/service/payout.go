package service

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"rideledger/internal/domain"
	"rideledger/internal/redis"
	"rideledger/internal/repository"
)

// payoutLockTTL bounds how long a crashed batch can block the next one.
const payoutLockTTL = 5 * time.Minute

// PayoutService settles pending payout entries in batches.
type PayoutService struct {
	payments repository.PaymentRepository
	lock     redis.LockStoreInterface
	notifier *NotificationService
	logger   *slog.Logger
	now      func() time.Time
}

// NewPayoutService creates a new PayoutService. lock may be nil.
func NewPayoutService(
	payments repository.PaymentRepository,
	lock redis.LockStoreInterface,
	notifier *NotificationService,
	logger *slog.Logger,
) *PayoutService {
	return &PayoutService{
		payments: payments,
		lock:     lock,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock replaces the time source.
func (s *PayoutService) SetClock(now func() time.Time) {
	s.now = now
}

// ProcessPending settles every pending payout entry created at or before cutoff and
// reports the totals per driver. A zero cutoff means now. Entries are claimed by a
// single guarded update, so a second run finds nothing left to settle.
func (s *PayoutService) ProcessPending(ctx context.Context, cutoff time.Time) ([]domain.PayoutReport, error) {
	now := s.now()
	if cutoff.IsZero() {
		cutoff = now
	}

	if s.lock != nil {
		token := uuid.New().String()
		acquired, err := s.lock.AcquirePayoutLock(ctx, token, payoutLockTTL)
		if err != nil {
			return nil, err
		}
		if !acquired {
			return nil, ErrPayoutInProgress
		}
		defer func() {
			// Released even when the caller went away mid-batch.
			if err := s.lock.ReleasePayoutLock(context.WithoutCancel(ctx), token); err != nil {
				s.logger.Warn("release payout lock", "error", err)
			}
		}()
	}

	settled, err := s.payments.SettlePendingPayouts(ctx, cutoff, now)
	if err != nil {
		return nil, err
	}

	reports := GroupPayouts(settled)
	for _, report := range reports {
		s.notifier.NotifyPayoutSettled(ctx, report, cutoff)
	}

	s.logger.Info("payout batch processed",
		"cutoff", cutoff,
		"entries", len(settled),
		"drivers", len(reports),
	)
	return reports, nil
}

// GroupPayouts folds settled payout entries into one report per driver, ordered by driver ID.
func GroupPayouts(entries []*domain.Payment) []domain.PayoutReport {
	byDriver := make(map[string]*domain.PayoutReport)
	for _, p := range entries {
		report, ok := byDriver[p.DriverID]
		if !ok {
			report = &domain.PayoutReport{
				DriverID:  p.DriverID,
				RidesPaid: []string{},
				Status:    domain.PaymentStatusCompleted,
			}
			byDriver[p.DriverID] = report
		}
		report.TotalPaid += p.Amount
		if p.RideID != "" {
			report.RidesPaid = append(report.RidesPaid, p.RideID)
		}
	}

	reports := make([]domain.PayoutReport, 0, len(byDriver))
	for _, report := range byDriver {
		report.TotalPaid = roundCents(report.TotalPaid)
		sort.Strings(report.RidesPaid)
		reports = append(reports, *report)
	}
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].DriverID < reports[j].DriverID
	})
	return reports
}

// roundCents rounds an amount to two decimals for reporting.
func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
