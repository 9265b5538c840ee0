package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"rideledger/internal/domain"
	"rideledger/internal/redis"
	"rideledger/internal/repository"
)

// settingsActivateAttempts bounds retries when concurrent activations collide on the active index.
const settingsActivateAttempts = 3

// SettingsService owns the single active tariff and commission configuration.
type SettingsService struct {
	settingsRepo repository.SettingsRepository
	tx           repository.TxManager
	cache        redis.SettingsCacheInterface
	notifier     *NotificationService
	logger       *slog.Logger
}

// NewSettingsService creates a new SettingsService. cache may be nil.
func NewSettingsService(
	settingsRepo repository.SettingsRepository,
	tx repository.TxManager,
	cache redis.SettingsCacheInterface,
	notifier *NotificationService,
	logger *slog.Logger,
) *SettingsService {
	return &SettingsService{
		settingsRepo: settingsRepo,
		tx:           tx,
		cache:        cache,
		notifier:     notifier,
		logger:       logger,
	}
}

// GetActive returns the active settings, creating the defaults if none exist yet.
func (s *SettingsService) GetActive(ctx context.Context) (*domain.Settings, error) {
	var generation int64
	cacheable := false
	if s.cache != nil {
		cached, gen, err := s.cache.GetSettings(ctx)
		if err != nil {
			s.logger.Warn("settings cache read failed", "error", err)
		} else if cached != nil {
			return cached, nil
		} else {
			generation, cacheable = gen, true
		}
	}

	settings, err := s.settingsRepo.GetActive(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		settings, err = s.createDefaults(ctx)
	}
	if err != nil {
		return nil, err
	}

	if cacheable {
		s.storeInCache(ctx, generation, settings)
	}
	return settings, nil
}

// createDefaults activates the default settings. A concurrent creator that wins the
// active index makes this call re-read instead.
func (s *SettingsService) createDefaults(ctx context.Context) (*domain.Settings, error) {
	defaults := domain.DefaultSettings()
	defaults.ID = uuid.New().String()

	err := s.tx.WithTx(ctx, func(store repository.Store) error {
		return store.Settings().Activate(ctx, &defaults)
	})
	if errors.Is(err, repository.ErrDuplicate) {
		return s.settingsRepo.GetActive(ctx)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("default settings created", "settings_id", defaults.ID)
	return &defaults, nil
}

// SetActive validates cfg and atomically makes it the only active record.
func (s *SettingsService) SetActive(ctx context.Context, cfg domain.Settings) (*domain.Settings, error) {
	if err := ValidateSettings(&cfg); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < settingsActivateAttempts; attempt++ {
		next := cfg
		next.ID = uuid.New().String()

		lastErr = s.tx.WithTx(ctx, func(store repository.Store) error {
			return store.Settings().Activate(ctx, &next)
		})
		if lastErr == nil {
			s.invalidateCache(ctx)
			s.logger.Info("settings activated",
				"settings_id", next.ID,
				"commission_rate", next.CommissionRate,
				"min_fare", next.MinFare,
			)
			s.notifier.NotifySettingsActivated(ctx, &next)
			return &next, nil
		}
		if !errors.Is(lastErr, repository.ErrDuplicate) {
			return nil, lastErr
		}
		s.logger.Warn("settings activation collided, retrying", "attempt", attempt+1)
	}

	return nil, fmt.Errorf("%w: %v", ErrSettingsContention, lastErr)
}

// ValidateSettings checks ranges and fills optional fields with their defaults.
func ValidateSettings(cfg *domain.Settings) error {
	if !inRange(cfg.CommissionRate, 0, 1) {
		return fmt.Errorf("%w: commission rate must be between 0 and 1", ErrInvalidSettings)
	}

	amounts := []struct {
		name  string
		value float64
	}{
		{"monthly subscription fee", cfg.SubscriptionFee.Monthly},
		{"base rate", cfg.FareCalculation.BaseRate},
		{"per kilometer rate", cfg.FareCalculation.PerKilometer},
		{"per minute rate", cfg.FareCalculation.PerMinute},
		{"surge multiplier max", cfg.FareCalculation.SurgeMultiplierMax},
		{"minimum fare", cfg.MinFare},
		{"minimum payout", cfg.Payout.MinimumPayout},
	}
	for _, a := range amounts {
		if !inRange(a.value, 0, math.MaxFloat64) {
			return fmt.Errorf("%w: %s must be a non-negative number", ErrInvalidSettings, a.name)
		}
	}

	defaults := domain.DefaultSettings()
	if cfg.SubscriptionFee.Currency == "" {
		cfg.SubscriptionFee.Currency = defaults.SubscriptionFee.Currency
	}
	if cfg.Payout.PayoutSchedule == "" {
		cfg.Payout.PayoutSchedule = defaults.Payout.PayoutSchedule
	}
	if !cfg.Payout.PayoutSchedule.Valid() {
		return fmt.Errorf("%w: unknown payout schedule %q", ErrInvalidSettings, cfg.Payout.PayoutSchedule)
	}

	cfg.IsActive = true
	cfg.CreatedAt = time.Time{}
	cfg.UpdatedAt = time.Time{}
	return nil
}

func inRange(v, lo, hi float64) bool {
	return !math.IsNaN(v) && v >= lo && v <= hi
}

// storeInCache writes under the generation observed before the database read, so a
// record loaded before a concurrent SetActive never outlives its invalidation.
func (s *SettingsService) storeInCache(ctx context.Context, generation int64, settings *domain.Settings) {
	if err := s.cache.SetSettings(ctx, generation, settings); err != nil {
		s.logger.Warn("settings cache write failed", "error", err)
	}
}

func (s *SettingsService) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateSettings(ctx); err != nil {
		s.logger.Warn("settings cache invalidation failed", "error", err)
	}
}

// EstimateFare prices a trip against the active settings.
func (s *SettingsService) EstimateFare(ctx context.Context, in FareInput) (FareQuote, error) {
	settings, err := s.GetActive(ctx)
	if err != nil {
		return FareQuote{}, err
	}
	return CalculateFare(*settings, in)
}
