package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"rideledger/internal/domain"
)

// CacheStore handles entity caching in Redis.
type CacheStore struct {
	client *redis.Client
}

// NewCacheStore creates a new CacheStore.
func NewCacheStore(client *redis.Client) *CacheStore {
	return &CacheStore{client: client}
}

// Cache TTL constants
const (
	SettingsCacheTTL = 60 * time.Second
	DriverCacheTTL   = 30 * time.Second // Approval status changes through admin actions
)

// Key prefixes
const (
	settingsCachePrefix   = "cache:settings:active:"
	settingsGenerationKey = "cache:settings:generation"
	driverCachePrefix     = "cache:driver:"
)

// cachedSettings is the JSON form of the active settings.
type cachedSettings struct {
	ID                 string  `json:"id"`
	CommissionRate     float64 `json:"commission_rate"`
	SubscriptionFee    float64 `json:"subscription_fee"`
	Currency           string  `json:"currency"`
	BaseRate           float64 `json:"base_rate"`
	PerKilometer       float64 `json:"per_kilometer"`
	PerMinute          float64 `json:"per_minute"`
	SurgeMultiplierMax float64 `json:"surge_multiplier_max"`
	MinFare            float64 `json:"min_fare"`
	MinimumPayout      float64 `json:"minimum_payout"`
	PayoutSchedule     string  `json:"payout_schedule"`
	AutoPayouts        bool    `json:"auto_payouts"`
	CreatedAt          int64   `json:"created_at"`
	UpdatedAt          int64   `json:"updated_at"`
}

// CachedDriver represents the driver fields checked on every authenticated driver request.
type CachedDriver struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	PlanType string `json:"plan_type"`
}

// GetSettings retrieves the active settings cached under the current generation.
// It returns nil settings on a miss, together with the generation a reader must pass
// to SetSettings.
func (s *CacheStore) GetSettings(ctx context.Context) (*domain.Settings, int64, error) {
	generation, err := s.client.Get(ctx, settingsGenerationKey).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, 0, err
	}

	data, err := s.client.Get(ctx, settingsKey(generation)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, generation, nil // Cache miss
		}
		return nil, 0, err
	}

	var c cachedSettings
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, 0, err
	}

	return &domain.Settings{
		ID:             c.ID,
		CommissionRate: c.CommissionRate,
		SubscriptionFee: domain.SubscriptionFee{
			Monthly:  c.SubscriptionFee,
			Currency: c.Currency,
		},
		FareCalculation: domain.FareCalculation{
			BaseRate:           c.BaseRate,
			PerKilometer:       c.PerKilometer,
			PerMinute:          c.PerMinute,
			SurgeMultiplierMax: c.SurgeMultiplierMax,
		},
		MinFare: c.MinFare,
		Payout: domain.PayoutSettings{
			MinimumPayout:  c.MinimumPayout,
			PayoutSchedule: domain.PayoutSchedule(c.PayoutSchedule),
			AutoPayouts:    c.AutoPayouts,
		},
		IsActive:  true,
		CreatedAt: time.Unix(0, c.CreatedAt).UTC(),
		UpdatedAt: time.Unix(0, c.UpdatedAt).UTC(),
	}, generation, nil
}

// SetSettings stores settings under the generation returned by GetSettings. A write for
// a generation that was invalidated in between lands on a key no reader looks up.
func (s *CacheStore) SetSettings(ctx context.Context, generation int64, settings *domain.Settings) error {
	data, err := json.Marshal(cachedSettings{
		ID:                 settings.ID,
		CommissionRate:     settings.CommissionRate,
		SubscriptionFee:    settings.SubscriptionFee.Monthly,
		Currency:           settings.SubscriptionFee.Currency,
		BaseRate:           settings.FareCalculation.BaseRate,
		PerKilometer:       settings.FareCalculation.PerKilometer,
		PerMinute:          settings.FareCalculation.PerMinute,
		SurgeMultiplierMax: settings.FareCalculation.SurgeMultiplierMax,
		MinFare:            settings.MinFare,
		MinimumPayout:      settings.Payout.MinimumPayout,
		PayoutSchedule:     string(settings.Payout.PayoutSchedule),
		AutoPayouts:        settings.Payout.AutoPayouts,
		CreatedAt:          settings.CreatedAt.UnixNano(),
		UpdatedAt:          settings.UpdatedAt.UnixNano(),
	})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, settingsKey(generation), data, SettingsCacheTTL).Err()
}

// InvalidateSettings starts a new generation, orphaning every entry written under the
// previous one. It must run after the new settings are committed.
func (s *CacheStore) InvalidateSettings(ctx context.Context) error {
	return s.client.Incr(ctx, settingsGenerationKey).Err()
}

func settingsKey(generation int64) string {
	return settingsCachePrefix + strconv.FormatInt(generation, 10)
}

// GetDriver retrieves a driver from cache. Returns nil on a miss.
func (s *CacheStore) GetDriver(ctx context.Context, driverID string) (*CachedDriver, error) {
	key := driverCachePrefix + driverID
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Cache miss
		}
		return nil, err
	}

	var driver CachedDriver
	if err := json.Unmarshal(data, &driver); err != nil {
		return nil, err
	}
	return &driver, nil
}

// SetDriver stores a driver in cache.
func (s *CacheStore) SetDriver(ctx context.Context, driver *CachedDriver) error {
	key := driverCachePrefix + driver.ID
	data, err := json.Marshal(driver)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, DriverCacheTTL).Err()
}

// InvalidateDriver removes a driver from cache.
func (s *CacheStore) InvalidateDriver(ctx context.Context, driverID string) error {
	key := driverCachePrefix + driverID
	return s.client.Del(ctx, key).Err()
}
