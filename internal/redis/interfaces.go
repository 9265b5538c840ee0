package redis

import (
	"context"
	"time"

	"rideledger/internal/domain"
)

// SettingsCacheInterface defines the interface for caching the active settings.
// Entries are keyed by a generation that InvalidateSettings advances.
type SettingsCacheInterface interface {
	GetSettings(ctx context.Context) (*domain.Settings, int64, error)
	SetSettings(ctx context.Context, generation int64, settings *domain.Settings) error
	InvalidateSettings(ctx context.Context) error
}

// DriverCacheInterface defines the interface for caching driver approval state.
type DriverCacheInterface interface {
	GetDriver(ctx context.Context, driverID string) (*CachedDriver, error)
	SetDriver(ctx context.Context, driver *CachedDriver) error
	InvalidateDriver(ctx context.Context, driverID string) error
}

// LockStoreInterface defines the interface for distributed locking.
type LockStoreInterface interface {
	AcquirePayoutLock(ctx context.Context, token string, ttl time.Duration) (bool, error)
	ReleasePayoutLock(ctx context.Context, token string) error
}

// Ensure concrete types implement interfaces.
var (
	_ SettingsCacheInterface = (*CacheStore)(nil)
	_ DriverCacheInterface   = (*CacheStore)(nil)
	_ LockStoreInterface     = (*LockStore)(nil)
)
