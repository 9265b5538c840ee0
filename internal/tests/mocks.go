package tests

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"rideledger/internal/domain"
	"rideledger/internal/logging"
	"rideledger/internal/redis"
	"rideledger/internal/repository"
)

// NewTestLogger returns a logger that discards everything below error level.
func NewTestLogger() *slog.Logger {
	return logging.NewWithWriter(io.Discard, "test", "error")
}

// FixedClock returns a time source frozen at t.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// ──────────────────────────────────────────────
// MOCK DRIVER REPOSITORY
// ──────────────────────────────────────────────

// MockDriverRepository is a mock implementation of DriverRepository.
type MockDriverRepository struct {
	mu      sync.RWMutex
	drivers map[string]*domain.Driver

	// Counters for verification
	CreateCallCount      int32
	AddEarningsCallCount int32

	// Error injection
	CreateError  error
	GetByIDError error
}

// NewMockDriverRepository creates a new mock driver repository.
func NewMockDriverRepository() *MockDriverRepository {
	return &MockDriverRepository{
		drivers: make(map[string]*domain.Driver),
	}
}

// AddDriver adds a driver to the mock repository.
func (m *MockDriverRepository) AddDriver(driver *domain.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *driver
	m.drivers[driver.ID] = &copy
}

// GetDriver returns the stored driver without copying, for assertions.
func (m *MockDriverRepository) GetDriver(id string) *domain.Driver {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.drivers[id]
}

func (m *MockDriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.drivers {
		if d.Email == driver.Email || d.DriverLicense == driver.DriverLicense {
			return repository.ErrDuplicate
		}
	}
	copy := *driver
	m.drivers[driver.ID] = &copy
	return nil
}

func (m *MockDriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	if m.GetByIDError != nil {
		return nil, m.GetByIDError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	driver, ok := m.drivers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy to avoid mutation issues.
	copy := *driver
	return &copy, nil
}

func (m *MockDriverRepository) GetByEmail(ctx context.Context, email string) (*domain.Driver, error) {
	return m.find(func(d *domain.Driver) bool { return d.Email == email })
}

func (m *MockDriverRepository) GetByLicense(ctx context.Context, license string) (*domain.Driver, error) {
	return m.find(func(d *domain.Driver) bool { return d.DriverLicense == license })
}

func (m *MockDriverRepository) find(match func(*domain.Driver) bool) (*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.drivers {
		if match(d) {
			copy := *d
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockDriverRepository) List(ctx context.Context, status domain.DriverStatus) ([]*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Driver
	for _, d := range m.drivers {
		if status == "" || d.Status == status {
			copy := *d
			out = append(out, &copy)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MockDriverRepository) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.drivers), nil
}

func (m *MockDriverRepository) TransitionStatus(ctx context.Context, id string, from, to domain.DriverStatus) error {
	return m.update(id, func(d *domain.Driver) error {
		if d.Status != from {
			return repository.ErrStaleState
		}
		d.Status = to
		return nil
	})
}

func (m *MockDriverRepository) UpdatePlan(ctx context.Context, id string, plan domain.PlanType) error {
	return m.update(id, func(d *domain.Driver) error {
		d.PlanType = plan
		return nil
	})
}

func (m *MockDriverRepository) UpdateAvailability(ctx context.Context, id string, availability domain.Availability) error {
	return m.update(id, func(d *domain.Driver) error {
		d.CurrentStatus = availability
		return nil
	})
}

func (m *MockDriverRepository) ActivateSubscription(ctx context.Context, id string, period domain.Period, payment domain.LastPayment) error {
	return m.update(id, func(d *domain.Driver) error {
		d.PlanType = domain.PlanTypeSubscription
		d.Subscription = domain.SubscriptionStatus{
			IsActive:      true,
			CurrentPeriod: d.Subscription.CurrentPeriod.Extend(period),
			LastPayment:   payment,
		}
		return nil
	})
}

func (m *MockDriverRepository) AddEarnings(ctx context.Context, id string, earnings, commission float64) error {
	atomic.AddInt32(&m.AddEarningsCallCount, 1)
	return m.update(id, func(d *domain.Driver) error {
		d.TotalEarnings += earnings
		d.TotalCommissionPaid += commission
		return nil
	})
}

func (m *MockDriverRepository) IncrementRidesCompleted(ctx context.Context, id string) error {
	return m.update(id, func(d *domain.Driver) error {
		d.RidesCompleted++
		return nil
	})
}

func (m *MockDriverRepository) IncrementCancellations(ctx context.Context, id string) error {
	return m.update(id, func(d *domain.Driver) error {
		d.Cancellations++
		return nil
	})
}

func (m *MockDriverRepository) update(id string, fn func(*domain.Driver) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[id]
	if !ok {
		return repository.ErrNotFound
	}
	return fn(d)
}

func (m *MockDriverRepository) snapshot() map[string]domain.Driver {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := make(map[string]domain.Driver, len(m.drivers))
	for id, d := range m.drivers {
		snap[id] = *d
	}
	return snap
}

func (m *MockDriverRepository) restore(snap map[string]domain.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers = make(map[string]*domain.Driver, len(snap))
	for id, d := range snap {
		d := d
		m.drivers[id] = &d
	}
}

// ──────────────────────────────────────────────
// MOCK RIDE REPOSITORY
// ──────────────────────────────────────────────

// MockRideRepository is a mock implementation of RideRepository.
type MockRideRepository struct {
	mu    sync.RWMutex
	rides map[string]*domain.Ride

	TransitionCallCount int32
	TransitionError     error
}

// NewMockRideRepository creates a new mock ride repository.
func NewMockRideRepository() *MockRideRepository {
	return &MockRideRepository{
		rides: make(map[string]*domain.Ride),
	}
}

// AddRide adds a ride directly to the mock repository.
func (m *MockRideRepository) AddRide(ride *domain.Ride) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *ride
	m.rides[ride.ID] = &copy
}

// GetRide returns the stored ride, for assertions.
func (m *MockRideRepository) GetRide(id string) *domain.Ride {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rides[id]
}

func (m *MockRideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	m.AddRide(ride)
	return nil
}

func (m *MockRideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ride, ok := m.rides[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *ride
	return &copy, nil
}

func (m *MockRideRepository) ListByParticipant(ctx context.Context, id string) ([]*domain.Ride, error) {
	return m.list(func(r *domain.Ride) bool { return r.PassengerID == id || r.DriverID == id }), nil
}

func (m *MockRideRepository) List(ctx context.Context, status domain.RideStatus) ([]*domain.Ride, error) {
	return m.list(func(r *domain.Ride) bool { return status == "" || r.Status == status }), nil
}

func (m *MockRideRepository) list(match func(*domain.Ride) bool) []*domain.Ride {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Ride
	for _, r := range m.rides {
		if match(r) {
			copy := *r
			out = append(out, &copy)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *MockRideRepository) CountByStatus(ctx context.Context, statuses ...domain.RideStatus) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, r := range m.rides {
		for _, s := range statuses {
			if r.Status == s {
				count++
				break
			}
		}
	}
	return count, nil
}

func (m *MockRideRepository) Transition(ctx context.Context, ride *domain.Ride, from domain.RideStatus) error {
	atomic.AddInt32(&m.TransitionCallCount, 1)
	if m.TransitionError != nil {
		return m.TransitionError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.rides[ride.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Status != from {
		return repository.ErrStaleState
	}
	copy := *ride
	m.rides[ride.ID] = &copy
	return nil
}

func (m *MockRideRepository) snapshot() map[string]domain.Ride {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := make(map[string]domain.Ride, len(m.rides))
	for id, r := range m.rides {
		snap[id] = *r
	}
	return snap
}

func (m *MockRideRepository) restore(snap map[string]domain.Ride) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rides = make(map[string]*domain.Ride, len(snap))
	for id, r := range snap {
		r := r
		m.rides[id] = &r
	}
}

// ──────────────────────────────────────────────
// MOCK PAYMENT REPOSITORY
// ──────────────────────────────────────────────

// MockPaymentRepository is a mock implementation of PaymentRepository.
type MockPaymentRepository struct {
	mu       sync.RWMutex
	payments map[string]*domain.Payment

	CreateCallCount int32
	CreateError     error
}

// NewMockPaymentRepository creates a new mock payment repository.
func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{
		payments: make(map[string]*domain.Payment),
	}
}

// AddPayment adds an entry directly to the mock repository.
func (m *MockPaymentRepository) AddPayment(p *domain.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *p
	m.payments[p.ID] = &copy
}

// All returns every stored entry, for assertions.
func (m *MockPaymentRepository) All() []*domain.Payment {
	out, _ := m.List(context.Background(), repository.PaymentFilter{})
	return out
}

func (m *MockPaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.RideID != "" {
		for _, existing := range m.payments {
			if existing.RideID == p.RideID && existing.Type == p.Type {
				return repository.ErrDuplicate
			}
		}
	}
	copy := *p
	m.payments[p.ID] = &copy
	return nil
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *p
	return &copy, nil
}

func matchesFilter(p *domain.Payment, f repository.PaymentFilter) bool {
	switch {
	case f.DriverID != "" && p.DriverID != f.DriverID:
		return false
	case f.Type != "" && p.Type != f.Type:
		return false
	case f.Status != "" && p.Status != f.Status:
		return false
	case !f.From.IsZero() && p.CreatedAt.Before(f.From):
		return false
	case !f.To.IsZero() && p.CreatedAt.After(f.To):
		return false
	}
	return true
}

func (m *MockPaymentRepository) List(ctx context.Context, filter repository.PaymentFilter) ([]*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Payment
	for _, p := range m.payments {
		if matchesFilter(p, filter) {
			copy := *p
			out = append(out, &copy)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *MockPaymentRepository) Totals(ctx context.Context, filter repository.PaymentFilter) (map[domain.PaymentType]domain.PaymentTotal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	totals := make(map[domain.PaymentType]domain.PaymentTotal)
	for _, p := range m.payments {
		if !matchesFilter(p, filter) {
			continue
		}
		t := totals[p.Type]
		t.Total += p.Amount
		t.Count++
		totals[p.Type] = t
	}
	return totals, nil
}

func (m *MockPaymentRepository) TransitionStatus(ctx context.Context, id string, from []domain.PaymentStatus, u repository.StatusUpdate) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}

	allowed := false
	for _, s := range from {
		if p.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, repository.ErrStaleState
	}

	p.Status = u.Status
	if u.TransactionID != "" {
		p.TransactionID = u.TransactionID
	}
	if u.FailureReason != "" {
		p.FailureReason = u.FailureReason
	}
	p.ProcessedAt = u.ProcessedAt
	copy := *p
	return &copy, nil
}

func (m *MockPaymentRepository) SettlePendingPayouts(ctx context.Context, cutoff, processedAt time.Time) ([]*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var settled []*domain.Payment
	for _, p := range m.payments {
		if p.Type != domain.PaymentTypePayout || p.Status != domain.PaymentStatusPending || p.CreatedAt.After(cutoff) {
			continue
		}
		p.Status = domain.PaymentStatusCompleted
		p.ProcessedAt = processedAt
		copy := *p
		settled = append(settled, &copy)
	}
	return settled, nil
}

func (m *MockPaymentRepository) SumCompleted(ctx context.Context, types ...domain.PaymentType) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sum := 0.0
	for _, p := range m.payments {
		if p.Status != domain.PaymentStatusCompleted {
			continue
		}
		for _, t := range types {
			if p.Type == t {
				sum += p.Amount
				break
			}
		}
	}
	return sum, nil
}

func (m *MockPaymentRepository) snapshot() map[string]domain.Payment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	snap := make(map[string]domain.Payment, len(m.payments))
	for id, p := range m.payments {
		snap[id] = *p
	}
	return snap
}

func (m *MockPaymentRepository) restore(snap map[string]domain.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments = make(map[string]*domain.Payment, len(snap))
	for id, p := range snap {
		p := p
		m.payments[id] = &p
	}
}

// ──────────────────────────────────────────────
// MOCK SETTINGS REPOSITORY
// ──────────────────────────────────────────────

// MockSettingsRepository is a mock implementation of SettingsRepository.
type MockSettingsRepository struct {
	mu      sync.RWMutex
	records []domain.Settings

	ActivateCallCount int32
	GetCallCount      int32
	// ActivateErrors are returned by successive Activate calls before any record is written.
	ActivateErrors []error
	// AfterGetActive runs once, after GetActive has read its record and before it returns.
	AfterGetActive func()
}

// NewMockSettingsRepository creates a new mock settings repository.
func NewMockSettingsRepository() *MockSettingsRepository {
	return &MockSettingsRepository{}
}

// Records returns every stored record, active or not.
func (m *MockSettingsRepository) Records() []domain.Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.Settings(nil), m.records...)
}

// ActiveCount returns how many records are flagged active.
func (m *MockSettingsRepository) ActiveCount() int {
	count := 0
	for _, r := range m.Records() {
		if r.IsActive {
			count++
		}
	}
	return count
}

func (m *MockSettingsRepository) GetActive(ctx context.Context) (*domain.Settings, error) {
	atomic.AddInt32(&m.GetCallCount, 1)
	active, err := m.active()
	if hook := m.AfterGetActive; hook != nil {
		m.AfterGetActive = nil
		hook()
	}
	return active, err
}

func (m *MockSettingsRepository) active() (*domain.Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.records {
		if r.IsActive {
			copy := r
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockSettingsRepository) Activate(ctx context.Context, s *domain.Settings) error {
	atomic.AddInt32(&m.ActivateCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.ActivateErrors) > 0 {
		err := m.ActivateErrors[0]
		m.ActivateErrors = m.ActivateErrors[1:]
		return err
	}
	for i := range m.records {
		m.records[i].IsActive = false
	}
	now := time.Now()
	s.IsActive = true
	s.CreatedAt = now
	s.UpdatedAt = now
	m.records = append(m.records, *s)
	return nil
}

func (m *MockSettingsRepository) snapshot() []domain.Settings {
	return m.Records()
}

func (m *MockSettingsRepository) restore(snap []domain.Settings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = snap
}

// ──────────────────────────────────────────────
// MOCK STORE
// ──────────────────────────────────────────────

// MockStore implements repository.Store and repository.TxManager over the mock
// repositories. A failed transaction restores every repository to its state
// before the transaction began.
type MockStore struct {
	txMu sync.Mutex

	DriverRepo   *MockDriverRepository
	RideRepo     *MockRideRepository
	PaymentRepo  *MockPaymentRepository
	SettingsRepo *MockSettingsRepository

	TxCallCount int32
	TxError     error
}

// NewMockStore creates a MockStore with empty repositories.
func NewMockStore() *MockStore {
	return &MockStore{
		DriverRepo:   NewMockDriverRepository(),
		RideRepo:     NewMockRideRepository(),
		PaymentRepo:  NewMockPaymentRepository(),
		SettingsRepo: NewMockSettingsRepository(),
	}
}

func (s *MockStore) Drivers() repository.DriverRepository { return s.DriverRepo }
func (s *MockStore) Rides() repository.RideRepository { return s.RideRepo }
func (s *MockStore) Payments() repository.PaymentRepository { return s.PaymentRepo }
func (s *MockStore) Settings() repository.SettingsRepository { return s.SettingsRepo }

func (s *MockStore) WithTx(ctx context.Context, fn func(repository.Store) error) error {
	atomic.AddInt32(&s.TxCallCount, 1)
	if s.TxError != nil {
		return s.TxError
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	drivers := s.DriverRepo.snapshot()
	rides := s.RideRepo.snapshot()
	payments := s.PaymentRepo.snapshot()
	settings := s.SettingsRepo.snapshot()

	if err := fn(s); err != nil {
		s.DriverRepo.restore(drivers)
		s.RideRepo.restore(rides)
		s.PaymentRepo.restore(payments)
		s.SettingsRepo.restore(settings)
		return err
	}
	return nil
}

// ──────────────────────────────────────────────
// MOCK USER AND ADMIN REPOSITORIES
// ──────────────────────────────────────────────

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User
}

// NewMockUserRepository creates a new mock user repository.
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[string]*domain.User)}
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	user.CreatedAt = time.Now()
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *u
	return &copy, nil
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			copy := *u
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

// MockAdminRepository is a mock implementation of AdminRepository.
type MockAdminRepository struct {
	mu     sync.RWMutex
	admins map[string]*domain.Admin
}

// NewMockAdminRepository creates a new mock admin repository.
func NewMockAdminRepository() *MockAdminRepository {
	return &MockAdminRepository{admins: make(map[string]*domain.Admin)}
}

func (m *MockAdminRepository) Create(ctx context.Context, admin *domain.Admin) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.admins {
		if a.Email == admin.Email {
			return repository.ErrDuplicate
		}
	}
	admin.CreatedAt = time.Now()
	copy := *admin
	m.admins[admin.ID] = &copy
	return nil
}

func (m *MockAdminRepository) GetByID(ctx context.Context, id string) (*domain.Admin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.admins[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *a
	return &copy, nil
}

func (m *MockAdminRepository) GetByEmail(ctx context.Context, email string) (*domain.Admin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.admins {
		if a.Email == email {
			copy := *a
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *MockAdminRepository) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.admins), nil
}

// ──────────────────────────────────────────────
// MOCK REDIS STORES
// ──────────────────────────────────────────────

// MockCacheStore is a mock implementation of the settings and driver caches.
type MockCacheStore struct {
	mu         sync.Mutex
	generation int64
	settings   map[int64]*domain.Settings
	drivers    map[string]*redis.CachedDriver

	SettingsHits          int32
	InvalidateSettingsCnt int32
	InvalidateDriverCnt   int32
	GetError              error
}

// NewMockCacheStore creates a new mock cache store.
func NewMockCacheStore() *MockCacheStore {
	return &MockCacheStore{
		settings: make(map[int64]*domain.Settings),
		drivers:  make(map[string]*redis.CachedDriver),
	}
}

func (m *MockCacheStore) GetSettings(ctx context.Context) (*domain.Settings, int64, error) {
	if m.GetError != nil {
		return nil, 0, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cached, ok := m.settings[m.generation]
	if !ok {
		return nil, m.generation, nil
	}
	atomic.AddInt32(&m.SettingsHits, 1)
	copy := *cached
	return &copy, m.generation, nil
}

func (m *MockCacheStore) SetSettings(ctx context.Context, generation int64, settings *domain.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *settings
	m.settings[generation] = &copy
	return nil
}

func (m *MockCacheStore) InvalidateSettings(ctx context.Context) error {
	atomic.AddInt32(&m.InvalidateSettingsCnt, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation++
	return nil
}

func (m *MockCacheStore) GetDriver(ctx context.Context, driverID string) (*redis.CachedDriver, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[driverID]
	if !ok {
		return nil, nil
	}
	copy := *d
	return &copy, nil
}

func (m *MockCacheStore) SetDriver(ctx context.Context, driver *redis.CachedDriver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *driver
	m.drivers[driver.ID] = &copy
	return nil
}

func (m *MockCacheStore) InvalidateDriver(ctx context.Context, driverID string) error {
	atomic.AddInt32(&m.InvalidateDriverCnt, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.drivers, driverID)
	return nil
}

// MockLockStore is a mock implementation of LockStoreInterface.
type MockLockStore struct {
	mu     sync.Mutex
	holder string

	AcquireCallCount int32
	ReleaseCallCount int32
	AcquireError     error
	// AfterAcquire runs once, right after the lock is granted.
	AfterAcquire func()
}

// NewMockLockStore creates a new mock lock store.
func NewMockLockStore() *MockLockStore {
	return &MockLockStore{}
}

// Hold marks the payout lock as taken by another process.
func (m *MockLockStore) Hold() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.holder = "other-process"
}

// Held reports whether the payout lock is currently taken.
func (m *MockLockStore) Held() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.holder != ""
}

// Holder returns the token owning the lock, empty when free.
func (m *MockLockStore) Holder() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.holder
}

func (m *MockLockStore) AcquirePayoutLock(ctx context.Context, token string, ttl time.Duration) (bool, error) {
	atomic.AddInt32(&m.AcquireCallCount, 1)
	if m.AcquireError != nil {
		return false, m.AcquireError
	}
	m.mu.Lock()
	if m.holder != "" {
		m.mu.Unlock()
		return false, nil
	}
	m.holder = token
	hook := m.AfterAcquire
	m.AfterAcquire = nil
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	return true, nil
}

// ReleasePayoutLock fails on a cancelled context like a real client and only
// removes the lock while token owns it.
func (m *MockLockStore) ReleasePayoutLock(ctx context.Context, token string) error {
	atomic.AddInt32(&m.ReleaseCallCount, 1)
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.holder == token {
		m.holder = ""
	}
	return nil
}

// MockResponseCache is an in-memory idempotency store.
type MockResponseCache struct {
	mu        sync.Mutex
	responses map[string][]byte
}

// NewMockResponseCache creates a new mock response cache.
func NewMockResponseCache() *MockResponseCache {
	return &MockResponseCache{responses: make(map[string][]byte)}
}

func (m *MockResponseCache) GetResponse(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.responses[key], nil
}

func (m *MockResponseCache) SetResponse(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[key] = data
	return nil
}

// ──────────────────────────────────────────────
// MOCK EVENT PUBLISHER
// ──────────────────────────────────────────────

// PublishedEvent is one message handed to MockPublisher.
type PublishedEvent struct {
	RoutingKey string
	Body       []byte
}

// MockPublisher records published events.
type MockPublisher struct {
	mu     sync.Mutex
	events []PublishedEvent

	PublishError error
}

// NewMockPublisher creates a new mock publisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, body []byte) error {
	if m.PublishError != nil {
		return m.PublishError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, PublishedEvent{RoutingKey: routingKey, Body: body})
	return nil
}

// RoutingKeys returns the routing keys in publish order.
func (m *MockPublisher) RoutingKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.events))
	for _, e := range m.events {
		keys = append(keys, e.RoutingKey)
	}
	return keys
}

// Count returns how many events used routingKey.
func (m *MockPublisher) Count(routingKey string) int {
	count := 0
	for _, k := range m.RoutingKeys() {
		if k == routingKey {
			count++
		}
	}
	return count
}

// Ensure mocks implement interfaces.
var (
	_ repository.DriverRepository   = (*MockDriverRepository)(nil)
	_ repository.RideRepository     = (*MockRideRepository)(nil)
	_ repository.PaymentRepository  = (*MockPaymentRepository)(nil)
	_ repository.SettingsRepository = (*MockSettingsRepository)(nil)
	_ repository.UserRepository     = (*MockUserRepository)(nil)
	_ repository.AdminRepository    = (*MockAdminRepository)(nil)
	_ repository.Store              = (*MockStore)(nil)
	_ repository.TxManager          = (*MockStore)(nil)
	_ redis.SettingsCacheInterface  = (*MockCacheStore)(nil)
	_ redis.DriverCacheInterface    = (*MockCacheStore)(nil)
	_ redis.LockStoreInterface      = (*MockLockStore)(nil)
)
