package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"rideledger/internal/domain"
	"rideledger/internal/redis"
	"rideledger/internal/repository"
)

// DriverService handles driver registration, profile changes and the approval workflow.
type DriverService struct {
	driverRepo repository.DriverRepository
	cacheStore redis.DriverCacheInterface
	notifier   *NotificationService
	logger     *slog.Logger
	now        func() time.Time
}

// NewDriverService creates a new DriverService. cacheStore may be nil.
func NewDriverService(
	driverRepo repository.DriverRepository,
	cacheStore redis.DriverCacheInterface,
	notifier *NotificationService,
	logger *slog.Logger,
) *DriverService {
	return &DriverService{
		driverRepo: driverRepo,
		cacheStore: cacheStore,
		notifier:   notifier,
		logger:     logger,
		now:        time.Now,
	}
}

// SetClock replaces the time source.
func (s *DriverService) SetClock(now func() time.Time) {
	s.now = now
}

// RegisterDriverRequest contains the parameters for driver registration.
type RegisterDriverRequest struct {
	Name          string
	Surname       string
	Email         string
	Phone         string
	Password      string
	CarModel      string
	CarPlate      string
	DriverLicense string
	IDNumber      string
	PlanType      string // optional, defaults to commission
}

// Register creates a driver in pending status awaiting admin approval.
func (s *DriverService) Register(ctx context.Context, req RegisterDriverRequest) (*domain.Driver, error) {
	req.Email = normalizeEmail(req.Email)
	req.DriverLicense = strings.TrimSpace(req.DriverLicense)

	required := []string{
		req.Name, req.Surname, req.Email, req.Phone, req.Password,
		req.CarModel, req.CarPlate, req.DriverLicense, req.IDNumber,
	}
	for _, v := range required {
		if strings.TrimSpace(v) == "" {
			return nil, ErrMissingFields
		}
	}

	plan := domain.PlanTypeCommission
	if req.PlanType != "" {
		parsed, ok := domain.ParsePlanType(req.PlanType)
		if !ok {
			return nil, ErrInvalidPlanType
		}
		plan = parsed
	}

	if _, err := s.driverRepo.GetByEmail(ctx, req.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if _, err := s.driverRepo.GetByLicense(ctx, req.DriverLicense); err == nil {
		return nil, ErrLicenseTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	driver := &domain.Driver{
		ID:            uuid.New().String(),
		Name:          req.Name,
		Surname:       req.Surname,
		Email:         req.Email,
		Phone:         req.Phone,
		PasswordHash:  hash,
		CarModel:      req.CarModel,
		CarPlate:      req.CarPlate,
		DriverLicense: req.DriverLicense,
		IDNumber:      req.IDNumber,
		PlanType:      plan,
		Status:        domain.DriverStatusPending,
		CurrentStatus: domain.AvailabilityOffline,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	// The unique indexes still catch a registration racing this one.
	if err := s.driverRepo.Create(ctx, driver); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: email or driver license already registered", ErrConflict)
		}
		return nil, err
	}

	s.logger.Info("driver registered", "driver_id", driver.ID, "plan_type", driver.PlanType)
	return driver, nil
}

// GetDriver retrieves a driver by ID.
func (s *DriverService) GetDriver(ctx context.Context, driverID string) (*domain.Driver, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}
	return s.driverRepo.GetByID(ctx, driverID)
}

// ListDrivers returns drivers, optionally filtered by approval status.
func (s *DriverService) ListDrivers(ctx context.Context, status domain.DriverStatus) ([]*domain.Driver, error) {
	switch status {
	case "", domain.DriverStatusPending, domain.DriverStatusActive, domain.DriverStatusSuspended, domain.DriverStatusRejected:
	default:
		return nil, fmt.Errorf("%w: unknown driver status %q", ErrValidation, status)
	}
	return s.driverRepo.List(ctx, status)
}

// UpdatePlan changes the driver's plan. Switching to subscription takes effect for
// ride acceptance only once a subscription payment covering now is confirmed.
func (s *DriverService) UpdatePlan(ctx context.Context, driverID, plan string) (*domain.Driver, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}
	planType, ok := domain.ParsePlanType(plan)
	if !ok {
		return nil, ErrInvalidPlanType
	}

	if err := s.driverRepo.UpdatePlan(ctx, driverID, planType); err != nil {
		return nil, err
	}
	s.invalidate(ctx, driverID)
	return s.driverRepo.GetByID(ctx, driverID)
}

// UpdateAvailability sets the driver online or offline.
func (s *DriverService) UpdateAvailability(ctx context.Context, driverID, availability string) (*domain.Driver, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	value := domain.Availability(strings.ToLower(availability))
	if value != domain.AvailabilityOnline && value != domain.AvailabilityOffline {
		return nil, ErrInvalidAvailability
	}

	if err := s.driverRepo.UpdateAvailability(ctx, driverID, value); err != nil {
		return nil, err
	}
	return s.driverRepo.GetByID(ctx, driverID)
}

// Eligibility evaluates both ride acceptance gates for the driver at the current time.
func (s *DriverService) Eligibility(ctx context.Context, driverID string) (Eligibility, error) {
	driver, err := s.GetDriver(ctx, driverID)
	if err != nil {
		return Eligibility{}, err
	}
	return Evaluate(driver, s.now()), nil
}

// Approve moves a pending driver to active.
func (s *DriverService) Approve(ctx context.Context, driverID string) (*domain.Driver, error) {
	return s.transition(ctx, driverID, domain.DriverStatusPending, domain.DriverStatusActive)
}

// Reject moves a pending driver to rejected.
func (s *DriverService) Reject(ctx context.Context, driverID string) (*domain.Driver, error) {
	return s.transition(ctx, driverID, domain.DriverStatusPending, domain.DriverStatusRejected)
}

// Suspend moves an active driver to suspended.
func (s *DriverService) Suspend(ctx context.Context, driverID string) (*domain.Driver, error) {
	return s.transition(ctx, driverID, domain.DriverStatusActive, domain.DriverStatusSuspended)
}

func (s *DriverService) transition(ctx context.Context, driverID string, from, to domain.DriverStatus) (*domain.Driver, error) {
	if driverID == "" {
		return nil, ErrInvalidDriverID
	}

	err := s.driverRepo.TransitionStatus(ctx, driverID, from, to)
	if errors.Is(err, repository.ErrStaleState) {
		return nil, ErrInvalidDriverTransition
	}
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, driverID)
	s.notifier.NotifyDriverStatusChanged(ctx, driverID, from, to)
	s.logger.Info("driver status changed", "driver_id", driverID, "from", from, "to", to)

	return s.driverRepo.GetByID(ctx, driverID)
}

// Authorize checks that a token-bearing driver still exists and is not suspended.
// Results are cached briefly; approval changes invalidate the cache.
func (s *DriverService) Authorize(ctx context.Context, driverID string) error {
	status, err := s.cachedStatus(ctx, driverID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidToken
		}
		return err
	}

	if status != domain.DriverStatusActive {
		return fmt.Errorf("%w: driver account is %s", ErrForbidden, status)
	}
	return nil
}

func (s *DriverService) cachedStatus(ctx context.Context, driverID string) (domain.DriverStatus, error) {
	if s.cacheStore != nil {
		cached, err := s.cacheStore.GetDriver(ctx, driverID)
		if err != nil {
			s.logger.Warn("driver cache read failed", "driver_id", driverID, "error", err)
		} else if cached != nil {
			return domain.DriverStatus(cached.Status), nil
		}
	}

	driver, err := s.driverRepo.GetByID(ctx, driverID)
	if err != nil {
		return "", err
	}

	if s.cacheStore != nil {
		_ = s.cacheStore.SetDriver(ctx, &redis.CachedDriver{
			ID:       driver.ID,
			Status:   string(driver.Status),
			PlanType: string(driver.PlanType),
		})
	}
	return driver.Status, nil
}

func (s *DriverService) invalidate(ctx context.Context, driverID string) {
	if s.cacheStore == nil {
		return
	}
	if err := s.cacheStore.InvalidateDriver(ctx, driverID); err != nil {
		s.logger.Warn("driver cache invalidation failed", "driver_id", driverID, "error", err)
	}
}
