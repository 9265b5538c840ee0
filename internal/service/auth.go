package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"rideledger/internal/domain"
	"rideledger/internal/repository"
)

// TokenClaims are the claims carried by bearer tokens. Subject holds the account ID.
type TokenClaims struct {
	Role domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Identity is the authenticated caller.
type Identity struct {
	ID   string
	Role domain.Role
}

// AuthResult is returned by registration and login.
type AuthResult struct {
	Token string
	ID    string
	Name  string
	Email string
	Role  domain.Role
}

// AuthService handles accounts and bearer tokens for users, drivers and admins.
type AuthService struct {
	users    repository.UserRepository
	drivers  repository.DriverRepository
	admins   repository.AdminRepository
	secret   []byte
	tokenTTL time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(
	users repository.UserRepository,
	drivers repository.DriverRepository,
	admins repository.AdminRepository,
	secret string,
	tokenTTL time.Duration,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		drivers:  drivers,
		admins:   admins,
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		logger:   logger,
		now:      time.Now,
	}
}

// SetClock replaces the time source used to issue and verify tokens.
func (s *AuthService) SetClock(now func() time.Time) {
	s.now = now
}

// RegisterRequest contains the parameters for creating a user or admin account.
// Users are always created with role user.
type RegisterRequest struct {
	Name     string
	Email    string
	Password string
}

// RegisterUser creates a passenger account and returns a token for it.
func (s *AuthService) RegisterUser(ctx context.Context, req RegisterRequest) (*AuthResult, error) {
	req.Email = normalizeEmail(req.Email)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return nil, ErrMissingFields
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	s.logger.Info("user registered", "user_id", user.ID)
	return s.result(user.ID, user.Name, user.Email, domain.RoleUser)
}

// LoginUser authenticates a passenger.
func (s *AuthService) LoginUser(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, credentialsError(err)
	}
	if !CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return s.result(user.ID, user.Name, user.Email, domain.RoleUser)
}

// LoginDriver authenticates a driver. Only approved drivers receive a token.
func (s *AuthService) LoginDriver(ctx context.Context, email, password string) (*AuthResult, error) {
	driver, err := s.drivers.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, credentialsError(err)
	}
	if !CheckPassword(driver.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	if driver.Status != domain.DriverStatusActive {
		return nil, ErrDriverNotApproved
	}
	return s.result(driver.ID, driver.Name, driver.Email, domain.RoleDriver)
}

// LoginAdmin authenticates an admin.
func (s *AuthService) LoginAdmin(ctx context.Context, email, password string) (*AuthResult, error) {
	admin, err := s.admins.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, credentialsError(err)
	}
	if !CheckPassword(admin.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return s.result(admin.ID, admin.Name, admin.Email, domain.RoleAdmin)
}

// CreateAdmin creates an admin account. Callers must already be admins.
func (s *AuthService) CreateAdmin(ctx context.Context, req RegisterRequest) (*domain.Admin, error) {
	req.Email = normalizeEmail(req.Email)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return nil, ErrMissingFields
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	admin := &domain.Admin{
		ID:           uuid.New().String(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
	}
	if err := s.admins.Create(ctx, admin); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	s.logger.Info("admin created", "admin_id", admin.ID)
	return admin, nil
}

// EnsureBootstrapAdmin creates the configured admin when no admin exists.
func (s *AuthService) EnsureBootstrapAdmin(ctx context.Context, req RegisterRequest) error {
	if req.Email == "" || req.Password == "" {
		return nil
	}

	count, err := s.admins.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	_, err = s.CreateAdmin(ctx, req)
	if errors.Is(err, ErrEmailTaken) {
		return nil
	}
	return err
}

// CurrentUser returns the passenger behind a token.
func (s *AuthService) CurrentUser(ctx context.Context, id string) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

// IssueToken signs an HS256 token for the subject.
func (s *AuthService) IssueToken(subject string, role domain.Role) (string, error) {
	now := s.now()
	claims := &TokenClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ParseToken verifies a bearer token and returns the caller it identifies.
func (s *AuthService) ParseToken(raw string) (Identity, error) {
	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !token.Valid || claims.Subject == "" {
		return Identity{}, ErrInvalidToken
	}

	switch claims.Role {
	case domain.RoleUser, domain.RoleDriver, domain.RoleAdmin:
	default:
		return Identity{}, ErrInvalidToken
	}

	return Identity{ID: claims.Subject, Role: claims.Role}, nil
}

func (s *AuthService) result(id, name, email string, role domain.Role) (*AuthResult, error) {
	token, err := s.IssueToken(id, role)
	if err != nil {
		return nil, err
	}
	return &AuthResult{
		Token: token,
		ID:    id,
		Name:  name,
		Email: email,
		Role:  role,
	}, nil
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the bcrypt hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// credentialsError hides whether the account exists.
func credentialsError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrInvalidCredentials
	}
	return err
}
