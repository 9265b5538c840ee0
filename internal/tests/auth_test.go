package tests

import (
	"context"
	"errors"
	"testing"
	"time"

	"rideledger/internal/domain"
	"rideledger/internal/service"
)

func newAuthService(t *testing.T, drivers *MockDriverRepository) (*service.AuthService, *MockAdminRepository) {
	t.Helper()
	admins := NewMockAdminRepository()
	svc := service.NewAuthService(NewMockUserRepository(), drivers, admins, "test-secret", time.Hour, NewTestLogger())
	return svc, admins
}

func TestRegisterUser(t *testing.T) {
	t.Parallel()
	svc, _ := newAuthService(t, NewMockDriverRepository())
	ctx := context.Background()

	result, err := svc.RegisterUser(ctx, service.RegisterRequest{Name: "Ana", Email: " Ana@Example.com ", Password: "secret"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Role != domain.RoleUser {
		t.Errorf("expected role user, got %s", result.Role)
	}
	if result.Email != "ana@example.com" {
		t.Errorf("expected normalized email, got %q", result.Email)
	}

	identity, err := svc.ParseToken(result.Token)
	if err != nil {
		t.Fatalf("token did not parse: %v", err)
	}
	if identity.ID != result.ID || identity.Role != domain.RoleUser {
		t.Errorf("unexpected identity %+v", identity)
	}

	_, err = svc.RegisterUser(ctx, service.RegisterRequest{Name: "Ana", Email: "ana@example.com", Password: "other"})
	if !errors.Is(err, service.ErrEmailTaken) || !errors.Is(err, service.ErrConflict) {
		t.Errorf("expected email conflict, got %v", err)
	}

	_, err = svc.RegisterUser(ctx, service.RegisterRequest{Email: "bob@example.com"})
	if !errors.Is(err, service.ErrValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestLoginUser_WrongPassword(t *testing.T) {
	t.Parallel()
	svc, _ := newAuthService(t, NewMockDriverRepository())
	ctx := context.Background()

	if _, err := svc.RegisterUser(ctx, service.RegisterRequest{Name: "Ana", Email: "ana@example.com", Password: "secret"}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if _, err := svc.LoginUser(ctx, "ana@example.com", "wrong"); !errors.Is(err, service.ErrInvalidCredentials) {
		t.Errorf("expected invalid credentials, got %v", err)
	}
	if _, err := svc.LoginUser(ctx, "nobody@example.com", "secret"); !errors.Is(err, service.ErrInvalidCredentials) {
		t.Errorf("expected invalid credentials for unknown email, got %v", err)
	}
	if _, err := svc.LoginUser(ctx, "ANA@example.com", "secret"); err != nil {
		t.Errorf("expected login to succeed, got %v", err)
	}
}

func TestLoginDriver_RequiresApproval(t *testing.T) {
	t.Parallel()
	drivers := NewMockDriverRepository()
	svc, _ := newAuthService(t, drivers)
	ctx := context.Background()

	hash, err := service.HashPassword("secret")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}

	testCases := []struct {
		status  domain.DriverStatus
		wantErr error
	}{
		{domain.DriverStatusPending, service.ErrDriverNotApproved},
		{domain.DriverStatusRejected, service.ErrDriverNotApproved},
		{domain.DriverStatusSuspended, service.ErrDriverNotApproved},
		{domain.DriverStatusActive, nil},
	}

	for _, tc := range testCases {
		email := string(tc.status) + "@example.com"
		drivers.AddDriver(&domain.Driver{ID: string(tc.status), Email: email, PasswordHash: hash, Status: tc.status})

		result, err := svc.LoginDriver(ctx, email, "secret")
		if !errors.Is(err, tc.wantErr) {
			t.Errorf("%s: expected %v, got %v", tc.status, tc.wantErr, err)
			continue
		}
		if tc.wantErr == nil && result.Role != domain.RoleDriver {
			t.Errorf("%s: expected driver role, got %s", tc.status, result.Role)
		}
	}

	if _, err := svc.LoginDriver(ctx, "pending@example.com", "wrong"); !errors.Is(err, service.ErrInvalidCredentials) {
		t.Errorf("expected password check before status check, got %v", err)
	}
}

func TestParseToken(t *testing.T) {
	t.Parallel()
	svc, _ := newAuthService(t, NewMockDriverRepository())

	now := testNow
	svc.SetClock(func() time.Time { return now })

	token, err := svc.IssueToken("driver-1", domain.RoleDriver)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	identity, err := svc.ParseToken(token)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if identity.ID != "driver-1" || identity.Role != domain.RoleDriver {
		t.Errorf("unexpected identity %+v", identity)
	}

	other := service.NewAuthService(NewMockUserRepository(), NewMockDriverRepository(), NewMockAdminRepository(), "other-secret", time.Hour, NewTestLogger())
	other.SetClock(func() time.Time { return now })
	if _, err := other.ParseToken(token); !errors.Is(err, service.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for wrong secret, got %v", err)
	}

	if _, err := svc.ParseToken("not-a-token"); !errors.Is(err, service.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken for garbage, got %v", err)
	}

	now = testNow.Add(2 * time.Hour)
	if _, err := svc.ParseToken(token); !errors.Is(err, service.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken after expiry, got %v", err)
	}
}

func TestParseToken_RejectsUnknownRole(t *testing.T) {
	t.Parallel()
	svc, _ := newAuthService(t, NewMockDriverRepository())

	token, err := svc.IssueToken("someone", domain.Role("superuser"))
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := svc.ParseToken(token); !errors.Is(err, service.ErrInvalidToken) {
		t.Errorf("expected ErrInvalidToken, got %v", err)
	}
}

func TestEnsureBootstrapAdmin(t *testing.T) {
	t.Parallel()
	svc, admins := newAuthService(t, NewMockDriverRepository())
	ctx := context.Background()
	req := service.RegisterRequest{Name: "Root", Email: "root@example.com", Password: "secret"}

	if err := svc.EnsureBootstrapAdmin(ctx, service.RegisterRequest{}); err != nil {
		t.Fatalf("unexpected error without config: %v", err)
	}
	if n, _ := admins.Count(ctx); n != 0 {
		t.Fatalf("expected no admin without config, got %d", n)
	}

	for i := 0; i < 2; i++ {
		if err := svc.EnsureBootstrapAdmin(ctx, req); err != nil {
			t.Fatalf("run %d: unexpected error: %v", i, err)
		}
	}
	if n, _ := admins.Count(ctx); n != 1 {
		t.Errorf("expected exactly one admin, got %d", n)
	}

	result, err := svc.LoginAdmin(ctx, "root@example.com", "secret")
	if err != nil {
		t.Fatalf("admin login failed: %v", err)
	}
	if result.Role != domain.RoleAdmin {
		t.Errorf("expected admin role, got %s", result.Role)
	}
}
