package domain

import "time"

// Role identifies the kind of authenticated caller.
type Role string

const (
	RoleUser   Role = "user"
	RoleDriver Role = "driver"
	RoleAdmin  Role = "admin"
)

// User represents a passenger in the system.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Admin is a platform operator.
type Admin struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Analytics is the admin dashboard summary.
type Analytics struct {
	TotalDrivers    int
	ActiveRides     int
	CompletedRides  int
	PlatformRevenue float64
}
