package domain

import "time"

// RideStatus represents the current status of a ride.
type RideStatus string

const (
	RideStatusRequested RideStatus = "requested"
	RideStatusAccepted  RideStatus = "accepted"
	RideStatusStarted   RideStatus = "started"
	RideStatusCompleted RideStatus = "completed"
	RideStatusCancelled RideStatus = "cancelled"
)

// rideTransitions lists the allowed forward moves. Completed and cancelled are terminal.
var rideTransitions = map[RideStatus][]RideStatus{
	RideStatusRequested: {RideStatusAccepted, RideStatusCancelled},
	RideStatusAccepted:  {RideStatusStarted, RideStatusCancelled},
	RideStatusStarted:   {RideStatusCompleted, RideStatusCancelled},
}

// CanTransition reports whether a ride may move from one status to another.
func (s RideStatus) CanTransition(to RideStatus) bool {
	for _, next := range rideTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s RideStatus) Terminal() bool {
	return s == RideStatusCompleted || s == RideStatusCancelled
}

// Valid reports whether the status is known.
func (s RideStatus) Valid() bool {
	switch s {
	case RideStatusRequested, RideStatusAccepted, RideStatusStarted, RideStatusCompleted, RideStatusCancelled:
		return true
	}
	return false
}

// Ride represents a ride request and its progress.
type Ride struct {
	ID              string
	PassengerID     string
	DriverID        string // empty until accepted
	Origin          string
	Destination     string
	Status          RideStatus
	Fare            float64
	DistanceMeters  float64
	DurationSeconds float64
	CancelledBy     string
	CancelReason    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     time.Time
}
