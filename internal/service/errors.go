package service

import (
	"errors"
	"fmt"
)

// Error kinds. Handlers map these to HTTP status codes; specific errors wrap one of them.
var (
	// ErrValidation is returned for missing or malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrUnauthorized is returned when credentials are missing or wrong.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned on a role or ownership mismatch.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict is returned when the request clashes with current state.
	ErrConflict = errors.New("conflict")
)

var (
	// ErrInvalidFareInput is returned for negative or non-numeric distance, duration or surge.
	ErrInvalidFareInput = fmt.Errorf("%w: distance, duration and surge must be non-negative numbers", ErrValidation)

	// ErrInvalidSettings is returned when a settings value is out of range.
	ErrInvalidSettings = fmt.Errorf("%w: invalid settings", ErrValidation)

	// ErrInvalidDriverID is returned when driver ID is empty.
	ErrInvalidDriverID = fmt.Errorf("%w: invalid driver id", ErrValidation)

	// ErrInvalidRideID is returned when ride ID is empty.
	ErrInvalidRideID = fmt.Errorf("%w: invalid ride id", ErrValidation)

	// ErrInvalidPaymentID is returned when payment ID is empty.
	ErrInvalidPaymentID = fmt.Errorf("%w: invalid payment id", ErrValidation)

	// ErrInvalidPaymentAmount is returned when a fare or fee is negative.
	ErrInvalidPaymentAmount = fmt.Errorf("%w: invalid payment amount", ErrValidation)

	// ErrInvalidPaymentMethod is returned when payment method is unknown.
	ErrInvalidPaymentMethod = fmt.Errorf("%w: invalid payment method", ErrValidation)

	// ErrInvalidPaymentStatus is returned when a webhook reports a status other than processing, completed or failed.
	ErrInvalidPaymentStatus = fmt.Errorf("%w: invalid payment status", ErrValidation)

	// ErrInvalidPlanType is returned when plan type is unknown.
	ErrInvalidPlanType = fmt.Errorf("%w: invalid plan type", ErrValidation)

	// ErrInvalidAvailability is returned when the online/offline value is unknown.
	ErrInvalidAvailability = fmt.Errorf("%w: status must be online or offline", ErrValidation)

	// ErrInvalidPeriod is returned when a subscription period ends before it starts.
	ErrInvalidPeriod = fmt.Errorf("%w: period end must be after start", ErrValidation)

	// ErrInvalidDateRange is returned for unparsable or inverted date filters.
	ErrInvalidDateRange = fmt.Errorf("%w: invalid date range", ErrValidation)

	// ErrMissingFields is returned when required registration fields are empty.
	ErrMissingFields = fmt.Errorf("%w: all fields are required", ErrValidation)

	// ErrFareMismatch is returned when a reported ride fare differs from the recorded one.
	ErrFareMismatch = fmt.Errorf("%w: ride fare does not match the completed ride", ErrValidation)
)

var (
	// ErrInvalidCredentials is returned when email or password do not match.
	ErrInvalidCredentials = fmt.Errorf("%w: invalid email or password", ErrUnauthorized)

	// ErrInvalidToken is returned when a bearer token cannot be verified.
	ErrInvalidToken = fmt.Errorf("%w: invalid or expired token", ErrUnauthorized)
)

var (
	// ErrDriverNotApproved is returned when a non-active driver logs in.
	ErrDriverNotApproved = fmt.Errorf("%w: driver account is not active", ErrForbidden)

	// ErrDriverNotEligible is returned when a driver fails an eligibility gate.
	ErrDriverNotEligible = fmt.Errorf("%w: driver cannot accept rides", ErrForbidden)

	// ErrNotRideParticipant is returned when the caller is neither the passenger nor the assigned driver.
	ErrNotRideParticipant = fmt.Errorf("%w: not a participant of this ride", ErrForbidden)

	// ErrNotPaymentOwner is returned when a driver references another driver's ride.
	ErrNotPaymentOwner = fmt.Errorf("%w: ride belongs to another driver", ErrForbidden)
)

var (
	// ErrEmailTaken is returned when an account with the email exists.
	ErrEmailTaken = fmt.Errorf("%w: email already registered", ErrConflict)

	// ErrLicenseTaken is returned when a driver with the license number exists.
	ErrLicenseTaken = fmt.Errorf("%w: driver license already registered", ErrConflict)

	// ErrInvalidDriverTransition is returned when the driver is not in the expected approval status.
	ErrInvalidDriverTransition = fmt.Errorf("%w: driver status does not allow this change", ErrConflict)

	// ErrInvalidRideTransition is returned when the ride is not in the expected status.
	ErrInvalidRideTransition = fmt.Errorf("%w: ride status does not allow this change", ErrConflict)

	// ErrRideNotCompleted is returned when a commission is charged for a ride that has not completed.
	ErrRideNotCompleted = fmt.Errorf("%w: ride is not completed", ErrConflict)

	// ErrCommissionExists is returned when a ride already has a commission entry.
	ErrCommissionExists = fmt.Errorf("%w: commission already recorded for ride", ErrConflict)

	// ErrPaymentAlreadySettled is returned when a terminal entry is asked to change.
	ErrPaymentAlreadySettled = fmt.Errorf("%w: payment already settled", ErrConflict)

	// ErrPayoutInProgress is returned when another payout batch holds the lock.
	ErrPayoutInProgress = fmt.Errorf("%w: payout batch already running", ErrConflict)

	// ErrSettingsContention is returned when concurrent activations keep colliding.
	ErrSettingsContention = fmt.Errorf("%w: settings changed concurrently, retry", ErrConflict)
)
