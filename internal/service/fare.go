package service

import (
	"math"

	"rideledger/internal/domain"
)

// FareInput is the measured trip. SurgeMultiplier values of 1 or less mean no surge.
type FareInput struct {
	DistanceMeters  float64
	DurationSeconds float64
	SurgeMultiplier float64
}

// FareBreakdown itemizes a fare. Adjustment is the amount added to reach the minimum fare.
type FareBreakdown struct {
	BaseFare   float64
	Distance   float64
	Time       float64
	Surge      float64
	Adjustment float64
}

// FareQuote is the result of CalculateFare.
type FareQuote struct {
	Amount          float64
	SurgeMultiplier float64
	Breakdown       FareBreakdown
}

// CalculateFare prices a trip against the given settings. It performs no I/O.
func CalculateFare(settings domain.Settings, in FareInput) (FareQuote, error) {
	if !validMeasure(in.DistanceMeters) || !validMeasure(in.DurationSeconds) || !validMeasure(in.SurgeMultiplier) {
		return FareQuote{}, ErrInvalidFareInput
	}

	tariff := settings.FareCalculation
	breakdown := FareBreakdown{
		BaseFare: tariff.BaseRate,
		Distance: in.DistanceMeters / 1000 * tariff.PerKilometer,
		Time:     in.DurationSeconds / 60 * tariff.PerMinute,
	}
	raw := breakdown.BaseFare + breakdown.Distance + breakdown.Time

	multiplier := surgeMultiplier(in.SurgeMultiplier, tariff.SurgeMultiplierMax)
	if multiplier > 1 {
		breakdown.Surge = raw * (multiplier - 1)
		raw += breakdown.Surge
	}

	amount := raw
	if amount < settings.MinFare {
		breakdown.Adjustment = settings.MinFare - raw
		amount = settings.MinFare
	}

	return FareQuote{
		Amount:          amount,
		SurgeMultiplier: multiplier,
		Breakdown:       breakdown,
	}, nil
}

// surgeMultiplier clamps the requested multiplier to [1, ceiling].
func surgeMultiplier(requested, ceiling float64) float64 {
	if requested <= 1 || ceiling <= 1 {
		return 1
	}
	if requested > ceiling {
		return ceiling
	}
	return requested
}

func validMeasure(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
