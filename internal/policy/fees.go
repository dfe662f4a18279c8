// Package policy holds the booking core's decision functions. Nothing in
// here touches storage or the clock; callers load a snapshot, ask policy
// what should happen and persist the answer.
package policy

import "github.com/guidemeet/backend/internal/apperror"

const bpsDenominator = 10000

// Terms are the commercial amounts fixed on a booking at creation.
type Terms struct {
	BasePrice     int64
	PlatformFee   int64
	GuideEarnings int64
	TotalPrice    int64
	FeeBPS        int
}

// ComputeTerms splits basePrice at feeBPS. The fee is rounded half up to
// the nearest minor unit; the traveler pays base plus fee and the guide
// earns base minus fee.
func ComputeTerms(basePrice int64, feeBPS int) (Terms, error) {
	if basePrice <= 0 {
		return Terms{}, apperror.Validation("base price must be positive")
	}
	if feeBPS < 0 || feeBPS > bpsDenominator {
		return Terms{}, apperror.Validation("fee bps %d out of range", feeBPS)
	}
	fee := share(basePrice, feeBPS)
	return Terms{
		BasePrice:     basePrice,
		PlatformFee:   fee,
		GuideEarnings: basePrice - fee,
		TotalPrice:    basePrice + fee,
		FeeBPS:        feeBPS,
	}, nil
}

// share returns round(amount * bps / 10000) for non-negative inputs.
func share(amount int64, bps int) int64 {
	return (amount*int64(bps) + bpsDenominator/2) / bpsDenominator
}
