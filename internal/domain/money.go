package domain

import "math"

// CurrencyINR is the only currency the marketplace settles in.
const CurrencyINR = "INR"

// MinorUnits converts a rupee amount to paise, rounding half away from zero.
func MinorUnits(rupees float64) int64 {
	if math.IsNaN(rupees) || math.IsInf(rupees, 0) {
		return 0
	}
	return int64(math.Round(rupees * 100))
}

// MajorUnits converts paise back to rupees for presentation.
func MajorUnits(paise int64) float64 {
	return float64(paise) / 100
}
