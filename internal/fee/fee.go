package fee

import (
	"math"
	"time"
)

// DefaultRatePerHalfHour is the charge for each 30 minutes of occupancy.
const DefaultRatePerHalfHour = 0.50

// Calculate returns the amount due for a session spanning [start, end] at the
// given rate per half hour, rounded to 2 decimal places (half away from
// zero). The fee is proportional, not bucketed: 45 minutes at 0.50 is 0.75.
// A negative span charges nothing.
func Calculate(ratePerHalfHour float64, start, end time.Time) float64 {
	minutes := end.Sub(start).Minutes()
	if minutes < 0 {
		minutes = 0
	}
	return Round2(ratePerHalfHour * (minutes / 30))
}

// Round2 rounds to 2 decimal places, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
