package fee

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalculate(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	testCases := []struct {
		name     string
		minutes  int
		expected float64
	}{
		{"zero duration costs nothing", 0, 0.00},
		{"half hour costs one rate unit", 30, 0.50},
		{"45 minutes is proportional", 45, 0.75},
		{"full hour", 60, 1.00},
		{"90 minutes", 90, 1.50},
		{"one minute rounds to cents", 1, 0.02}, // 0.5/30 = 0.0166... -> 0.02
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			end := start.Add(time.Duration(tc.minutes) * time.Minute)
			assert.InDelta(t, tc.expected, Calculate(DefaultRatePerHalfHour, start, end), 1e-9)
		})
	}
}

func TestCalculateNegativeSpan(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 0.00, Calculate(DefaultRatePerHalfHour, start, start.Add(-10*time.Minute)))
}

func TestCalculateMonotone(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	prev := 0.0
	for m := 0; m <= 240; m += 7 {
		f := Calculate(DefaultRatePerHalfHour, start, start.Add(time.Duration(m)*time.Minute))
		assert.GreaterOrEqual(t, f, prev, "fee must not decrease with duration (m=%d)", m)
		prev = f
	}
}
