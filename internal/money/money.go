// Package money holds the float comparison rules shared by every balance
// computation. Amounts are float64 currency values, so equality and sign
// checks always go through Epsilon instead of ==.
package money

import (
	"math"

	"github.com/shopspring/decimal"
)

// Epsilon is the tolerance used for every zero, sign and equality test.
const Epsilon = 1e-7

// IsZero reports whether v is within Epsilon of zero.
func IsZero(v float64) bool {
	return math.Abs(v) <= Epsilon
}

// Equal reports whether a and b differ by at most Epsilon.
func Equal(a, b float64) bool {
	return math.Abs(a-b) <= Epsilon
}

// Greater reports whether a exceeds b by more than Epsilon.
func Greater(a, b float64) bool {
	return a-b > Epsilon
}

// Less reports whether a is below b by more than Epsilon.
func Less(a, b float64) bool {
	return b-a > Epsilon
}

// Valid reports whether v is a finite number.
func Valid(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Snap returns 0 for values within Epsilon of zero and v otherwise.
func Snap(v float64) float64 {
	if IsZero(v) {
		return 0
	}
	return v
}

// Round rounds v half away from zero to the given number of decimal places.
func Round(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(Snap(v)).Round(places).Float64()
	return f
}

// Format renders v with two decimal places, e.g. "30.00" or "-12.35".
func Format(v float64) string {
	return decimal.NewFromFloat(Snap(v)).StringFixed(2)
}
