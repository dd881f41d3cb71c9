package util

import (
	"fmt"
	"math"
)

// FormatMillions renders a dollar amount in millions with one decimal,
// e.g. 12_500_000 -> "12.5M". The sign is preserved.
func FormatMillions(v float64) string {
	return fmt.Sprintf("%.1fM", v/1e6)
}

// RoundTo rounds v to the given number of decimal places.
func RoundTo(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

// AlmostEqual reports whether two floats agree within tol.
func AlmostEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}
