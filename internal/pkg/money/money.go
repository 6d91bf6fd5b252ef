// Package money holds the rounding rules used everywhere a price is
// computed. Prices are rupees with two decimal places.
package money

import "math"

// Round2 rounds to two decimal places, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// LineTotal is the charged amount for a single order line.
func LineTotal(unitPrice float64, quantity int) float64 {
	return Round2(unitPrice * float64(quantity))
}
