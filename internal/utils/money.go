package utils

import "math"

// Round2 rounds a currency amount to two decimal places, the display
// convention used for all stored amounts
func Round2(amount float64) float64 {
	return math.Round(amount*100) / 100
}
