package models

import "github.com/shopspring/decimal"

// Round2 rounds v half away from zero to two decimals, using the shortest
// decimal form of v so that 1.005 becomes 1.01.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
