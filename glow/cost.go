// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package glow

import "math"

// ToCost converts a usage amount into a monetary cost at the given tariff
// rate. Amounts in watts are converted to kilowatts first; any other unit is
// taken at face value. A non-finite rate or amount yields zero rather than
// propagating garbage into downstream cost figures.
func ToCost(rate, amount float64, unit string) float64 {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0
	}
	if unit == "W" {
		amount /= 1000
	}
	return amount * rate
}
