// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package glow

import (
	"math"
	"testing"
)

func TestToCost(t *testing.T) {
	tests := []struct {
		name   string
		rate   float64
		amount float64
		unit   string
		want   float64
	}{
		{"watts are scaled to kilowatts", 0.15, 2000, "W", 0.3},
		{"kWh taken at face value", 0.15, 2, "kWh", 0.3},
		{"unknown unit taken at face value", 0.5, 4, "m3", 2.0},
		{"zero rate", 0, 1234, "W", 0},
		{"zero amount", 0.3, 0, "kWh", 0},
		{"negative amount passes through", 0.1, -10, "kWh", -1.0},
		{"NaN amount yields zero", 0.15, math.NaN(), "kWh", 0},
		{"NaN rate yields zero", math.NaN(), 2, "kWh", 0},
		{"infinite amount yields zero", 0.15, math.Inf(1), "W", 0},
		{"infinite rate yields zero", math.Inf(-1), 2, "kWh", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToCost(tt.rate, tt.amount, tt.unit)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ToCost(%v, %v, %q) = %v, want %v", tt.rate, tt.amount, tt.unit, got, tt.want)
			}
		})
	}
}
