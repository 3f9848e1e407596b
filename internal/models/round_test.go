package models

import "testing"

func TestRound2(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{1.005, 1.01},
		{1.015, 1.02},
		{2.675, 2.68},
		{0.125, 0.13},
		{10.045, 10.05},
		{-1.005, -1.01},
		{0.0028125, 0},
		{0.05625, 0.06},
		{31.456, 31.46},
		{1013.254, 1013.25},
	}

	for _, tt := range tests {
		if got := Round2(tt.in); got != tt.want {
			t.Errorf("Round2(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
