package formulas

import (
	"math"
	"testing"
)

func TestCalculateReturns(t *testing.T) {
	tests := []struct {
		name      string
		prices    []float64
		want      []float64
		tolerance float64
	}{
		{
			name:      "empty prices",
			prices:    []float64{},
			want:      []float64{},
			tolerance: 0.0,
		},
		{
			name:      "single price",
			prices:    []float64{100.0},
			want:      []float64{},
			tolerance: 0.0,
		},
		{
			name:      "two prices positive return",
			prices:    []float64{100.0, 110.0},
			want:      []float64{0.10},
			tolerance: 0.0001,
		},
		{
			name:      "two prices negative return",
			prices:    []float64{100.0, 90.0},
			want:      []float64{-0.10},
			tolerance: 0.0001,
		},
		{
			name:      "zero base price skipped",
			prices:    []float64{100.0, 0.0, 110.0},
			want:      []float64{-1.0, 0.0},
			tolerance: 0.0001,
		},
		{
			name:      "compound five percent",
			prices:    []float64{100.0, 105.0, 110.25, 115.76},
			want:      []float64{0.05, 0.05, 0.05},
			tolerance: 0.0001,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateReturns(tt.prices)

			if len(result) != len(tt.want) {
				t.Fatalf("CalculateReturns() length = %v, want %v", len(result), len(tt.want))
			}

			for i := range result {
				if math.Abs(result[i]-tt.want[i]) > tt.tolerance {
					t.Errorf("CalculateReturns()[%d] = %v, want %v (±%v)",
						i, result[i], tt.want[i], tt.tolerance)
				}
			}
		})
	}
}

func TestCalculateLogReturns(t *testing.T) {
	prices := []float64{100.0, 110.0, 99.0}
	want := []float64{math.Log(1.1), math.Log(0.9)}

	result := CalculateLogReturns(prices)
	if len(result) != len(want) {
		t.Fatalf("CalculateLogReturns() length = %v, want %v", len(result), len(want))
	}
	for i := range result {
		if math.Abs(result[i]-want[i]) > 1e-9 {
			t.Errorf("CalculateLogReturns()[%d] = %v, want %v", i, result[i], want[i])
		}
	}
}

func TestAnnualizedVolatility(t *testing.T) {
	tests := []struct {
		name      string
		returns   []float64
		expected  float64
		tolerance float64
	}{
		{
			name:      "empty returns",
			returns:   []float64{},
			expected:  0.0,
			tolerance: 0.0,
		},
		{
			name:      "constant returns have no volatility",
			returns:   makeReturns(0.001, 252),
			expected:  0.0,
			tolerance: 0.001,
		},
		{
			name:      "mixed returns",
			returns:   []float64{0.01, -0.01, 0.02, -0.02, 0.015, -0.015},
			expected:  0.244,
			tolerance: 0.05,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := AnnualizedVolatility(tt.returns)
			if math.Abs(result-tt.expected) > tt.tolerance {
				t.Errorf("AnnualizedVolatility() = %v, want %v (±%v)", result, tt.expected, tt.tolerance)
			}
		})
	}
}

func TestCalculateDrawdownMetrics(t *testing.T) {
	values := []float64{100, 110, 99, 104.5, 121, 108.9}

	metrics := CalculateDrawdownMetrics(values)

	// Largest peak-to-trough: 110 -> 99 = 10%
	if math.Abs(metrics.MaxDrawdown-0.10) > 1e-9 {
		t.Errorf("MaxDrawdown = %v, want 0.10", metrics.MaxDrawdown)
	}
	// Current: peak 121, last 108.9 = 10%
	if math.Abs(metrics.CurrentDrawdown-0.10) > 1e-9 {
		t.Errorf("CurrentDrawdown = %v, want 0.10", metrics.CurrentDrawdown)
	}
	if metrics.PeakValue != 121 {
		t.Errorf("PeakValue = %v, want 121", metrics.PeakValue)
	}
	if metrics.DaysInDrawdown != 1 {
		t.Errorf("DaysInDrawdown = %v, want 1", metrics.DaysInDrawdown)
	}
}

func TestSharpeRatioZeroVolatility(t *testing.T) {
	if got := SharpeRatio(makeReturns(0.001, 252), 0.02); got != 0 {
		t.Errorf("SharpeRatio() with zero volatility = %v, want 0", got)
	}
}

// Helper function to create a slice of identical returns
func makeReturns(value float64, count int) []float64 {
	returns := make([]float64, count)
	for i := range returns {
		returns[i] = value
	}
	return returns
}
