package formulas

// DrawdownMetrics summarizes the drawdown profile of a value series.
type DrawdownMetrics struct {
	MaxDrawdown     float64 `json:"max_drawdown"`
	CurrentDrawdown float64 `json:"current_drawdown"`
	DaysInDrawdown  int     `json:"days_in_drawdown"`
	PeakValue       float64 `json:"peak_value"`
	CurrentValue    float64 `json:"current_value"`
}

// CalculateDrawdownMetrics computes drawdown statistics from an ordered
// series of portfolio (or price) values. Drawdowns are expressed as
// positive fractions of the running peak.
func CalculateDrawdownMetrics(values []float64) DrawdownMetrics {
	if len(values) == 0 {
		return DrawdownMetrics{}
	}

	peak := values[0]
	maxDrawdown := 0.0
	daysInDrawdown := 0

	for _, v := range values {
		if v > peak {
			peak = v
			daysInDrawdown = 0
		} else {
			daysInDrawdown++
		}

		if peak > 0 {
			dd := (peak - v) / peak
			if dd > maxDrawdown {
				maxDrawdown = dd
			}
		}
	}

	current := values[len(values)-1]
	currentDrawdown := 0.0
	if peak > 0 {
		currentDrawdown = (peak - current) / peak
	}

	return DrawdownMetrics{
		MaxDrawdown:     maxDrawdown,
		CurrentDrawdown: currentDrawdown,
		DaysInDrawdown:  daysInDrawdown,
		PeakValue:       peak,
		CurrentValue:    current,
	}
}

// MaxDrawdownFromReturns builds a cumulative value series from returns
// (starting at 1.0) and returns its maximum drawdown.
func MaxDrawdownFromReturns(returns []float64) float64 {
	if len(returns) == 0 {
		return 0
	}

	values := make([]float64, len(returns)+1)
	values[0] = 1.0
	for i, r := range returns {
		values[i+1] = values[i] * (1 + r)
	}

	return CalculateDrawdownMetrics(values).MaxDrawdown
}
