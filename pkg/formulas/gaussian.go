package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Abramowitz & Stegun 7.1.26 rational approximation coefficients for erf.
const (
	asA1 = 0.254829592
	asA2 = -0.284496736
	asA3 = 1.421413741
	asA4 = -1.453152027
	asA5 = 1.061405429
	asP  = 0.3275911
)

// NormalCDF evaluates the standard normal CDF Φ(x) using the
// Abramowitz–Stegun rational erf approximation (formula 7.1.26).
// Maximum absolute error is about 7.5e-8, which downstream credit
// calculations rely on staying stable across releases.
func NormalCDF(x float64) float64 {
	sign := 1.0
	if x < 0 {
		sign = -1.0
	}
	x = math.Abs(x) / math.Sqrt2

	t := 1.0 / (1.0 + asP*x)
	y := 1.0 - (((((asA5*t+asA4)*t)+asA3)*t+asA2)*t+asA1)*t*math.Exp(-x*x)

	return 0.5 * (1.0 + sign*y)
}

// NormalQuantile evaluates the inverse standard normal CDF Φ⁻¹(p).
func NormalQuantile(p float64) float64 {
	return distuv.UnitNormal.Quantile(p)
}
