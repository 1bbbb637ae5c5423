// Package credit implements counterparty credit risk: a simplified
// Merton distance-to-default, Vasicek single-factor credit VaR, and
// expected loss.
package credit

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/riskd/internal/domain"
	"github.com/aristath/riskd/internal/marketdata"
	"github.com/aristath/riskd/pkg/formulas"
)

// Fixed model constants. These mirror the source model verbatim; none of
// them is calibrated.
const (
	assetDrift       = 0.05 // annual drift μ
	horizonYears     = 1.0  // T
	defaultAssetVal  = 1e9  // V when market cap is absent
	defaultDebtRatio = 0.30 // D = 30% of V when total debt is absent
	defaultVol       = 0.02 // σ when no proxy history exists
	safeDistance     = 10.0 // d for degenerate V or D, negligible risk
	assetCorrelation = 0.12 // Vasicek single-factor ρ
)

// CounterpartyCreditRisk is the immutable per-counterparty assessment.
type CounterpartyCreditRisk struct {
	CounterpartyID    string              `json:"counterparty_id"`
	Name              string              `json:"name"`
	Rating            domain.CreditRating `json:"rating"`
	Exposure          float64             `json:"exposure"`
	Volatility        float64             `json:"volatility"`
	DistanceToDefault float64             `json:"distance_to_default"`
	DefaultProb       float64             `json:"default_probability"`
	LGD               float64             `json:"lgd"`
	RecoveryRate      float64             `json:"recovery_rate"`
	CreditVaR         float64             `json:"credit_var"`
	ExpectedLoss      float64             `json:"expected_loss"`
	AnalyzedAt        time.Time           `json:"analyzed_at"`
}

// Engine assesses counterparty credit risk. Volatility comes from the
// counterparty's proxy symbol via the price source; everything else is
// closed-form.
type Engine struct {
	source marketdata.Source
	log    zerolog.Logger
}

// New creates a credit risk engine.
func New(source marketdata.Source, log zerolog.Logger) *Engine {
	return &Engine{
		source: source,
		log:    log.With().Str("component", "credit_engine").Logger(),
	}
}

// ProxyVolatility estimates a counterparty's return volatility from its
// proxy symbol's daily returns over the lookback window. Missing
// proxies, fetch failures and degenerate histories all fall back to the
// fixed 2% default rather than erroring.
func (e *Engine) ProxyVolatility(info domain.CounterpartyInfo, lookbackDays int) float64 {
	if info.ProxySymbol == "" {
		return defaultVol
	}

	end := time.Now().UTC()
	start := end.AddDate(0, 0, -lookbackDays)
	series, err := e.source.GetReturnSeries(info.ProxySymbol, start, end)
	if err != nil {
		e.log.Warn().Err(err).
			Str("counterparty", info.ID).
			Str("proxy", info.ProxySymbol).
			Msg("Proxy return fetch failed, using default volatility")
		return defaultVol
	}

	values := series.Values()
	if len(values) < 2 {
		return defaultVol
	}

	vol := formulas.StdDev(values)
	if vol <= 0 || math.IsNaN(vol) {
		return defaultVol
	}
	return vol
}

// DistanceToDefault computes the simplified Merton distance
// d = (ln(V/D) + (μ − 0.5σ²)T) / (σ√T). Degenerate inputs (V ≤ 0 or
// D ≤ 0) yield the safe distance 10, not an error.
func DistanceToDefault(assetValue, debt, sigma float64) float64 {
	if assetValue <= 0 || debt <= 0 {
		return safeDistance
	}
	if sigma <= 0 {
		sigma = defaultVol
	}
	numerator := math.Log(assetValue/debt) + (assetDrift-0.5*sigma*sigma)*horizonYears
	return numerator / (sigma * math.Sqrt(horizonYears))
}

// DefaultProbability is PD = 1 − Φ(d) under the Merton model.
func DefaultProbability(distanceToDefault float64) float64 {
	return 1.0 - formulas.NormalCDF(distanceToDefault)
}

// CreditVaR computes the Vasicek single-factor credit VaR with fixed
// asset correlation ρ = 0.12:
// z = Φ⁻¹(PD)/√(1−ρ), CreditVaR = exposure × Φ(z) × LGD.
func CreditVaR(exposure, pd, lgd float64) float64 {
	if pd <= 0 {
		return 0
	}
	if pd >= 1 {
		return exposure * lgd
	}
	z := formulas.NormalQuantile(pd) / math.Sqrt(1.0-assetCorrelation)
	return exposure * formulas.NormalCDF(z) * lgd
}

// ExpectedLoss is exposure × PD × LGD.
func ExpectedLoss(exposure, pd, lgd float64) float64 {
	return exposure * pd * lgd
}

// AssessCreditRisk runs the full Merton/Vasicek assessment for one
// counterparty. Market cap defaults to 1e9 and debt to 30% of asset
// value when absent from the directory entry.
func (e *Engine) AssessCreditRisk(
	id string,
	info domain.CounterpartyInfo,
	exposure float64,
	lookbackDays int,
) (*CounterpartyCreditRisk, error) {
	if id == "" {
		return nil, fmt.Errorf("credit assessment: %w", domain.ErrMissingCounterparty)
	}
	if lookbackDays <= 0 {
		lookbackDays = 252
	}

	assetValue := info.MarketCap
	if assetValue <= 0 {
		assetValue = defaultAssetVal
	}
	debt := info.TotalDebt
	if debt <= 0 {
		debt = defaultDebtRatio * assetValue
	}

	sigma := e.ProxyVolatility(info, lookbackDays)

	distance := DistanceToDefault(assetValue, debt, sigma)
	pd := DefaultProbability(distance)
	lgd := info.Rating.LGD()

	risk := &CounterpartyCreditRisk{
		CounterpartyID:    id,
		Name:              info.Name,
		Rating:            info.Rating,
		Exposure:          exposure,
		Volatility:        sigma,
		DistanceToDefault: distance,
		DefaultProb:       pd,
		LGD:               lgd,
		RecoveryRate:      info.Rating.RecoveryRate(),
		CreditVaR:         CreditVaR(exposure, pd, lgd),
		ExpectedLoss:      ExpectedLoss(exposure, pd, lgd),
		AnalyzedAt:        time.Now().UTC(),
	}

	e.log.Debug().
		Str("counterparty", id).
		Float64("distance_to_default", distance).
		Float64("pd", pd).
		Msg("Assessed counterparty credit risk")

	return risk, nil
}
