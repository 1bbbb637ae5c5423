// Package varengine computes portfolio Value-at-Risk and related tail
// measures (Expected Shortfall, component VaR, diversification ratio)
// using historical, parametric, or Monte Carlo methodologies.
package varengine

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/riskd/internal/domain"
	"github.com/aristath/riskd/internal/marketdata"
	"github.com/aristath/riskd/internal/modules/returns"
	"github.com/aristath/riskd/pkg/formulas"
)

// Method selects the VaR methodology. It is a closed set; anything else
// fails ParseMethod with ErrUnknownMethod.
type Method string

const (
	MethodHistorical Method = "historical"
	MethodParametric Method = "parametric"
	MethodMonteCarlo Method = "montecarlo"
)

// DefaultSimulations is the Monte Carlo trial count when the caller does
// not specify one.
const DefaultSimulations = 10000

// ParseMethod maps a method name (case-insensitive) to its Method value.
func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToLower(s)) {
	case MethodHistorical:
		return MethodHistorical, nil
	case MethodParametric:
		return MethodParametric, nil
	case MethodMonteCarlo:
		return MethodMonteCarlo, nil
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownMethod, s)
	}
}

// ValueAtRisk is the immutable result of one VaR computation.
type ValueAtRisk struct {
	Method               Method             `json:"method"`
	Confidence           float64            `json:"confidence"`
	VaR                  float64            `json:"var"`
	ExpectedShortfall    float64            `json:"expected_shortfall"`
	ComponentVaR         map[string]float64 `json:"component_var"`
	DiversificationRatio float64            `json:"diversification_ratio"`
	Simulations          int                `json:"simulations,omitempty"`
	AnalyzedAt           time.Time          `json:"analyzed_at"`
}

// Options tunes a single ComputeVaR call.
type Options struct {
	Simulations int    // Monte Carlo trials; DefaultSimulations when <= 0
	Seed        uint64 // Monte Carlo PRNG seed; 0 seeds from the clock
}

// Engine computes VaR measures from price history supplied by the
// market-data collaborator. The engine holds no mutable state; all entry
// points are safe for concurrent use.
type Engine struct {
	source  marketdata.Source
	builder *returns.Builder
	log     zerolog.Logger
}

// New creates a VaR engine.
func New(source marketdata.Source, log zerolog.Logger) *Engine {
	return &Engine{
		source:  source,
		builder: returns.NewBuilder(),
		log:     log.With().Str("component", "var_engine").Logger(),
	}
}

// ComputeVaR fetches return series for every weighted asset over
// [start, end], builds portfolio returns, and computes VaR, Expected
// Shortfall, component VaR, and the diversification ratio with the
// requested method.
func (e *Engine) ComputeVaR(
	weights map[string]float64,
	confidence float64,
	method Method,
	start, end time.Time,
	opts Options,
) (*ValueAtRisk, error) {
	if confidence <= 0 || confidence >= 1 {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfidence, confidence)
	}

	perAsset, err := e.fetchReturns(weights, start, end)
	if err != nil {
		return nil, err
	}

	portfolioReturns, err := e.builder.PortfolioReturns(perAsset, weights)
	if err != nil {
		return nil, err
	}

	var varValue float64
	var tailSource []float64 // returns the ES is computed over
	simulations := 0

	switch method {
	case MethodHistorical:
		varValue, err = HistoricalVaR(portfolioReturns, confidence)
		tailSource = portfolioReturns
	case MethodParametric:
		varValue, err = ParametricVaR(portfolioReturns, confidence)
		tailSource = portfolioReturns
	case MethodMonteCarlo:
		simulations = opts.Simulations
		if simulations <= 0 {
			simulations = DefaultSimulations
		}
		var simulated []float64
		simulated, err = SimulatePortfolioReturns(perAsset, weights, simulations, opts.Seed)
		if err == nil {
			varValue, err = HistoricalVaR(simulated, confidence)
			tailSource = simulated
		}
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownMethod, method)
	}
	if err != nil {
		return nil, err
	}

	componentVaR, err := ComponentVaR(perAsset, weights, portfolioReturns, varValue)
	if err != nil {
		return nil, err
	}

	diversification, err := DiversificationRatio(perAsset, weights, portfolioReturns)
	if err != nil {
		return nil, err
	}

	result := &ValueAtRisk{
		Method:               method,
		Confidence:           confidence,
		VaR:                  varValue,
		ExpectedShortfall:    ExpectedShortfall(tailSource, varValue),
		ComponentVaR:         componentVaR,
		DiversificationRatio: diversification,
		Simulations:          simulations,
		AnalyzedAt:           time.Now().UTC(),
	}

	e.log.Debug().
		Str("method", string(method)).
		Float64("confidence", confidence).
		Float64("var", result.VaR).
		Float64("expected_shortfall", result.ExpectedShortfall).
		Msg("Computed portfolio VaR")

	return result, nil
}

// fetchReturns pulls a return series for each weighted asset.
func (e *Engine) fetchReturns(weights map[string]float64, start, end time.Time) (map[string][]float64, error) {
	perAsset := make(map[string][]float64, len(weights))
	for asset := range weights {
		series, err := e.source.GetReturnSeries(asset, start, end)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch returns for %s: %w", asset, err)
		}
		perAsset[asset] = series.Values()
	}
	return perAsset, nil
}

// HistoricalVaR computes VaR from realized returns: the returns are
// sorted ascending and the tail observation at index ceil((1-c)*n),
// floor-clamped at 1, is negated. A positive result is a loss.
func HistoricalVaR(rets []float64, confidence float64) (float64, error) {
	if confidence <= 0 || confidence >= 1 {
		return 0, fmt.Errorf("%w: %v", domain.ErrInvalidConfidence, confidence)
	}
	if len(rets) == 0 {
		return 0, fmt.Errorf("historical VaR: %w", domain.ErrEmptySeries)
	}

	sorted := make([]float64, len(rets))
	copy(sorted, rets)
	sort.Float64s(sorted)

	index := int(math.Ceil((1 - confidence) * float64(len(sorted))))
	if index < 1 {
		index = 1
	}

	return -sorted[index-1], nil
}

// ParametricVaR computes VaR under a normal-returns assumption:
// -(mean + z*std) with z the standard normal quantile of the tail
// probability 1-confidence, so the result carries the same loss sign as
// the historical method. A zero-variance series yields -mean.
func ParametricVaR(rets []float64, confidence float64) (float64, error) {
	if confidence <= 0 || confidence >= 1 {
		return 0, fmt.Errorf("%w: %v", domain.ErrInvalidConfidence, confidence)
	}
	if len(rets) == 0 {
		return 0, fmt.Errorf("parametric VaR: %w", domain.ErrEmptySeries)
	}

	mean := formulas.Mean(rets)
	std := formulas.StdDev(rets)
	if std == 0 || math.IsNaN(std) {
		return -mean, nil
	}

	z := formulas.NormalQuantile(1 - confidence)
	return -(mean + z*std), nil
}

// ExpectedShortfall is the mean of returns at or below -VaR. Returns 0
// when no observation breaches the threshold.
func ExpectedShortfall(rets []float64, varValue float64) float64 {
	threshold := -varValue

	sum := 0.0
	count := 0
	for _, r := range rets {
		if r <= threshold {
			sum += r
			count++
		}
	}

	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// ComponentVaR decomposes portfolio VaR per asset as
// weight × beta(asset, portfolio) × portfolioVaR with beta =
// Cov(asset, portfolio)/Var(portfolio).
func ComponentVaR(
	perAsset map[string][]float64,
	weights map[string]float64,
	portfolioReturns []float64,
	portfolioVaR float64,
) (map[string]float64, error) {
	portfolioVariance := formulas.Variance(portfolioReturns)
	if portfolioVariance == 0 || math.IsNaN(portfolioVariance) {
		return nil, fmt.Errorf("component VaR: %w", domain.ErrDegenerateVariance)
	}

	components := make(map[string]float64, len(weights))
	for asset, weight := range weights {
		rets, ok := perAsset[asset]
		if !ok || len(rets) != len(portfolioReturns) {
			continue
		}
		beta := formulas.Covariance(rets, portfolioReturns) / portfolioVariance
		components[asset] = weight * beta * portfolioVaR
	}

	return components, nil
}

// DiversificationRatio is the weighted sum of individual asset
// volatilities over the portfolio volatility. It is >= 1 for any
// non-trivial multi-asset portfolio and exactly 1 for a single asset.
func DiversificationRatio(
	perAsset map[string][]float64,
	weights map[string]float64,
	portfolioReturns []float64,
) (float64, error) {
	portfolioVol := formulas.StdDev(portfolioReturns)
	if portfolioVol == 0 || math.IsNaN(portfolioVol) {
		return 0, fmt.Errorf("diversification ratio: %w", domain.ErrDegenerateVariance)
	}

	weightedVol := 0.0
	for asset, weight := range weights {
		if rets, ok := perAsset[asset]; ok {
			weightedVol += weight * formulas.StdDev(rets)
		}
	}

	return weightedVol / portfolioVol, nil
}
