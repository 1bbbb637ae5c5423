// Package factors decomposes portfolio variance across a named factor
// set. The exposure model is a deliberate equal-weight stand-in for a
// fitted multi-factor regression: each factor receives exposure
// 1/len(factors) and a synthetic return series drawn around the
// portfolio's own distribution. Treat the output as indicative, not
// statistically rigorous.
package factors

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/aristath/riskd/internal/domain"
	"github.com/aristath/riskd/internal/marketdata"
	"github.com/aristath/riskd/internal/modules/returns"
	"github.com/aristath/riskd/pkg/formulas"
)

// FactorContribution is one factor's share of the attribution.
type FactorContribution struct {
	Exposure     float64 `json:"exposure"`
	Contribution float64 `json:"contribution"`
}

// Attribution is the immutable result of one factor decomposition.
type Attribution struct {
	Factors           map[string]FactorContribution `json:"factors"`
	TotalAttribution  float64                       `json:"total_attribution"`
	ResidualRisk      float64                       `json:"residual_risk"`
	RSquared          float64                       `json:"r_squared"`
	PortfolioVariance float64                       `json:"portfolio_variance"`
	AnalyzedAt        time.Time                     `json:"analyzed_at"`
}

// Engine performs factor attribution over portfolio returns.
type Engine struct {
	source  marketdata.Source
	builder *returns.Builder
	log     zerolog.Logger
}

// New creates a factor attribution engine.
func New(source marketdata.Source, log zerolog.Logger) *Engine {
	return &Engine{
		source:  source,
		builder: returns.NewBuilder(),
		log:     log.With().Str("component", "factor_engine").Logger(),
	}
}

// AttributeFactors fetches portfolio returns over [start, end] and
// decomposes their variance across the named factors. seed drives the
// synthetic factor return draws; 0 derives one from the clock.
func (e *Engine) AttributeFactors(
	weights map[string]float64,
	factorNames []string,
	start, end time.Time,
	seed uint64,
) (*Attribution, error) {
	perAsset := make(map[string][]float64, len(weights))
	for asset := range weights {
		series, err := e.source.GetReturnSeries(asset, start, end)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch returns for %s: %w", asset, err)
		}
		perAsset[asset] = series.Values()
	}

	portfolioReturns, err := e.builder.PortfolioReturns(perAsset, weights)
	if err != nil {
		return nil, err
	}

	return Attribute(portfolioReturns, factorNames, seed)
}

// Attribute decomposes the variance of precomputed portfolio returns.
// Each factor gets equal exposure 1/len(factors); its contribution is
// exposure × mean of a synthetic factor return series drawn from a
// Normal fitted to the portfolio returns.
func Attribute(portfolioReturns []float64, factorNames []string, seed uint64) (*Attribution, error) {
	if len(factorNames) == 0 {
		return nil, fmt.Errorf("no factors provided")
	}
	if len(portfolioReturns) == 0 {
		return nil, fmt.Errorf("factor attribution: %w", domain.ErrEmptySeries)
	}

	portfolioVariance := formulas.Variance(portfolioReturns)
	if portfolioVariance == 0 || math.IsNaN(portfolioVariance) {
		return nil, fmt.Errorf("factor attribution: %w", domain.ErrDegenerateVariance)
	}

	var src rand.Source
	if seed == 0 {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	} else {
		src = rand.NewPCG(seed, seed)
	}

	dist := distuv.Normal{
		Mu:    formulas.Mean(portfolioReturns),
		Sigma: math.Sqrt(portfolioVariance),
		Src:   src,
	}

	exposure := 1.0 / float64(len(factorNames))

	attribution := &Attribution{
		Factors:           make(map[string]FactorContribution, len(factorNames)),
		PortfolioVariance: portfolioVariance,
		AnalyzedAt:        time.Now().UTC(),
	}

	for _, name := range factorNames {
		synthetic := make([]float64, len(portfolioReturns))
		for i := range synthetic {
			synthetic[i] = dist.Rand()
		}

		contribution := exposure * formulas.Mean(synthetic)
		attribution.Factors[name] = FactorContribution{
			Exposure:     exposure,
			Contribution: contribution,
		}
		attribution.TotalAttribution += contribution
	}

	attribution.ResidualRisk = portfolioVariance - attribution.TotalAttribution
	attribution.RSquared = attribution.TotalAttribution / portfolioVariance

	return attribution, nil
}
