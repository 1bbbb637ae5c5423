// Package report assembles the individual risk analyses into a single
// portfolio risk report with a qualitative rating, and persists report
// snapshots.
package report

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/aristath/riskd/internal/domain"
	"github.com/aristath/riskd/internal/marketdata"
	"github.com/aristath/riskd/internal/modules/credit"
	"github.com/aristath/riskd/internal/modules/factors"
	"github.com/aristath/riskd/internal/modules/returns"
	"github.com/aristath/riskd/internal/modules/stress"
	"github.com/aristath/riskd/internal/modules/varengine"
	"github.com/aristath/riskd/pkg/formulas"
)

// Rating is the four-way qualitative risk bucket.
type Rating string

const (
	RatingLow     Rating = "low"
	RatingMedium  Rating = "medium"
	RatingHigh    Rating = "high"
	RatingExtreme Rating = "extreme"
)

// RiskReport is the assembled portfolio risk picture. Reports carry a
// unique ID and are never mutated after generation.
type RiskReport struct {
	ID               string                                    `json:"id"`
	GeneratedAt      time.Time                                 `json:"generated_at"`
	VaR95            *varengine.ValueAtRisk                    `json:"var_95"`
	VaR99            *varengine.ValueAtRisk                    `json:"var_99"`
	StressResults    []stress.Result                           `json:"stress_results"`
	Factors          *factors.Attribution                      `json:"factor_attribution"`
	Volatility       float64                                   `json:"volatility"`
	SharpeRatio      float64                                   `json:"sharpe_ratio"`
	MaxDrawdown      float64                                   `json:"max_drawdown"`
	Skewness         float64                                   `json:"skewness"`
	ExcessKurtosis   float64                                   `json:"excess_kurtosis"`
	CreditByParty    map[string]*credit.CounterpartyCreditRisk `json:"credit_by_counterparty,omitempty"`
	Rating           Rating                                    `json:"rating"`
	WindowStart      time.Time                                 `json:"window_start"`
	WindowEnd        time.Time                                 `json:"window_end"`
	CreditAssessErrs []string                                  `json:"credit_assessment_errors,omitempty"`
}

// Params describes one report generation request.
type Params struct {
	Weights        map[string]float64
	Scenarios      []stress.Scenario
	StressLossCap  float64 // breach threshold for stress scenarios
	Factors        []string
	Counterparties map[string]domain.CounterpartyInfo
	Positions      []domain.Position
	Start, End     time.Time
	Seed           uint64 // drives Monte Carlo and factor synthesis in tests
}

// Assembler orchestrates the engines into one report.
type Assembler struct {
	source       marketdata.Source
	varEngine    *varengine.Engine
	stressEngine *stress.Engine
	factorEngine *factors.Engine
	creditEngine *credit.Engine
	builder      *returns.Builder
	log          zerolog.Logger
}

// NewAssembler wires a report assembler from the individual engines.
func NewAssembler(
	source marketdata.Source,
	varEngine *varengine.Engine,
	stressEngine *stress.Engine,
	factorEngine *factors.Engine,
	creditEngine *credit.Engine,
	log zerolog.Logger,
) *Assembler {
	return &Assembler{
		source:       source,
		varEngine:    varEngine,
		stressEngine: stressEngine,
		factorEngine: factorEngine,
		creditEngine: creditEngine,
		builder:      returns.NewBuilder(),
		log:          log.With().Str("component", "report_assembler").Logger(),
	}
}

// GenerateReport runs the full analysis suite: 95% and 99% historical
// VaR, the configured stress scenarios, factor attribution, the
// distribution statistics, per-counterparty credit assessment, and the
// qualitative rating.
func (a *Assembler) GenerateReport(ctx context.Context, params Params) (*RiskReport, error) {
	if len(params.Weights) == 0 {
		return nil, fmt.Errorf("report generation: %w", domain.ErrEmptySeries)
	}

	report := &RiskReport{
		ID:          uuid.New().String(),
		GeneratedAt: time.Now().UTC(),
		WindowStart: params.Start,
		WindowEnd:   params.End,
	}

	var err error
	report.VaR95, err = a.varEngine.ComputeVaR(
		params.Weights, 0.95, varengine.MethodHistorical,
		params.Start, params.End, varengine.Options{Seed: params.Seed})
	if err != nil {
		return nil, fmt.Errorf("95%% VaR failed: %w", err)
	}

	report.VaR99, err = a.varEngine.ComputeVaR(
		params.Weights, 0.99, varengine.MethodHistorical,
		params.Start, params.End, varengine.Options{Seed: params.Seed})
	if err != nil {
		return nil, fmt.Errorf("99%% VaR failed: %w", err)
	}

	if len(params.Scenarios) > 0 {
		report.StressResults, err = a.stressEngine.RunScenarios(
			params.Weights, params.Scenarios, params.StressLossCap)
		if err != nil {
			return nil, fmt.Errorf("stress scenarios failed: %w", err)
		}
	}

	portfolioReturns, err := a.portfolioReturns(params.Weights, params.Start, params.End)
	if err != nil {
		return nil, err
	}

	if len(params.Factors) > 0 {
		report.Factors, err = factors.Attribute(portfolioReturns, params.Factors, params.Seed)
		if err != nil {
			return nil, fmt.Errorf("factor attribution failed: %w", err)
		}
	}

	report.Volatility = formulas.AnnualizedVolatility(portfolioReturns)
	report.SharpeRatio = formulas.SharpeRatio(portfolioReturns, 0)
	report.MaxDrawdown = formulas.MaxDrawdownFromReturns(portfolioReturns)
	report.Skewness = formulas.Skewness(portfolioReturns)
	report.ExcessKurtosis = formulas.ExcessKurtosis(portfolioReturns)

	if len(params.Counterparties) > 0 {
		a.assessCredit(ctx, params, report)
	}

	report.Rating = RateRisk(report.Volatility, report.VaR95.VaR, report.MaxDrawdown)

	a.log.Info().
		Str("report_id", report.ID).
		Str("rating", string(report.Rating)).
		Float64("var_95", report.VaR95.VaR).
		Float64("volatility", report.Volatility).
		Msg("Generated risk report")

	return report, nil
}

// assessCredit runs per-counterparty credit assessments concurrently.
// Individual failures are recorded on the report, not fatal.
func (a *Assembler) assessCredit(ctx context.Context, params Params, report *RiskReport) {
	exposure := make(map[string]float64)
	for _, pos := range params.Positions {
		exposure[pos.CounterpartyID] += pos.Exposure()
	}

	var mu sync.Mutex
	report.CreditByParty = make(map[string]*credit.CounterpartyCreditRisk, len(params.Counterparties))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for id, info := range params.Counterparties {
		g.Go(func() error {
			risk, err := a.creditEngine.AssessCreditRisk(id, info, exposure[id], 252)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.CreditAssessErrs = append(report.CreditAssessErrs,
					fmt.Sprintf("%s: %v", id, err))
				return nil
			}
			report.CreditByParty[id] = risk
			return nil
		})
	}
	_ = g.Wait()
}

func (a *Assembler) portfolioReturns(weights map[string]float64, start, end time.Time) ([]float64, error) {
	perAsset := make(map[string][]float64, len(weights))
	for asset := range weights {
		series, err := a.source.GetReturnSeries(asset, start, end)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch returns for %s: %w", asset, err)
		}
		perAsset[asset] = series.Values()
	}
	return a.builder.PortfolioReturns(perAsset, weights)
}

// RateRisk buckets a portfolio into the four-way qualitative rating from
// annualized volatility, 95% VaR and max drawdown. The thresholds are
// joint: a portfolio must clear all three to stay in a bucket.
func RateRisk(volatility, var95, maxDrawdown float64) Rating {
	switch {
	case volatility < 0.15 && var95 < 0.03 && maxDrawdown < 0.10:
		return RatingLow
	case volatility < 0.25 && var95 < 0.05 && maxDrawdown < 0.20:
		return RatingMedium
	case volatility < 0.35 && var95 < 0.08 && maxDrawdown < 0.30:
		return RatingHigh
	default:
		return RatingExtreme
	}
}
