// Package stress applies deterministic shock scenarios to portfolio
// weights and counterparty exposures.
package stress

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/riskd/internal/domain"
)

// Severity classifies a counterparty stress scenario.
type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
	SeverityExtreme  Severity = "extreme"
)

// lossRateBySeverity is the flat exposure loss rate applied per severity.
// Unknown severities fall back to 10%.
var lossRateBySeverity = map[Severity]float64{
	SeverityMild:     0.05,
	SeverityModerate: 0.15,
	SeveritySevere:   0.30,
	SeverityExtreme:  0.50,
}

const defaultLossRate = 0.10

// LossRate returns the flat loss rate for the severity.
func (s Severity) LossRate() float64 {
	if rate, ok := lossRateBySeverity[s]; ok {
		return rate
	}
	return defaultLossRate
}

// Scenario is a named shock vector: per-asset shock returns. Assets
// absent from the map are shocked by 0.
type Scenario struct {
	Name   string             `json:"name"`
	Shocks map[string]float64 `json:"shocks"`
}

// Result is the outcome of one portfolio stress scenario.
type Result struct {
	Scenario       string    `json:"scenario"`
	StressedReturn float64   `json:"stressed_return"`
	Loss           float64   `json:"loss"`
	Breached       bool      `json:"breached"`
	Threshold      float64   `json:"threshold"`
	AnalyzedAt     time.Time `json:"analyzed_at"`
}

// ExposureResult is the outcome of a counterparty exposure stress run.
type ExposureResult struct {
	Severity         Severity           `json:"severity"`
	TotalLoss        float64            `json:"total_loss"`
	MaxLoss          float64            `json:"max_loss"`
	MaxLossParty     string             `json:"max_loss_counterparty"`
	LossDistribution map[string]float64 `json:"loss_distribution"`
	AnalyzedAt       time.Time          `json:"analyzed_at"`
}

// Engine runs stress scenarios. It is stateless and safe for concurrent
// use.
type Engine struct {
	log zerolog.Logger
}

// New creates a stress test engine.
func New(log zerolog.Logger) *Engine {
	return &Engine{log: log.With().Str("component", "stress_engine").Logger()}
}

// RunScenarios applies each shock scenario to the portfolio weights. The
// stressed return is the weight-weighted sum of shocks; its negation is
// the loss, flagged when it exceeds the threshold.
func (e *Engine) RunScenarios(
	weights map[string]float64,
	scenarios []Scenario,
	threshold float64,
) ([]Result, error) {
	if len(scenarios) == 0 {
		return nil, fmt.Errorf("no stress scenarios provided")
	}

	now := time.Now().UTC()
	results := make([]Result, 0, len(scenarios))
	for _, scenario := range scenarios {
		stressed := 0.0
		for asset, weight := range weights {
			stressed += weight * scenario.Shocks[asset] // missing assets shock 0
		}

		loss := -stressed
		results = append(results, Result{
			Scenario:       scenario.Name,
			StressedReturn: stressed,
			Loss:           loss,
			Breached:       loss > threshold,
			Threshold:      threshold,
			AnalyzedAt:     now,
		})
	}

	e.log.Debug().
		Int("scenarios", len(results)).
		Float64("threshold", threshold).
		Msg("Ran portfolio stress scenarios")

	return results, nil
}

// StressExposures scales each counterparty's exposure by its multiplier
// (default 1.0 when absent) and applies the severity's flat loss rate.
func (e *Engine) StressExposures(
	positions []domain.Position,
	multipliers map[string]float64,
	severity Severity,
) ExposureResult {
	lossRate := severity.LossRate()

	exposure := make(map[string]float64)
	for _, pos := range positions {
		exposure[pos.CounterpartyID] += pos.Exposure()
	}

	result := ExposureResult{
		Severity:         severity,
		LossDistribution: make(map[string]float64, len(exposure)),
		AnalyzedAt:       time.Now().UTC(),
	}

	// Iterate in sorted order so MaxLossParty ties resolve
	// deterministically.
	ids := make([]string, 0, len(exposure))
	for id := range exposure {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		multiplier := 1.0
		if m, ok := multipliers[id]; ok {
			multiplier = m
		}

		loss := exposure[id] * multiplier * lossRate
		result.LossDistribution[id] = loss
		result.TotalLoss += loss
		if loss > result.MaxLoss {
			result.MaxLoss = loss
			result.MaxLossParty = id
		}
	}

	return result
}
