// Package contagion models default contagion between counterparties
// with a Gaussian-copula single-factor approximation and derives
// cascading-default scenarios and a systemic risk index.
package contagion

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/riskd/internal/domain"
	"github.com/aristath/riskd/internal/modules/credit"
	"github.com/aristath/riskd/pkg/formulas"
)

const (
	// defaultCorrelation applies to counterparty pairs absent from the
	// correlation map.
	defaultCorrelation = 0.3

	// cascadeThreshold records a cascading default only when the
	// conditional PD exceeds this multiple of the baseline PD. Fixed in
	// the source model; not derivable from theory.
	cascadeThreshold = 1.5
)

// CascadingDefault is one affected counterparty inside a scenario.
type CascadingDefault struct {
	CounterpartyID string  `json:"counterparty_id"`
	BaselinePD     float64 `json:"baseline_pd"`
	ConditionalPD  float64 `json:"conditional_pd"`
	Correlation    float64 `json:"correlation"`
	ExpectedLoss   float64 `json:"expected_loss"`
}

// Scenario is the contagion fallout from one trigger counterparty's
// default.
type Scenario struct {
	TriggerID   string             `json:"trigger_id"`
	Probability float64            `json:"probability"`
	Cascades    []CascadingDefault `json:"cascades"`
	TotalLoss   float64            `json:"total_loss"`
}

// Analysis is the immutable result of one contagion run.
type Analysis struct {
	Scenarios         []Scenario `json:"scenarios"`
	SystemicRiskIndex float64    `json:"systemic_risk_index"`
	AnalyzedAt        time.Time  `json:"analyzed_at"`
}

// CorrelationMatrix looks up pairwise asset correlations. Keys are
// counterparty ID pairs in either order; absent pairs default to 0.3.
type CorrelationMatrix map[string]map[string]float64

// Lookup returns the correlation between a and b, checking both
// orderings and falling back to the default.
func (m CorrelationMatrix) Lookup(a, b string) float64 {
	if row, ok := m[a]; ok {
		if rho, ok := row[b]; ok {
			return rho
		}
	}
	if row, ok := m[b]; ok {
		if rho, ok := row[a]; ok {
			return rho
		}
	}
	return defaultCorrelation
}

// Engine analyzes contagion across a set of assessed counterparties.
// Stateless, safe for concurrent use.
type Engine struct {
	log zerolog.Logger
}

// New creates a contagion engine.
func New(log zerolog.Logger) *Engine {
	return &Engine{log: log.With().Str("component", "contagion_engine").Logger()}
}

// ConditionalPD is the probability that a counterparty with baseline
// probability pd2 defaults given that a counterparty with probability
// pd1 has defaulted, under the Gaussian copula with correlation rho:
// z1 = Φ⁻¹(pd1), z2 = Φ⁻¹(pd2),
// conditionalZ = (z2 − ρ·z1)/√(1−ρ²), conditionalPD = Φ(conditionalZ).
// The result is clamped to [0, 1].
func ConditionalPD(pd1, pd2, rho float64) float64 {
	if pd1 <= 0 || pd2 <= 0 {
		return 0
	}
	if pd1 >= 1 || pd2 >= 1 {
		return 1
	}

	z1 := formulas.NormalQuantile(pd1)
	z2 := formulas.NormalQuantile(pd2)

	denom := math.Sqrt(1.0 - rho*rho)
	if denom == 0 {
		// Perfect correlation collapses to certain joint default.
		return 1
	}

	conditional := formulas.NormalCDF((z2 - rho*z1) / denom)
	return math.Min(1, math.Max(0, conditional))
}

// AnalyzeContagion builds one scenario per counterparty default trigger.
// A cascade is recorded for each other counterparty whose conditional PD
// exceeds 1.5× its baseline PD; the cascade's expected loss uses the
// conditional PD.
func (e *Engine) AnalyzeContagion(
	creditRisks map[string]*credit.CounterpartyCreditRisk,
	correlations CorrelationMatrix,
) (*Analysis, error) {
	if len(creditRisks) == 0 {
		return nil, fmt.Errorf("contagion analysis: %w", domain.ErrEmptySeries)
	}

	ids := make([]string, 0, len(creditRisks))
	for id := range creditRisks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	analysis := &Analysis{AnalyzedAt: time.Now().UTC()}
	maxLoss := 0.0
	weightedLoss := 0.0

	for _, triggerID := range ids {
		trigger := creditRisks[triggerID]
		if trigger.DefaultProb <= 0 {
			continue
		}

		scenario := Scenario{
			TriggerID:   triggerID,
			Probability: trigger.DefaultProb,
			TotalLoss:   trigger.Exposure * trigger.LGD,
		}

		for _, otherID := range ids {
			if otherID == triggerID {
				continue
			}
			other := creditRisks[otherID]

			rho := correlations.Lookup(triggerID, otherID)
			conditional := ConditionalPD(trigger.DefaultProb, other.DefaultProb, rho)
			if conditional <= cascadeThreshold*other.DefaultProb {
				continue
			}

			loss := other.Exposure * conditional * other.LGD
			scenario.Cascades = append(scenario.Cascades, CascadingDefault{
				CounterpartyID: otherID,
				BaselinePD:     other.DefaultProb,
				ConditionalPD:  conditional,
				Correlation:    rho,
				ExpectedLoss:   loss,
			})
			scenario.TotalLoss += loss
		}

		analysis.Scenarios = append(analysis.Scenarios, scenario)
		weightedLoss += scenario.TotalLoss * scenario.Probability
		if scenario.TotalLoss > maxLoss {
			maxLoss = scenario.TotalLoss
		}
	}

	if maxLoss > 0 {
		analysis.SystemicRiskIndex = weightedLoss / maxLoss
	}

	e.log.Debug().
		Int("scenarios", len(analysis.Scenarios)).
		Float64("systemic_risk_index", analysis.SystemicRiskIndex).
		Msg("Analyzed contagion")

	return analysis, nil
}
