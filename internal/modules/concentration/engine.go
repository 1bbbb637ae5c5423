// Package concentration aggregates counterparty exposure and evaluates
// it against configurable concentration limits.
package concentration

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/riskd/internal/domain"
)

// CounterpartyExposure is one counterparty's slice of total exposure.
type CounterpartyExposure struct {
	CounterpartyID string  `json:"counterparty_id"`
	Name           string  `json:"name"`
	Exposure       float64 `json:"exposure"`
	Share          float64 `json:"share"`
}

// Analysis is the immutable result of one concentration run. Exposures
// are sorted by descending share, ties broken by counterparty ID, so
// identical inputs always produce identical output.
type Analysis struct {
	Exposures          []CounterpartyExposure `json:"exposures"`
	TotalExposure      float64                `json:"total_exposure"`
	HHI                float64                `json:"hhi"`
	TopTenShare        float64                `json:"top_ten_share"`
	EffectiveCount     float64                `json:"effective_count"`
	SkippedPositions   int                    `json:"skipped_positions"`
	MissingCounterpart []string               `json:"missing_counterparties,omitempty"`
	AnalyzedAt         time.Time              `json:"analyzed_at"`
}

// Severity tags a limit violation.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Critical escalation multipliers per metric. A violation is Critical
// only once the observed value exceeds the limit by this factor.
const (
	criticalSingleMultiplier = 1.2
	criticalTopTenMultiplier = 1.1
	criticalHHIMultiplier    = 1.15
)

// Violation is one breached concentration limit.
type Violation struct {
	Metric         string   `json:"metric"`
	CounterpartyID string   `json:"counterparty_id,omitempty"`
	Value          float64  `json:"value"`
	Limit          float64  `json:"limit"`
	Severity       Severity `json:"severity"`
}

// Alert is the result of evaluating an analysis against limits.
type Alert struct {
	Violations []Violation `json:"violations"`
	Breached   bool        `json:"breached"`
	CheckedAt  time.Time   `json:"checked_at"`
}

// Engine computes counterparty concentration metrics. Stateless, safe
// for concurrent use.
type Engine struct {
	log zerolog.Logger
}

// New creates a concentration engine.
func New(log zerolog.Logger) *Engine {
	return &Engine{log: log.With().Str("component", "concentration_engine").Logger()}
}

// AnalyzeConcentration aggregates position exposure per counterparty
// and computes shares, HHI, top-10 concentration and the effective
// counterparty count (1/HHI). Positions whose counterparty is absent
// from the directory are skipped and surfaced on the analysis.
func (e *Engine) AnalyzeConcentration(
	positions []domain.Position,
	counterparties map[string]domain.CounterpartyInfo,
) (*Analysis, error) {
	if len(positions) == 0 {
		return nil, fmt.Errorf("concentration analysis: %w", domain.ErrEmptySeries)
	}

	exposure := make(map[string]float64)
	missing := make(map[string]bool)
	skipped := 0
	for _, pos := range positions {
		if _, ok := counterparties[pos.CounterpartyID]; !ok {
			missing[pos.CounterpartyID] = true
			skipped++
			continue
		}
		exposure[pos.CounterpartyID] += pos.Exposure()
	}

	analysis := &Analysis{
		SkippedPositions: skipped,
		AnalyzedAt:       time.Now().UTC(),
	}
	for id := range missing {
		analysis.MissingCounterpart = append(analysis.MissingCounterpart, id)
	}
	sort.Strings(analysis.MissingCounterpart)

	for _, exp := range exposure {
		analysis.TotalExposure += exp
	}

	analysis.Exposures = make([]CounterpartyExposure, 0, len(exposure))
	for id, exp := range exposure {
		share := 0.0
		if analysis.TotalExposure > 0 {
			share = exp / analysis.TotalExposure
		}
		analysis.Exposures = append(analysis.Exposures, CounterpartyExposure{
			CounterpartyID: id,
			Name:           counterparties[id].Name,
			Exposure:       exp,
			Share:          share,
		})
	}

	// Descending share, counterparty ID as the tiebreaker.
	sort.Slice(analysis.Exposures, func(i, j int) bool {
		a, b := analysis.Exposures[i], analysis.Exposures[j]
		if a.Share != b.Share {
			return a.Share > b.Share
		}
		return a.CounterpartyID < b.CounterpartyID
	})

	for i, exp := range analysis.Exposures {
		analysis.HHI += exp.Share * exp.Share
		if i < 10 {
			analysis.TopTenShare += exp.Share
		}
	}
	if analysis.HHI > 0 {
		analysis.EffectiveCount = 1.0 / analysis.HHI
	}

	e.log.Debug().
		Int("counterparties", len(analysis.Exposures)).
		Int("skipped_positions", skipped).
		Float64("hhi", analysis.HHI).
		Msg("Analyzed counterparty concentration")

	return analysis, nil
}

// MonitorLimits evaluates an analysis against concentration limits.
// Breaches escalate from Warning to Critical past the per-metric
// multiplier. The minimum effective count breach is Warning unless the
// count falls below limit/1.15.
func (e *Engine) MonitorLimits(analysis *Analysis, limits domain.ConcentrationLimits) Alert {
	alert := Alert{CheckedAt: time.Now().UTC()}

	for _, exp := range analysis.Exposures {
		if exp.Share > limits.MaxSingleCounterparty {
			severity := SeverityWarning
			if exp.Share > limits.MaxSingleCounterparty*criticalSingleMultiplier {
				severity = SeverityCritical
			}
			alert.Violations = append(alert.Violations, Violation{
				Metric:         "single_counterparty_share",
				CounterpartyID: exp.CounterpartyID,
				Value:          exp.Share,
				Limit:          limits.MaxSingleCounterparty,
				Severity:       severity,
			})
		}
	}

	if analysis.TopTenShare > limits.MaxTop10Concentration {
		severity := SeverityWarning
		if analysis.TopTenShare > limits.MaxTop10Concentration*criticalTopTenMultiplier {
			severity = SeverityCritical
		}
		alert.Violations = append(alert.Violations, Violation{
			Metric:   "top_ten_share",
			Value:    analysis.TopTenShare,
			Limit:    limits.MaxTop10Concentration,
			Severity: severity,
		})
	}

	if analysis.HHI > limits.MaxHHI {
		severity := SeverityWarning
		if analysis.HHI > limits.MaxHHI*criticalHHIMultiplier {
			severity = SeverityCritical
		}
		alert.Violations = append(alert.Violations, Violation{
			Metric:   "hhi",
			Value:    analysis.HHI,
			Limit:    limits.MaxHHI,
			Severity: severity,
		})
	}

	if analysis.EffectiveCount < limits.MinEffectiveCount {
		severity := SeverityWarning
		if analysis.EffectiveCount < limits.MinEffectiveCount/criticalHHIMultiplier {
			severity = SeverityCritical
		}
		alert.Violations = append(alert.Violations, Violation{
			Metric:   "effective_count",
			Value:    analysis.EffectiveCount,
			Limit:    limits.MinEffectiveCount,
			Severity: severity,
		})
	}

	alert.Breached = len(alert.Violations) > 0
	return alert
}
