package contagion

import (
	"math"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/riskd/internal/modules/credit"
	"github.com/aristath/riskd/pkg/formulas"
)

func TestConditionalPDReferenceValue(t *testing.T) {
	// PD1=0.02, PD2=0.01, rho=0.3. Reference computed with the exact
	// normal CDF (erfc); the rational approximation must agree to 1e-6.
	z1 := formulas.NormalQuantile(0.02)
	z2 := formulas.NormalQuantile(0.01)
	conditionalZ := (z2 - 0.3*z1) / math.Sqrt(1-0.3*0.3)
	reference := 0.5 * math.Erfc(-conditionalZ/math.Sqrt2)

	got := ConditionalPD(0.02, 0.01, 0.3)
	assert.InDelta(t, reference, got, 1e-6)
	assert.InDelta(t, 0.03650, got, 2e-4)
}

func TestConditionalPDEdges(t *testing.T) {
	assert.Equal(t, 0.0, ConditionalPD(0, 0.01, 0.3))
	assert.Equal(t, 0.0, ConditionalPD(0.02, 0, 0.3))
	assert.Equal(t, 1.0, ConditionalPD(1, 0.01, 0.3))
	assert.Equal(t, 1.0, ConditionalPD(0.02, 1, 0.3))
	assert.Equal(t, 1.0, ConditionalPD(0.02, 0.01, 1.0))

	// Zero correlation leaves the baseline PD unchanged.
	assert.InDelta(t, 0.01, ConditionalPD(0.02, 0.01, 0), 1e-7)
}

func TestCorrelationMatrixLookup(t *testing.T) {
	m := CorrelationMatrix{
		"CP1": {"CP2": 0.5},
	}

	assert.Equal(t, 0.5, m.Lookup("CP1", "CP2"))
	assert.Equal(t, 0.5, m.Lookup("CP2", "CP1"), "lookup must be symmetric")
	assert.Equal(t, 0.3, m.Lookup("CP1", "CP9"), "absent pairs default to 0.3")
	assert.Equal(t, 0.3, CorrelationMatrix(nil).Lookup("A", "B"))
}

func TestAnalyzeContagion(t *testing.T) {
	engine := New(zerolog.Nop())

	risks := map[string]*credit.CounterpartyCreditRisk{
		"CP1": {CounterpartyID: "CP1", Exposure: 1000, DefaultProb: 0.05, LGD: 0.4},
		"CP2": {CounterpartyID: "CP2", Exposure: 500, DefaultProb: 0.01, LGD: 0.6},
	}
	correlations := CorrelationMatrix{"CP1": {"CP2": 0.8}}

	analysis, err := engine.AnalyzeContagion(risks, correlations)
	require.NoError(t, err)
	require.Len(t, analysis.Scenarios, 2)

	// Scenarios come out in sorted trigger order.
	cp1 := analysis.Scenarios[0]
	assert.Equal(t, "CP1", cp1.TriggerID)
	assert.Equal(t, 0.05, cp1.Probability)

	// High correlation lifts CP2's conditional PD well past the 1.5x
	// cascade threshold.
	require.Len(t, cp1.Cascades, 1)
	cascade := cp1.Cascades[0]
	assert.Equal(t, "CP2", cascade.CounterpartyID)
	assert.Greater(t, cascade.ConditionalPD, 1.5*0.01)
	assert.InDelta(t, 1000*0.4+500*cascade.ConditionalPD*0.6, cp1.TotalLoss, 1e-9)

	assert.Greater(t, analysis.SystemicRiskIndex, 0.0)
	assert.LessOrEqual(t, analysis.SystemicRiskIndex, 1.0)
}

func TestAnalyzeContagionNoCascadeWhenIndependent(t *testing.T) {
	engine := New(zerolog.Nop())

	risks := map[string]*credit.CounterpartyCreditRisk{
		"CP1": {CounterpartyID: "CP1", Exposure: 1000, DefaultProb: 0.05, LGD: 0.4},
		"CP2": {CounterpartyID: "CP2", Exposure: 500, DefaultProb: 0.01, LGD: 0.6},
	}
	// Explicit zero correlation: conditional PD equals baseline, below
	// the cascade threshold.
	correlations := CorrelationMatrix{"CP1": {"CP2": 0}, "CP2": {"CP1": 0}}

	analysis, err := engine.AnalyzeContagion(risks, correlations)
	require.NoError(t, err)
	for _, scenario := range analysis.Scenarios {
		assert.Empty(t, scenario.Cascades)
	}
}

func TestAnalyzeContagionEmpty(t *testing.T) {
	engine := New(zerolog.Nop())
	_, err := engine.AnalyzeContagion(nil, nil)
	require.Error(t, err)
}

func TestSystemicRiskIndexZeroWithoutScenarios(t *testing.T) {
	engine := New(zerolog.Nop())

	risks := map[string]*credit.CounterpartyCreditRisk{
		"CP1": {CounterpartyID: "CP1", Exposure: 1000, DefaultProb: 0, LGD: 0.4},
	}

	analysis, err := engine.AnalyzeContagion(risks, nil)
	require.NoError(t, err)
	assert.Empty(t, analysis.Scenarios)
	assert.Zero(t, analysis.SystemicRiskIndex)
}
