package varengine

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/riskd/internal/domain"
)

// fixedSource serves canned return series, standing in for the
// market-data collaborator.
type fixedSource struct {
	series map[string][]float64
	vols   map[string]float64
}

func (f *fixedSource) GetReturnSeries(symbol string, start, end time.Time) (domain.ReturnSeries, error) {
	series := domain.ReturnSeries{Symbol: symbol}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, r := range f.series[symbol] {
		series.Points = append(series.Points, domain.ReturnPoint{
			Date:   base.AddDate(0, 0, i),
			Return: r,
		})
	}
	return series, nil
}

func (f *fixedSource) AnnualizedVolatility(symbol string, lookbackDays int) (float64, error) {
	return f.vols[symbol], nil
}

func TestParseMethod(t *testing.T) {
	tests := []struct {
		input   string
		want    Method
		wantErr bool
	}{
		{"historical", MethodHistorical, false},
		{"Parametric", MethodParametric, false},
		{"MONTECARLO", MethodMonteCarlo, false},
		{"gaussian", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMethod(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, domain.ErrUnknownMethod)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHistoricalVaRHandComputed(t *testing.T) {
	// Weights {A:0.6, B:0.4} over returns A=[0.01,-0.02,0.03] and
	// B=[0.00,0.01,-0.01] produce portfolio returns [0.006, -0.008,
	// 0.014]. ceil(0.05*3)=1, so VaR is the negated worst return.
	portfolio := []float64{0.006, -0.008, 0.014}

	varValue, err := HistoricalVaR(portfolio, 0.95)
	require.NoError(t, err)
	assert.InDelta(t, 0.008, varValue, 1e-12)
}

func TestHistoricalVaRValidation(t *testing.T) {
	_, err := HistoricalVaR([]float64{0.01}, 1.0)
	require.ErrorIs(t, err, domain.ErrInvalidConfidence)

	_, err = HistoricalVaR([]float64{0.01}, 0.0)
	require.ErrorIs(t, err, domain.ErrInvalidConfidence)

	_, err = HistoricalVaR(nil, 0.95)
	require.ErrorIs(t, err, domain.ErrEmptySeries)
}

func TestHistoricalVaRMonotoneInConfidence(t *testing.T) {
	rets := []float64{-0.05, -0.03, -0.01, 0.0, 0.01, 0.02, 0.03, 0.04, 0.05, 0.06}

	prev := -1.0
	for _, c := range []float64{0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 0.99} {
		v, err := HistoricalVaR(rets, c)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, v, prev, "VaR must be non-decreasing in confidence (c=%v)", c)
		prev = v
	}
}

func TestParametricVaRZeroVariance(t *testing.T) {
	rets := []float64{0.01, 0.01, 0.01, 0.01}

	v, err := ParametricVaR(rets, 0.95)
	require.NoError(t, err)
	assert.Equal(t, -0.01, v)
}

func TestExpectedShortfall(t *testing.T) {
	rets := []float64{-0.05, -0.02, 0.01, 0.03}

	// VaR 0.02: tail is {-0.05, -0.02}
	assert.InDelta(t, -0.035, ExpectedShortfall(rets, 0.02), 1e-12)

	// No observation at or below -0.10
	assert.Zero(t, ExpectedShortfall(rets, 0.10))
}

func TestComponentVaRDegenerateVariance(t *testing.T) {
	flat := []float64{0, 0, 0}
	_, err := ComponentVaR(map[string][]float64{"A": flat}, map[string]float64{"A": 1}, flat, 0.01)
	require.ErrorIs(t, err, domain.ErrDegenerateVariance)
}

func TestDiversificationRatioSingleAsset(t *testing.T) {
	rets := []float64{0.01, -0.02, 0.03, -0.01}

	ratio, err := DiversificationRatio(
		map[string][]float64{"A": rets},
		map[string]float64{"A": 1.0},
		rets,
	)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, ratio, 1e-9)
}

func TestDiversificationRatioMultiAsset(t *testing.T) {
	perAsset := map[string][]float64{
		"A": {0.02, -0.02, 0.02, -0.02},
		"B": {-0.02, 0.02, -0.02, 0.02},
	}
	weights := map[string]float64{"A": 0.5, "B": 0.5}
	portfolio := []float64{0.0, 0.0, 0.0, 0.0}

	// Perfectly offsetting assets have zero portfolio volatility.
	_, err := DiversificationRatio(perAsset, weights, portfolio)
	require.ErrorIs(t, err, domain.ErrDegenerateVariance)

	// Imperfect hedge: ratio must exceed 1.
	perAsset["B"] = []float64{-0.02, 0.02, -0.02, 0.03}
	portfolio = []float64{0.0, 0.0, 0.0, 0.005}
	ratio, err := DiversificationRatio(perAsset, weights, portfolio)
	require.NoError(t, err)
	assert.Greater(t, ratio, 1.0)
}

func TestComputeVaRHistorical(t *testing.T) {
	source := &fixedSource{series: map[string][]float64{
		"A": {0.01, -0.02, 0.03},
		"B": {0.00, 0.01, -0.01},
	}}
	engine := New(source, zerolog.Nop())

	result, err := engine.ComputeVaR(
		map[string]float64{"A": 0.6, "B": 0.4},
		0.95,
		MethodHistorical,
		time.Now().AddDate(0, 0, -3), time.Now(),
		Options{},
	)
	require.NoError(t, err)

	assert.InDelta(t, 0.008, result.VaR, 1e-12)
	assert.InDelta(t, -0.008, result.ExpectedShortfall, 1e-12)
	assert.Len(t, result.ComponentVaR, 2)
	assert.False(t, result.AnalyzedAt.IsZero())
}

func TestComputeVaRInvalidConfidence(t *testing.T) {
	engine := New(&fixedSource{}, zerolog.Nop())

	_, err := engine.ComputeVaR(map[string]float64{"A": 1}, 1.5, MethodHistorical,
		time.Now(), time.Now(), Options{})
	require.ErrorIs(t, err, domain.ErrInvalidConfidence)
}

func TestComponentVaRSumsNearPortfolioVaR(t *testing.T) {
	// Component VaRs weighted by beta are an exact decomposition:
	// sum_i w_i * beta_i = 1 when the portfolio is the weighted sum.
	perAsset := map[string][]float64{
		"A": {0.012, -0.021, 0.033, -0.004, 0.018},
		"B": {0.002, 0.011, -0.013, 0.007, -0.009},
	}
	weights := map[string]float64{"A": 0.6, "B": 0.4}

	portfolio := make([]float64, 5)
	for i := range portfolio {
		portfolio[i] = 0.6*perAsset["A"][i] + 0.4*perAsset["B"][i]
	}

	varValue, err := HistoricalVaR(portfolio, 0.8)
	require.NoError(t, err)

	components, err := ComponentVaR(perAsset, weights, portfolio, varValue)
	require.NoError(t, err)

	sum := 0.0
	for _, c := range components {
		sum += c
	}
	assert.InDelta(t, varValue, sum, 1e-9)
}
