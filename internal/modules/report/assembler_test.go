package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/riskd/internal/domain"
	"github.com/aristath/riskd/internal/modules/credit"
	"github.com/aristath/riskd/internal/modules/factors"
	"github.com/aristath/riskd/internal/modules/stress"
	"github.com/aristath/riskd/internal/modules/varengine"
)

type fixedSource struct {
	series map[string][]float64
}

func (f *fixedSource) GetReturnSeries(symbol string, start, end time.Time) (domain.ReturnSeries, error) {
	values, ok := f.series[symbol]
	if !ok {
		return domain.ReturnSeries{}, errors.New("no data for " + symbol)
	}
	series := domain.ReturnSeries{Symbol: symbol}
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, v := range values {
		series.Points = append(series.Points, domain.ReturnPoint{
			Date:   base.AddDate(0, 0, i),
			Return: v,
		})
	}
	return series, nil
}

func (f *fixedSource) AnnualizedVolatility(symbol string, lookbackDays int) (float64, error) {
	return 0, errors.New("not used")
}

func newTestAssembler(source *fixedSource) *Assembler {
	log := zerolog.Nop()
	return NewAssembler(
		source,
		varengine.New(source, log),
		stress.New(log),
		factors.New(source, log),
		credit.New(source, log),
		log,
	)
}

func TestGenerateReport(t *testing.T) {
	source := &fixedSource{series: map[string][]float64{
		"A": {0.01, -0.02, 0.03},
		"B": {0.00, 0.01, -0.01},
	}}
	assembler := newTestAssembler(source)

	params := Params{
		Weights: map[string]float64{"A": 0.6, "B": 0.4},
		Scenarios: []stress.Scenario{
			{Name: "crash", Shocks: map[string]float64{"A": -0.30, "B": -0.10}},
		},
		StressLossCap: 0.10,
		Factors:       []string{"market", "rates"},
		Counterparties: map[string]domain.CounterpartyInfo{
			"CP1": {ID: "CP1", Name: "Acme Capital", Rating: domain.RatingAAA},
		},
		Positions: []domain.Position{
			{CounterpartyID: "CP1", Quantity: 100, AvgPrice: 10},
		},
		Start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 1, 4, 0, 0, 0, 0, time.UTC),
		Seed:  7,
	}

	report, err := assembler.GenerateReport(context.Background(), params)
	require.NoError(t, err)

	assert.NotEmpty(t, report.ID)
	assert.False(t, report.GeneratedAt.IsZero())

	// Portfolio returns are [0.006, -0.008, 0.014]; the 95% historical
	// VaR picks the worst observation.
	require.NotNil(t, report.VaR95)
	assert.InDelta(t, 0.008, report.VaR95.VaR, 1e-12)
	require.NotNil(t, report.VaR99)
	assert.InDelta(t, 0.008, report.VaR99.VaR, 1e-12)

	require.Len(t, report.StressResults, 1)
	assert.InDelta(t, 0.22, report.StressResults[0].Loss, 1e-12)
	assert.True(t, report.StressResults[0].Breached)

	require.NotNil(t, report.Factors)
	assert.Len(t, report.Factors.Factors, 2)

	require.Contains(t, report.CreditByParty, "CP1")
	assert.Equal(t, 0.30, report.CreditByParty["CP1"].LGD)
	assert.InDelta(t, 1000.0, report.CreditByParty["CP1"].Exposure, 1e-9)
	assert.Empty(t, report.CreditAssessErrs)

	// Annualized vol 0.1768, VaR 0.008, MDD 0.008 puts this in Medium.
	assert.Equal(t, RatingMedium, report.Rating)
}

func TestGenerateReportNoWeights(t *testing.T) {
	assembler := newTestAssembler(&fixedSource{})
	_, err := assembler.GenerateReport(context.Background(), Params{})
	require.ErrorIs(t, err, domain.ErrEmptySeries)
}

func TestRateRisk(t *testing.T) {
	tests := []struct {
		name                 string
		vol, var95, drawdown float64
		want                 Rating
	}{
		{"calm", 0.10, 0.02, 0.05, RatingLow},
		{"vol pushes to medium", 0.16, 0.02, 0.05, RatingMedium},
		{"var pushes to medium", 0.10, 0.04, 0.05, RatingMedium},
		{"drawdown pushes to medium", 0.10, 0.02, 0.15, RatingMedium},
		{"high", 0.30, 0.07, 0.25, RatingHigh},
		{"extreme vol", 0.40, 0.02, 0.05, RatingExtreme},
		{"extreme drawdown", 0.10, 0.02, 0.50, RatingExtreme},
		{"boundaries are exclusive", 0.15, 0.03, 0.10, RatingMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RateRisk(tt.vol, tt.var95, tt.drawdown))
		})
	}
}
