// Package returns converts price histories into return series and
// aggregates per-asset returns into portfolio-level returns.
package returns

import (
	"fmt"

	"github.com/aristath/riskd/internal/domain"
	"github.com/aristath/riskd/pkg/formulas"
)

// Builder constructs return series. It is stateless; all methods operate
// only on their inputs.
type Builder struct{}

// NewBuilder creates a new return series builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// FromPrices converts an ordered price sequence into simple returns.
// Intervals with a zero base price are skipped (left at 0).
func (b *Builder) FromPrices(prices []float64) []float64 {
	return formulas.CalculateReturns(prices)
}

// LogFromPrices converts an ordered price sequence into log returns.
func (b *Builder) LogFromPrices(prices []float64) []float64 {
	return formulas.CalculateLogReturns(prices)
}

// PortfolioReturns combines aligned per-asset return series into a single
// weighted portfolio return series. All provided series must have equal
// length; assets present in weights but absent from the series map
// contribute nothing. Returns ErrEmptySeries when no weighted asset has
// any returns.
func (b *Builder) PortfolioReturns(perAsset map[string][]float64, weights map[string]float64) ([]float64, error) {
	length := -1
	for asset, series := range perAsset {
		if _, ok := weights[asset]; !ok {
			continue
		}
		if length == -1 {
			length = len(series)
		}
		if len(series) != length {
			return nil, fmt.Errorf("misaligned return series for %s: got %d observations, want %d",
				asset, len(series), length)
		}
	}

	if length <= 0 {
		return nil, fmt.Errorf("building portfolio returns: %w", domain.ErrEmptySeries)
	}

	portfolio := make([]float64, length)
	for asset, weight := range weights {
		series, ok := perAsset[asset]
		if !ok {
			continue
		}
		for i, r := range series {
			portfolio[i] += weight * r
		}
	}

	return portfolio, nil
}
