// Package domain holds the shared value objects of the risk engine.
// Everything here is plain data: engines create outputs once per call and
// never mutate them afterwards.
package domain

import "time"

// Position is a single counterparty-facing position.
type Position struct {
	CounterpartyID string  `json:"counterparty_id"`
	Quantity       float64 `json:"quantity"`
	AvgPrice       float64 `json:"avg_price"`
}

// Exposure returns the position's monetary exposure.
func (p Position) Exposure() float64 {
	return p.Quantity * p.AvgPrice
}

// CreditRating is a coarse agency-style rating bucket.
type CreditRating string

const (
	RatingAAA     CreditRating = "AAA"
	RatingAA      CreditRating = "AA"
	RatingA       CreditRating = "A"
	RatingBBB     CreditRating = "BBB"
	RatingBB      CreditRating = "BB"
	RatingB       CreditRating = "B"
	RatingCCC     CreditRating = "CCC"
	RatingUnrated CreditRating = "NR"
)

// lgdByRating maps a credit rating to loss-given-default. Unknown or
// unrated counterparties fall back to 0.60.
var lgdByRating = map[CreditRating]float64{
	RatingAAA: 0.30,
	RatingAA:  0.35,
	RatingA:   0.40,
	RatingBBB: 0.50,
	RatingBB:  0.60,
	RatingB:   0.75,
	RatingCCC: 0.90,
}

// defaultLGD applies to unrated or unknown ratings.
const defaultLGD = 0.60

// LGD returns the loss-given-default fraction for the rating.
func (r CreditRating) LGD() float64 {
	if lgd, ok := lgdByRating[r]; ok {
		return lgd
	}
	return defaultLGD
}

// RecoveryRate is the complement of LGD. It is always derived, never
// stored alongside it.
func (r CreditRating) RecoveryRate() float64 {
	return 1.0 - r.LGD()
}

// CounterpartyInfo describes a counterparty in the directory.
// MarketCap, TotalDebt and ProxySymbol are optional; zero values mean
// "absent" and trigger the engine's documented fallbacks.
type CounterpartyInfo struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Rating      CreditRating `json:"rating"`
	MarketCap   float64      `json:"market_cap,omitempty"`
	TotalDebt   float64      `json:"total_debt,omitempty"`
	ProxySymbol string       `json:"proxy_symbol,omitempty"`
}

// ConcentrationLimits configures the concentration monitor thresholds.
type ConcentrationLimits struct {
	MaxSingleCounterparty float64 `json:"max_single_counterparty"`
	MaxTop10Concentration float64 `json:"max_top10_concentration"`
	MaxHHI                float64 `json:"max_hhi"`
	MinEffectiveCount     float64 `json:"min_effective_count"`
}

// DefaultConcentrationLimits returns the standard limit set. Callers can
// override any threshold per call.
func DefaultConcentrationLimits() ConcentrationLimits {
	return ConcentrationLimits{
		MaxSingleCounterparty: 0.10,
		MaxTop10Concentration: 0.50,
		MaxHHI:                0.15,
		MinEffectiveCount:     5.0,
	}
}

// ReturnPoint is one (timestamp, return) observation of a ReturnSeries.
type ReturnPoint struct {
	Date   time.Time `json:"date"`
	Return float64   `json:"return"`
}

// ReturnSeries is an ordered return history for one asset. Timestamps are
// strictly increasing; alignment across assets is the caller's
// responsibility.
type ReturnSeries struct {
	Symbol string        `json:"symbol"`
	Points []ReturnPoint `json:"points"`
}

// Values returns the raw return values in order.
func (s ReturnSeries) Values() []float64 {
	values := make([]float64, len(s.Points))
	for i, p := range s.Points {
		values[i] = p.Return
	}
	return values
}
