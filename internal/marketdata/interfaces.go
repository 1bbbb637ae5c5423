package marketdata

import (
	"time"

	"github.com/aristath/riskd/internal/domain"
)

// Source is the narrow price-history contract the risk engines consume.
// *HistoryDB satisfies it; tests substitute fixed in-memory series.
type Source interface {
	GetReturnSeries(symbol string, start, end time.Time) (domain.ReturnSeries, error)
	AnnualizedVolatility(symbol string, lookbackDays int) (float64, error)
}
