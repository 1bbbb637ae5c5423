// Package marketdata provides access to historical price data. It is the
// only component that touches price storage; the risk engines consume it
// through the narrow Source interface and never perform I/O themselves.
package marketdata

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/riskd/internal/domain"
	"github.com/aristath/riskd/pkg/formulas"
)

const schema = `
CREATE TABLE IF NOT EXISTS daily_prices (
	symbol TEXT NOT NULL,
	date   INTEGER NOT NULL,
	close  REAL NOT NULL,
	PRIMARY KEY (symbol, date)
);
CREATE INDEX IF NOT EXISTS idx_daily_prices_symbol_date
	ON daily_prices (symbol, date);
`

// DailyPrice represents a daily closing price point
type DailyPrice struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// HistoryDB provides access to historical price data
type HistoryDB struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewHistoryDB creates a new history database accessor
func NewHistoryDB(db *sql.DB, log zerolog.Logger) *HistoryDB {
	return &HistoryDB{
		db:  db,
		log: log.With().Str("component", "history_db").Logger(),
	}
}

// Init creates the price table if it does not exist.
func (h *HistoryDB) Init() error {
	if _, err := h.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return nil
}

// UpsertDailyPrices stores a batch of daily prices for a symbol.
func (h *HistoryDB) UpsertDailyPrices(symbol string, prices []DailyPrice) error {
	tx, err := h.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT INTO daily_prices (symbol, date, close)
		VALUES (?, ?, ?)
		ON CONFLICT (symbol, date) DO UPDATE SET close = excluded.close
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range prices {
		if _, err := stmt.Exec(symbol, p.Date.Unix(), p.Close); err != nil {
			return fmt.Errorf("failed to upsert price for %s: %w", symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit prices for %s: %w", symbol, err)
	}

	h.log.Debug().
		Str("symbol", symbol).
		Int("count", len(prices)).
		Msg("Stored daily prices")

	return nil
}

// GetDailyPrices fetches up to limit most recent daily prices for a
// symbol, returned in ascending date order. limit <= 0 means no limit.
func (h *HistoryDB) GetDailyPrices(symbol string, limit int) ([]DailyPrice, error) {
	query := `
		SELECT date, close FROM (
			SELECT date, close
			FROM daily_prices
			WHERE symbol = ?
			ORDER BY date DESC
			LIMIT ?
		)
		ORDER BY date ASC
	`
	if limit <= 0 {
		limit = -1 // SQLite: negative LIMIT means unlimited
	}

	rows, err := h.db.Query(query, symbol, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily prices: %w", err)
	}
	defer rows.Close()

	return scanPrices(rows)
}

// GetPriceRange fetches daily prices for a symbol within [start, end],
// ascending by date.
func (h *HistoryDB) GetPriceRange(symbol string, start, end time.Time) ([]DailyPrice, error) {
	query := `
		SELECT date, close
		FROM daily_prices
		WHERE symbol = ? AND date >= ? AND date <= ?
		ORDER BY date ASC
	`

	rows, err := h.db.Query(query, symbol, start.Unix(), end.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query price range: %w", err)
	}
	defer rows.Close()

	return scanPrices(rows)
}

// GetReturnSeries builds the simple-return series for a symbol over
// [start, end]. Intervals with a zero base price are skipped, so the
// series may be shorter than prices-1. Timestamps are strictly
// increasing.
func (h *HistoryDB) GetReturnSeries(symbol string, start, end time.Time) (domain.ReturnSeries, error) {
	prices, err := h.GetPriceRange(symbol, start, end)
	if err != nil {
		return domain.ReturnSeries{}, err
	}

	series := domain.ReturnSeries{Symbol: symbol}
	for i := 1; i < len(prices); i++ {
		if prices[i-1].Close == 0 {
			continue
		}
		series.Points = append(series.Points, domain.ReturnPoint{
			Date:   prices[i].Date,
			Return: (prices[i].Close - prices[i-1].Close) / prices[i-1].Close,
		})
	}

	return series, nil
}

// AnnualizedVolatility estimates the annualized return volatility of a
// symbol from its most recent lookbackDays closing prices. Returns 0 when
// fewer than two prices exist.
func (h *HistoryDB) AnnualizedVolatility(symbol string, lookbackDays int) (float64, error) {
	prices, err := h.GetDailyPrices(symbol, lookbackDays)
	if err != nil {
		return 0, err
	}
	if len(prices) < 2 {
		return 0, nil
	}

	closes := make([]float64, len(prices))
	for i, p := range prices {
		closes[i] = p.Close
	}

	return formulas.AnnualizedVolatility(formulas.CalculateReturns(closes)), nil
}

func scanPrices(rows *sql.Rows) ([]DailyPrice, error) {
	var prices []DailyPrice
	for rows.Next() {
		var p DailyPrice
		var dateUnix int64

		if err := rows.Scan(&dateUnix, &p.Close); err != nil {
			return nil, fmt.Errorf("failed to scan daily price: %w", err)
		}
		p.Date = time.Unix(dateUnix, 0).UTC()

		prices = append(prices, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily prices: %w", err)
	}

	return prices, nil
}
