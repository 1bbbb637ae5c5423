// Package portfolio stores the positions and counterparty directory the
// risk service analyzes.
package portfolio

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/riskd/internal/domain"
)

// Repository handles position and counterparty database operations.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a portfolio repository.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "portfolio").Logger(),
	}
}

// Init creates the schema if it does not exist.
func (r *Repository) Init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS positions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		counterparty_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		quantity REAL NOT NULL,
		avg_price REAL NOT NULL,
		weight REAL NOT NULL DEFAULT 0,
		UNIQUE(counterparty_id, symbol)
	);
	CREATE TABLE IF NOT EXISTS counterparties (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		rating TEXT NOT NULL DEFAULT 'NR',
		market_cap REAL NOT NULL DEFAULT 0,
		total_debt REAL NOT NULL DEFAULT 0,
		proxy_symbol TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_positions_counterparty
		ON positions(counterparty_id);`

	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create portfolio schema: %w", err)
	}
	return nil
}

// UpsertPosition inserts or replaces one position.
func (r *Repository) UpsertPosition(counterpartyID, symbol string, quantity, avgPrice, weight float64) error {
	query := `INSERT INTO positions (counterparty_id, symbol, quantity, avg_price, weight)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(counterparty_id, symbol) DO UPDATE SET
			quantity = excluded.quantity,
			avg_price = excluded.avg_price,
			weight = excluded.weight`

	if _, err := r.db.Exec(query, counterpartyID, symbol, quantity, avgPrice, weight); err != nil {
		return fmt.Errorf("failed to upsert position %s/%s: %w", counterpartyID, symbol, err)
	}
	return nil
}

// GetPositions returns all stored positions.
func (r *Repository) GetPositions() ([]domain.Position, error) {
	rows, err := r.db.Query(`SELECT counterparty_id, quantity, avg_price FROM positions ORDER BY counterparty_id, symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var pos domain.Position
		if err := rows.Scan(&pos.CounterpartyID, &pos.Quantity, &pos.AvgPrice); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}

	return positions, nil
}

// GetWeights returns the symbol-keyed portfolio weights. Symbols held
// against multiple counterparties accumulate.
func (r *Repository) GetWeights() (map[string]float64, error) {
	rows, err := r.db.Query(`SELECT symbol, SUM(weight) FROM positions GROUP BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to query weights: %w", err)
	}
	defer rows.Close()

	weights := make(map[string]float64)
	for rows.Next() {
		var symbol string
		var weight float64
		if err := rows.Scan(&symbol, &weight); err != nil {
			return nil, fmt.Errorf("failed to scan weight: %w", err)
		}
		weights[symbol] = weight
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating weights: %w", err)
	}

	return weights, nil
}

// UpsertCounterparty inserts or replaces one directory entry.
func (r *Repository) UpsertCounterparty(info domain.CounterpartyInfo) error {
	query := `INSERT INTO counterparties (id, name, rating, market_cap, total_debt, proxy_symbol)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			rating = excluded.rating,
			market_cap = excluded.market_cap,
			total_debt = excluded.total_debt,
			proxy_symbol = excluded.proxy_symbol`

	if _, err := r.db.Exec(query, info.ID, info.Name, string(info.Rating),
		info.MarketCap, info.TotalDebt, info.ProxySymbol); err != nil {
		return fmt.Errorf("failed to upsert counterparty %s: %w", info.ID, err)
	}
	return nil
}

// GetCounterparties returns the full counterparty directory keyed by ID.
func (r *Repository) GetCounterparties() (map[string]domain.CounterpartyInfo, error) {
	rows, err := r.db.Query(`SELECT id, name, rating, market_cap, total_debt, proxy_symbol FROM counterparties`)
	if err != nil {
		return nil, fmt.Errorf("failed to query counterparties: %w", err)
	}
	defer rows.Close()

	directory := make(map[string]domain.CounterpartyInfo)
	for rows.Next() {
		var info domain.CounterpartyInfo
		var rating string
		if err := rows.Scan(&info.ID, &info.Name, &rating,
			&info.MarketCap, &info.TotalDebt, &info.ProxySymbol); err != nil {
			return nil, fmt.Errorf("failed to scan counterparty: %w", err)
		}
		info.Rating = domain.CreditRating(rating)
		directory[info.ID] = info
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating counterparties: %w", err)
	}

	return directory, nil
}

// GetCounterparty returns one directory entry.
func (r *Repository) GetCounterparty(id string) (domain.CounterpartyInfo, error) {
	var info domain.CounterpartyInfo
	var rating string
	err := r.db.QueryRow(
		`SELECT id, name, rating, market_cap, total_debt, proxy_symbol FROM counterparties WHERE id = ?`,
		id,
	).Scan(&info.ID, &info.Name, &rating, &info.MarketCap, &info.TotalDebt, &info.ProxySymbol)
	if err == sql.ErrNoRows {
		return info, fmt.Errorf("counterparty %s: %w", id, domain.ErrMissingCounterparty)
	}
	if err != nil {
		return info, fmt.Errorf("failed to query counterparty %s: %w", id, err)
	}
	info.Rating = domain.CreditRating(rating)
	return info, nil
}
