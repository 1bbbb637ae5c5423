// Package handlers exposes contagion analysis over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/riskd/internal/domain"
	"github.com/aristath/riskd/internal/modules/contagion"
	"github.com/aristath/riskd/internal/modules/credit"
	"github.com/aristath/riskd/internal/modules/portfolio"
)

// Handler provides HTTP handlers for contagion endpoints.
type Handler struct {
	engine       *contagion.Engine
	creditEngine *credit.Engine
	repo         *portfolio.Repository
	log          zerolog.Logger
}

// NewHandler creates a new contagion handler.
func NewHandler(
	engine *contagion.Engine,
	creditEngine *credit.Engine,
	repo *portfolio.Repository,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		engine:       engine,
		creditEngine: creditEngine,
		repo:         repo,
		log:          log.With().Str("handler", "contagion").Logger(),
	}
}

// RegisterRoutes registers the contagion routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/contagion", h.handleAnalyze)
}

type analyzeRequest struct {
	Correlations contagion.CorrelationMatrix `json:"correlations,omitempty"`
	LookbackDays int                         `json:"lookback_days,omitempty"`
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	positions, err := h.repo.GetPositions()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load positions")
		http.Error(w, "Failed to load positions", http.StatusInternalServerError)
		return
	}
	counterparties, err := h.repo.GetCounterparties()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load counterparties")
		http.Error(w, "Failed to load counterparties", http.StatusInternalServerError)
		return
	}

	exposure := make(map[string]float64)
	for _, pos := range positions {
		exposure[pos.CounterpartyID] += pos.Exposure()
	}

	risks := make(map[string]*credit.CounterpartyCreditRisk, len(counterparties))
	for id, info := range counterparties {
		risk, err := h.creditEngine.AssessCreditRisk(id, info, exposure[id], req.LookbackDays)
		if err != nil {
			h.log.Warn().Err(err).Str("counterparty", id).Msg("Skipping counterparty in contagion analysis")
			continue
		}
		risks[id] = risk
	}

	analysis, err := h.engine.AnalyzeContagion(risks, req.Correlations)
	if err != nil {
		if errors.Is(err, domain.ErrEmptySeries) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error().Err(err).Msg("Contagion analysis failed")
		http.Error(w, "Contagion analysis failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(analysis)
}
