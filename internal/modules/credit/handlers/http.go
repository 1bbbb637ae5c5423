// Package handlers exposes credit risk assessment over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/riskd/internal/domain"
	"github.com/aristath/riskd/internal/modules/credit"
	"github.com/aristath/riskd/internal/modules/portfolio"
)

// Handler provides HTTP handlers for credit risk endpoints.
type Handler struct {
	engine *credit.Engine
	repo   *portfolio.Repository
	log    zerolog.Logger
}

// NewHandler creates a new credit handler.
func NewHandler(engine *credit.Engine, repo *portfolio.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		engine: engine,
		repo:   repo,
		log:    log.With().Str("handler", "credit").Logger(),
	}
}

// RegisterRoutes registers the credit routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/credit", h.handleAssess)
}

type assessRequest struct {
	CounterpartyID string `json:"counterparty_id"`
	LookbackDays   int    `json:"lookback_days,omitempty"`
}

func (h *Handler) handleAssess(w http.ResponseWriter, r *http.Request) {
	var req assessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	info, err := h.repo.GetCounterparty(req.CounterpartyID)
	if err != nil {
		if errors.Is(err, domain.ErrMissingCounterparty) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Msg("Failed to load counterparty")
		http.Error(w, "Failed to load counterparty", http.StatusInternalServerError)
		return
	}

	positions, err := h.repo.GetPositions()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load positions")
		http.Error(w, "Failed to load positions", http.StatusInternalServerError)
		return
	}

	exposure := 0.0
	for _, pos := range positions {
		if pos.CounterpartyID == req.CounterpartyID {
			exposure += pos.Exposure()
		}
	}

	risk, err := h.engine.AssessCreditRisk(req.CounterpartyID, info, exposure, req.LookbackDays)
	if err != nil {
		if errors.Is(err, domain.ErrMissingCounterparty) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error().Err(err).Msg("Credit assessment failed")
		http.Error(w, "Credit assessment failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(risk)
}
