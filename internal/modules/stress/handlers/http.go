// Package handlers exposes the stress test engine over HTTP.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/riskd/internal/modules/portfolio"
	"github.com/aristath/riskd/internal/modules/stress"
)

// Handler provides HTTP handlers for stress testing endpoints.
type Handler struct {
	engine *stress.Engine
	repo   *portfolio.Repository
	log    zerolog.Logger
}

// NewHandler creates a new stress handler.
func NewHandler(engine *stress.Engine, repo *portfolio.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		engine: engine,
		repo:   repo,
		log:    log.With().Str("handler", "stress").Logger(),
	}
}

// RegisterRoutes registers the stress routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/stress", h.handleScenarios)
	r.Post("/stress/exposures", h.handleExposures)
}

type scenariosRequest struct {
	Weights   map[string]float64 `json:"weights"`
	Scenarios []stress.Scenario  `json:"scenarios"`
	Threshold float64            `json:"threshold"`
}

func (h *Handler) handleScenarios(w http.ResponseWriter, r *http.Request) {
	var req scenariosRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	results, err := h.engine.RunScenarios(req.Weights, req.Scenarios, req.Threshold)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"results": results})
}

type exposuresRequest struct {
	Multipliers map[string]float64 `json:"multipliers,omitempty"`
	Severity    stress.Severity    `json:"severity"`
}

func (h *Handler) handleExposures(w http.ResponseWriter, r *http.Request) {
	var req exposuresRequest
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

	result := h.engine.StressExposures(positions, req.Multipliers, req.Severity)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
