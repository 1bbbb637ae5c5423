// Package handlers exposes concentration analytics over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/riskd/internal/domain"
	"github.com/aristath/riskd/internal/modules/concentration"
	"github.com/aristath/riskd/internal/modules/portfolio"
)

// Handler provides HTTP handlers for concentration endpoints.
type Handler struct {
	engine *concentration.Engine
	repo   *portfolio.Repository
	log    zerolog.Logger
}

// NewHandler creates a new concentration handler.
func NewHandler(engine *concentration.Engine, repo *portfolio.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		engine: engine,
		repo:   repo,
		log:    log.With().Str("handler", "concentration").Logger(),
	}
}

// RegisterRoutes registers the concentration routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/concentration", h.handleAnalyze)
	r.Post("/concentration/limits", h.handleMonitorLimits)
}

func (h *Handler) analyze(w http.ResponseWriter) (*concentration.Analysis, bool) {
	positions, err := h.repo.GetPositions()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load positions")
		http.Error(w, "Failed to load positions", http.StatusInternalServerError)
		return nil, false
	}
	counterparties, err := h.repo.GetCounterparties()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load counterparties")
		http.Error(w, "Failed to load counterparties", http.StatusInternalServerError)
		return nil, false
	}

	analysis, err := h.engine.AnalyzeConcentration(positions, counterparties)
	if err != nil {
		if errors.Is(err, domain.ErrEmptySeries) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return nil, false
		}
		h.log.Error().Err(err).Msg("Concentration analysis failed")
		http.Error(w, "Concentration analysis failed", http.StatusInternalServerError)
		return nil, false
	}
	return analysis, true
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	analysis, ok := h.analyze(w)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(analysis)
}

type monitorLimitsRequest struct {
	Limits *domain.ConcentrationLimits `json:"limits,omitempty"`
}

func (h *Handler) handleMonitorLimits(w http.ResponseWriter, r *http.Request) {
	var req monitorLimitsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	limits := domain.DefaultConcentrationLimits()
	if req.Limits != nil {
		limits = *req.Limits
	}

	analysis, ok := h.analyze(w)
	if !ok {
		return
	}

	alert := h.engine.MonitorLimits(analysis, limits)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"analysis": analysis,
		"alert":    alert,
	})
}
