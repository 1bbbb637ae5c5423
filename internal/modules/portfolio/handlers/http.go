// Package handlers exposes the portfolio store over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/riskd/internal/domain"
	"github.com/aristath/riskd/internal/modules/portfolio"
)

// Handler provides HTTP handlers for positions and counterparties.
type Handler struct {
	repo *portfolio.Repository
	log  zerolog.Logger
}

// NewHandler creates a new portfolio handler.
func NewHandler(repo *portfolio.Repository, log zerolog.Logger) *Handler {
	return &Handler{
		repo: repo,
		log:  log.With().Str("handler", "portfolio").Logger(),
	}
}

// RegisterRoutes registers the portfolio routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/positions", h.handleGetPositions)
	r.Put("/positions", h.handlePutPosition)
	r.Get("/counterparties", h.handleGetCounterparties)
	r.Get("/counterparties/{counterpartyID}", h.handleGetCounterparty)
	r.Put("/counterparties", h.handlePutCounterparty)
}

func (h *Handler) handleGetPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.repo.GetPositions()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load positions")
		http.Error(w, "Failed to load positions", http.StatusInternalServerError)
		return
	}

	weights, err := h.repo.GetWeights()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load weights")
		http.Error(w, "Failed to load weights", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"positions": positions,
		"weights":   weights,
	})
}

type putPositionRequest struct {
	CounterpartyID string  `json:"counterparty_id"`
	Symbol         string  `json:"symbol"`
	Quantity       float64 `json:"quantity"`
	AvgPrice       float64 `json:"avg_price"`
	Weight         float64 `json:"weight"`
}

func (h *Handler) handlePutPosition(w http.ResponseWriter, r *http.Request) {
	var req putPositionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.CounterpartyID == "" || req.Symbol == "" {
		http.Error(w, "counterparty_id and symbol are required", http.StatusBadRequest)
		return
	}

	if err := h.repo.UpsertPosition(req.CounterpartyID, req.Symbol, req.Quantity, req.AvgPrice, req.Weight); err != nil {
		h.log.Error().Err(err).Msg("Failed to store position")
		http.Error(w, "Failed to store position", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetCounterparties(w http.ResponseWriter, r *http.Request) {
	directory, err := h.repo.GetCounterparties()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load counterparties")
		http.Error(w, "Failed to load counterparties", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(directory)
}

func (h *Handler) handleGetCounterparty(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "counterpartyID")

	info, err := h.repo.GetCounterparty(id)
	if err != nil {
		if errors.Is(err, domain.ErrMissingCounterparty) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Msg("Failed to load counterparty")
		http.Error(w, "Failed to load counterparty", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(info)
}

func (h *Handler) handlePutCounterparty(w http.ResponseWriter, r *http.Request) {
	var info domain.CounterpartyInfo
	if err := json.NewDecoder(r.Body).Decode(&info); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if info.ID == "" {
		http.Error(w, "id is required", http.StatusBadRequest)
		return
	}

	if err := h.repo.UpsertCounterparty(info); err != nil {
		h.log.Error().Err(err).Msg("Failed to store counterparty")
		http.Error(w, "Failed to store counterparty", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
