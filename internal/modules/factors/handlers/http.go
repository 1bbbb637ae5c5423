// Package handlers exposes factor attribution over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/riskd/internal/domain"
	"github.com/aristath/riskd/internal/modules/factors"
)

// Handler provides HTTP handlers for factor attribution.
type Handler struct {
	engine *factors.Engine
	log    zerolog.Logger
}

// NewHandler creates a new factor attribution handler.
func NewHandler(engine *factors.Engine, log zerolog.Logger) *Handler {
	return &Handler{
		engine: engine,
		log:    log.With().Str("handler", "factors").Logger(),
	}
}

// RegisterRoutes registers the factor routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/factors", h.handleAttribute)
}

type attributeRequest struct {
	Weights map[string]float64 `json:"weights"`
	Factors []string           `json:"factors"`
	Start   string             `json:"start"`
	End     string             `json:"end"`
	Seed    uint64             `json:"seed,omitempty"`
}

func (h *Handler) handleAttribute(w http.ResponseWriter, r *http.Request) {
	var req attributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	start, err := time.Parse("2006-01-02", req.Start)
	if err != nil {
		http.Error(w, "invalid start date, want YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	end, err := time.Parse("2006-01-02", req.End)
	if err != nil {
		http.Error(w, "invalid end date, want YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	attribution, err := h.engine.AttributeFactors(req.Weights, req.Factors, start, end, req.Seed)
	if err != nil {
		if errors.Is(err, domain.ErrEmptySeries) || errors.Is(err, domain.ErrDegenerateVariance) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error().Err(err).Msg("Factor attribution failed")
		http.Error(w, "Factor attribution failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(attribution)
}
