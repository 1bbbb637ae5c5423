// Package handlers exposes the VaR engine over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/riskd/internal/domain"
	"github.com/aristath/riskd/internal/modules/varengine"
)

// Handler provides HTTP handlers for VaR endpoints.
type Handler struct {
	engine *varengine.Engine
	log    zerolog.Logger
}

// NewHandler creates a new VaR handler.
func NewHandler(engine *varengine.Engine, log zerolog.Logger) *Handler {
	return &Handler{
		engine: engine,
		log:    log.With().Str("handler", "var").Logger(),
	}
}

// RegisterRoutes registers the VaR routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/var", h.handleComputeVaR)
}

type computeVaRRequest struct {
	Weights     map[string]float64 `json:"weights"`
	Confidence  float64            `json:"confidence"`
	Method      string             `json:"method"`
	Start       string             `json:"start"`
	End         string             `json:"end"`
	Simulations int                `json:"simulations,omitempty"`
	Seed        uint64             `json:"seed,omitempty"`
}

func (h *Handler) handleComputeVaR(w http.ResponseWriter, r *http.Request) {
	var req computeVaRRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	method, err := varengine.ParseMethod(req.Method)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	start, end, err := parseWindow(req.Start, req.End)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.engine.ComputeVaR(req.Weights, req.Confidence, method, start, end,
		varengine.Options{Simulations: req.Simulations, Seed: req.Seed})
	if err != nil {
		if isClientError(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error().Err(err).Msg("VaR computation failed")
		http.Error(w, "VaR computation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// parseWindow parses an analysis window from YYYY-MM-DD dates.
func parseWindow(startStr, endStr string) (time.Time, time.Time, error) {
	start, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("invalid start date, want YYYY-MM-DD")
	}
	end, err := time.Parse("2006-01-02", endStr)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("invalid end date, want YYYY-MM-DD")
	}
	return start, end, nil
}

func isClientError(err error) bool {
	return errors.Is(err, domain.ErrInvalidConfidence) ||
		errors.Is(err, domain.ErrUnknownMethod) ||
		errors.Is(err, domain.ErrEmptySeries) ||
		errors.Is(err, domain.ErrDegenerateVariance)
}
