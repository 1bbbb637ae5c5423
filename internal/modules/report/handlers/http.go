// Package handlers exposes report generation and snapshots over HTTP.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/riskd/internal/domain"
	"github.com/aristath/riskd/internal/modules/portfolio"
	"github.com/aristath/riskd/internal/modules/report"
	"github.com/aristath/riskd/internal/modules/stress"
)

// Handler provides HTTP handlers for risk reports.
type Handler struct {
	assembler *report.Assembler
	store     *report.SnapshotStore
	repo      *portfolio.Repository
	log       zerolog.Logger
}

// NewHandler creates a new report handler.
func NewHandler(
	assembler *report.Assembler,
	store *report.SnapshotStore,
	repo *portfolio.Repository,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		assembler: assembler,
		store:     store,
		repo:      repo,
		log:       log.With().Str("handler", "report").Logger(),
	}
}

// RegisterRoutes registers report generation under the risk API.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/report", h.handleGenerate)
}

// RegisterSnapshotRoutes registers the stored snapshot endpoints.
func (h *Handler) RegisterSnapshotRoutes(r chi.Router) {
	r.Get("/latest", h.handleLatest)
	r.Get("/{reportID}", h.handleGet)
}

type generateRequest struct {
	Weights   map[string]float64 `json:"weights"`
	Scenarios []stress.Scenario  `json:"scenarios,omitempty"`
	Threshold float64            `json:"threshold,omitempty"`
	Factors   []string           `json:"factors,omitempty"`
	Start     string             `json:"start"`
	End       string             `json:"end"`
	Seed      uint64             `json:"seed,omitempty"`
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
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

	generated, err := h.assembler.GenerateReport(r.Context(), report.Params{
		Weights:        req.Weights,
		Scenarios:      req.Scenarios,
		StressLossCap:  req.Threshold,
		Factors:        req.Factors,
		Counterparties: counterparties,
		Positions:      positions,
		Start:          start,
		End:            end,
		Seed:           req.Seed,
	})
	if err != nil {
		if errors.Is(err, domain.ErrEmptySeries) ||
			errors.Is(err, domain.ErrInvalidConfidence) ||
			errors.Is(err, domain.ErrDegenerateVariance) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Error().Err(err).Msg("Report generation failed")
		http.Error(w, "Report generation failed", http.StatusInternalServerError)
		return
	}

	if err := h.store.Save(generated); err != nil {
		h.log.Error().Err(err).Str("report_id", generated.ID).Msg("Failed to store report snapshot")
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(generated)
}

func (h *Handler) handleLatest(w http.ResponseWriter, r *http.Request) {
	latest, err := h.store.Latest()
	if err != nil {
		if errors.Is(err, domain.ErrEmptySeries) {
			http.Error(w, "No reports generated yet", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Msg("Failed to load latest report")
		http.Error(w, "Failed to load latest report", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(latest)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	reportID := chi.URLParam(r, "reportID")

	stored, err := h.store.Get(reportID)
	if err != nil {
		if errors.Is(err, domain.ErrEmptySeries) {
			http.Error(w, "Report not found", http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("report_id", reportID).Msg("Failed to load report")
		http.Error(w, "Failed to load report", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stored)
}
