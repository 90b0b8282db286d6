// Package handlers provides HTTP handlers for scan ingestion and queries.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/aristath/spreadbook/internal/modules/scans"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// maxUploadBytes bounds a posted scan body.
const maxUploadBytes = 8 << 20

// Handler handles scan HTTP requests
type Handler struct {
	service *scans.Service
	log     zerolog.Logger
}

// NewHandler creates a new scan handler
func NewHandler(service *scans.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "scans").Logger(),
	}
}

// RegisterRoutes registers all scan routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/scans", func(r chi.Router) {
		r.Get("/", h.HandleListScanDates)
		r.Get("/{date}", h.HandleGetScanResults)
		r.Post("/{date}/{name}", h.HandleSaveScanResults)
		r.Delete("/{date}", h.HandleDeleteScanData)
	})
}

// HandleListScanDates handles GET /api/scans
func (h *Handler) HandleListScanDates(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.service.ListScanDates(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list scan dates")
		http.Error(w, "Failed to list scan dates", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(summaries))
}

// HandleGetScanResults handles GET /api/scans/{date}?name=
func (h *Handler) HandleGetScanResults(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")

	views, err := h.service.GetScanResults(r.Context(), date, optionalName(r))
	if err != nil {
		h.log.Warn().Err(err).Str("date", date).Msg("Failed to get scan results")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(views))
}

// HandleSaveScanResults handles POST /api/scans/{date}/{name}.
// The body is the scraper envelope or a bare array of rows.
func (h *Handler) HandleSaveScanResults(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	name := chi.URLParam(r, "name")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	rows, err := scans.DecodeScrapeOutput(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	saved, err := h.service.SaveScanResults(r.Context(), rows, name, date)
	if err != nil {
		if errors.Is(err, scans.ErrInvalidRow) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		h.log.Error().Err(err).Str("date", date).Str("name", name).Msg("Failed to save scan results")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.writeJSON(w, http.StatusCreated, envelope(map[string]interface{}{
		"scan_date": date,
		"scan_name": name,
		"saved":     saved,
	}))
}

// HandleDeleteScanData handles DELETE /api/scans/{date}?name=
func (h *Handler) HandleDeleteScanData(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")

	result, err := h.service.DeleteScanDataForDate(r.Context(), date, optionalName(r))
	if err != nil {
		h.log.Error().Err(err).Str("date", date).Msg("Failed to purge scan data")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(result))
}

func optionalName(r *http.Request) *string {
	if name := r.URL.Query().Get("name"); name != "" {
		return &name
	}
	return nil
}

func envelope(data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
