// Package handlers provides HTTP handlers for portfolio construction, P&L passes and
// portfolio queries.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/spreadbook/internal/modules/portfolios"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles portfolio HTTP requests
type Handler struct {
	engine *portfolios.Engine
	log    zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(engine *portfolios.Engine, log zerolog.Logger) *Handler {
	return &Handler{
		engine: engine,
		log:    log.With().Str("handler", "portfolios").Logger(),
	}
}

// BuildRequest is the body of POST /api/portfolios/build
type BuildRequest struct {
	ScanDate           string `json:"scan_date"`
	ScanName           string `json:"scan_name"`
	TradesPerPortfolio int    `json:"trades_per_portfolio"`
}

// RegisterRoutes registers all portfolio routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolios", func(r chi.Router) {
		r.Get("/", h.HandleGetAll)
		r.Post("/build", h.HandleBuild)
		r.Post("/update", h.HandleUpdateAll)
		r.Get("/comparison", h.HandleGetComparison)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGetPortfolio)
			r.Get("/history", h.HandleGetHistory)
			r.Post("/update", h.HandleUpdatePortfolio)
		})
	})
}

// HandleGetAll handles GET /api/portfolios
func (h *Handler) HandleGetAll(w http.ResponseWriter, r *http.Request) {
	views, err := h.engine.GetAllPortfolios(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list portfolios")
		http.Error(w, "Failed to list portfolios", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(views))
}

// HandleBuild handles POST /api/portfolios/build
func (h *Handler) HandleBuild(w http.ResponseWriter, r *http.Request) {
	var req BuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.engine.CreatePortfoliosFromScan(r.Context(), req.ScanDate, req.ScanName, req.TradesPerPortfolio)
	if err != nil {
		if errors.Is(err, portfolios.ErrNoScanData) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		h.log.Error().Err(err).Str("scan_date", req.ScanDate).Str("scan_name", req.ScanName).Msg("Failed to build portfolios")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.writeJSON(w, http.StatusCreated, envelope(result))
}

// HandleUpdateAll handles POST /api/portfolios/update
func (h *Handler) HandleUpdateAll(w http.ResponseWriter, r *http.Request) {
	report, err := h.engine.UpdateAllPortfolioPnl(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to update portfolios")
		http.Error(w, "Failed to update portfolios", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(report))
}

// HandleGetComparison handles GET /api/portfolios/comparison?name=
func (h *Handler) HandleGetComparison(w http.ResponseWriter, r *http.Request) {
	var name *string
	if n := r.URL.Query().Get("name"); n != "" {
		name = &n
	}

	cmp, err := h.engine.GetPortfolioComparison(r.Context(), name)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compare portfolios")
		http.Error(w, "Failed to compare portfolios", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(cmp))
}

// HandleGetPortfolio handles GET /api/portfolios/{id}
func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	id, ok := h.portfolioID(w, r)
	if !ok {
		return
	}

	pw, err := h.engine.GetPortfolioWithTrades(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "Failed to get portfolio")
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(pw))
}

// HandleGetHistory handles GET /api/portfolios/{id}/history
func (h *Handler) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.portfolioID(w, r)
	if !ok {
		return
	}

	history, err := h.engine.GetPortfolioHistory(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "Failed to get portfolio history")
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(history))
}

// HandleUpdatePortfolio handles POST /api/portfolios/{id}/update
func (h *Handler) HandleUpdatePortfolio(w http.ResponseWriter, r *http.Request) {
	id, ok := h.portfolioID(w, r)
	if !ok {
		return
	}

	report, err := h.engine.UpdatePortfolioPnl(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "Failed to update portfolio")
		return
	}

	h.writeJSON(w, http.StatusOK, envelope(report))
}

func (h *Handler) portfolioID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "Invalid portfolio id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, portfolios.ErrPortfolioNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	h.log.Error().Err(err).Msg(msg)
	http.Error(w, msg, http.StatusInternalServerError)
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
