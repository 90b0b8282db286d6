// Package handlers provides HTTP handlers for market calendar operations.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/spreadbook/internal/modules/market_hours"
	"github.com/rs/zerolog"
)

// Handler handles market calendar HTTP requests
type Handler struct {
	calendar *market_hours.Calendar
	log      zerolog.Logger
}

// NewHandler creates a new market calendar handler
func NewHandler(calendar *market_hours.Calendar, log zerolog.Logger) *Handler {
	return &Handler{
		calendar: calendar,
		log:      log.With().Str("handler", "market_hours").Logger(),
	}
}

// HandleGetStatus handles GET /api/market-hours/status
func (h *Handler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	now := h.calendar.Now()

	data := map[string]interface{}{
		"now":                  now.Format(time.RFC3339),
		"today":                market_hours.FormatDate(now),
		"timezone":             market_hours.MarketTimezone,
		"trading_day":          h.calendar.IsTradingDay(now),
		"previous_trading_day": market_hours.FormatDate(h.calendar.PreviousTradingDay(now)),
		"todays_cutoff":        market_hours.ExpirationCutoff(now).Format(time.RFC3339),
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetHolidays handles GET /api/market-hours/holidays?year=
func (h *Handler) HandleGetHolidays(w http.ResponseWriter, r *http.Request) {
	year := h.calendar.Now().Year()
	if yearStr := r.URL.Query().Get("year"); yearStr != "" {
		parsed, err := strconv.Atoi(yearStr)
		if err != nil || parsed < 1900 || parsed > 2200 {
			http.Error(w, "invalid year", http.StatusBadRequest)
			return
		}
		year = parsed
	}

	holidays := market_hours.CalculateUSHolidays(year, market_hours.Location())
	dates := make([]string, 0, len(holidays))
	for _, d := range holidays {
		dates = append(dates, market_hours.FormatDate(d))
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"year":     year,
			"holidays": dates,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleCheckExpiration handles GET /api/market-hours/expired?date=
// Reports whether an option expiring on date has stopped trading.
func (h *Handler) HandleCheckExpiration(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		http.Error(w, "date parameter is required", http.StatusBadRequest)
		return
	}

	expiration, err := market_hours.ParseDate(raw)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"expiration": market_hours.FormatDate(expiration),
			"cutoff":     market_hours.ExpirationCutoff(expiration).Format(time.RFC3339),
			"expired":    h.calendar.IsExpired(expiration),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
