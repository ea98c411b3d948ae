package www

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/angas/pricewatch-go/coordinator"
	"github.com/angas/pricewatch-go/optimize"
	"github.com/angas/pricewatch-go/types"
)

type forecastResponse struct {
	Status    string             `json:"status"`
	FetchedAt time.Time          `json:"fetchedAt"`
	Warning   string             `json:"warning,omitempty"`
	Entries   []types.PriceEntry `json:"entries"`
}

// NewForecastHandler returns the known prices for the next N hours, starting
// with the current hour. Fewer entries come back when tomorrow's prices are
// not published yet.
func NewForecastHandler(logger *slog.Logger, manager *coordinator.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := manager.Coordinator(r.PathValue("id"))
		if !ok {
			writeError(logger, w, http.StatusNotFound, "unknown household")
			return
		}
		snap, ok := c.Current()
		if !ok {
			writeError(logger, w, http.StatusServiceUnavailable, "no price data available yet")
			return
		}

		h := intOrDefault(r.URL, "hours", 12)
		if h < 1 || h > 48 {
			writeError(logger, w, http.StatusBadRequest, "hours must be between 1 and 48")
			return
		}

		writeJSON(logger, w, http.StatusOK, forecastResponse{
			Status:    string(snap.Freshness),
			FetchedAt: snap.FetchedAt,
			Warning:   snap.Warning,
			Entries:   optimize.Forecast(snap.Series.All(), time.Now(), h),
		})
	}
}
