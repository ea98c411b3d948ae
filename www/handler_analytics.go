package www

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/angas/pricewatch-go/coordinator"
	"github.com/angas/pricewatch-go/optimize"
	"github.com/angas/pricewatch-go/types"
)

type analyticsResponse struct {
	Household types.Household  `json:"household"`
	Status    string           `json:"status"` // live, cached or uninitialized
	FetchedAt *time.Time       `json:"fetchedAt,omitempty"`
	Warning   string           `json:"warning,omitempty"`
	Report    *optimize.Report `json:"report,omitempty"`
}

func NewAnalyticsHandler(logger *slog.Logger, manager *coordinator.Manager, settings SettingsFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := manager.Coordinator(r.PathValue("id"))
		if !ok {
			writeError(logger, w, http.StatusNotFound, "unknown household")
			return
		}

		resp := analyticsResponse{Household: c.Household(), Status: "uninitialized"}
		if snap, ok := c.Current(); ok {
			report := optimize.NewReport(snap.Series, settings(), time.Now())
			resp.Status = string(snap.Freshness)
			resp.FetchedAt = &snap.FetchedAt
			resp.Warning = snap.Warning
			resp.Report = &report
		}

		writeJSON(logger, w, http.StatusOK, resp)
	}
}
