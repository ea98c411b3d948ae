package www

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/angas/pricewatch-go/calc"
	"github.com/angas/pricewatch-go/coordinator"
	"github.com/angas/pricewatch-go/hours"
	"github.com/angas/pricewatch-go/optimize"
	"github.com/angas/pricewatch-go/types/maybe"
)

type bestWindowResponse struct {
	Window         maybe.Maybe[optimize.Window] `json:"window"`
	Average        maybe.Maybe[float64]         `json:"average"` // over all searched hours
	SavingsPerKwh  maybe.Maybe[float64]         `json:"savingsPerKwh"`
	SavingsPercent maybe.Maybe[float64]         `json:"savingsPercent"`
	TotalCost      maybe.Maybe[float64]         `json:"totalCost"`     // requires power_kw
	TotalSavings   maybe.Maybe[float64]         `json:"totalSavings"`  // requires power_kw
}

// NewBestWindowHandler answers ad-hoc cheapest-window queries. Query params:
// duration_hours (1-24), earliest_start and latest_end as HH:MM time-of-day
// constraints, include_tomorrow (default true) and power_kw for cost figures.
// The constraints are pure time-of-day and apply to whichever day a candidate
// window falls on: with include_tomorrow, earliest_start=20:00 admits windows
// starting after 20:00 today and after 20:00 tomorrow alike.
func NewBestWindowHandler(logger *slog.Logger, manager *coordinator.Manager, settings SettingsFunc) http.HandlerFunc {
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

		duration := intOrDefault(r.URL, "duration_hours", settings().Duration)
		if duration < 1 || duration > 24 {
			writeError(logger, w, http.StatusBadRequest, "duration_hours must be between 1 and 24")
			return
		}

		constraints := optimize.Constraints{}
		var err error
		if constraints.EarliestStart, err = clockParam(r.URL, "earliest_start"); err != nil {
			writeError(logger, w, http.StatusBadRequest, err.Error())
			return
		}
		if constraints.LatestEnd, err = clockParam(r.URL, "latest_end"); err != nil {
			writeError(logger, w, http.StatusBadRequest, err.Error())
			return
		}

		entries := snap.Series.Today
		if boolOrDefault(r.URL, "include_tomorrow", true) {
			entries = snap.Series.All()
		}

		resp := bestWindowResponse{
			Window: optimize.BestWindowWithin(entries, duration, constraints),
		}

		summary := calc.Summarize(entries)
		if summary.IsValid() {
			resp.Average = maybe.Some(summary.Value().Average)
		}

		if resp.Window.IsValid() && summary.IsValid() {
			window := resp.Window.Value()
			average := summary.Value().Average
			perKwh := average - window.Average
			resp.SavingsPerKwh = maybe.Some(perKwh)
			if average != 0 {
				resp.SavingsPercent = maybe.Some(perKwh / average * 100)
			}
			if power := floatOrZero(r.URL, "power_kw"); power > 0 {
				resp.TotalCost = maybe.Some(window.Average * float64(duration) * power)
				resp.TotalSavings = maybe.Some(perKwh * float64(duration) * power)
			}
		}

		writeJSON(logger, w, http.StatusOK, resp)
	}
}

func clockParam(u *url.URL, key string) (*hours.ClockTime, error) {
	v := u.Query().Get(key)
	if v == "" {
		return nil, nil
	}
	ct, err := hours.ParseClock(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return &ct, nil
}
