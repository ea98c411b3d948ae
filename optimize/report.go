package optimize

import (
	"time"

	"github.com/angas/pricewatch-go/calc"
	"github.com/angas/pricewatch-go/hours"
	"github.com/angas/pricewatch-go/types"
	"github.com/angas/pricewatch-go/types/maybe"
)

// Settings are the tunable analysis parameters, see config.AppConfigAnalysis.
type Settings struct {
	Efficiency float64 // battery round-trip efficiency as a fraction
	Duration   int     // consecutive hours for window searches and top-N rankings
	Window     hours.Window
}

// Report is the full set of derived analytics for one snapshot at one instant.
// Everything here is recomputed from the series on demand, nothing is stored.
type Report struct {
	CurrentPrice        maybe.Maybe[types.PriceEntry] `json:"currentPrice"`
	Summary             maybe.Maybe[calc.Summary]     `json:"summary"`
	Deviation           maybe.Maybe[calc.Deviation]   `json:"deviation"`
	Rank                maybe.Maybe[int]              `json:"rank"`
	Percentile          maybe.Maybe[float64]          `json:"percentile"`
	CheapestHours       []types.PriceEntry            `json:"cheapestHours"`
	MostExpensiveHours  []types.PriceEntry            `json:"mostExpensiveHours"`
	BestWindow          maybe.Maybe[Window]           `json:"bestWindow"`
	WindowHours         []types.PriceEntry            `json:"windowHours"`
	NextCheapWindow     maybe.Maybe[Window]           `json:"nextCheapWindow"`
	BreakevenPrice      maybe.Maybe[float64]          `json:"breakevenPrice"`
	IsCheapestHour      bool                          `json:"isCheapestHour"`
	IsMostExpensiveHour bool                          `json:"isMostExpensiveHour"`
	InBestWindow        bool                          `json:"inBestWindow"`
	InCustomWindow      bool                          `json:"inCustomWindow"`
	IsGoodChargingTime  bool                          `json:"isGoodChargingTime"`
	BatteryIsEconomical bool                          `json:"batteryIsEconomical"`
}

// NewReport derives all analytics from the series as seen at now. Rankings and
// statistics cover today; window searches span into tomorrow when published.
func NewReport(series types.PriceSeries, s Settings, now time.Time) Report {
	all := series.All()

	r := Report{
		Summary:            calc.Summarize(series.Today),
		CheapestHours:      CheapestHours(series.Today, s.Duration),
		MostExpensiveHours: MostExpensiveHours(series.Today, s.Duration),
		BestWindow:         BestWindow(all, s.Duration),
		WindowHours:        CheapestInWindow(series, s.Window, s.Duration),
		NextCheapWindow:    NextCheapWindow(all, now),
	}
	r.BreakevenPrice = calc.Breakeven(r.Summary, s.Efficiency)

	if current, ok := series.EntryAt(now); ok {
		r.CurrentPrice = maybe.Some(current)
		r.Deviation = calc.DeviationFrom(current.Total, r.Summary)
		r.Rank = calc.Rank(current.Total, series.Today)
		r.Percentile = calc.Percentile(current.Total, series.Today)

		r.IsCheapestHour = ContainsInstant(r.CheapestHours, now)
		r.IsMostExpensiveHour = ContainsInstant(r.MostExpensiveHours, now)
		r.InBestWindow = r.BestWindow.IsValid() && r.BestWindow.Value().Contains(now)
		r.InCustomWindow = ContainsInstant(r.WindowHours, now)
		r.IsGoodChargingTime = current.Level.IsCheap() || r.IsCheapestHour
		r.BatteryIsEconomical = r.BreakevenPrice.IsValid() && current.Total <= r.BreakevenPrice.Value()
	}

	return r
}
