package optimize

import (
	"sort"
	"time"

	"github.com/angas/pricewatch-go/hours"
	"github.com/angas/pricewatch-go/slice"
	"github.com/angas/pricewatch-go/types"
	"github.com/angas/pricewatch-go/types/maybe"
)

// Window is a contiguous run of hourly entries, the candidate result of a
// cheapest-consecutive-hours search.
type Window struct {
	Entries []types.PriceEntry `json:"entries"`
	Start   time.Time          `json:"start"`
	End     time.Time          `json:"end"`
	Average float64            `json:"average"`
}

func newWindow(entries []types.PriceEntry) Window {
	sum := 0.0
	for _, e := range entries {
		sum += e.Total
	}
	return Window{
		Entries: entries,
		Start:   entries[0].StartsAt,
		End:     entries[len(entries)-1].StartsAt.Add(time.Hour),
		Average: sum / float64(len(entries)),
	}
}

// Contains reports whether t falls within one of the window's hours.
func (w Window) Contains(t time.Time) bool {
	return ContainsInstant(w.Entries, t)
}

// CheapestHours returns the n lowest-priced entries sorted ascending by total.
// Equal prices keep their chronological order, so the earlier hour wins ties.
// n is clamped to the number of entries.
func CheapestHours(entries []types.PriceEntry, n int) []types.PriceEntry {
	return rankedHours(entries, n, func(a, b types.PriceEntry) bool { return a.Total < b.Total })
}

// MostExpensiveHours returns the n highest-priced entries sorted descending by
// total, ties broken by earlier start.
func MostExpensiveHours(entries []types.PriceEntry, n int) []types.PriceEntry {
	return rankedHours(entries, n, func(a, b types.PriceEntry) bool { return a.Total > b.Total })
}

func rankedHours(entries []types.PriceEntry, n int, less func(a, b types.PriceEntry) bool) []types.PriceEntry {
	if n < 0 {
		n = 0
	}
	sorted := make([]types.PriceEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool { return less(sorted[i], sorted[j]) })
	return sorted[:min(n, len(sorted))]
}

// Constraints restrict the candidate windows of BestWindow by time-of-day:
// the window must not start before EarliestStart and its last hour must start
// before LatestEnd.
type Constraints struct {
	EarliestStart *hours.ClockTime
	LatestEnd     *hours.ClockTime
}

func (c Constraints) allows(window []types.PriceEntry) bool {
	first := hours.ClockOf(window[0].StartsAt)
	last := hours.ClockOf(window[len(window)-1].StartsAt)
	if c.EarliestStart != nil && first.Before(*c.EarliestStart) {
		return false
	}
	if c.LatestEnd != nil && !last.Before(*c.LatestEnd) {
		return false
	}
	return true
}

// BestWindow finds the contiguous run of exactly duration entries with the
// lowest average total; the earliest run wins ties. Returns None when fewer
// than duration entries are available, a shorter window is never returned.
func BestWindow(entries []types.PriceEntry, duration int) maybe.Maybe[Window] {
	return BestWindowWithin(entries, duration, Constraints{})
}

// BestWindowWithin is BestWindow restricted to windows satisfying the given
// time-of-day constraints.
func BestWindowWithin(entries []types.PriceEntry, duration int, c Constraints) maybe.Maybe[Window] {
	if duration <= 0 || len(entries) < duration {
		return maybe.None[Window]()
	}

	best := maybe.None[Window]()
	for i := 0; i+duration <= len(entries); i++ {
		candidate := entries[i : i+duration]
		if !c.allows(candidate) {
			continue
		}
		w := newWindow(candidate)
		if !best.IsValid() || w.Average < best.Value().Average {
			best = maybe.Some(w)
		}
	}

	return best
}

// CheapestInWindow picks the n cheapest entries whose start time-of-day falls
// inside the (possibly wrapping) clock window, searching today and tomorrow.
// When the window yields fewer than n entries, all of them are returned.
func CheapestInWindow(series types.PriceSeries, w hours.Window, n int) []types.PriceEntry {
	var inWindow []types.PriceEntry
	for _, e := range series.All() {
		if w.ContainsTime(e.StartsAt) {
			inWindow = append(inWindow, e)
		}
	}
	return CheapestHours(inWindow, n)
}

// NextCheapWindow finds the next upcoming hour priced within the cheapest
// quarter of the whole series, the moment it "becomes cheap" again.
func NextCheapWindow(entries []types.PriceEntry, now time.Time) maybe.Maybe[Window] {
	if len(entries) == 0 {
		return maybe.None[Window]()
	}

	totals := slice.Map(entries, func(e types.PriceEntry) float64 { return e.Total })
	sort.Float64s(totals)
	threshold := totals[max(1, len(totals)/4)-1]

	for _, e := range entries {
		if !e.StartsAt.After(now) {
			continue
		}
		if e.Total <= threshold {
			return maybe.Some(newWindow([]types.PriceEntry{e}))
		}
	}

	return maybe.None[Window]()
}

// Forecast returns the entries covering the next h hours, starting with the
// hour that contains now.
func Forecast(entries []types.PriceEntry, now time.Time, h int) []types.PriceEntry {
	var upcoming []types.PriceEntry
	for _, e := range entries {
		if e.Covers(now) || e.StartsAt.After(now) {
			upcoming = append(upcoming, e)
		}
		if len(upcoming) == h {
			break
		}
	}
	return upcoming
}

// ContainsInstant reports whether t falls within any of the entries' hours.
func ContainsInstant(entries []types.PriceEntry, t time.Time) bool {
	for _, e := range entries {
		if e.Covers(t) {
			return true
		}
	}
	return false
}
