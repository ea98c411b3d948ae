package calc

import (
	"github.com/angas/pricewatch-go/types"
	"github.com/angas/pricewatch-go/types/maybe"
)

// Summary holds the day's basic price statistics in the source's own
// currency/energy unit.
type Summary struct {
	Average float64 `json:"average"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// Summarize computes average, min and max of total over the given entries.
// Returns None for an empty day.
func Summarize(entries []types.PriceEntry) maybe.Maybe[Summary] {
	if len(entries) == 0 {
		return maybe.None[Summary]()
	}

	s := Summary{Min: entries[0].Total, Max: entries[0].Total}
	sum := 0.0
	for _, e := range entries {
		sum += e.Total
		if e.Total < s.Min {
			s.Min = e.Total
		}
		if e.Total > s.Max {
			s.Max = e.Total
		}
	}
	s.Average = sum / float64(len(entries))

	return maybe.Some(s)
}

// Breakeven is the highest price at which discharging energy stored during
// the average-priced period still beats buying from the grid, given the
// battery's round-trip efficiency as a fraction (0 < efficiency <= 1).
func Breakeven(summary maybe.Maybe[Summary], efficiency float64) maybe.Maybe[float64] {
	if !summary.IsValid() || efficiency <= 0 || efficiency > 1 {
		return maybe.None[float64]()
	}
	return maybe.Some(summary.Value().Average / efficiency)
}

type Deviation struct {
	Percent  float64 `json:"percent"`
	Absolute float64 `json:"absolute"`
}

// DeviationFrom expresses how far total lies from the day's average. Undefined
// when the average is unavailable or zero.
func DeviationFrom(total float64, summary maybe.Maybe[Summary]) maybe.Maybe[Deviation] {
	if !summary.IsValid() || summary.Value().Average == 0 {
		return maybe.None[Deviation]()
	}
	avg := summary.Value().Average
	abs := total - avg
	return maybe.Some(Deviation{
		Percent:  abs / avg * 100,
		Absolute: abs,
	})
}

// Rank is the 1-based position of total in the ascending sort of the day's
// prices. Equal prices share the lower rank.
func Rank(total float64, entries []types.PriceEntry) maybe.Maybe[int] {
	if len(entries) == 0 {
		return maybe.None[int]()
	}
	rank := 1
	for _, e := range entries {
		if e.Total < total {
			rank++
		}
	}
	return maybe.Some(rank)
}

// Percentile is the share of the day's entries priced at or below total,
// as a percentage.
func Percentile(total float64, entries []types.PriceEntry) maybe.Maybe[float64] {
	if len(entries) == 0 {
		return maybe.None[float64]()
	}
	atOrBelow := 0
	for _, e := range entries {
		if e.Total <= total {
			atOrBelow++
		}
	}
	return maybe.Some(float64(atOrBelow) / float64(len(entries)) * 100)
}
