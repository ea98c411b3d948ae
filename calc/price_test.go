package calc

import (
	"math"
	"testing"
	"time"

	"github.com/angas/pricewatch-go/types"
	"github.com/angas/pricewatch-go/types/maybe"
)

func entriesWithTotals(totals ...float64) []types.PriceEntry {
	start := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	entries := make([]types.PriceEntry, len(totals))
	for i, total := range totals {
		entries[i] = types.PriceEntry{
			StartsAt: start.Add(time.Duration(i) * time.Hour),
			Total:    total,
		}
	}
	return entries
}

func TestSummarize(t *testing.T) {
	s := Summarize(entriesWithTotals(1.0, 3.0, 2.0))
	if !s.IsValid() {
		t.Fatal("expected a summary for a non-empty day")
	}
	if !almostEqual(s.Value().Average, 2.0) {
		t.Errorf("got average %f, wanted 2.0", s.Value().Average)
	}
	if !almostEqual(s.Value().Min, 1.0) {
		t.Errorf("got min %f, wanted 1.0", s.Value().Min)
	}
	if !almostEqual(s.Value().Max, 3.0) {
		t.Errorf("got max %f, wanted 3.0", s.Value().Max)
	}
}

func TestSummarizeEmptyDay(t *testing.T) {
	if Summarize(nil).IsValid() {
		t.Error("expected no summary for an empty day")
	}
}

func TestBreakeven(t *testing.T) {
	summary := Summarize(entriesWithTotals(0.5, 1.5))

	be := Breakeven(summary, 0.8)
	if !be.IsValid() {
		t.Fatal("expected a breakeven price")
	}
	if !almostEqual(be.Value(), 1.25) {
		t.Errorf("got breakeven %f, wanted 1.25", be.Value())
	}

	if Breakeven(summary, 0).IsValid() {
		t.Error("efficiency 0 should yield no breakeven")
	}
	if Breakeven(summary, -0.5).IsValid() {
		t.Error("negative efficiency should yield no breakeven")
	}
	if Breakeven(summary, 1.2).IsValid() {
		t.Error("efficiency above 1 should yield no breakeven")
	}
	if Breakeven(maybe.None[Summary](), 0.8).IsValid() {
		t.Error("missing summary should yield no breakeven")
	}
}

func TestDeviationFrom(t *testing.T) {
	summary := Summarize(entriesWithTotals(1.0, 3.0)) // average 2.0

	d := DeviationFrom(2.5, summary)
	if !d.IsValid() {
		t.Fatal("expected a deviation")
	}
	if !almostEqual(d.Value().Absolute, 0.5) {
		t.Errorf("got absolute deviation %f, wanted 0.5", d.Value().Absolute)
	}
	if !almostEqual(d.Value().Percent, 25.0) {
		t.Errorf("got percent deviation %f, wanted 25.0", d.Value().Percent)
	}

	zeroAvg := Summarize(entriesWithTotals(-1.0, 1.0))
	if DeviationFrom(0.5, zeroAvg).IsValid() {
		t.Error("zero average should yield no deviation")
	}
}

func TestRankAndPercentile(t *testing.T) {
	entries := entriesWithTotals(0.4, 0.1, 0.3, 0.2)

	if r := Rank(0.1, entries); r.ValueOrDefault(0) != 1 {
		t.Errorf("cheapest entry should rank 1, got %d", r.ValueOrDefault(0))
	}
	if r := Rank(0.4, entries); r.ValueOrDefault(0) != 4 {
		t.Errorf("most expensive entry should rank 4, got %d", r.ValueOrDefault(0))
	}

	if p := Percentile(0.1, entries); !almostEqual(p.ValueOrDefault(0), 25.0) {
		t.Errorf("cheapest of four should be percentile 25, got %f", p.ValueOrDefault(0))
	}
	if p := Percentile(0.4, entries); !almostEqual(p.ValueOrDefault(0), 100.0) {
		t.Errorf("most expensive should be percentile 100, got %f", p.ValueOrDefault(0))
	}
}

func TestRankTiesShareLowerRank(t *testing.T) {
	entries := entriesWithTotals(0.2, 0.2, 0.1)
	if r := Rank(0.2, entries); r.ValueOrDefault(0) != 2 {
		t.Errorf("tied entries should share rank 2, got %d", r.ValueOrDefault(0))
	}
}

func TestRankEmptyDay(t *testing.T) {
	if Rank(0.1, nil).IsValid() {
		t.Error("expected no rank for an empty day")
	}
	if Percentile(0.1, nil).IsValid() {
		t.Error("expected no percentile for an empty day")
	}
}

func almostEqual(f1 float64, f2 float64) bool {
	return math.Abs(f1-f2) < 1e-9
}
