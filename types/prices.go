package types

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/angas/pricewatch-go/slice"
)

// PriceLevel is the upstream-assigned price category, derived by Tibber from
// the day's average.
type PriceLevel int

const (
	LevelUnknown PriceLevel = iota
	LevelVeryCheap
	LevelCheap
	LevelNormal
	LevelExpensive
	LevelVeryExpensive
)

func PriceLevelFromString(s string) PriceLevel {
	switch s {
	case "VERY_CHEAP":
		return LevelVeryCheap
	case "CHEAP":
		return LevelCheap
	case "NORMAL":
		return LevelNormal
	case "EXPENSIVE":
		return LevelExpensive
	case "VERY_EXPENSIVE":
		return LevelVeryExpensive
	default:
		return LevelUnknown
	}
}

func (l PriceLevel) String() string {
	switch l {
	case LevelVeryCheap:
		return "VERY_CHEAP"
	case LevelCheap:
		return "CHEAP"
	case LevelNormal:
		return "NORMAL"
	case LevelExpensive:
		return "EXPENSIVE"
	case LevelVeryExpensive:
		return "VERY_EXPENSIVE"
	default:
		return "UNKNOWN"
	}
}

// IsCheap reports whether the level is CHEAP or below.
func (l PriceLevel) IsCheap() bool {
	return l == LevelCheap || l == LevelVeryCheap
}

// IsExpensive reports whether the level is EXPENSIVE or above.
func (l PriceLevel) IsExpensive() bool {
	return l == LevelExpensive || l == LevelVeryExpensive
}

func (l PriceLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

func (l *PriceLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*l = PriceLevelFromString(s)
	return nil
}

// PriceEntry is one hour of electricity price data. StartsAt is hour-aligned
// and keeps the zone offset the upstream reported it in. Immutable once built.
type PriceEntry struct {
	StartsAt time.Time  `json:"startsAt"`
	Total    float64    `json:"total"`
	Energy   float64    `json:"energy"`
	Tax      float64    `json:"tax"`
	Level    PriceLevel `json:"level"`
}

// Covers reports whether t falls within the entry's hour.
func (e PriceEntry) Covers(t time.Time) bool {
	return !t.Before(e.StartsAt) && t.Before(e.StartsAt.Add(time.Hour))
}

// PriceSeries is one household's prices for today plus, once the upstream has
// published it (typically early afternoon), tomorrow.
type PriceSeries struct {
	Today    []PriceEntry `json:"today"`
	Tomorrow []PriceEntry `json:"tomorrow,omitempty"`
}

// All returns today's and tomorrow's entries as one chronological slice.
func (s PriceSeries) All() []PriceEntry {
	all := make([]PriceEntry, 0, len(s.Today)+len(s.Tomorrow))
	all = append(all, s.Today...)
	return append(all, s.Tomorrow...)
}

// EntryAt returns the entry whose hour covers t.
func (s PriceSeries) EntryAt(t time.Time) (PriceEntry, bool) {
	return slice.Find(s.All(), func(e PriceEntry) bool { return e.Covers(t) })
}

// Validate checks that the series is well-formed: today is non-empty and both
// days are sorted ascending by start instant without duplicates. Day lengths
// are not checked, DST transition days legitimately have 23 or 25 entries.
func (s PriceSeries) Validate() error {
	if len(s.Today) == 0 {
		return fmt.Errorf("price series has no entries for today")
	}
	if err := validateDay(s.Today); err != nil {
		return fmt.Errorf("today: %w", err)
	}
	if err := validateDay(s.Tomorrow); err != nil {
		return fmt.Errorf("tomorrow: %w", err)
	}
	return nil
}

func validateDay(entries []PriceEntry) error {
	for i := 1; i < len(entries); i++ {
		if !entries[i-1].StartsAt.Before(entries[i].StartsAt) {
			return fmt.Errorf("entries out of order at %s", entries[i].StartsAt.Format(time.RFC3339))
		}
	}
	return nil
}

// Household identifies one Tibber home. Households are independent, each one
// gets its own price snapshot.
type Household struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PriceProvider is the upstream price API. GetPriceSeries returns either a
// well-formed series or a *FetchError classifying the failure.
type PriceProvider interface {
	GetHomes(ctx context.Context) ([]Household, error)
	GetPriceSeries(ctx context.Context, householdID string) (PriceSeries, error)
}
