package coordinator

import (
	"time"

	"github.com/angas/pricewatch-go/types"
)

// Freshness tags a snapshot's provenance: live means the series came from the
// most recent refresh cycle, cached means the cycle failed and an older series
// is being served.
type Freshness string

const (
	FreshnessLive   Freshness = "live"
	FreshnessCached Freshness = "cached"
)

// Snapshot is one household's current price data with provenance. The series
// inside is never mutated, a refresh either swaps the whole snapshot or
// replaces it with a re-tagged copy.
type Snapshot struct {
	Series    types.PriceSeries `json:"series"`
	FetchedAt time.Time         `json:"fetchedAt"`
	Freshness Freshness         `json:"freshness"`
	Warning   string            `json:"warning,omitempty"`
}
