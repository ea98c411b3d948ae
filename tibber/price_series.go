package tibber

import (
	"context"
	"fmt"
	"time"

	"github.com/angas/pricewatch-go/types"
)

type priceInfo struct {
	StartsAt string  `json:"startsAt"`
	Total    float64 `json:"total"`
	Energy   float64 `json:"energy"`
	Tax      float64 `json:"tax"`
	Level    string  `json:"level"`
}

type homesResponse struct {
	Homes []struct {
		Id          string `json:"id"`
		AppNickname string `json:"appNickname"`
	} `json:"homes"`
}

type priceInfoResponse struct {
	Home struct {
		CurrentSubscription struct {
			PriceInfo struct {
				Today    []priceInfo `json:"today"`
				Tomorrow []priceInfo `json:"tomorrow"`
			} `json:"priceInfo"`
		} `json:"currentSubscription"`
	} `json:"home"`
}

// GetHomes lists the households on the account.
func (t *Tibber) GetHomes(ctx context.Context) ([]types.Household, error) {
	query := `query {
		viewer {
			homes { id appNickname }
		}
	}`

	body, err := doQuery[homesResponse](ctx, t, query)
	if err != nil {
		return nil, err
	}

	homes := make([]types.Household, 0, len(body.Data.Viewer.Homes))
	for _, home := range body.Data.Viewer.Homes {
		name := home.AppNickname
		if name == "" {
			name = "Tibber Home"
		}
		homes = append(homes, types.Household{ID: home.Id, Name: name})
	}

	return homes, nil
}

// GetPriceSeries fetches today's and (when published) tomorrow's hourly prices
// for one household.
func (t *Tibber) GetPriceSeries(ctx context.Context, householdID string) (types.PriceSeries, error) {
	query := fmt.Sprintf(`query {
		viewer {
			home(id:"%s") {
				currentSubscription {
					priceInfo {
						today { startsAt total energy tax level }
						tomorrow { startsAt total energy tax level }
					}
				}
			}
		}
	}`, householdID)

	body, err := doQuery[priceInfoResponse](ctx, t, query)
	if err != nil {
		return types.PriceSeries{}, err
	}

	info := body.Data.Viewer.Home.CurrentSubscription.PriceInfo

	series := types.PriceSeries{}
	if series.Today, err = toEntries(info.Today); err != nil {
		return types.PriceSeries{}, types.NewFetchError(types.FetchMalformed, err)
	}
	if series.Tomorrow, err = toEntries(info.Tomorrow); err != nil {
		return types.PriceSeries{}, types.NewFetchError(types.FetchMalformed, err)
	}

	if err := series.Validate(); err != nil {
		return types.PriceSeries{}, types.NewFetchError(types.FetchMalformed, err)
	}

	return series, nil
}

func toEntries(prices []priceInfo) ([]types.PriceEntry, error) {
	entries := make([]types.PriceEntry, 0, len(prices))
	for _, price := range prices {
		// RFC3339 keeps the upstream's zone offset, which time-of-day
		// windows depend on.
		startsAt, err := time.Parse(time.RFC3339, price.StartsAt)
		if err != nil {
			return nil, fmt.Errorf("bad startsAt %q: %w", price.StartsAt, err)
		}
		entries = append(entries, types.PriceEntry{
			StartsAt: startsAt,
			Total:    price.Total,
			Energy:   price.Energy,
			Tax:      price.Tax,
			Level:    types.PriceLevelFromString(price.Level),
		})
	}
	return entries, nil
}
