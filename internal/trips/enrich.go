package trips

import "github.com/citymotion/tripfacts/internal/riders"

// Enrich left-joins the deduplicated trips with the rider dimension on
// RiderID. Every trip row is kept; a trip without a dimension match gets
// UnknownCountry. When the dimension repeats a rider_id the last record wins.
func Enrich(latest []Event, dims []riders.Rider) []Enriched {
	countryByRider := make(map[string]string, len(dims))
	for _, rider := range dims {
		countryByRider[rider.RiderID] = rider.Country
	}

	enriched := make([]Enriched, 0, len(latest))
	for _, event := range latest {
		country, ok := countryByRider[event.RiderID]
		if !ok || country == "" {
			country = UnknownCountry
		}
		enriched = append(enriched, Enriched{Event: event, Country: country})
	}
	return enriched
}
