// Package aggregate computes the daily summary views over the enriched fact
// set. Both passes are pure functions of their input and emit groups in
// sorted key order so re-runs produce byte-identical output.
package aggregate

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/citymotion/tripfacts/internal/trips"
)

// Daily is one row of the per-date summary.
type Daily struct {
	Date           string
	TotalTrips     int
	CompletedTrips int
	AvgFare        decimal.Decimal
}

// DailyCountry is one row of the per-(date, country) summary. GMV is the fare
// sum within the group.
type DailyCountry struct {
	Date    string
	Country string
	Trips   int
	GMV     decimal.Decimal
}

// BuildDaily groups enriched trips by ingestion date. AvgFare is the
// arithmetic mean rounded to 2 decimals with banker's rounding. Dates with no
// rows never appear.
func BuildDaily(rows []trips.Enriched) []Daily {
	type bucket struct {
		total     int
		completed int
		fareSum   decimal.Decimal
	}

	buckets := make(map[string]*bucket)
	for _, row := range rows {
		b := buckets[row.IngestionDate]
		if b == nil {
			b = &bucket{}
			buckets[row.IngestionDate] = b
		}
		b.total++
		if row.Status == trips.StatusCompleted {
			b.completed++
		}
		b.fareSum = b.fareSum.Add(row.Fare)
	}

	out := make([]Daily, 0, len(buckets))
	for date, b := range buckets {
		avg := b.fareSum.Div(decimal.NewFromInt(int64(b.total))).RoundBank(2)
		out = append(out, Daily{
			Date:           date,
			TotalTrips:     b.total,
			CompletedTrips: b.completed,
			AvgFare:        avg,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// BuildDailyCountry groups enriched trips by (ingestion date, country).
func BuildDailyCountry(rows []trips.Enriched) []DailyCountry {
	type key struct {
		date    string
		country string
	}
	type bucket struct {
		trips   int
		fareSum decimal.Decimal
	}

	buckets := make(map[key]*bucket)
	for _, row := range rows {
		k := key{date: row.IngestionDate, country: row.Country}
		b := buckets[k]
		if b == nil {
			b = &bucket{}
			buckets[k] = b
		}
		b.trips++
		b.fareSum = b.fareSum.Add(row.Fare)
	}

	out := make([]DailyCountry, 0, len(buckets))
	for k, b := range buckets {
		out = append(out, DailyCountry{
			Date:    k.date,
			Country: k.country,
			Trips:   b.trips,
			GMV:     b.fareSum.RoundBank(2),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Country < out[j].Country
	})
	return out
}
