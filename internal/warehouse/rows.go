package warehouse

import "time"

// DailyRow mirrors one daily.csv aggregate row in the warehouse, tagged with
// run lineage.
type DailyRow struct {
	Date           string    `bigquery:"date"`
	TotalTrips     int       `bigquery:"total_trips"`
	CompletedTrips int       `bigquery:"completed_trips"`
	AvgFare        float64   `bigquery:"avg_fare"`
	Watermark      string    `bigquery:"watermark"`
	LoadedAt       time.Time `bigquery:"loaded_at"`
}

// DailyCountryRow mirrors one daily_by_country.csv aggregate row.
type DailyCountryRow struct {
	Date      string    `bigquery:"date"`
	Country   string    `bigquery:"country"`
	Trips     int       `bigquery:"trips"`
	GMV       float64   `bigquery:"gmv"`
	Watermark string    `bigquery:"watermark"`
	LoadedAt  time.Time `bigquery:"loaded_at"`
}
