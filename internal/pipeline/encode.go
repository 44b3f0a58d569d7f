package pipeline

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"time"

	pkgerrors "github.com/citymotion/tripfacts/pkg/errors"

	"github.com/citymotion/tripfacts/internal/aggregate"
	"github.com/citymotion/tripfacts/internal/trips"
)

var factsHeader = []string{"trip_id", "rider_id", "event_time", "fare", "status", "ingestion_date", "country"}

func encodeFacts(rows []trips.Enriched) ([]byte, error) {
	records := make([][]string, 0, len(rows)+1)
	records = append(records, factsHeader)
	for _, row := range rows {
		records = append(records, []string{
			row.TripID,
			row.RiderID,
			row.EventTime.UTC().Format(time.RFC3339),
			row.Fare.String(),
			row.Status,
			row.IngestionDate,
			row.Country,
		})
	}
	return encodeCSV(records)
}

func encodeDaily(rows []aggregate.Daily) ([]byte, error) {
	records := make([][]string, 0, len(rows)+1)
	records = append(records, []string{"date", "total_trips", "completed_trips", "avg_fare"})
	for _, row := range rows {
		records = append(records, []string{
			row.Date,
			strconv.Itoa(row.TotalTrips),
			strconv.Itoa(row.CompletedTrips),
			row.AvgFare.StringFixed(2),
		})
	}
	return encodeCSV(records)
}

func encodeDailyCountry(rows []aggregate.DailyCountry) ([]byte, error) {
	records := make([][]string, 0, len(rows)+1)
	records = append(records, []string{"date", "country", "trips", "gmv"})
	for _, row := range rows {
		records = append(records, []string{
			row.Date,
			row.Country,
			strconv.Itoa(row.Trips),
			row.GMV.StringFixed(2),
		})
	}
	return encodeCSV(records)
}

func encodeCSV(records [][]string) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.WriteAll(records); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeIO, err, "encoding csv")
	}
	return buf.Bytes(), nil
}
