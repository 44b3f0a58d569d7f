package trips

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func mustDecimal(t *testing.T, value string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(value)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", value, err)
	}
	return d
}

func testEvent(tripID, riderID string, eventTime time.Time, fare, status, date string) Event {
	return Event{
		TripID:        tripID,
		RiderID:       riderID,
		EventTime:     eventTime,
		Fare:          decimal.RequireFromString(fare),
		Status:        status,
		IngestionDate: date,
	}
}
