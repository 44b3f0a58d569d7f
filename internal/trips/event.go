// Package trips holds the trip event model and the row-level pipeline stages:
// normalization, last-write-wins deduplication and dimension enrichment.
package trips

import (
	"time"

	"github.com/shopspring/decimal"
)

// UnknownCountry is the sentinel filled in when a trip's rider has no
// dimension record.
const UnknownCountry = "UNK"

// StatusCompleted is the terminal trip status counted by the daily aggregate.
const StatusCompleted = "completed"

// Event is one observed state of a trip. Multiple events may share a TripID
// when upstream emits corrections; deduplication keeps the latest one.
type Event struct {
	TripID        string
	RiderID       string
	EventTime     time.Time
	Fare          decimal.Decimal
	Status        string
	IngestionDate string
}

// Enriched is the canonical fact row: the latest event per trip joined with
// the rider dimension. Country is never empty, UnknownCountry at worst.
type Enriched struct {
	Event
	Country string
}
