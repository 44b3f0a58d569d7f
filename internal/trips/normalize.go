package trips

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/citymotion/tripfacts/pkg/errors"
)

// DropReason classifies why a row was excluded during normalization.
type DropReason string

const (
	DropBadFare      DropReason = "bad_fare"
	DropBadEventTime DropReason = "bad_event_time"
	DropBadRow       DropReason = "bad_row"
)

// Drop records one excluded row so dropped counts are observable without
// diffing collection sizes.
type Drop struct {
	File   string
	Record int
	Reason DropReason
}

var requiredColumns = []string{"trip_id", "rider_id", "fare", "event_time", "status", "ingestion_date"}

// Upstream emits a handful of timestamp shapes; layouts without an offset are
// taken as UTC.
var eventTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseFile decodes one trip CSV into events plus per-row drops. Individual
// malformed rows never abort the file; a missing required column or an
// unreadable header does, because every row would be unusable.
func ParseFile(name string, data []byte) ([]Event, []Drop, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeIO, fmt.Sprintf("%s: empty trip file", name))
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeIO, err, fmt.Sprintf("%s: reading header", name))
	}

	columns, err := columnIndex(name, header)
	if err != nil {
		return nil, nil, err
	}

	var (
		events []Event
		drops  []Drop
	)

	record := 0
	for {
		record++
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			drops = append(drops, Drop{File: name, Record: record, Reason: DropBadRow})
			continue
		}

		event, reason := parseRow(row, columns)
		if reason != "" {
			drops = append(drops, Drop{File: name, Record: record, Reason: reason})
			continue
		}
		events = append(events, event)
	}

	return events, drops, nil
}

func columnIndex(name string, header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, col := range header {
		columns[strings.TrimSpace(col)] = i
	}
	for _, col := range requiredColumns {
		if _, ok := columns[col]; !ok {
			return nil, pkgerrors.New(pkgerrors.CodeIO, fmt.Sprintf("%s: missing column %q", name, col))
		}
	}
	return columns, nil
}

func parseRow(row []string, columns map[string]int) (Event, DropReason) {
	cell := func(col string) (string, bool) {
		idx := columns[col]
		if idx >= len(row) {
			return "", false
		}
		return strings.TrimSpace(row[idx]), true
	}

	for _, col := range requiredColumns {
		if _, ok := cell(col); !ok {
			return Event{}, DropBadRow
		}
	}

	fareCell, _ := cell("fare")
	fare, err := decimal.NewFromString(fareCell)
	if err != nil || fareCell == "" {
		return Event{}, DropBadFare
	}

	timeCell, _ := cell("event_time")
	eventTime, ok := parseEventTime(timeCell)
	if !ok {
		return Event{}, DropBadEventTime
	}

	tripID, _ := cell("trip_id")
	riderID, _ := cell("rider_id")
	status, _ := cell("status")
	ingestionDate, _ := cell("ingestion_date")

	return Event{
		TripID:        tripID,
		RiderID:       riderID,
		EventTime:     eventTime,
		Fare:          fare,
		Status:        status,
		IngestionDate: ingestionDate,
	}, ""
}

func parseEventTime(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range eventTimeLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}
