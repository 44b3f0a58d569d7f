package trips

import (
	"testing"
	"time"
)

func TestParseFile(t *testing.T) {
	data := []byte(`trip_id,rider_id,fare,event_time,status,ingestion_date
T1,R1,10.00,2025-03-01T09:00:00Z,requested,2025-03-01
T2,R2,7.50,2025-03-01 10:15:00,completed,2025-03-01
`)

	events, drops, err := ParseFile("trips_2025-03-01.csv", data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(drops) != 0 {
		t.Fatalf("expected no drops, got %+v", drops)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	if events[0].TripID != "T1" || events[0].RiderID != "R1" {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	if !events[0].Fare.Equal(mustDecimal(t, "10.00")) {
		t.Fatalf("unexpected fare: %s", events[0].Fare)
	}
	want := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	if !events[0].EventTime.Equal(want) {
		t.Fatalf("unexpected event time: %s", events[0].EventTime)
	}

	// Naive timestamps are taken as UTC.
	want = time.Date(2025, 3, 1, 10, 15, 0, 0, time.UTC)
	if !events[1].EventTime.Equal(want) {
		t.Fatalf("unexpected naive event time: %s", events[1].EventTime)
	}
}

func TestParseFileDropsBadRows(t *testing.T) {
	data := []byte(`trip_id,rider_id,fare,event_time,status,ingestion_date
T1,R1,not-a-fare,2025-03-01T09:00:00Z,requested,2025-03-01
T2,R2,8.00,yesterday,completed,2025-03-01
T3,R3
T4,R4,9.25,2025-03-01T11:00:00Z,completed,2025-03-01
`)

	events, drops, err := ParseFile("trips_2025-03-01.csv", data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 surviving event, got %d", len(events))
	}
	if events[0].TripID != "T4" {
		t.Fatalf("expected T4 to survive, got %s", events[0].TripID)
	}

	if len(drops) != 3 {
		t.Fatalf("expected 3 drops, got %d: %+v", len(drops), drops)
	}
	byReason := map[DropReason]int{}
	for _, drop := range drops {
		byReason[drop.Reason]++
		if drop.File != "trips_2025-03-01.csv" {
			t.Fatalf("drop missing file name: %+v", drop)
		}
	}
	if byReason[DropBadFare] != 1 || byReason[DropBadEventTime] != 1 || byReason[DropBadRow] != 1 {
		t.Fatalf("unexpected drop reasons: %+v", byReason)
	}
}

func TestParseFileExtraColumnsIgnored(t *testing.T) {
	data := []byte(`trip_id,rider_id,fare,event_time,status,ingestion_date,city
T1,R1,10.00,2025-03-01T09:00:00Z,requested,2025-03-01,Amsterdam
`)

	events, drops, err := ParseFile("trips_2025-03-01.csv", data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || len(drops) != 0 {
		t.Fatalf("expected 1 event and no drops, got %d/%d", len(events), len(drops))
	}
}

func TestParseFileMissingColumnIsFatal(t *testing.T) {
	data := []byte(`trip_id,rider_id,fare,status,ingestion_date
T1,R1,10.00,requested,2025-03-01
`)

	if _, _, err := ParseFile("trips_2025-03-01.csv", data); err == nil {
		t.Fatal("expected error for missing event_time column")
	}
}

func TestParseFileEmptyIsFatal(t *testing.T) {
	if _, _, err := ParseFile("trips_2025-03-01.csv", nil); err == nil {
		t.Fatal("expected error for empty file")
	}
}
