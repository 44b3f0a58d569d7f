package trips

import (
	"testing"
	"time"
)

func TestDedupeLatestKeepsMaxEventTime(t *testing.T) {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	events := []Event{
		testEvent("T1", "R1", base.Add(30*time.Minute), "12.00", "completed", "2025-03-01"),
		testEvent("T1", "R1", base, "10.00", "requested", "2025-03-01"),
		testEvent("T2", "R2", base.Add(5*time.Minute), "7.50", "completed", "2025-03-01"),
	}

	latest := DedupeLatest(events)
	if len(latest) != 2 {
		t.Fatalf("expected 2 trips, got %d", len(latest))
	}

	byTrip := map[string]Event{}
	for _, event := range latest {
		byTrip[event.TripID] = event
	}
	t1, ok := byTrip["T1"]
	if !ok {
		t.Fatal("T1 missing from deduped output")
	}
	if t1.Status != "completed" || !t1.Fare.Equal(mustDecimal(t, "12.00")) {
		t.Fatalf("expected latest T1 version, got %+v", t1)
	}
	if !t1.EventTime.Equal(base.Add(30 * time.Minute)) {
		t.Fatalf("expected max event time, got %s", t1.EventTime)
	}
}

func TestDedupeLatestOutputSortedByEventTime(t *testing.T) {
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	events := []Event{
		testEvent("T3", "R3", base.Add(2*time.Hour), "3.00", "completed", "2025-03-01"),
		testEvent("T1", "R1", base, "1.00", "completed", "2025-03-01"),
		testEvent("T2", "R2", base.Add(time.Hour), "2.00", "completed", "2025-03-01"),
	}

	latest := DedupeLatest(events)
	if len(latest) != 3 {
		t.Fatalf("expected 3 trips, got %d", len(latest))
	}
	for i := 1; i < len(latest); i++ {
		if latest[i].EventTime.Before(latest[i-1].EventTime) {
			t.Fatalf("output not sorted by event time: %+v", latest)
		}
	}
}

func TestDedupeLatestEqualTimestampsLastInputWins(t *testing.T) {
	ts := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	events := []Event{
		testEvent("T1", "R1", ts, "10.00", "requested", "2025-03-01"),
		testEvent("T1", "R1", ts, "11.00", "completed", "2025-03-01"),
	}

	latest := DedupeLatest(events)
	if len(latest) != 1 {
		t.Fatalf("expected 1 trip, got %d", len(latest))
	}
	if !latest[0].Fare.Equal(mustDecimal(t, "11.00")) {
		t.Fatalf("expected later input row to win the tie, got %+v", latest[0])
	}
}

func TestDedupeLatestEmpty(t *testing.T) {
	if out := DedupeLatest(nil); out != nil {
		t.Fatalf("expected nil for empty input, got %+v", out)
	}
}
