package trips

import "sort"

// DedupeLatest collapses the event collection to exactly one row per TripID:
// the row with the maximum EventTime. The sort is stable, so events sharing an
// identical EventTime resolve to whichever appeared later in the input — input
// order is deterministic (sorted file names, preserved row order), which makes
// the tiebreak deterministic too. The result stays in EventTime-ascending order.
func DedupeLatest(events []Event) []Event {
	if len(events) == 0 {
		return nil
	}

	sorted := make([]Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EventTime.Before(sorted[j].EventTime)
	})

	lastIndex := make(map[string]int, len(sorted))
	for i, event := range sorted {
		lastIndex[event.TripID] = i
	}

	latest := make([]Event, 0, len(lastIndex))
	for i, event := range sorted {
		if lastIndex[event.TripID] == i {
			latest = append(latest, event)
		}
	}
	return latest
}
