package pipeline

import (
	"reflect"
	"testing"
)

func TestSelectSources(t *testing.T) {
	names := []string{
		"trips_2025-03-03.csv",
		"trips_2025-03-01.csv",
		"trips_2025-03-02.csv",
		"trips_2025-03-04.csv",
	}

	got := SelectSources(names, "2025-03-02")
	want := []string{"trips_2025-03-01.csv", "trips_2025-03-02.csv"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestSelectSourcesIgnoresForeignNames(t *testing.T) {
	names := []string{
		"riders.jsonl",
		"trips_2025-03-01.json",
		"notes.txt",
		"trips_.csv",
		"trips_2025-03-01.csv",
	}

	got := SelectSources(names, "2025-03-09")
	want := []string{"trips_2025-03-01.csv"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestSelectSourcesWatermarkInclusive(t *testing.T) {
	got := SelectSources([]string{"trips_2025-03-02.csv"}, "2025-03-02")
	if len(got) != 1 {
		t.Fatalf("watermark bound is inclusive, got %v", got)
	}
}

func TestSelectSourcesEmpty(t *testing.T) {
	if got := SelectSources([]string{"trips_2025-03-05.csv"}, "2025-03-02"); len(got) != 0 {
		t.Fatalf("expected empty selection, got %v", got)
	}
	if got := SelectSources(nil, "2025-03-02"); len(got) != 0 {
		t.Fatalf("expected empty selection for no names, got %v", got)
	}
}

func TestSelectSourcesMultiUnderscoreStem(t *testing.T) {
	// The date token is the last underscore-delimited segment of the stem.
	got := SelectSources([]string{"trips_batch_2025-03-01.csv"}, "2025-03-02")
	if len(got) != 1 {
		t.Fatalf("expected multi-underscore stem admitted, got %v", got)
	}
}
