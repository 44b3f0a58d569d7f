package warehouse

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"google.golang.org/api/googleapi"

	"github.com/citymotion/tripfacts/internal/aggregate"
	pkgbigquery "github.com/citymotion/tripfacts/pkg/bigquery"
	"github.com/shopspring/decimal"
)

type insertCall struct {
	table    string
	rowCount int
}

type fakeInserter struct {
	calls     []insertCall
	responses []error
}

func (f *fakeInserter) InsertRows(_ context.Context, table string, rows []any) error {
	f.calls = append(f.calls, insertCall{table: table, rowCount: len(rows)})
	if len(f.responses) == 0 {
		return nil
	}
	err := f.responses[0]
	f.responses = f.responses[1:]
	return err
}

func newTestExporter(fake *fakeInserter) *Exporter {
	return &Exporter{
		client:            fake,
		dailyTable:        "daily_trips",
		dailyCountryTable: "daily_country_trips",
		retry: RetryPolicy{
			MaxAttempts:    3,
			InitialBackoff: time.Millisecond,
			MaximumBackoff: 2 * time.Millisecond,
		},
		now: func() time.Time { return time.Date(2025, 3, 2, 12, 0, 0, 0, time.UTC) },
	}
}

func sampleAggregates() ([]aggregate.Daily, []aggregate.DailyCountry) {
	daily := []aggregate.Daily{{
		Date:           "2025-03-01",
		TotalTrips:     2,
		CompletedTrips: 1,
		AvgFare:        decimal.RequireFromString("7.50"),
	}}
	country := []aggregate.DailyCountry{{
		Date:    "2025-03-01",
		Country: "NL",
		Trips:   2,
		GMV:     decimal.RequireFromString("15.00"),
	}}
	return daily, country
}

func TestNewExporterValidation(t *testing.T) {
	if _, err := New(nil, Config{DailyTable: "a", DailyCountryTable: "b"}); err == nil {
		t.Fatal("expected error when client missing")
	}
	if _, err := New(&pkgbigquery.Client{}, Config{DailyTable: " ", DailyCountryTable: "b"}); err == nil {
		t.Fatal("expected error when daily table missing")
	}
	if _, err := New(&pkgbigquery.Client{}, Config{DailyTable: "a", DailyCountryTable: ""}); err == nil {
		t.Fatal("expected error when country table missing")
	}
}

func TestExportInsertsBothViews(t *testing.T) {
	fake := &fakeInserter{}
	exporter := newTestExporter(fake)
	daily, country := sampleAggregates()

	if err := exporter.Export(context.Background(), "2025-03-02", daily, country); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.calls) != 2 {
		t.Fatalf("expected 2 inserts, got %d", len(fake.calls))
	}
	if fake.calls[0].table != "daily_trips" || fake.calls[0].rowCount != 1 {
		t.Fatalf("unexpected first insert: %+v", fake.calls[0])
	}
	if fake.calls[1].table != "daily_country_trips" || fake.calls[1].rowCount != 1 {
		t.Fatalf("unexpected second insert: %+v", fake.calls[1])
	}
}

func TestExportRetriesOnTransientError(t *testing.T) {
	fake := &fakeInserter{responses: []error{
		&googleapi.Error{Code: http.StatusServiceUnavailable},
		nil,
		nil,
	}}
	exporter := newTestExporter(fake)
	daily, country := sampleAggregates()

	if err := exporter.Export(context.Background(), "2025-03-02", daily, country); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.calls) != 3 {
		t.Fatalf("expected retry then both inserts, got %d calls", len(fake.calls))
	}
}

func TestExportPermanentErrorFails(t *testing.T) {
	fake := &fakeInserter{responses: []error{
		&googleapi.Error{Code: http.StatusBadRequest},
	}}
	exporter := newTestExporter(fake)
	daily, country := sampleAggregates()

	if err := exporter.Export(context.Background(), "2025-03-02", daily, country); err == nil {
		t.Fatal("expected permanent error to propagate")
	}
	if len(fake.calls) != 1 {
		t.Fatalf("expected no retry on permanent error, got %d calls", len(fake.calls))
	}
}

func TestExportGivesUpAfterMaxAttempts(t *testing.T) {
	transient := &googleapi.Error{Code: http.StatusServiceUnavailable}
	fake := &fakeInserter{responses: []error{transient, transient, transient}}
	exporter := newTestExporter(fake)
	daily, country := sampleAggregates()

	err := exporter.Export(context.Background(), "2025-03-02", daily, country)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if len(fake.calls) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(fake.calls))
	}
}

func TestExportEmptyAggregatesNoInserts(t *testing.T) {
	fake := &fakeInserter{}
	exporter := newTestExporter(fake)

	if err := exporter.Export(context.Background(), "2025-03-02", nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.calls) != 0 {
		t.Fatalf("expected no inserts for empty aggregates, got %d", len(fake.calls))
	}
}

func TestIsRetryableBigQueryError(t *testing.T) {
	if isRetryableBigQueryError(nil) {
		t.Fatal("nil is not retryable")
	}
	if isRetryableBigQueryError(errors.New("boom")) {
		t.Fatal("generic errors are not retryable")
	}
	if !isRetryableBigQueryError(&googleapi.Error{Code: http.StatusTooManyRequests}) {
		t.Fatal("429 should be retryable")
	}
	if isRetryableBigQueryError(&googleapi.Error{Code: http.StatusForbidden}) {
		t.Fatal("403 should not be retryable")
	}
}
