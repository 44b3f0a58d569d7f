// Package warehouse exports the aggregate views to BigQuery after the file
// outputs have landed, so analytics consumers can query them without touching
// the output directory.
package warehouse

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/citymotion/tripfacts/internal/aggregate"
	pkgbigquery "github.com/citymotion/tripfacts/pkg/bigquery"
)

const (
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 250 * time.Millisecond
	defaultMaximumBackoff = 2 * time.Second
)

// Config controls exporter behavior.
type Config struct {
	DailyTable        string
	DailyCountryTable string
	RetryPolicy       RetryPolicy
}

// RetryPolicy controls how many times BigQuery inserts are retried.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// Exporter inserts aggregate rows into BigQuery with bounded retries on
// transient failures.
type Exporter struct {
	client            tableInserter
	dailyTable        string
	dailyCountryTable string
	retry             RetryPolicy
	now               func() time.Time
}

// New creates an Exporter backed by the shared BigQuery client.
func New(client *pkgbigquery.Client, cfg Config) (*Exporter, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	daily := strings.TrimSpace(cfg.DailyTable)
	if daily == "" {
		return nil, errors.New("daily table is required")
	}
	country := strings.TrimSpace(cfg.DailyCountryTable)
	if country == "" {
		return nil, errors.New("daily country table is required")
	}

	retry := cfg.RetryPolicy
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = defaultMaxAttempts
	}
	if retry.InitialBackoff <= 0 {
		retry.InitialBackoff = defaultInitialBackoff
	}
	if retry.MaximumBackoff <= 0 {
		retry.MaximumBackoff = defaultMaximumBackoff
	}
	if retry.MaximumBackoff < retry.InitialBackoff {
		retry.MaximumBackoff = retry.InitialBackoff
	}

	return &Exporter{
		client:            client,
		dailyTable:        daily,
		dailyCountryTable: country,
		retry:             retry,
		now:               time.Now,
	}, nil
}

// Export inserts both aggregate views for one run.
func (e *Exporter) Export(ctx context.Context, watermark string, daily []aggregate.Daily, country []aggregate.DailyCountry) error {
	loadedAt := e.now().UTC()

	dailyRows := make([]any, 0, len(daily))
	for _, row := range daily {
		dailyRows = append(dailyRows, &DailyRow{
			Date:           row.Date,
			TotalTrips:     row.TotalTrips,
			CompletedTrips: row.CompletedTrips,
			AvgFare:        row.AvgFare.InexactFloat64(),
			Watermark:      watermark,
			LoadedAt:       loadedAt,
		})
	}
	if err := e.insertWithRetry(ctx, e.dailyTable, dailyRows); err != nil {
		return err
	}

	countryRows := make([]any, 0, len(country))
	for _, row := range country {
		countryRows = append(countryRows, &DailyCountryRow{
			Date:      row.Date,
			Country:   row.Country,
			Trips:     row.Trips,
			GMV:       row.GMV.InexactFloat64(),
			Watermark: watermark,
			LoadedAt:  loadedAt,
		})
	}
	return e.insertWithRetry(ctx, e.dailyCountryTable, countryRows)
}

func (e *Exporter) insertWithRetry(ctx context.Context, table string, rows []any) error {
	if len(rows) == 0 {
		return nil
	}

	attempts := 0
	backoff := e.retry.InitialBackoff

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := e.client.InsertRows(ctx, table, rows)
		if err == nil {
			return nil
		}

		attempts++
		if attempts >= e.retry.MaxAttempts || !isRetryableBigQueryError(err) {
			return fmt.Errorf("insert %s rows: %w", table, err)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		timer.Stop()

		backoff = minDuration(backoff*2, e.retry.MaximumBackoff)
	}
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

func isRetryableBigQueryError(err error) bool {
	if err == nil {
		return false
	}

	var multi *cbigquery.MultiError
	if errors.As(err, &multi) {
		if multi == nil || len(*multi) == 0 {
			return false
		}
		for _, inner := range *multi {
			if !isRetryableBigQueryError(inner) {
				return false
			}
		}
		return true
	}

	var pme *cbigquery.PutMultiError
	if errors.As(err, &pme) {
		if pme == nil || len(*pme) == 0 {
			return false
		}
		for _, rowErr := range *pme {
			if !isRetryableBigQueryError(rowErr.Errors) {
				return false
			}
		}
		return true
	}

	var rowErr *cbigquery.RowInsertionError
	if errors.As(err, &rowErr) {
		if rowErr == nil || len(rowErr.Errors) == 0 {
			return false
		}
		for _, inner := range rowErr.Errors {
			if !isRetryableBigQueryError(inner) {
				return false
			}
		}
		return true
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return isRetryableHTTPCode(apiErr.Code)
	}

	var statusErr interface{ GRPCStatus() *status.Status }
	if errors.As(err, &statusErr) {
		if st := statusErr.GRPCStatus(); st != nil {
			return isRetryableGRPCCode(st.Code())
		}
	}

	return false
}

func isRetryableHTTPCode(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusRequestTimeout,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func isRetryableGRPCCode(code codes.Code) bool {
	switch code {
	case codes.Aborted,
		codes.DeadlineExceeded,
		codes.Internal,
		codes.ResourceExhausted,
		codes.Unavailable:
		return true
	default:
		return false
	}
}
