package vehicle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/citymotion/tripfacts/pkg/config"
	pkgerrors "github.com/citymotion/tripfacts/pkg/errors"
	"github.com/citymotion/tripfacts/pkg/logger"
)

// RDW dataset identifiers.
const (
	BaseDataset = "m9d7-ebf2" // Gekentekende_voertuigen
	FuelDataset = "8ys7-d773" // Gekentekende_voertuigen_brandstof
)

const (
	defaultTimeout = 10 * time.Second
	maxAttempts    = 3
)

// Client queries the RDW SODA API.
type Client struct {
	host     string
	appToken string
	http     *http.Client
	logg     *logger.Logger
	sleep    func(time.Duration)
}

// NewClient builds an RDW client from configuration. The app token is
// optional; without it the API still answers under stricter rate limits.
func NewClient(cfg config.RDWConfig, logg *logger.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	host := strings.TrimRight(cfg.Host, "/")
	if host == "" {
		host = "https://opendata.rdw.nl"
	}
	return &Client{
		host:     host,
		appToken: cfg.AppToken,
		http:     &http.Client{Timeout: timeout},
		logg:     logg,
		sleep:    time.Sleep,
	}
}

// SourceURL renders the public dataset URL for a plate.
func (c *Client) SourceURL(dataset, plate string) string {
	return fmt.Sprintf("%s/resource/%s.json?kenteken=%s", c.host, dataset, url.QueryEscape(plate))
}

// fetch retrieves the dataset records for a plate, retrying 429/5xx and
// network failures with Retry-After awareness.
func (c *Client) fetch(ctx context.Context, dataset, plate string) ([]map[string]any, error) {
	reqURL := c.SourceURL(dataset, plate)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, "rdw request canceled")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building rdw request")
		}
		req.Header.Set("Accept", "application/json")
		if c.appToken != "" {
			req.Header.Set("X-App-Token", c.appToken)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = pkgerrors.Wrap(pkgerrors.CodeUnavailable, err, fmt.Sprintf("rdw %s unreachable", dataset))
			c.warnRetry(ctx, dataset, attempt, lastErr)
			c.sleep(time.Duration(attempt) * time.Second)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			retryAfter := resp.Header.Get("Retry-After")
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			lastErr = pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("rdw %s returned http %d", dataset, resp.StatusCode))
			c.warnRetry(ctx, dataset, attempt, lastErr)
			c.sleep(backoffFor(retryAfter, attempt))
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			snippet := string(body)
			if len(snippet) > 300 {
				snippet = snippet[:300]
			}
			return nil, pkgerrors.New(pkgerrors.CodeDependency,
				fmt.Sprintf("rdw %s returned http %d: %s", dataset, resp.StatusCode, snippet))
		}
		if readErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeUnavailable, readErr, "reading rdw response")
		}

		var records []map[string]any
		if err := json.Unmarshal(body, &records); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding rdw response")
		}
		return records, nil
	}

	return nil, lastErr
}

func (c *Client) warnRetry(ctx context.Context, dataset string, attempt int, err error) {
	if c.logg == nil || attempt >= maxAttempts {
		return
	}
	ctx = c.logg.WithFields(ctx, map[string]any{
		"dataset": dataset,
		"attempt": attempt,
		"error":   err.Error(),
	})
	c.logg.Warn(ctx, "rdw request failed; retrying")
}

// backoffFor honors a Retry-After header (seconds or HTTP-date), falling back
// to linear backoff.
func backoffFor(retryAfter string, attempt int) time.Duration {
	fallback := time.Duration(2*attempt) * time.Second
	value := strings.TrimSpace(retryAfter)
	if value == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(value); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		if d := time.Until(when); d > 0 {
			return d
		}
		return 0
	}
	return fallback
}
