package vehicle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/citymotion/tripfacts/pkg/config"
	pkgerrors "github.com/citymotion/tripfacts/pkg/errors"
	"github.com/citymotion/tripfacts/pkg/logger"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(config.RDWConfig{Host: srv.URL, AppToken: "test-token"}, logger.New(logger.Options{ServiceName: "vehicle-test"}))
	client.sleep = func(time.Duration) {}
	return client, srv
}

func TestNormalizePlate(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"ab-123-c", "AB-123-C"},
		{"  XX99YY ", "XX99YY"},
		{"ab 123 c", "AB123C"},
	}
	for _, tt := range tests {
		if got := NormalizePlate(tt.in); got != tt.want {
			t.Fatalf("NormalizePlate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestValidPlate(t *testing.T) {
	valid := []string{"AB-123-C", "XX99YY", "1-ABC-23"}
	for _, p := range valid {
		if !ValidPlate(p) {
			t.Fatalf("expected %q to be valid", p)
		}
	}
	invalid := []string{"", "AB", "ABCDEFGHI", "ab-123-c", "AB_123C"}
	for _, p := range invalid {
		if ValidPlate(p) {
			t.Fatalf("expected %q to be invalid", p)
		}
	}
}

func TestLookupSuccess(t *testing.T) {
	var gotToken string
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-App-Token")
		switch {
		case r.URL.Path == "/resource/"+BaseDataset+".json":
			_ = json.NewEncoder(w).Encode([]map[string]any{{
				"kenteken":               "AB123C",
				"merk":                   "VOLKSWAGEN",
				"handelsbenaming":        "GOLF",
				"voertuigsoort":          "Personenauto",
				"datum_eerste_toelating": "20190415",
				"cilinderinhoud":         "1498",
			}})
		case r.URL.Path == "/resource/"+FuelDataset+".json":
			_ = json.NewEncoder(w).Encode([]map[string]any{{
				"nettomaximumvermogen":   "96",
				"brandstof_omschrijving": "Benzine",
			}})
		default:
			http.NotFound(w, r)
		}
	}))

	result, err := client.Lookup(context.Background(), "ab123c")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if gotToken != "test-token" {
		t.Fatalf("expected app token header, got %q", gotToken)
	}
	if result.Plate != "AB123C" {
		t.Fatalf("expected normalized plate AB123C, got %q", result.Plate)
	}
	if !result.Found() {
		t.Fatal("expected plate to be found")
	}
	if result.Normalized.Make == nil || *result.Normalized.Make != "VOLKSWAGEN" {
		t.Fatalf("unexpected make: %v", result.Normalized.Make)
	}
	if result.Normalized.Year == nil || *result.Normalized.Year != "2019" {
		t.Fatalf("expected year 2019, got %v", result.Normalized.Year)
	}
	if result.Normalized.Fuel == nil || *result.Normalized.Fuel != "Benzine" {
		t.Fatalf("unexpected fuel: %v", result.Normalized.Fuel)
	}
	if result.Normalized.DisplacementCC == nil || *result.Normalized.DisplacementCC != 1498 {
		t.Fatalf("unexpected displacement: %v", result.Normalized.DisplacementCC)
	}
	if result.Normalized.PowerKW == nil || *result.Normalized.PowerKW != 96 {
		t.Fatalf("unexpected power: %v", result.Normalized.PowerKW)
	}
	if len(result.SourceURLs) != 2 {
		t.Fatalf("expected two source urls, got %d", len(result.SourceURLs))
	}
}

func TestLookupInvalidPlate(t *testing.T) {
	client := NewClient(config.RDWConfig{Host: "http://localhost:0"}, logger.New(logger.Options{ServiceName: "vehicle-test"}))

	_, err := client.Lookup(context.Background(), "??")
	if err == nil {
		t.Fatal("expected error for invalid plate")
	}
	if got := pkgerrors.ExitStatusFor(err); got != 2 {
		t.Fatalf("invalid plate should exit 2, got %d", got)
	}
}

func TestLookupRetriesRateLimit(t *testing.T) {
	attempts := 0
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{})
	}))

	result, err := client.Lookup(context.Background(), "AB123C")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if attempts < 2 {
		t.Fatalf("expected a retry after 429, got %d attempts", attempts)
	}
	if result.Found() {
		t.Fatal("expected plate to be unknown")
	}
}

func TestLookupHTTPErrorExhaustsRetries(t *testing.T) {
	attempts := 0
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := client.Lookup(context.Background(), "AB123C")
	if err == nil {
		t.Fatal("expected error after repeated 500s")
	}
	if attempts != maxAttempts {
		t.Fatalf("expected %d attempts, got %d", maxAttempts, attempts)
	}
	if got := pkgerrors.ExitStatusFor(err); got != 3 {
		t.Fatalf("http failure should exit 3, got %d", got)
	}
}

func TestLookupClientError(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	_, err := client.Lookup(context.Background(), "AB123C")
	if err == nil {
		t.Fatal("expected error for 403")
	}
	if got := pkgerrors.ExitStatusFor(err); got != 3 {
		t.Fatalf("http failure should exit 3, got %d", got)
	}
}

func TestLookupNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	client := NewClient(config.RDWConfig{Host: srv.URL}, logger.New(logger.Options{ServiceName: "vehicle-test"}))
	client.sleep = func(time.Duration) {}

	_, err := client.Lookup(context.Background(), "AB123C")
	if err == nil {
		t.Fatal("expected error for unreachable host")
	}
	if got := pkgerrors.ExitStatusFor(err); got != 4 {
		t.Fatalf("network failure should exit 4, got %d", got)
	}
}

func TestBackoffFor(t *testing.T) {
	if got := backoffFor("5", 1); got != 5*time.Second {
		t.Fatalf("expected 5s from seconds value, got %v", got)
	}
	if got := backoffFor("", 2); got != 4*time.Second {
		t.Fatalf("expected 4s fallback, got %v", got)
	}
	when := time.Now().Add(-time.Minute).UTC().Format(http.TimeFormat)
	if got := backoffFor(when, 1); got != 0 {
		t.Fatalf("expected zero backoff for past date, got %v", got)
	}
}

func TestSaveArtifacts(t *testing.T) {
	dir := t.TempDir()
	result := &Result{
		Plate:  "AB-123-C",
		Source: "rdw",
		Base:   []map[string]any{{"merk": "VOLVO"}},
		Fuel:   []map[string]any{},
	}

	now := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	paths, err := SaveArtifacts(result, dir, now)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	want := []string{
		filepath.Join(dir, "rdw_raw_base_AB123C_20250601T123000Z.json"),
		filepath.Join(dir, "rdw_raw_fuel_AB123C_20250601T123000Z.json"),
		filepath.Join(dir, "rdw_normalized_AB123C_20250601T123000Z.json"),
	}
	for i, p := range want {
		if paths[i] != p {
			t.Fatalf("expected path %q, got %q", p, paths[i])
		}
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("artifact missing: %v", err)
		}
	}

	data, err := os.ReadFile(paths[2])
	if err != nil {
		t.Fatalf("reading normalized artifact: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("normalized artifact is not valid json: %v", err)
	}
	if decoded["plate"] != "AB-123-C" {
		t.Fatalf("unexpected plate in artifact: %v", decoded["plate"])
	}
}
