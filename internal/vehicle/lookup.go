package vehicle

import (
	"context"
	"fmt"
	"time"

	pkgerrors "github.com/citymotion/tripfacts/pkg/errors"
)

// Result carries one completed lookup: the raw dataset records plus the
// normalized summary.
type Result struct {
	Plate      string           `json:"plate"`
	Source     string           `json:"source"`
	LatencyMS  int64            `json:"latency_ms"`
	Normalized Info             `json:"normalized"`
	SourceURLs []string         `json:"source_urls"`
	Base       []map[string]any `json:"-"`
	Fuel       []map[string]any `json:"-"`
}

// Lookup validates the plate and fetches both RDW datasets for it.
func (c *Client) Lookup(ctx context.Context, plate string) (*Result, error) {
	plate = NormalizePlate(plate)
	if !ValidPlate(plate) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("invalid plate %q: expected 5-8 chars of A-Z, 0-9 or dash", plate))
	}

	start := time.Now()

	base, err := c.fetch(ctx, BaseDataset, plate)
	if err != nil {
		return nil, err
	}
	fuel, err := c.fetch(ctx, FuelDataset, plate)
	if err != nil {
		return nil, err
	}

	return &Result{
		Plate:      plate,
		Source:     "rdw",
		LatencyMS:  time.Since(start).Milliseconds(),
		Normalized: Normalize(base, fuel),
		SourceURLs: []string{
			c.SourceURL(BaseDataset, plate),
			c.SourceURL(FuelDataset, plate),
		},
		Base: base,
		Fuel: fuel,
	}, nil
}

// Found reports whether the base dataset knows the plate.
func (r *Result) Found() bool {
	return len(r.Base) > 0
}
