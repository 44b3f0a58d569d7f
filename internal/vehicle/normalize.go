package vehicle

import (
	"strconv"
	"strings"
)

// Info is the normalized view of an RDW vehicle record. Fields are pointers
// so absent source columns stay null in the JSON artifact.
type Info struct {
	Make           *string  `json:"make"`
	Model          *string  `json:"model"`
	Type           *string  `json:"type"`
	Year           *string  `json:"year"`
	DisplacementCC *int     `json:"displacement_cc"`
	PowerKW        *float64 `json:"power_kw"`
	Fuel           *string  `json:"fuel"`
}

// Normalize flattens the first record of each dataset into an Info. RDW keys
// the base and fuel datasets on kenteken, so multiple records only occur for
// multi-fuel vehicles; we take the first row like the public portal does.
func Normalize(base, fuel []map[string]any) Info {
	var info Info
	if len(base) > 0 {
		rec := base[0]
		info.Make = field(rec, "merk")
		info.Model = field(rec, "handelsbenaming")
		info.Type = field(rec, "voertuigsoort")
		info.Year = yearOf(rec, "datum_eerste_toelating")
		info.DisplacementCC = intField(rec, "cilinderinhoud")
	}
	if len(fuel) > 0 {
		rec := fuel[0]
		info.PowerKW = floatField(rec, "nettomaximumvermogen")
		info.Fuel = field(rec, "brandstof_omschrijving")
	}
	return info
}

func field(rec map[string]any, key string) *string {
	raw, ok := rec[key]
	if !ok {
		return nil
	}
	value, ok := raw.(string)
	if !ok {
		return nil
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

// intField parses an RDW numeric column, delivered as a string.
func intField(rec map[string]any, key string) *int {
	value := field(rec, key)
	if value == nil {
		return nil
	}
	n, err := strconv.Atoi(*value)
	if err != nil {
		return nil
	}
	return &n
}

func floatField(rec map[string]any, key string) *float64 {
	value := field(rec, key)
	if value == nil {
		return nil
	}
	f, err := strconv.ParseFloat(*value, 64)
	if err != nil {
		return nil
	}
	return &f
}

// yearOf extracts the year from an RDW date column (YYYYMMDD).
func yearOf(rec map[string]any, key string) *string {
	value := field(rec, key)
	if value == nil || len(*value) < 4 {
		return value
	}
	year := (*value)[:4]
	return &year
}
