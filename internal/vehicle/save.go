package vehicle

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	pkgerrors "github.com/citymotion/tripfacts/pkg/errors"
)

const artifactTimeFormat = "20060102T150405Z"

// SaveArtifacts writes the raw dataset payloads and the normalized summary as
// timestamped JSON files under dir, returning the written paths.
func SaveArtifacts(result *Result, dir string, now time.Time) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeIO, err, "creating artifact dir")
	}

	stamp := now.UTC().Format(artifactTimeFormat)
	plate := strings.ReplaceAll(result.Plate, "-", "")

	files := []struct {
		name    string
		payload any
	}{
		{"rdw_raw_base_" + plate + "_" + stamp + ".json", result.Base},
		{"rdw_raw_fuel_" + plate + "_" + stamp + ".json", result.Fuel},
		{"rdw_normalized_" + plate + "_" + stamp + ".json", result},
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		data, err := json.MarshalIndent(f.payload, "", "  ")
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding artifact")
		}
		path := filepath.Join(dir, f.name)
		if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeIO, err, "writing artifact")
		}
		paths = append(paths, path)
	}
	return paths, nil
}
