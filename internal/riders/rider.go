package riders

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"

	pkgerrors "github.com/citymotion/tripfacts/pkg/errors"
)

// Rider is one row of the rider dimension. The upstream feed carries more
// descriptive attributes per rider; only the join key and country are consumed.
type Rider struct {
	RiderID string `json:"rider_id"`
	Country string `json:"country"`
}

// Parse decodes a JSON-lines dimension file. Blank lines are skipped; a
// malformed line is fatal because a partially loaded dimension would silently
// mislabel enriched rows.
func Parse(data []byte) ([]Rider, error) {
	var rows []Rider

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var rider Rider
		if err := json.Unmarshal(raw, &rider); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeIO, err, fmt.Sprintf("dimension line %d", line))
		}
		rows = append(rows, rider)
	}
	if err := scanner.Err(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeIO, err, "scanning dimension file")
	}

	return rows, nil
}
