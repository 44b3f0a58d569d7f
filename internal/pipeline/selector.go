package pipeline

import (
	"path"
	"sort"
	"strings"
)

const (
	sourcePrefix = "trips_"
	sourceExt    = ".csv"
)

// SelectSources filters a directory listing down to the trip files admitted
// by the watermark: names shaped trips_<token>.csv whose token (the last
// underscore-delimited segment of the stem) is lexicographically <= the
// watermark. The result is sorted ascending so downstream concatenation order
// is deterministic. Nothing qualifying is not an error.
func SelectSources(names []string, watermark string) []string {
	var selected []string
	for _, name := range names {
		token, ok := dateToken(name)
		if !ok {
			continue
		}
		if token <= watermark {
			selected = append(selected, name)
		}
	}
	sort.Strings(selected)
	return selected
}

func dateToken(name string) (string, bool) {
	if path.Ext(name) != sourceExt {
		return "", false
	}
	stem := strings.TrimSuffix(path.Base(name), sourceExt)
	if !strings.HasPrefix(stem, sourcePrefix) {
		return "", false
	}
	idx := strings.LastIndex(stem, "_")
	token := stem[idx+1:]
	if token == "" {
		return "", false
	}
	return token, true
}
