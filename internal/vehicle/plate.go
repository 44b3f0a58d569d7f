// Package vehicle is a stateless lookup over the Dutch RDW open-data API
// (Socrata/SODA): given an NL license plate it returns a normalized vehicle
// record assembled from the base and fuel datasets.
package vehicle

import (
	"regexp"
	"strings"
)

var (
	platePattern      = regexp.MustCompile(`^[A-Z0-9-]{5,8}$`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// NormalizePlate strips whitespace and uppercases the input.
func NormalizePlate(text string) string {
	return strings.ToUpper(whitespacePattern.ReplaceAllString(text, ""))
}

// ValidPlate reports whether a normalized plate has a plausible NL format.
func ValidPlate(plate string) bool {
	return platePattern.MatchString(plate)
}
