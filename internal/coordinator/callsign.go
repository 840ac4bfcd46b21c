// ABOUTME: Callsign normalization and format validation
// ABOUTME: Accepts standard amateur-radio callsigns with optional prefix/suffix segments

package coordinator

import (
	"regexp"
	"strings"
)

// callsignPattern matches prefix (1-3 alphanumerics), separating digit,
// suffix letters, with optional portable designators like EA8/W1ABC or
// W1ABC/P.
var callsignPattern = regexp.MustCompile(`^([A-Z0-9]{1,3}/)?[A-Z0-9]{1,3}[0-9][A-Z]{1,4}(/[A-Z0-9]{1,4})?$`)

// NormalizeCallsign uppercases and trims a raw callsign string.
func NormalizeCallsign(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// ValidCallsign reports whether a normalized callsign matches the
// canonical amateur-radio pattern.
func ValidCallsign(callsign string) bool {
	return callsignPattern.MatchString(callsign)
}
