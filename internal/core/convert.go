package core

// convert.go turns raw CSV cells into the values persisted in documents.
//
// Cells arrive trimmed and UTF-8 clean from the Reader. Parsers here still
// tolerate the usual spreadsheet noise:
//   - Excel formula prefixes (="value") and stray surrounding quotes
//   - Currency symbols and thousands separators in numbers
//   - Several boolean spellings (true/false, yes/no, t/f, y/n, 1/0)
//
// Dates are only accepted with a four digit year; two digit years are
// ambiguous and the generator never writes them.

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02",
}

// CleanCell removes common CSV artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.Trim(s, `"'`)
}

// ParseDate parses a date or date-time and returns it in UTC.
func ParseDate(s string) (time.Time, error) {
	s = CleanCell(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.Errorf("invalid date %q, expected YYYY-MM-DD", s)
}

// ParseFloat parses a decimal number. Currency symbols, thousands separators
// and accounting negatives "(12.50)" are accepted.
func ParseFloat(s string) (float64, error) {
	s = CleanCell(s)

	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.NewReplacer("$", "", "€", "", "£", "", ",", "").Replace(s)
	s = strings.TrimSpace(s)
	if isNegative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return 0, errors.Errorf("invalid number %q", s)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, errors.Errorf("invalid number %q", s)
	}
	return f, nil
}

// ParseInt parses a whole number. "3.0" is accepted, "3.5" is not.
func ParseInt(s string) (int64, error) {
	s = CleanCell(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	f, err := ParseFloat(s)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt64 {
		return 0, errors.Errorf("invalid integer %q", s)
	}
	return int64(f), nil
}

// ParseBool accepts true/false, yes/no, t/f, y/n, 1/0 in any case.
func ParseBool(s string) (bool, error) {
	switch strings.ToLower(CleanCell(s)) {
	case "true", "t", "yes", "y", "1":
		return true, nil
	case "false", "f", "no", "n", "0":
		return false, nil
	default:
		return false, errors.Errorf("invalid boolean %q", s)
	}
}

// SplitList splits s on sep, trimming entries and dropping empty ones. The
// result is never nil so it persists as an empty array.
func SplitList(s, sep string) []string {
	out := []string{}
	for _, part := range strings.Split(s, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// matchEnum returns the allowed value equal to s ignoring case.
func matchEnum(s string, allowed []string) (string, bool) {
	for _, v := range allowed {
		if strings.EqualFold(s, v) {
			return v, true
		}
	}
	return "", false
}
