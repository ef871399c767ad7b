package entities

import "strings"

// reviewTargets maps every accepted spelling of a review's type to the kind it
// references.
var reviewTargets = map[string]string{
	"orden":       "orden",
	"order":       "orden",
	"restaurante": "restaurante",
	"restaurant":  "restaurante",
}

// NormalizeReviewType returns the canonical review type ("orden" or
// "restaurante"). Unknown values are returned trimmed so validation can
// report them as given.
func NormalizeReviewType(s string) string {
	s = strings.TrimSpace(s)
	if canonical, ok := reviewTargets[strings.ToLower(s)]; ok {
		return canonical
	}
	return s
}

// NormalizeEmail lowercases an address so the unique index on correo treats
// case variants as the same user.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
