package util

import (
	"regexp"
	"strings"
)

var codeRegex = regexp.MustCompile(`^[A-Z0-9]{3,8}$`)

// NormalizeCode maps whatever a human typed into canonical code form.
func NormalizeCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// IsValidCode reports whether a normalized code is even worth a store
// lookup. Anything outside the shape of a generated code is rejected
// up front.
func IsValidCode(s string) bool {
	if s == "" {
		return false
	}
	return codeRegex.MatchString(s)
}

func IsValidEnum(value string, validValues []string) bool {
	if value == "" {
		return true
	}
	for _, v := range validValues {
		if value == v {
			return true
		}
	}
	return false
}
