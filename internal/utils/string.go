package utils

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Lower lowercases s with Unicode special casing (final sigma and friends).
// Every place that compares names must fold them with Lower.
func Lower(s string) string {
	if isASCII(s) {
		return strings.ToLower(s)
	}
	// A Caser holds state, so one per call keeps Lower safe for concurrent use.
	return cases.Lower(language.Und).String(s)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// IsTokenSeparator reports whether r splits search tokens.
// Any Unicode whitespace and the comma count as separators.
func IsTokenSeparator(r rune) bool {
	return r == ',' || unicode.IsSpace(r)
}

// SplitTokens splits s on runs of separators and drops empty tokens.
// Token order is preserved.
func SplitTokens(s string) []string {
	return strings.FieldsFunc(s, IsTokenSeparator)
}

// IsDomainLabel checks if s only has characters allowed in a DNS label (letters, digits, hyphen)
func IsDomainLabel(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' {
			return false
		}
	}
	return true
}
