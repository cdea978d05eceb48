// Package email holds small helpers for the address strings stored on profiles
// and email links.
package email

import (
	"strings"
	"unicode"
)

// listSeparator joins several addresses in the legacy denormalized profile column.
const listSeparator = ";"

// Normalize trims and lowercases an address for comparison and storage.
func Normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// LocalPart returns the text before '@', or the whole trimmed input when there is none.
func LocalPart(address string) string {
	address = strings.TrimSpace(address)
	if at := strings.IndexByte(address, '@'); at >= 0 {
		return address[:at]
	}
	return address
}

// SplitList splits a possibly semicolon-joined address field into its
// individual, trimmed addresses. Empty entries are dropped.
func SplitList(field string) []string {
	parts := strings.Split(field, listSeparator)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Primary returns the first address of a possibly semicolon-joined field.
func Primary(field string) string {
	if list := SplitList(field); len(list) > 0 {
		return list[0]
	}
	return ""
}

// DeriveNameFromEmail guesses first and last names from the local part,
// splitting on '.', '_', '-' and '+'. A single-token local part yields an
// empty last name.
func DeriveNameFromEmail(address string) (first, last string) {
	parts := strings.FieldsFunc(LocalPart(address), func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return capitalize(parts[0]), ""
	default:
		return capitalize(parts[0]), capitalize(parts[len(parts)-1])
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
