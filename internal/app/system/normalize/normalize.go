// Package normalize provides helper functions for consistent string normalization
// across the application. Use these helpers instead of scattered strings.ToLower
// and strings.TrimSpace calls to ensure consistent behavior.
package normalize

import (
	"path"
	"strings"
)

// Email normalizes an email address by trimming whitespace and converting to lowercase.
// This is the canonical way to normalize emails before storage or comparison.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name normalizes a name by trimming whitespace.
// Use text.Fold() for case-insensitive comparison keys.
func Name(s string) string {
	return strings.TrimSpace(s)
}

// Filename reduces a client-supplied upload name to its last path element.
// Browsers on Windows may send the full local path.
func Filename(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "\\", "/")
	base := path.Base(s)
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSpace(base)
}

// SortOrder maps "asc"/"desc" to 1/-1. Anything else is 0 (store default).
func SortOrder(s string) int {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc", "1":
		return 1
	case "desc", "-1":
		return -1
	}
	return 0
}
