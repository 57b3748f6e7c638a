// Package htmlsanitize strips markup from user-supplied profile and item text.
// The API stores plain text only; any HTML a client sends is removed with
// bluemonday's strict policy before it reaches the database.
package htmlsanitize

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policy     *bluemonday.Policy
	policyOnce sync.Once
)

func getPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.StrictPolicy()
	})
	return policy
}

// PlainText removes every tag and returns the remaining text, trimmed.
// Entities bluemonday escapes on output are decoded again so "Tom & Jerry"
// round-trips unchanged.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(getPolicy().Sanitize(s)))
}
