// Package htmlsanitize strips markup from user-supplied text (project and
// task descriptions) before it is stored. The API returns descriptions as
// JSON strings, so the stored value is plain text, not escaped HTML.
package htmlsanitize

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy
)

func strict() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.StrictPolicy()
	})
	return policy
}

// SanitizeText removes every tag from s, along with the contents of script
// and style elements, and returns the remaining text unescaped. Text without
// markup passes through untouched apart from trimming, so characters such as
// ', & and < survive a round trip.
func SanitizeText(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || IsPlainText(s) {
		return s
	}
	return strings.TrimSpace(html.UnescapeString(strict().Sanitize(s)))
}

// IsPlainText reports whether s contains no markup.
func IsPlainText(s string) bool {
	return !(strings.Contains(s, "<") && strings.Contains(s, ">"))
}
