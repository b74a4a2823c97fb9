package helpers

import (
	"html"
	"regexp"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicyOnce sync.Once
	strictPolicy     *bluemonday.Policy

	blockTagRe = regexp.MustCompile(`(?i)</?(p|div|br|li|tr|h[1-6]|table|ul|ol|pre|section|article)\b[^>]*>`)
	spaceRe    = regexp.MustCompile(`[ \t\f\r]+`)
)

// StrictHTMLPolicy strips every element and attribute, scripts included.
func StrictHTMLPolicy() *bluemonday.Policy {
	strictPolicyOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strictPolicy
}

// HTMLToText turns an HTML fragment into plain text for prompts. Block
// elements become line breaks, blank lines are dropped and entities are
// decoded.
func HTMLToText(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	s = blockTagRe.ReplaceAllString(s, "\n$0")
	s = html.UnescapeString(StrictHTMLPolicy().Sanitize(s))
	s = spaceRe.ReplaceAllString(s, " ")
	var lines []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return strings.Join(lines, "\n")
}

// LooksLikeHTML reports whether body starts like an HTML document or carries
// an HTML content type.
func LooksLikeHTML(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "html") {
		return true
	}
	head := strings.ToLower(strings.TrimSpace(string(body[:min(len(body), 256)])))
	return strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html")
}
