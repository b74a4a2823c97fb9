package helpers

import (
	"errors"
	"net/url"
	"path"
	"strings"
)

var trackingQueryParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"gclid":        {},
	"fbclid":       {},
	"msclkid":      {},
}

// ResolveURL resolves ref against base. Absolute refs are returned as-is
// (after parsing); only http(s) results are accepted.
func ResolveURL(base, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", errors.New("empty url")
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	if !r.IsAbs() {
		b, err := url.Parse(strings.TrimSpace(base))
		if err != nil {
			return "", err
		}
		if !b.IsAbs() {
			return "", errors.New("relative url without absolute base")
		}
		r = b.ResolveReference(r)
	}
	switch strings.ToLower(r.Scheme) {
	case "http", "https":
	default:
		return "", errors.New("unsupported scheme " + r.Scheme)
	}
	return r.String(), nil
}

// CanonicalURL normalises a URL for de-duplication: lowercased scheme and
// host, default ports and fragments removed, tracking parameters dropped.
// Query order is preserved since endpoints may depend on it.
func CanonicalURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errors.New("empty url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", errors.New("url missing host")
	}
	u.Scheme = strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Host)
	if h, port, ok := strings.Cut(host, ":"); ok {
		if (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
			host = h
		}
	}
	u.Host = host
	u.Fragment = ""
	if u.RawQuery != "" {
		parts := strings.Split(u.RawQuery, "&")
		kept := parts[:0]
		for _, p := range parts {
			key, _, _ := strings.Cut(p, "=")
			if _, drop := trackingQueryParams[strings.ToLower(key)]; drop {
				continue
			}
			kept = append(kept, p)
		}
		u.RawQuery = strings.Join(kept, "&")
	}
	return u.String(), nil
}

// Extension returns the lowercased extension of the URL path (".csv"), or
// "" when the path has none.
func Extension(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if len(ext) < 2 {
		return ""
	}
	return ext
}

// TrimURLPunctuation strips sentence punctuation that regex URL matching
// tends to swallow ("https://x/data.csv." -> "https://x/data.csv").
func TrimURLPunctuation(raw string) string {
	return strings.TrimRight(raw, ".,;:!?)]}'\"")
}
