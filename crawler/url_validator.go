package crawler

import (
	"net/url"
	"slices"
	"strings"
)

type URLValidator struct {
	allowedSchemes []string
	allowedDomains []string
}

func NewURLValidator(config *CrawlerConfig) *URLValidator {
	return &URLValidator{
		allowedSchemes: []string{"http", "https"},
		allowedDomains: config.AllowedDomains,
	}
}

// Normalize returns raw without its fragment, or false when the url cannot
// be crawled.
func (v *URLValidator) Normalize(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return "", false
	}
	if !slices.Contains(v.allowedSchemes, strings.ToLower(u.Scheme)) {
		return "", false
	}
	if len(v.allowedDomains) > 0 && !slices.Contains(v.allowedDomains, u.Hostname()) {
		return "", false
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), true
}

// Filter normalizes urls and drops invalid ones and duplicates, keeping
// first-seen order.
func (v *URLValidator) Filter(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, raw := range urls {
		u, ok := v.Normalize(raw)
		if !ok {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
