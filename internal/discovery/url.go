package discovery

import "strings"

// ResolveURL makes href absolute against origin. Hrefs that already carry an
// http or https scheme are returned unchanged, anything else is treated as a
// site-relative path.
func ResolveURL(href, origin string) string {
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return href
	}

	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return strings.TrimSuffix(origin, "/") + href
}
