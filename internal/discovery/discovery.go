package discovery

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const (
	DefaultKeyword   = "amateur"
	DefaultExtension = ".csv"

	// preferredMarker is what the best-effort policy looks for when several
	// links match.
	preferredMarker = "callsign"
)

// Link is a candidate anchor found in the page
type Link struct {
	Href string
	Text string
	Node *html.Node
}

// Matcher decides which anchors are dataset candidates
type Matcher struct {
	Keyword   string
	Extension string
	PageURL   string // only used in error messages
}

// DefaultMatcher returns the matcher for the amateur callsign CSV
func DefaultMatcher() Matcher {
	return Matcher{
		Keyword:   DefaultKeyword,
		Extension: DefaultExtension,
	}
}

// Matches reports whether href contains both the keyword and the extension,
// ignoring case.
func (m Matcher) Matches(href string) bool {
	lower := strings.ToLower(href)
	return strings.Contains(lower, strings.ToLower(m.Keyword)) &&
		strings.Contains(lower, strings.ToLower(m.Extension))
}

// Policy selects one link out of several candidates
type Policy string

const (
	// PolicyStrict requires exactly one candidate.
	PolicyStrict Policy = "strict"
	// PolicyBestEffort picks the candidate mentioning "callsign", or the
	// first one. Kept for reproducing older runs.
	PolicyBestEffort Policy = "best-effort"
)

// ParsePolicy converts a flag or environment value into a Policy
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyStrict:
		return PolicyStrict, nil
	case PolicyBestEffort:
		return PolicyBestEffort, nil
	default:
		return "", fmt.Errorf("unknown link policy %q (must be %q or %q)", s, PolicyStrict, PolicyBestEffort)
	}
}

// FindLinks returns every matching anchor in document order
func FindLinks(doc *goquery.Document, m Matcher) []Link {
	links := make([]Link, 0)

	doc.Find("a[href]").Each(func(i int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || !m.Matches(href) {
			return
		}
		links = append(links, Link{
			Href: href,
			Text: strings.TrimSpace(sel.Text()),
			Node: sel.Get(0),
		})
	})

	return links
}

// Select applies the policy to the candidates found by FindLinks
func Select(links []Link, m Matcher, policy Policy) (Link, error) {
	if len(links) == 0 {
		return Link{}, &NotFoundError{PageURL: m.PageURL, Keyword: m.Keyword, Extension: m.Extension}
	}

	switch policy {
	case PolicyBestEffort:
		return preferCallsign(links), nil
	default:
		if len(links) > 1 {
			hrefs := make([]string, 0, len(links))
			for _, l := range links {
				hrefs = append(hrefs, l.Href)
			}
			return Link{}, &AmbiguousResultError{PageURL: m.PageURL, Candidates: hrefs}
		}
		return links[0], nil
	}
}

// preferCallsign expects at least one link
func preferCallsign(links []Link) Link {
	for _, l := range links {
		if strings.Contains(strings.ToLower(l.Href), preferredMarker) ||
			strings.Contains(strings.ToLower(l.Text), preferredMarker) {
			return l
		}
	}
	return links[0]
}

// Discover finds the single dataset link in doc
func Discover(doc *goquery.Document, m Matcher, policy Policy) (Link, error) {
	return Select(FindLinks(doc, m), m, policy)
}
