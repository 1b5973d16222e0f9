package discovery

import (
	"fmt"
	"strings"
)

// NotFoundError is returned when no anchor on the page matches.
type NotFoundError struct {
	PageURL   string
	Keyword   string
	Extension string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no link containing %q and %q found on %s (page structure may have changed)",
		e.Keyword, e.Extension, pageLabel(e.PageURL))
}

// AmbiguousResultError is returned when more than one anchor matches and the
// strict policy is active.
type AmbiguousResultError struct {
	PageURL    string
	Candidates []string
}

func (e *AmbiguousResultError) Error() string {
	return fmt.Sprintf("found %d candidate links on %s, refusing to guess: %s",
		len(e.Candidates), pageLabel(e.PageURL), strings.Join(e.Candidates, ", "))
}

func pageLabel(pageURL string) string {
	if pageURL == "" {
		return "page"
	}
	return pageURL
}
