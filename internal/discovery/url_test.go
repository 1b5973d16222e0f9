package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveURL(t *testing.T) {
	const origin = "https://www.ofcom.org.uk"

	tests := []struct {
		name   string
		href   string
		origin string
		want   string
	}{
		{"absolute https", "https://cdn.example.com/amateur.csv", origin, "https://cdn.example.com/amateur.csv"},
		{"absolute http", "http://example.com/amateur.csv", origin, "http://example.com/amateur.csv"},
		{"uppercase scheme", "HTTPS://example.com/amateur.csv", origin, "HTTPS://example.com/amateur.csv"},
		{"root relative", "/files/amateur-callsigns.csv", origin, origin + "/files/amateur-callsigns.csv"},
		{"bare relative", "files/amateur-callsigns.csv", origin, origin + "/files/amateur-callsigns.csv"},
		{"origin with trailing slash", "files/a.csv", origin + "/", origin + "/files/a.csv"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveURL(tt.href, tt.origin))
		})
	}
}

func TestScenario_TableRowLink(t *testing.T) {
	const origin = "https://www.ofcom.org.uk"
	doc := parse(t, `<html><body><table>
		<tr><td><a href="/files/amateur-callsigns.csv">download</a></td><td>12 May 2024</td></tr>
	</table></body></html>`)

	link, err := Discover(doc, DefaultMatcher(), PolicyStrict)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	date, ok := ExtractDate(link.Node)
	if !ok || date != "12 May 2024" {
		t.Errorf("ExtractDate() = %q, %v; want %q, true", date, ok, "12 May 2024")
	}
	if got := ResolveURL(link.Href, origin); got != origin+"/files/amateur-callsigns.csv" {
		t.Errorf("ResolveURL() = %q", got)
	}
}
