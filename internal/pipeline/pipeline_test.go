package pipeline

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pfrederiksen/callsign-mirror/internal/artifact"
	"github.com/pfrederiksen/callsign-mirror/internal/discovery"
	"github.com/pfrederiksen/callsign-mirror/internal/fetch"
	"github.com/pfrederiksen/callsign-mirror/internal/logger"
	"github.com/pfrederiksen/callsign-mirror/internal/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = "Callsign,Name,Licence\nG4ABC,Alice,Full\n2E0ZZZ,Bob,Foundation\n"

var fixedNow = func() time.Time { return time.Date(2026, time.March, 7, 12, 0, 0, 0, time.UTC) }

type fixture struct {
	layout artifact.Layout
	store  *metadata.Store
	log    *logger.Logger
	logBuf *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	layout, err := artifact.NewLayout(t.TempDir())
	require.NoError(t, err)
	store, err := metadata.NewStore(layout)
	require.NoError(t, err)
	var buf bytes.Buffer
	return &fixture{layout: layout, store: store, log: logger.New(logger.LevelDebug, &buf), logBuf: &buf}
}

func (f *fixture) processor() *Processor {
	return &Processor{Layout: f.layout, Store: f.store, Log: f.log, Metrics: logger.NewMetrics(), Now: fixedNow}
}

func (f *fixture) discoverer(serverURL string, policy discovery.Policy) *Discoverer {
	return &Discoverer{
		Client:  fetch.New(5 * time.Second),
		Layout:  f.layout,
		Store:   f.store,
		Matcher: discovery.DefaultMatcher(),
		Policy:  policy,
		PageURL: serverURL + "/opendata",
		Origin:  serverURL,
		Log:     f.log,
		Metrics: logger.NewMetrics(),
		Now:     fixedNow,
	}
}

func (f *fixture) writeRaw(t *testing.T, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(f.layout.RawCSV(), []byte(content), 0644))
}

func csvBody(s string) *atomic.Value {
	v := &atomic.Value{}
	v.Store(s)
	return v
}

// ofcomServer serves page at /opendata and csv at /files/amateur-callsigns.csv
func ofcomServer(t *testing.T, page string, csv *atomic.Value) (*httptest.Server, *int32) {
	t.Helper()
	var downloads int32
	mux := http.NewServeMux()
	mux.HandleFunc("/opendata", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page)) // nolint:errcheck
	})
	mux.HandleFunc("/files/amateur-callsigns.csv", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&downloads, 1)
		w.Write([]byte(csv.Load().(string))) // nolint:errcheck
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &downloads
}

const singleLinkPage = `<html><body><table>
	<tr><th>Dataset</th><th>Last updated</th></tr>
	<tr><td><a href="/files/amateur-callsigns.csv">Amateur callsigns (CSV)</a></td><td> 12 May 2024 </td></tr>
	<tr><td><a href="/files/business-radio.csv">Business radio</a></td><td>1 May 2024</td></tr>
</table></body></html>`

func TestDiscoverer_Run(t *testing.T) {
	f := newFixture(t)
	csv := csvBody(sampleCSV)
	server, downloads := ofcomServer(t, singleLinkPage, csv)

	result, err := f.discoverer(server.URL, discovery.PolicyStrict).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, server.URL+"/files/amateur-callsigns.csv", result.URL)
	assert.Equal(t, "Amateur callsigns (CSV)", result.LinkText)
	assert.Equal(t, "12 May 2024", result.ReportedDate)
	assert.True(t, result.DateFromPage)
	assert.Equal(t, int64(len(sampleCSV)), result.Bytes)
	assert.Empty(t, result.PreviousHash)
	assert.True(t, result.Changed)
	assert.Equal(t, int32(1), atomic.LoadInt32(downloads))

	raw, err := os.ReadFile(f.layout.RawCSV())
	require.NoError(t, err)
	assert.Equal(t, sampleCSV, string(raw))
	assert.FileExists(t, f.layout.PageHTML())

	dl, err := f.store.LoadDownload()
	require.NoError(t, err)
	assert.Equal(t, &metadata.Download{
		URL:                     server.URL + "/files/amateur-callsigns.csv",
		OfcomReportedLastUpdate: "12 May 2024",
		LinkText:                "Amateur callsigns (CSV)",
	}, dl)
}

func TestDiscoverer_AlwaysDownloads(t *testing.T) {
	f := newFixture(t)
	csv := csvBody(sampleCSV)
	server, downloads := ofcomServer(t, singleLinkPage, csv)
	d := f.discoverer(server.URL, discovery.PolicyStrict)

	first, err := d.Run(context.Background())
	require.NoError(t, err)

	second, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(downloads))
	assert.Equal(t, first.Hash, second.PreviousHash)
	assert.False(t, second.Changed)

	csv.Store(sampleCSV + "M0XYZ,Carol,Intermediate\n")
	third, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, third.Changed)
}

func TestDiscoverer_FallbackDate(t *testing.T) {
	f := newFixture(t)
	csv := csvBody(sampleCSV)
	server, _ := ofcomServer(t, `<p><a href="files/amateur-callsigns.csv">download</a></p>`, csv)

	result, err := f.discoverer(server.URL, discovery.PolicyStrict).Run(context.Background())
	require.NoError(t, err)

	assert.False(t, result.DateFromPage)
	assert.Equal(t, "7 March 2026", result.ReportedDate)
	assert.Equal(t, server.URL+"/files/amateur-callsigns.csv", result.URL)
}

func TestDiscoverer_LinkErrorsSkipDownload(t *testing.T) {
	tests := []struct {
		name  string
		page  string
		check func(t *testing.T, err error)
	}{
		{
			name: "no candidates",
			page: `<a href="/files/business-radio.csv">x</a>`,
			check: func(t *testing.T, err error) {
				var e *discovery.NotFoundError
				assert.True(t, errors.As(err, &e), "got %v", err)
			},
		},
		{
			name: "two candidates",
			page: `<a href="/files/amateur-callsigns.csv">a</a><a href="/files/amateur-2023.csv">b</a>`,
			check: func(t *testing.T, err error) {
				var e *discovery.AmbiguousResultError
				assert.True(t, errors.As(err, &e), "got %v", err)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			csv := csvBody(sampleCSV)
			server, downloads := ofcomServer(t, tt.page, csv)

			_, err := f.discoverer(server.URL, discovery.PolicyStrict).Run(context.Background())
			require.Error(t, err)
			tt.check(t, err)

			assert.Equal(t, int32(0), atomic.LoadInt32(downloads))
			assert.NoFileExists(t, f.layout.RawCSV())
			assert.NoFileExists(t, f.layout.DownloadMeta())
		})
	}
}

func TestDiscoverer_BestEffortPolicy(t *testing.T) {
	f := newFixture(t)
	csv := csvBody(sampleCSV)
	page := `<a href="/files/amateur-2023.csv">old</a><a href="/files/amateur-callsigns.csv">new</a>`
	server, downloads := ofcomServer(t, page, csv)

	result, err := f.discoverer(server.URL, discovery.PolicyBestEffort).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/files/amateur-callsigns.csv", result.URL)
	assert.Equal(t, int32(1), atomic.LoadInt32(downloads))
}

func TestDiscoverer_EmptyDownload(t *testing.T) {
	f := newFixture(t)
	csv := csvBody("")
	server, _ := ofcomServer(t, singleLinkPage, csv)

	_, err := f.discoverer(server.URL, discovery.PolicyStrict).Run(context.Background())
	var emptyErr *artifact.EmptyFileError
	require.True(t, errors.As(err, &emptyErr), "got %v", err)
	assert.NoFileExists(t, f.layout.DownloadMeta())
}

func TestDiscoverer_PageFetchFails(t *testing.T) {
	f := newFixture(t)
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := f.discoverer(server.URL, discovery.PolicyStrict).Run(context.Background())
	var dlErr *fetch.DownloadError
	require.True(t, errors.As(err, &dlErr), "got %v", err)
	assert.Contains(t, err.Error(), server.URL+"/opendata")
}
