package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const (
	UserAgent = "callsign-mirror/1.0 (github.com/pfrederiksen/callsign-mirror)"
	Timeout   = 30 * time.Second

	// maxPageSize caps how much of the HTML page is read into memory.
	maxPageSize = 10 << 20
)

// DownloadError describes a failed page fetch or file download
type DownloadError struct {
	URL     string
	Path    string
	Message string
	Cause   error
}

func (e *DownloadError) Error() string {
	target := e.URL
	if e.Path != "" {
		target = fmt.Sprintf("%s -> %s", e.URL, e.Path)
	}
	if e.Cause != nil {
		return fmt.Sprintf("download error for %s: %s: %v", target, e.Message, e.Cause)
	}
	return fmt.Sprintf("download error for %s: %s", target, e.Message)
}

func (e *DownloadError) Unwrap() error {
	return e.Cause
}

// Client fetches pages and files over HTTP
type Client struct {
	client *http.Client
}

// New creates a Client with the given timeout; zero means Timeout
func New(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = Timeout
	}
	return &Client{
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Page fetches url and returns the whole body
func (c *Client) Page(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.get(ctx, url, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageSize+1))
	if err != nil {
		return nil, &DownloadError{URL: url, Message: "reading page body", Cause: err}
	}
	if len(body) > maxPageSize {
		return nil, &DownloadError{URL: url, Message: fmt.Sprintf("page exceeds size limit of %d bytes", maxPageSize)}
	}
	return body, nil
}

// Download streams url into dest and returns the number of bytes written.
// The body goes to a temporary file next to dest first, so a failed
// transfer never leaves a truncated dest behind.
func (c *Client) Download(ctx context.Context, url, dest string) (int64, error) {
	resp, err := c.get(ctx, url, dest)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.part")
	if err != nil {
		return 0, &DownloadError{URL: url, Path: dest, Message: "creating temp file", Cause: err}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // nolint:errcheck

	n, err := io.Copy(tmp, resp.Body)
	if err != nil {
		tmp.Close() // nolint:errcheck
		return n, &DownloadError{URL: url, Path: dest, Message: "streaming body", Cause: err}
	}
	if err := tmp.Close(); err != nil {
		return n, &DownloadError{URL: url, Path: dest, Message: "closing temp file", Cause: err}
	}

	if err := os.Rename(tmpName, dest); err != nil {
		return n, &DownloadError{URL: url, Path: dest, Message: "replacing file", Cause: err}
	}

	return n, nil
}

func (c *Client) get(ctx context.Context, url, dest string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &DownloadError{URL: url, Path: dest, Message: "creating request", Cause: err}
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &DownloadError{URL: url, Path: dest, Message: "request failed", Cause: err}
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close() // nolint:errcheck
		return nil, &DownloadError{URL: url, Path: dest, Message: fmt.Sprintf("unexpected status code: %d", resp.StatusCode)}
	}

	return resp, nil
}
