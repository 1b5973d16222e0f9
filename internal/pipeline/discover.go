package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pfrederiksen/callsign-mirror/internal/artifact"
	"github.com/pfrederiksen/callsign-mirror/internal/discovery"
	"github.com/pfrederiksen/callsign-mirror/internal/fetch"
	"github.com/pfrederiksen/callsign-mirror/internal/logger"
	"github.com/pfrederiksen/callsign-mirror/internal/metadata"
)

// Discoverer runs the discovery and fetch stage
type Discoverer struct {
	Client  *fetch.Client
	Layout  artifact.Layout
	Store   *metadata.Store
	Matcher discovery.Matcher
	Policy  discovery.Policy
	PageURL string
	Origin  string
	Log     *logger.Logger
	Metrics *logger.Metrics
	Now     func() time.Time
}

// DiscoverResult describes what the stage downloaded
type DiscoverResult struct {
	URL          string `json:"url"`
	LinkText     string `json:"link_text"`
	ReportedDate string `json:"reported_date"`
	DateFromPage bool   `json:"date_from_page"`
	Bytes        int64  `json:"bytes"`
	PreviousHash string `json:"previous_hash,omitempty"`
	Hash         string `json:"hash"`
	Changed      bool   `json:"changed"`
}

// Run fetches the page, downloads the dataset and records why
func (d *Discoverer) Run(ctx context.Context) (*DiscoverResult, error) {
	log := d.Log.WithFields(logger.Fields{"stage": "discover"})

	log.Info("Fetching discovery page", logger.Fields{"url": d.PageURL})
	var page []byte
	err := d.Metrics.Time("discover.page_fetch", func() error {
		var err error
		page, err = d.Client.Page(ctx, d.PageURL)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetching discovery page: %w", err)
	}

	if err := artifact.WriteFile(d.Layout.PageHTML(), func(w io.Writer) error {
		_, err := w.Write(page)
		return err
	}); err != nil {
		log.Warn("Could not save page HTML", logger.Fields{"path": d.Layout.PageHTML(), "error": err.Error()})
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML from %s: %w", d.PageURL, err)
	}

	m := d.Matcher
	m.PageURL = d.PageURL
	links := discovery.FindLinks(doc, m)
	log.Debug("Candidate links", logger.Fields{"count": len(links), "policy": string(d.Policy)})
	for _, l := range links {
		log.Debug("Candidate", logger.Fields{"href": l.Href, "text": l.Text})
	}

	link, err := discovery.Select(links, m, d.Policy)
	if err != nil {
		return nil, err
	}

	result := &DiscoverResult{
		URL:      discovery.ResolveURL(link.Href, d.Origin),
		LinkText: link.Text,
	}

	if date, ok := discovery.ExtractDate(link.Node); ok {
		result.ReportedDate = date
		result.DateFromPage = true
	} else {
		result.ReportedDate = discovery.FallbackDate(d.now())
		log.Warn("No last-updated date next to link, using today", logger.Fields{"date": result.ReportedDate})
	}

	log.Info("Found dataset link", logger.Fields{
		"href":         link.Href,
		"url":          result.URL,
		"text":         result.LinkText,
		"last_updated": result.ReportedDate,
	})

	raw := d.Layout.RawCSV()
	prev, err := artifact.HashIfExists(raw)
	if err != nil {
		log.Warn("Could not hash previous download", logger.Fields{"path": raw, "error": err.Error()})
	}
	result.PreviousHash = prev

	err = d.Metrics.Time("discover.download", func() error {
		var err error
		result.Bytes, err = d.Client.Download(ctx, result.URL, raw)
		return err
	})
	if err != nil {
		return nil, err
	}
	d.Metrics.IncrCounter("discover.downloads")

	if err := artifact.RequireNonEmpty(raw); err != nil {
		return nil, fmt.Errorf("downloaded %s: %w", result.URL, err)
	}

	info, err := artifact.Stat(raw)
	if err != nil {
		return nil, err
	}
	result.Hash = info.Hash
	result.Changed = prev != info.Hash

	log.Info("Downloaded dataset", logger.Fields{
		"path":          raw,
		"bytes":         info.Size,
		"hash":          info.Hash,
		"previous_hash": prev,
		"changed":       result.Changed,
	})

	if err := d.Store.SaveDownload(&metadata.Download{
		URL:                     result.URL,
		OfcomReportedLastUpdate: result.ReportedDate,
		LinkText:                result.LinkText,
	}); err != nil {
		return nil, fmt.Errorf("saving download metadata: %w", err)
	}

	return result, nil
}

func (d *Discoverer) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}
