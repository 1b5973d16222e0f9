package pipeline

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pfrederiksen/callsign-mirror/internal/artifact"
	"github.com/pfrederiksen/callsign-mirror/internal/dataset"
	"github.com/pfrederiksen/callsign-mirror/internal/logger"
	"github.com/pfrederiksen/callsign-mirror/internal/metadata"
)

// Processor runs the transform and publish stage
type Processor struct {
	Layout  artifact.Layout
	Store   *metadata.Store
	Log     *logger.Logger
	Metrics *logger.Metrics
	Now     func() time.Time
}

// Decision says whether derived artifacts must be rebuilt
type Decision struct {
	Reprocess bool
	Reason    string
	Err       error // metadata problem that forced reprocessing
}

// ProcessResult describes one processing run
type ProcessResult struct {
	Skipped     bool                 `json:"skipped"`
	Reason      string               `json:"reason"`
	RecordCount int                  `json:"record_count"`
	Metadata    *metadata.Processing `json:"metadata,omitempty"`
}

// Decide compares rawHash with the last processing record and checks the
// derived files. Anything short of a full match means reprocess.
func (p *Processor) Decide(rawHash string) Decision {
	prev, err := p.Store.LoadProcessing()
	if err != nil {
		return Decision{Reprocess: true, Reason: "previous metadata unreadable", Err: err}
	}
	if prev == nil {
		return Decision{Reprocess: true, Reason: "no previous metadata"}
	}
	if prev.OriginalCSVHash != rawHash {
		return Decision{Reprocess: true, Reason: "raw file changed"}
	}
	for _, path := range p.Layout.Artifacts() {
		if !artifact.NonEmpty(path) {
			return Decision{Reprocess: true, Reason: "missing or empty " + filepath.Base(path)}
		}
	}
	return Decision{Reprocess: false, Reason: "raw file unchanged"}
}

// Run rebuilds the derived artifacts and metadata when Decide says so
func (p *Processor) Run() (*ProcessResult, error) {
	log := p.Log.WithFields(logger.Fields{"stage": "process"})
	raw := p.Layout.RawCSV()

	if err := artifact.RequireNonEmpty(raw); err != nil {
		return nil, err
	}

	rawInfo, err := artifact.Stat(raw)
	if err != nil {
		return nil, err
	}

	decision := p.Decide(rawInfo.Hash)
	if decision.Err != nil {
		log.Warn("Ignoring previous metadata", logger.Fields{"error": decision.Err.Error()})
	}
	if !decision.Reprocess {
		log.Info("Skipping processing", logger.Fields{"reason": decision.Reason, "hash": rawInfo.Hash})
		p.Metrics.IncrCounter("process.skipped")
		return &ProcessResult{Skipped: true, Reason: decision.Reason}, nil
	}

	log.Info("Processing raw file", logger.Fields{"reason": decision.Reason, "path": raw, "hash": rawInfo.Hash})

	var meta *metadata.Processing
	err = p.Metrics.Time("process.transform", func() error {
		var err error
		meta, err = p.transform(raw, rawInfo)
		return err
	})
	if err != nil {
		return nil, err
	}

	dl, err := p.Store.LoadDownload()
	if err != nil {
		log.Warn("Download metadata unreadable, provenance omitted", logger.Fields{"error": err.Error()})
	}
	merged := metadata.Merge(dl, *meta)

	if err := p.Store.SaveProcessing(&merged); err != nil {
		return nil, fmt.Errorf("saving processing metadata: %w", err)
	}
	p.Metrics.AddCounter("process.records", int64(merged.RecordCount))

	log.Info("Processing complete", logger.Fields{
		"records":     merged.RecordCount,
		"sort_column": merged.SortColumn,
		"sorted_hash": merged.SortedCSVHash,
	})

	return &ProcessResult{Reason: decision.Reason, RecordCount: merged.RecordCount, Metadata: &merged}, nil
}

func (p *Processor) transform(raw string, rawInfo artifact.Info) (*metadata.Processing, error) {
	f, err := os.Open(raw)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", raw, err)
	}
	table, err := dataset.Parse(f)
	f.Close() // nolint:errcheck
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", raw, err)
	}

	sorted := table.Sorted()

	outputs := []struct {
		path  string
		write func(io.Writer) error
	}{
		{p.Layout.SortedCSV(), sorted.WriteCSV},
		{p.Layout.JSON(), table.WriteJSON},
		{p.Layout.SortedJSON(), sorted.WriteJSON},
	}
	infos := make([]artifact.Info, len(outputs))
	for i, out := range outputs {
		if err := artifact.WriteFile(out.path, out.write); err != nil {
			return nil, err
		}
		info, err := artifact.Stat(out.path)
		if err != nil {
			return nil, err
		}
		infos[i] = info
	}

	// The recorded digest must describe the raw file as it is now on disk
	current, err := artifact.Stat(raw)
	if err != nil {
		return nil, err
	}
	if current.Hash != rawInfo.Hash {
		return nil, errors.New("raw file changed while processing: " + raw)
	}

	return &metadata.Processing{
		OriginalCSVSize:  current.Size,
		OriginalCSVHash:  current.Hash,
		SortedCSVSize:    infos[0].Size,
		SortedCSVHash:    infos[0].Hash,
		OriginalJSONSize: infos[1].Size,
		OriginalJSONHash: infos[1].Hash,
		SortedJSONSize:   infos[2].Size,
		SortedJSONHash:   infos[2].Hash,
		RecordCount:      len(table.Records),
		SortColumn:       table.SortKey(),
		ProcessedAt:      p.now().UTC().Format(time.RFC3339),
	}, nil
}

func (p *Processor) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}
