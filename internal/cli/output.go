package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/pfrederiksen/callsign-mirror/internal/pipeline"
)

// OutputFormat specifies the output format
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// OutputResult is the summary printed after a successful run
type OutputResult struct {
	RunID     string                   `json:"run_id"`
	StartedAt time.Time                `json:"started_at"`
	Discover  *pipeline.DiscoverResult `json:"discover,omitempty"`
	Process   *pipeline.ProcessResult  `json:"process,omitempty"`
}

// WriteOutput writes the result in the specified format
func WriteOutput(w io.Writer, result *OutputResult, format OutputFormat, verbose bool) error {
	switch format {
	case FormatJSON:
		return writeJSON(w, result)
	case FormatText:
		return writeText(w, result, verbose)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

func writeJSON(w io.Writer, result *OutputResult) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func writeText(w io.Writer, result *OutputResult, verbose bool) error {
	if d := result.Discover; d != nil {
		fmt.Fprintf(w, "Downloaded %s (%d bytes)\n", d.URL, d.Bytes)
		fmt.Fprintf(w, "  Link text:    %s\n", d.LinkText)
		if d.DateFromPage {
			fmt.Fprintf(w, "  Last updated: %s\n", d.ReportedDate)
		} else {
			fmt.Fprintf(w, "  Last updated: %s (not on page, using run date)\n", d.ReportedDate)
		}
		if d.Changed {
			fmt.Fprintln(w, "  Content changed since previous download.")
		} else {
			fmt.Fprintln(w, "  Content unchanged since previous download.")
		}
		if verbose {
			fmt.Fprintf(w, "  Hash:          %s\n", d.Hash)
			if d.PreviousHash != "" {
				fmt.Fprintf(w, "  Previous hash: %s\n", d.PreviousHash)
			}
		}
	}

	if p := result.Process; p != nil {
		if p.Skipped {
			fmt.Fprintf(w, "Processing skipped: %s\n", p.Reason)
		} else {
			fmt.Fprintf(w, "Processed %d records (%s)\n", p.RecordCount, p.Reason)
			if verbose && p.Metadata != nil {
				fmt.Fprintf(w, "  Sort column:  %s\n", p.Metadata.SortColumn)
				fmt.Fprintf(w, "  Sorted CSV:   %s\n", p.Metadata.SortedCSVHash)
				fmt.Fprintf(w, "  JSON:         %s\n", p.Metadata.OriginalJSONHash)
				fmt.Fprintf(w, "  Sorted JSON:  %s\n", p.Metadata.SortedJSONHash)
			}
		}
	}

	if verbose {
		fmt.Fprintf(w, "Run ID: %s\n", result.RunID)
	}
	return nil
}
