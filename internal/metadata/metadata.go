package metadata

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pfrederiksen/callsign-mirror/internal/artifact"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed processing.schema.json
var processingSchema string

// Download records where the raw file came from
type Download struct {
	URL                     string `json:"url" validate:"required,url"`
	OfcomReportedLastUpdate string `json:"ofcomReportedLastUpdate"`
	LinkText                string `json:"linkText"`
}

// Processing records the derived artifacts of one processing run.
// OriginalCSVHash is the key for deciding whether the artifacts are stale.
type Processing struct {
	OriginalCSVSize  int64  `json:"originalCsvSize"`
	OriginalCSVHash  string `json:"originalCsvHash"`
	SortedCSVSize    int64  `json:"sortedCsvSize"`
	SortedCSVHash    string `json:"sortedCsvHash"`
	OriginalJSONSize int64  `json:"originalJsonSize"`
	OriginalJSONHash string `json:"originalJsonHash"`
	SortedJSONSize   int64  `json:"sortedJsonSize"`
	SortedJSONHash   string `json:"sortedJsonHash"`
	RecordCount      int    `json:"recordCount"`
	SortColumn       string `json:"sortColumn,omitempty"`
	ProcessedAt      string `json:"processedAt,omitempty"`

	URL             string `json:"url,omitempty"`
	OfcomLastUpdate string `json:"ofcomLastUpdate,omitempty"`
	LinkText        string `json:"linkText,omitempty"`
}

// Merge copies the provenance fields of dl into p. A nil dl leaves p as is.
func Merge(dl *Download, p Processing) Processing {
	if dl == nil {
		return p
	}
	p.URL = dl.URL
	p.OfcomLastUpdate = dl.OfcomReportedLastUpdate
	p.LinkText = dl.LinkText
	return p
}

// MetadataError means a metadata file exists but cannot be used
type MetadataError struct {
	Path    string
	Message string
	Cause   error
}

func (e *MetadataError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("metadata error in %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("metadata error in %s: %s", e.Path, e.Message)
}

func (e *MetadataError) Unwrap() error {
	return e.Cause
}

// Store reads and writes metadata inside a Layout
type Store struct {
	layout   artifact.Layout
	validate *validator.Validate
	schema   *gojsonschema.Schema
}

// NewStore creates a Store for layout
func NewStore(layout artifact.Layout) (*Store, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(processingSchema))
	if err != nil {
		return nil, fmt.Errorf("loading processing metadata schema: %w", err)
	}

	return &Store{
		layout:   layout,
		validate: validator.New(),
		schema:   schema,
	}, nil
}

// LoadDownload returns nil, nil when no discovery has been recorded yet
func (s *Store) LoadDownload() (*Download, error) {
	path := s.layout.DownloadMeta()
	data, err := readOptional(path)
	if err != nil || data == nil {
		return nil, err
	}

	var dl Download
	if err := json.Unmarshal(data, &dl); err != nil {
		return nil, &MetadataError{Path: path, Message: "parsing JSON", Cause: err}
	}
	return &dl, nil
}

// SaveDownload validates and writes the discovery record
func (s *Store) SaveDownload(dl *Download) error {
	if err := s.validate.Struct(dl); err != nil {
		return fmt.Errorf("invalid download metadata: %w", err)
	}
	return writeJSON(s.layout.DownloadMeta(), dl)
}

// LoadProcessing returns nil, nil when no processing has been recorded yet.
// A file that does not match the schema is a MetadataError.
func (s *Store) LoadProcessing() (*Processing, error) {
	path := s.layout.ProcessingMeta()
	data, err := readOptional(path)
	if err != nil || data == nil {
		return nil, err
	}

	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, &MetadataError{Path: path, Message: "parsing JSON", Cause: err}
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return nil, &MetadataError{Path: path, Message: "schema mismatch: " + strings.Join(problems, "; ")}
	}

	var p Processing
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, &MetadataError{Path: path, Message: "decoding record", Cause: err}
	}
	return &p, nil
}

// SaveProcessing writes the processing record
func (s *Store) SaveProcessing(p *Processing) error {
	return writeJSON(s.layout.ProcessingMeta(), p)
}

func readOptional(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, &MetadataError{Path: path, Message: "reading file", Cause: err}
	}
	return data, nil
}

func writeJSON(path string, v interface{}) error {
	return artifact.WriteFile(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}
