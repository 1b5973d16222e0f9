package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	RawCSVName         = "amateur-callsigns.csv"
	SortedCSVName      = "amateur-callsigns-sorted.csv"
	JSONName           = "amateur-callsigns.json"
	SortedJSONName     = "amateur-callsigns-sorted.json"
	DownloadMetaName   = "download-metadata.json"
	ProcessingMetaName = "metadata.json"
	PageHTMLName       = "ofcom-page.html"
)

// Layout resolves artifact names inside a working directory
type Layout struct {
	Dir string
}

// NewLayout creates the working directory if needed
func NewLayout(dir string) (Layout, error) {
	if strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return Layout{}, fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, dir[2:])
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return Layout{}, fmt.Errorf("creating data directory: %w", err)
	}

	return Layout{Dir: dir}, nil
}

func (l Layout) path(name string) string {
	return filepath.Join(l.Dir, name)
}

// RawCSV is the file as downloaded from Ofcom
func (l Layout) RawCSV() string {
	return l.path(RawCSVName)
}

// SortedCSV is the raw CSV reordered by its first column
func (l Layout) SortedCSV() string {
	return l.path(SortedCSVName)
}

// JSON is the raw CSV records in original order
func (l Layout) JSON() string {
	return l.path(JSONName)
}

// SortedJSON is the sorted records
func (l Layout) SortedJSON() string {
	return l.path(SortedJSONName)
}

// DownloadMeta records why the raw file was downloaded
func (l Layout) DownloadMeta() string {
	return l.path(DownloadMetaName)
}

// ProcessingMeta records sizes and digests of the artifacts
func (l Layout) ProcessingMeta() string {
	return l.path(ProcessingMetaName)
}

// PageHTML is the saved discovery page, kept for debugging
func (l Layout) PageHTML() string {
	return l.path(PageHTMLName)
}

// Artifacts returns the four files whose size and digest are recorded in
// the processing metadata: the raw CSV and the three files derived from it.
func (l Layout) Artifacts() []string {
	return []string{l.RawCSV(), l.SortedCSV(), l.JSON(), l.SortedJSON()}
}

// EmptyFileError is returned when a required file is missing or has no bytes
type EmptyFileError struct {
	Path  string
	Cause error
}

func (e *EmptyFileError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("required file %s is missing: %v", e.Path, e.Cause)
	}
	return fmt.Sprintf("required file %s is empty", e.Path)
}

func (e *EmptyFileError) Unwrap() error {
	return e.Cause
}

// RequireNonEmpty fails with EmptyFileError unless path is a non-empty file
func RequireNonEmpty(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &EmptyFileError{Path: path, Cause: err}
		}
		return fmt.Errorf("checking %s: %w", path, err)
	}
	if info.Size() == 0 {
		return &EmptyFileError{Path: path}
	}
	return nil
}

// NonEmpty reports whether path exists and has at least one byte
func NonEmpty(path string) bool {
	return RequireNonEmpty(path) == nil
}

// Info is the size and digest of a file
type Info struct {
	Size int64
	Hash string
}

// Stat hashes the file at path
func Stat(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return Info{}, fmt.Errorf("hashing %s: %w", path, err)
	}

	return Info{Size: n, Hash: hex.EncodeToString(h.Sum(nil))}, nil
}

// HashIfExists returns the digest of path, or "" when it does not exist
func HashIfExists(path string) (string, error) {
	info, err := Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	return info.Hash, nil
}

// WriteFile renders into a temp file next to path and renames it into place
func WriteFile(path string, render func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // nolint:errcheck

	if err := render(tmp); err != nil {
		tmp.Close() // nolint:errcheck
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("setting mode on %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
