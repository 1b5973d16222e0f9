package dataset

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

const utf8BOM = "\ufeff"

// ParseError describes CSV content that cannot be turned into records
type ParseError struct {
	Line    int
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	msg := "parse error"
	if e.Line > 0 {
		msg = fmt.Sprintf("parse error on line %d", e.Line)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", msg, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", msg, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// schema is shared by every record of a table
type schema struct {
	names []string
	index map[string]int
}

// Record maps column names to cell values in header order. A record from a
// short row only carries the leading columns that were present.
type Record struct {
	schema *schema
	values []string
}

// Get returns the value for key and whether the row had that column
func (r Record) Get(key string) (string, bool) {
	if r.schema == nil {
		return "", false
	}
	i, ok := r.schema.index[key]
	if !ok || i >= len(r.values) {
		return "", false
	}
	return r.values[i], true
}

// Value returns the value for key, or "" when absent
func (r Record) Value(key string) string {
	v, _ := r.Get(key)
	return v
}

// Keys returns the columns present in this record, in header order
func (r Record) Keys() []string {
	if r.schema == nil {
		return nil
	}
	return r.schema.names[:len(r.values)]
}

// MarshalJSON writes the record as an object with keys in header order
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range r.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSONString(&buf, key); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeJSONString(&buf, r.values[i]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeJSONString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encode terminates with a newline
	buf.Truncate(buf.Len() - 1)
	return nil
}

// Table is a parsed CSV file
type Table struct {
	Header  []string
	Records []Record
	schema  *schema
}

// Parse reads CSV with a header row from r
func Parse(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ParseError{Message: "no header row"}
		}
		return nil, wrapCSVError("reading header", err)
	}

	header[0] = strings.TrimPrefix(header[0], utf8BOM)
	sc := &schema{names: header, index: make(map[string]int, len(header))}
	for i, name := range header {
		if strings.TrimSpace(name) == "" {
			return nil, &ParseError{Line: 1, Message: fmt.Sprintf("header column %d has no name", i+1)}
		}
		if _, dup := sc.index[name]; dup {
			return nil, &ParseError{Line: 1, Message: fmt.Sprintf("duplicate header column %q", name)}
		}
		sc.index[name] = i
	}

	t := &Table{Header: header, Records: make([]Record, 0), schema: sc}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, wrapCSVError("reading row", err)
		}
		if len(row) > len(header) {
			line, _ := cr.FieldPos(0)
			return nil, &ParseError{
				Line:    line,
				Message: fmt.Sprintf("row has %d fields, header has %d", len(row), len(header)),
			}
		}
		t.Records = append(t.Records, Record{schema: sc, values: row})
	}

	return t, nil
}

func wrapCSVError(msg string, err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &ParseError{Line: pe.Line, Message: msg, Cause: pe.Err}
	}
	return &ParseError{Message: msg, Cause: err}
}

// SortKey is the name of the first header column
func (t *Table) SortKey() string {
	if len(t.Header) == 0 {
		return ""
	}
	return t.Header[0]
}

// Sorted returns a copy of t ordered by the sort key. Comparison is
// case-insensitive and collation-aware; rows with equal keys keep their
// original order. t itself is not modified.
func (t *Table) Sorted() *Table {
	key := t.SortKey()
	col := collate.New(language.BritishEnglish, collate.IgnoreCase)

	var buf collate.Buffer
	keys := make([][]byte, len(t.Records))
	for i, rec := range t.Records {
		// KeyFromString results point into buf; copy so they survive Reset
		keys[i] = append([]byte(nil), col.KeyFromString(&buf, rec.Value(key))...)
		buf.Reset()
	}

	order := make([]int, len(t.Records))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return bytes.Compare(keys[order[i]], keys[order[j]]) < 0
	})

	sorted := make([]Record, len(order))
	for i, idx := range order {
		sorted[i] = t.Records[idx]
	}

	return &Table{Header: t.Header, Records: sorted, schema: t.schema}
}

// WriteCSV writes the header and every record, filling absent cells with ""
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	row := make([]string, len(t.Header))
	for _, rec := range t.Records {
		for i, name := range t.Header {
			row[i] = rec.Value(name)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteJSON writes the records as an indented JSON array
func (t *Table) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(t.Records)
}
