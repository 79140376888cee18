package ingest

// rows.go turns a raw tabular byte stream into a lazy sequence of
// header->value rows. The reader is single-pass and non-restartable:
// rows are decoded on demand and never retained, so memory stays
// constant regardless of file size.

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoHeader is returned when the file has no header line.
var ErrNoHeader = errors.New("no header line found")

// Row is one data row keyed by the file's own headers. Lookup is
// case-insensitive; fields missing from a ragged row read as "".
type Row struct {
	Number int // 1-based among data rows, header excluded
	fields []string
	idx    headerIndex
}

// Get returns the value under the named source header, or "" if the
// header is unknown or the row is too short.
func (r Row) Get(header string) string {
	pos, ok := r.idx[strings.ToLower(strings.TrimSpace(header))]
	if !ok || pos >= len(r.fields) {
		return ""
	}
	return strings.TrimSpace(r.fields[pos])
}

// Values returns the row as a header->value map, for preview display.
func (r Row) Values(headers []string) map[string]string {
	m := make(map[string]string, len(headers))
	for _, h := range headers {
		m[h] = r.Get(h)
	}
	return m
}

// headerIndex maps lowercased header names to their column position.
type headerIndex map[string]int

// RowReader lazily decodes CSV rows. The first record is consumed as the
// header line at construction; each Next call decodes exactly one data
// row.
type RowReader struct {
	cr      *csv.Reader
	headers []string
	idx     headerIndex
	n       int
}

// NewRowReader wraps r (after BOM/UTF-8 cleanup) and reads the header
// line. It returns ErrNoHeader when the stream is empty or the first
// line cannot be decoded.
func NewRowReader(r io.Reader) (*RowReader, error) {
	cr := csv.NewReader(sanitizeReader(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, ErrNoHeader
	}

	headers := make([]string, len(header))
	idx := make(headerIndex, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		headers[i] = h
		idx[strings.ToLower(h)] = i
	}

	return &RowReader{cr: cr, headers: headers, idx: idx}, nil
}

// Headers returns the header line in file order.
func (rr *RowReader) Headers() []string {
	return rr.headers
}

// Next returns the next data row. At end of input it returns io.EOF. A
// row that cannot be decoded is reported as a *RowError carrying its
// 1-based row number; the reader stays usable for subsequent rows.
func (rr *RowReader) Next() (Row, error) {
	fields, err := rr.cr.Read()
	if err == io.EOF {
		return Row{}, io.EOF
	}
	rr.n++
	if err != nil {
		return Row{}, &RowError{Row: rr.n, Message: fmt.Sprintf("malformed row: %v", err)}
	}
	return Row{Number: rr.n, fields: fields, idx: rr.idx}, nil
}

// Error implements the error interface so a RowError can travel through
// error returns before landing in the session's error sample.
func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}
