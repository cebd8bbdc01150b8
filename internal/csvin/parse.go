package csvin

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/airwarehouse/internal/core"
)

// Result is a parsed upload.
type Result struct {
	Headers []string
	Rows    []core.RawRecord
	Bytes   int64
}

// Parse reads a CSV stream whose first non-blank row is the header. Every
// following non-blank row becomes a RawRecord keyed by header, in header
// order. Empty cells and cells missing from short rows are absent values
// (nil); cells beyond the header are dropped. When a header repeats, the
// first column wins.
func Parse(r io.Reader) (*Result, error) {
	counter := NewCountingReader(NewDecodingReader(r))
	cr := csv.NewReader(counter)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	var (
		headers []string
		rows    []core.RawRecord
	)
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, fmt.Errorf("%w: line %d: %v", core.ErrInvalidCSV, pe.Line, pe.Err)
			}
			return nil, fmt.Errorf("%w: %v", core.ErrInvalidCSV, err)
		}
		if blank(fields) {
			continue
		}
		if headers == nil {
			headers = headerRow(fields)
			continue
		}
		rows = append(rows, toRecord(headers, fields))
	}

	if headers == nil {
		return nil, fmt.Errorf("%w: no header row", core.ErrEmptyUpload)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no data rows", core.ErrEmptyUpload)
	}
	return &Result{Headers: headers, Rows: rows, Bytes: counter.BytesRead}, nil
}

func headerRow(fields []string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			f = fmt.Sprintf("column_%d", i+1)
		}
		out[i] = f
	}
	return out
}

func toRecord(headers, fields []string) core.RawRecord {
	rec := core.NewRecord()
	for i, h := range headers {
		if _, dup := rec.Get(h); dup {
			continue
		}
		var v any
		if i < len(fields) && strings.TrimSpace(fields[i]) != "" {
			v = fields[i]
		}
		rec.Set(h, v)
	}
	return rec
}

func blank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
