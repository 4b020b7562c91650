package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

// LoadErrorKind classifies why a file could not be turned into a table
type LoadErrorKind string

const (
	KindIO          LoadErrorKind = "io"
	KindEncoding    LoadErrorKind = "encoding"
	KindMalformed   LoadErrorKind = "malformed"
	KindUnsupported LoadErrorKind = "unsupported"
)

// LoadError is returned by Load for every failure so callers can tell a
// bad upload apart from an internal fault.
type LoadError struct {
	Kind LoadErrorKind
	Path string
	Line int
	Err  error
}

func (e *LoadError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("load %s: %s error on line %d: %v", filepath.Base(e.Path), e.Kind, e.Line, e.Err)
	}
	return fmt.Sprintf("load %s: %s error: %v", filepath.Base(e.Path), e.Kind, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// IsLoadError reports whether err (or anything it wraps) is a *LoadError
func IsLoadError(err error) bool {
	var le *LoadError
	return errors.As(err, &le)
}

// Options controls loader behaviour
type Options struct {
	// Latin1Fallback decodes non UTF-8 CSV files as ISO-8859-1 instead of failing.
	Latin1Fallback bool
}

// DefaultOptions mirrors what spreadsheet exports usually need
func DefaultOptions() Options {
	return Options{Latin1Fallback: true}
}

// SupportedExtension reports whether Load understands the file type
func SupportedExtension(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}

// Load reads a CSV or XLSX file into a RawTable
func Load(path string, opts Options) (*RawTable, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &LoadError{Kind: KindIO, Path: path, Err: err}
		}
		t, err := ParseCSV(data, opts)
		if err != nil {
			var le *LoadError
			if errors.As(err, &le) {
				le.Path = path
			}
			return nil, err
		}
		t.Source = filepath.Base(path)
		return t, nil
	case ".xlsx":
		f, err := os.Open(path)
		if err != nil {
			return nil, &LoadError{Kind: KindIO, Path: path, Err: err}
		}
		defer f.Close()
		t, err := parseXLSX(f)
		if err != nil {
			return nil, &LoadError{Kind: KindMalformed, Path: path, Err: err}
		}
		t.Source = filepath.Base(path)
		return t, nil
	default:
		return nil, &LoadError{Kind: KindUnsupported, Path: path, Err: fmt.Errorf("extension %q is not csv or xlsx", filepath.Ext(path))}
	}
}

// ParseCSV turns raw CSV bytes into a RawTable
func ParseCSV(data []byte, opts Options) (*RawTable, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	if !utf8.Valid(data) {
		if !opts.Latin1Fallback {
			return nil, &LoadError{Kind: KindEncoding, Err: errors.New("file is not valid UTF-8")}
		}
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return nil, &LoadError{Kind: KindEncoding, Err: err}
		}
		data = decoded
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err == io.EOF {
		return nil, &LoadError{Kind: KindMalformed, Err: errors.New("file has no header row")}
	}
	if err != nil {
		return nil, csvError(err)
	}

	t := New(uniqueHeaders(headers)...)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, csvError(err)
		}
		if len(record) > len(t.Columns) {
			line, _ := reader.FieldPos(0)
			return nil, &LoadError{
				Kind: KindMalformed,
				Line: line,
				Err:  fmt.Errorf("expected %d fields, saw %d", len(t.Columns), len(record)),
			}
		}
		if isBlank(record) {
			continue
		}

		values := make([]interface{}, len(record))
		for i, v := range record {
			values[i] = v
		}
		t.Append(values...)
	}

	return t, nil
}

func parseXLSX(r io.Reader) (*RawTable, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("first sheet is empty")
	}

	t := New(uniqueHeaders(rows[0])...)
	for _, record := range rows[1:] {
		if isBlank(record) {
			continue
		}
		if len(record) > len(t.Columns) {
			record = record[:len(t.Columns)]
		}
		values := make([]interface{}, len(record))
		for i, v := range record {
			values[i] = v
		}
		t.Append(values...)
	}
	return t, nil
}

func csvError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return &LoadError{Kind: KindMalformed, Line: pe.StartLine, Err: pe.Err}
	}
	return &LoadError{Kind: KindMalformed, Err: err}
}

// uniqueHeaders names blank headers and suffixes repeated ones (.1, .2, ...)
func uniqueHeaders(raw []string) []string {
	seen := make(map[string]int, len(raw))
	out := make([]string, len(raw))
	for i, h := range raw {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("unnamed_%d", i)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n+1)
		} else {
			seen[name] = 0
		}
		out[i] = name
	}
	return out
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
