// Package reader decodes uploaded delimited files into an ordered stream of
// raw records. Callers never see the format: they get a header row plus a
// lazy, finite, non-restartable sequence of field-name -> value maps.
package reader

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/Godfrey-Ndungu/file-ingestion-API/internal/model"
)

var (
	// ErrUnsupportedFormat is returned for extensions the reader cannot
	// decode.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrDecode wraps structural decoding failures (malformed CSV quoting,
	// corrupt workbook). Underlying I/O errors propagate without this wrapper
	// so callers can tell a read failure from bad content.
	ErrDecode = errors.New("malformed file content")
)

// RecordReader streams the data lines of one uploaded file. Next returns
// io.EOF when the sequence is exhausted; the sequence cannot be restarted.
type RecordReader interface {
	// Headers returns the declared column names from the first line.
	Headers() []string
	// Next returns the next data line as a RawRecord.
	Next() (model.RawRecord, error)
	Close() error
}

// Open picks a decoder from the declared extension ("csv", "xlsx" or legacy
// "xls", with or without a leading dot) and reads the header line eagerly so
// header validation can run before any data line is touched.
func Open(r io.Reader, ext string) (RecordReader, error) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "csv":
		return newCSVReader(r)
	case "xlsx":
		return newXLSXReader(r)
	case "xls":
		return newXLSReader(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

type csvReader struct {
	cr      *csv.Reader
	headers []string
}

func newCSVReader(r io.Reader) (*csvReader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	headers, err := cr.Read()
	if err != nil {
		return nil, headerErr(err)
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}
	return &csvReader{cr: cr, headers: headers}, nil
}

func (c *csvReader) Headers() []string { return c.headers }

func (c *csvReader) Next() (model.RawRecord, error) {
	fields, err := c.cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return nil, fmt.Errorf("read csv line: %w", err)
	}
	return zip(c.headers, fields), nil
}

func (c *csvReader) Close() error { return nil }

type xlsxReader struct {
	f       *excelize.File
	rows    *excelize.Rows
	headers []string
}

func newXLSXReader(r io.Reader) (*xlsxReader, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	// First sheet only; sheet order is the workbook's own.
	sheet := f.GetSheetName(0)
	if sheet == "" {
		f.Close()
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrDecode)
	}
	rows, err := f.Rows(sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if !rows.Next() {
		rows.Close()
		f.Close()
		return nil, fmt.Errorf("%w: missing header row", ErrDecode)
	}
	headers, err := rows.Columns()
	if err != nil {
		rows.Close()
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}
	return &xlsxReader{f: f, rows: rows, headers: headers}, nil
}

func (x *xlsxReader) Headers() []string { return x.headers }

func (x *xlsxReader) Next() (model.RawRecord, error) {
	if !x.rows.Next() {
		if err := x.rows.Error(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return nil, io.EOF
	}
	cols, err := x.rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return zip(x.headers, cols), nil
}

func (x *xlsxReader) Close() error {
	x.rows.Close()
	return x.f.Close()
}

// xlsReader decodes legacy BIFF workbooks. The format is not streamable the
// way OOXML is, so the whole workbook is held and rows are walked by index.
type xlsReader struct {
	sheet   *xls.WorkSheet
	headers []string
	cursor  int
}

func newXLSReader(r io.Reader) (*xlsReader, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read xls: %w", err)
	}
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if wb.NumSheets() == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrDecode)
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrDecode)
	}
	header := sheet.Row(0)
	if header == nil {
		return nil, fmt.Errorf("%w: missing header row", ErrDecode)
	}
	headers := xlsRow(header)
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}
	return &xlsReader{sheet: sheet, headers: headers}, nil
}

func (x *xlsReader) Headers() []string { return x.headers }

func (x *xlsReader) Next() (model.RawRecord, error) {
	x.cursor++
	if x.cursor > int(x.sheet.MaxRow) {
		return nil, io.EOF
	}
	return zip(x.headers, xlsRow(x.sheet.Row(x.cursor))), nil
}

func (x *xlsReader) Close() error { return nil }

// xlsRow flattens a BIFF row into positional cells. Missing rows and cells
// come back empty, matching how short CSV lines are padded.
func xlsRow(row *xls.Row) []string {
	if row == nil {
		return nil
	}
	out := make([]string, row.LastCol())
	for i := range out {
		out[i] = row.Col(i)
	}
	return out
}

// zip pairs headers with values; short rows yield empty strings for the
// trailing columns and extra values are ignored.
func zip(headers, values []string) model.RawRecord {
	rec := make(model.RawRecord, len(headers))
	for i, h := range headers {
		if i < len(values) {
			rec[h] = values[i]
		} else {
			rec[h] = ""
		}
	}
	return rec
}

func headerErr(err error) error {
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: empty file", ErrDecode)
	}
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return fmt.Errorf("read header: %w", err)
}
