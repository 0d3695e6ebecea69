// Package spreadsheet reads uploaded tables and writes result workbooks.
package spreadsheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/UnknownOlympus/coordtrans/internal/apperr"
	"github.com/gabriel-vasile/mimetype"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/simplifiedchinese"
)

// Format is a supported upload format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// DefaultSheet is the sheet name of written workbooks.
const DefaultSheet = "Sheet1"

// ContentType of written workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Common errors for spreadsheet reading.
var (
	ErrUnsupportedFormat = errors.New("unsupported file format, upload a .csv or .xlsx file")
	ErrUndecodable       = errors.New("cannot detect file encoding, save the file as UTF-8")
)

// csvEncodings are tried in order after UTF-8.
var csvEncodings = []encoding.Encoding{
	simplifiedchinese.GB18030, // superset of GBK and GB2312
	charmap.ISO8859_1,
}

// Table is a parsed sheet: a header row and data rows padded to the header width.
type Table struct {
	Header []string
	Rows   [][]string
}

// FormatOf picks the format from a file name.
func FormatOf(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	default:
		return "", apperr.Wrap(apperr.KindValidation, ErrUnsupportedFormat.Error(), ErrUnsupportedFormat)
	}
}

// Read parses an uploaded file. maxSize <= 0 disables the size check.
func Read(filename string, data []byte, maxSize int64) (*Table, error) {
	const op = "read spreadsheet"

	format, err := FormatOf(filename)
	if err != nil {
		return nil, err
	}

	if len(data) == 0 {
		return nil, apperr.Validation("file is empty").WithOp(op)
	}
	if maxSize > 0 && int64(len(data)) > maxSize {
		return nil, apperr.Capacity("file too large, maximum is " + humanSize(maxSize)).WithOp(op)
	}

	var rows [][]string
	switch format {
	case FormatXLSX:
		rows, err = readXLSX(data)
	case FormatCSV:
		rows, err = readCSV(data)
	}
	if err != nil {
		return nil, err
	}

	return newTable(rows)
}

func humanSize(n int64) string {
	const mb = 1024 * 1024
	if n >= mb && n%mb == 0 {
		return fmt.Sprintf("%dMB", n/mb)
	}

	return fmt.Sprintf("%d bytes", n)
}

func readXLSX(data []byte) ([][]string, error) {
	const op = "read xlsx"

	if !isZip(data) {
		return nil, apperr.Validation("file content is not an xlsx workbook").WithOp(op)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "failed to open workbook", err).WithOp(op)
	}
	defer f.Close()

	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, apperr.Validation("no sheets found in workbook").WithOp(op)
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "failed to read rows", err).WithOp(op)
	}

	return rows, nil
}

func readCSV(data []byte) ([][]string, error) {
	const op = "read csv"

	// A workbook renamed to .csv.
	if isZip(data) {
		return nil, apperr.Validation("file content is not csv text").WithOp(op)
	}

	text, err := decodeText(data)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err.Error(), err).WithOp(op)
	}

	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "failed to parse csv", err).WithOp(op)
	}

	return rows, nil
}

// isZip reports whether data is a zip container, xlsx included.
func isZip(data []byte) bool {
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		if m.Is("application/zip") {
			return true
		}
	}

	return false
}

// decodeText converts raw CSV bytes to UTF-8, trying UTF-8 first and then the legacy Chinese encodings.
func decodeText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data), nil
	}

	for _, candidate := range csvEncodings {
		decoded, err := candidate.NewDecoder().Bytes(data)
		if err != nil {
			continue
		}
		// Decoders substitute U+FFFD for bytes they cannot map.
		if bytes.ContainsRune(decoded, utf8.RuneError) {
			continue
		}
		return string(decoded), nil
	}

	return "", ErrUndecodable
}

func newTable(rows [][]string) (*Table, error) {
	// Skip leading blank lines.
	for len(rows) > 0 && blank(rows[0]) {
		rows = rows[1:]
	}
	if len(rows) == 0 {
		return nil, apperr.Validation("file has no header row").WithOp("read spreadsheet")
	}

	width := len(rows[0])
	for _, row := range rows[1:] {
		width = max(width, len(row))
	}

	header := make([]string, width)
	for idx := range header {
		var name string
		if idx < len(rows[0]) {
			name = strings.TrimSpace(strings.TrimPrefix(rows[0][idx], "\ufeff"))
		}
		if name == "" {
			name = fmt.Sprintf("column_%d", idx+1)
		}
		header[idx] = name
	}

	table := &Table{Header: header, Rows: make([][]string, 0, len(rows)-1)}
	for _, row := range rows[1:] {
		if blank(row) {
			continue
		}
		padded := make([]string, width)
		copy(padded, row)
		table.Rows = append(table.Rows, padded)
	}

	return table, nil
}

func blank(row []string) bool {
	for _, value := range row {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}

	return true
}

// Write serializes a table into a single-sheet xlsx workbook.
func Write(table *Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteTo(&buf, table); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// WriteTo streams a single-sheet xlsx workbook into w.
func WriteTo(w io.Writer, table *Table) error {
	const op = "write spreadsheet"

	f := excelize.NewFile()
	defer f.Close()

	header := append([]string(nil), table.Header...)
	if err := f.SetSheetRow(DefaultSheet, "A1", &header); err != nil {
		return apperr.Internal("failed to write header", err).WithOp(op)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return apperr.Internal("failed to create header style", err).WithOp(op)
	}
	if err = f.SetRowStyle(DefaultSheet, 1, 1, bold); err != nil {
		return apperr.Internal("failed to style header", err).WithOp(op)
	}

	for idx, row := range table.Rows {
		cell, err := excelize.CoordinatesToCellName(1, idx+2)
		if err != nil {
			return apperr.Internal("failed to address row", err).WithOp(op)
		}
		values := append([]string(nil), row...)
		if err = f.SetSheetRow(DefaultSheet, cell, &values); err != nil {
			return apperr.Internal("failed to write row", err).WithOp(op)
		}
	}

	if err = f.Write(w); err != nil {
		return apperr.Internal("failed to serialize workbook", err).WithOp(op)
	}

	return nil
}
