package dataprocessing

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Format identifies where a table came from
type Format string

const (
	FormatCSV    Format = "csv"
	FormatXLSX   Format = "xlsx"
	FormatSheets Format = "sheets"
)

// ReadOptions tune the file readers
type ReadOptions struct {
	// Delimiter forces the CSV field separator; 0 detects it from the header
	Delimiter rune
	// Sheet selects an XLSX worksheet; empty means the first one
	Sheet string
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// checkEvery is how many rows the readers process between context checks
const checkEvery = 1000

// DetectFormat maps a file name to a supported format by extension
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	default:
		return "", malformedFileError(0, fmt.Sprintf("unsupported file type %q, expected .csv or .xlsx", filepath.Ext(filename)), nil)
	}
}

// ReadTable reads r in the given format
func ReadTable(ctx context.Context, r io.Reader, format Format, opts ReadOptions) (*Table, error) {
	switch format {
	case FormatCSV:
		return ReadCSV(ctx, r, opts)
	case FormatXLSX:
		return ReadXLSX(ctx, r, opts)
	default:
		return nil, fmt.Errorf("read table: unsupported format %q", format)
	}
}

// ReadCSV reads a delimited text table. A leading UTF-8 BOM is dropped,
// blank lines are skipped and short rows are padded.
func ReadCSV(ctx context.Context, r io.Reader, opts ReadOptions) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, malformedFileError(0, "file is empty", nil)
	}

	delimiter := opts.Delimiter
	if delimiter == 0 {
		delimiter = DetectDelimiter(data)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	// schedule exports carry inch marks such as 12" in type names
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, csvError(err)
	}

	var rows [][]string
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, csvError(err)
		}
		if len(row) > len(header) {
			line, _ := reader.FieldPos(0)
			return nil, malformedFileError(line, fmt.Sprintf("row has %d fields, header has %d", len(row), len(header)), nil)
		}
		rows = append(rows, row)

		if len(rows)%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
	}

	return NewTable(header, rows)
}

func csvError(err error) error {
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return malformedFileError(parseErr.Line, parseErr.Err.Error(), err)
	}
	return malformedFileError(0, err.Error(), err)
}

// DetectDelimiter picks the most frequent of ',', ';' and tab on the first
// non-blank line, ignoring quoted text. Ties and lines with none of them
// resolve to ','.
func DetectDelimiter(data []byte) rune {
	scanner := bufio.NewScanner(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var line string
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) != "" {
			line = scanner.Text()
			break
		}
	}

	counts := map[rune]int{}
	inQuotes := false
	for _, c := range line {
		switch {
		case c == '"':
			inQuotes = !inQuotes
		case !inQuotes && (c == ',' || c == ';' || c == '\t'):
			counts[c]++
		}
	}

	best := ','
	for _, c := range []rune{';', '\t'} {
		if counts[c] > counts[best] {
			best = c
		}
	}
	return best
}

// ReadXLSX reads the selected worksheet of a workbook. Row 1 is the header.
func ReadXLSX(ctx context.Context, r io.Reader, opts ReadOptions) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, malformedFileError(0, "file is not a readable .xlsx workbook", err)
	}
	defer f.Close()

	sheet := opts.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, malformedFileError(0, "workbook has no worksheets", nil)
		}
		sheet = sheets[0]
	} else if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, malformedFileError(0, fmt.Sprintf("worksheet %q not found", sheet), err)
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, malformedFileError(0, fmt.Sprintf("failed to read worksheet %q", sheet), err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return TableFromRows(rows)
}

// TableFromRows builds a table from a grid whose first non-empty row is the
// header. Empty rows are skipped and trailing empty cells are ignored, which
// is how spreadsheet APIs return ragged ranges.
func TableFromRows(grid [][]string) (*Table, error) {
	var header []string
	var rows [][]string
	for _, row := range grid {
		row = trimTrailingEmpty(row)
		if len(row) == 0 {
			continue
		}
		if header == nil {
			header = row
			continue
		}
		rows = append(rows, row)
	}
	if header == nil {
		return nil, malformedFileError(0, "file is empty", nil)
	}
	return NewTable(header, rows)
}

func trimTrailingEmpty(row []string) []string {
	end := len(row)
	for end > 0 && strings.TrimSpace(row[end-1]) == "" {
		end--
	}
	return row[:end]
}
