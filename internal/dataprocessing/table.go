package dataprocessing

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Column names in a quantity schedule export
const (
	ColumnFamilyName = "Family Name"
	ColumnTypeName   = "Type Name"
	ColumnVolume     = "Volume"

	// Derived by Preprocess
	ColumnCompositeKey  = "Family Name: Type Name"
	ColumnVolumeNumeric = "Volume (m3)"
)

// RequiredColumns must all be present in the header for Preprocess to succeed
var RequiredColumns = []string{ColumnFamilyName, ColumnTypeName, ColumnVolume}

// Volume is an optional numeric volume in cubic metres
type Volume struct {
	Value float64
	Valid bool
}

// MarshalJSON encodes an invalid volume as null
func (v Volume) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.Value)
}

func (v Volume) String() string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Value, 'f', -1, 64)
}

// Record is one row of a Table. Cells holds the raw values keyed by header
// name and is never modified after the table is read.
type Record struct {
	Cells         map[string]string
	CompositeKey  string
	VolumeNumeric Volume
}

// Table is an ordered header plus ordered records
type Table struct {
	Header  []string
	Records []Record

	normalized bool
}

// NewTable builds a table from a header and positional rows. Empty header
// names become "Unnamed: <index>" and repeated names get ".1", ".2"
// suffixes. Rows shorter than the header are padded with empty cells;
// longer rows are a MalformedFile error reporting the 1-based row number,
// counting the header as row 1.
func NewTable(header []string, rows [][]string) (*Table, error) {
	t := &Table{
		Header:  normalizeHeader(header),
		Records: make([]Record, 0, len(rows)),
	}
	header = t.Header
	for i, row := range rows {
		if len(row) > len(header) {
			return nil, malformedFileError(i+2, fmt.Sprintf("row has %d fields, header has %d", len(row), len(header)), nil)
		}
		cells := make(map[string]string, len(header))
		for j, name := range header {
			if j < len(row) {
				cells[name] = row[j]
			} else {
				cells[name] = ""
			}
		}
		t.Records = append(t.Records, Record{Cells: cells})
	}
	return t, nil
}

func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	used := make(map[string]bool, len(header))
	suffix := make(map[string]int)
	for i, name := range header {
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		candidate := name
		for used[candidate] {
			suffix[name]++
			candidate = name + "." + strconv.Itoa(suffix[name])
		}
		used[candidate] = true
		out[i] = candidate
	}
	return out
}

// Len returns the number of records
func (t *Table) Len() int {
	return len(t.Records)
}

// Normalized reports whether the derived columns are populated
func (t *Table) Normalized() bool {
	return t.normalized
}

// Columns returns the header followed by the derived columns, when present
func (t *Table) Columns() []string {
	cols := append([]string(nil), t.Header...)
	if t.normalized {
		cols = append(cols, ColumnCompositeKey, ColumnVolumeNumeric)
	}
	return cols
}

// HasColumn reports whether name is addressable on this table
func (t *Table) HasColumn(name string) bool {
	if t.normalized && (name == ColumnCompositeKey || name == ColumnVolumeNumeric) {
		return true
	}
	for _, h := range t.Header {
		if h == name {
			return true
		}
	}
	return false
}

func (t *Table) missingColumns(names ...string) []string {
	var missing []string
	for _, name := range names {
		if !t.HasColumn(name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// Text returns the value of column as a group key. The volume column
// renders its numeric value.
func (r Record) Text(column string) string {
	switch column {
	case ColumnCompositeKey:
		return r.CompositeKey
	case ColumnVolumeNumeric:
		return r.VolumeNumeric.String()
	}
	return r.Cells[column]
}

// Number returns the value of column as a volume. Raw columns go through
// ParseVolume.
func (r Record) Number(column string) Volume {
	if column == ColumnVolumeNumeric {
		return r.VolumeNumeric
	}
	v, ok := ParseVolume(r.Text(column))
	return Volume{Value: v, Valid: ok}
}
