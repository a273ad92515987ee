package exporter

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"qtodash/internal/dataprocessing"
	"qtodash/internal/presentation"
	"qtodash/internal/shared/testutil"
)

func quantityProducts(t *testing.T) *dataprocessing.Products {
	t.Helper()
	table, err := dataprocessing.ReadCSV(context.Background(), strings.NewReader(testutil.QuantityCSV), dataprocessing.ReadOptions{})
	require.NoError(t, err)
	p, err := dataprocessing.Analyze(context.Background(), table, dataprocessing.DefaultBuildOptions())
	require.NoError(t, err)
	return p
}

func TestWriteCSV(t *testing.T) {
	tests := []struct {
		name     string
		options  WriteOptions
		expected string
	}{
		{
			name:     "header and records",
			options:  WriteOptions{Headers: []string{"a", "b"}, Records: [][]string{{"1", "x,y"}}},
			expected: "a,b\n1,\"x,y\"\n",
		},
		{
			name:     "bom prefix",
			options:  WriteOptions{Headers: []string{"a"}, BOMPrefix: true},
			expected: "\ufeffa\n",
		},
		{
			name:     "records only",
			options:  WriteOptions{Records: [][]string{{"1"}, {"2"}}},
			expected: "1\n2\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteCSV(&buf, tt.options))
			assert.Equal(t, tt.expected, buf.String())
		})
	}
}

func TestCSVPresenter_Present(t *testing.T) {
	var buf bytes.Buffer
	presenter := NewCSVPresenter(nil)
	require.NoError(t, presenter.Present(context.Background(), &buf, quantityProducts(t)))
	assert.Equal(t, "text/csv; charset=utf-8", presenter.ContentType())

	data := buf.Bytes()
	require.True(t, bytes.HasPrefix(data, utf8BOM))

	records, err := csv.NewReader(bytes.NewReader(data[len(utf8BOM):])).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Category", "Volume"},
		{"Floor: Concrete 250mm", "40.25"},
		{"Basic Wall: Exterior - Brick", "30"},
		{"Basic Wall: Generic - 200mm", "20"},
		{"Structural Column: UC305x305x97", "0.75"},
		{"Other", "0"},
	}, records)
}

func TestCSVPresenter_RoundTripsThroughReader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewCSVPresenter(nil).Present(context.Background(), &buf, quantityProducts(t)))

	table, err := dataprocessing.ReadCSV(context.Background(), &buf, dataprocessing.ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Category", "Volume"}, table.Header)
	assert.Equal(t, 5, table.Len())
}

func TestXLSXPresenter_Present(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewXLSXPresenter(nil).Present(context.Background(), &buf, quantityProducts(t)))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetTopN, SheetFamilies, SheetItems, SheetTotals}, f.GetSheetList())

	top, err := f.GetRows(SheetTopN)
	require.NoError(t, err)
	assert.Equal(t, []string{"Category", "Volume"}, top[0])
	assert.Equal(t, []string{"Floor: Concrete 250mm", "40.25"}, top[1])
	assert.Equal(t, "Other", top[len(top)-1][0])

	families, err := f.GetRows(SheetFamilies)
	require.NoError(t, err)
	assert.Equal(t, []string{"Family Name", "Volume", "Count"}, families[0])
	assert.Equal(t, []string{"Basic Wall", "50", "3"}, families[1])

	totals, err := f.GetRows(SheetTotals)
	require.NoError(t, err)
	assert.Equal(t, []string{presentation.LabelTotalVolume, "91"}, totals[1])
	assert.Equal(t, []string{presentation.LabelTotalCount, "5"}, totals[2])
}

func TestXLSXPresenter_IsReadableAsUpload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewXLSXPresenter(nil).Present(context.Background(), &buf, quantityProducts(t)))

	table, err := dataprocessing.ReadXLSX(context.Background(), &buf, dataprocessing.ReadOptions{Sheet: SheetItems})
	require.NoError(t, err)
	assert.Equal(t, []string{dataprocessing.ColumnCompositeKey, "Volume", "Count"}, table.Header)
	assert.Equal(t, 4, table.Len())
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "top.csv")
	require.NoError(t, WriteFile(context.Background(), path, NewCSVPresenter(nil), quantityProducts(t)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Floor: Concrete 250mm,40.25")
}

func TestRegisterAll(t *testing.T) {
	r := presentation.NewRegistry()
	RegisterAll(r, nil)
	assert.Equal(t, []string{"csv", "json", "xlsx"}, r.Formats())
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "13.40", formatFloat(13.4))
	assert.Equal(t, "13.4", formatVolume(13.4))
	assert.Equal(t, "0.125", formatVolume(0.125))
	assert.Equal(t, "42", formatInt(42))
}
