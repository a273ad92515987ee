package validation

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qtodash/internal/dataprocessing"
	"qtodash/internal/shared/testutil"
)

func TestFileValidator_ValidateInputFile(t *testing.T) {
	tests := []struct {
		name          string
		setupFunc     func(t *testing.T) string
		wantFormat    dataprocessing.Format
		wantMalformed bool
		errorContains string
	}{
		{
			name: "csv export",
			setupFunc: func(t *testing.T) string {
				return testutil.WriteFixture(t, "quantities.csv", testutil.QuantityCSV)
			},
			wantFormat: dataprocessing.FormatCSV,
		},
		{
			name: "xlsx by extension",
			setupFunc: func(t *testing.T) string {
				return testutil.WriteFixture(t, "Quantities.XLSX", "PK")
			},
			wantFormat: dataprocessing.FormatXLSX,
		},
		{
			name: "missing file",
			setupFunc: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "nope.csv")
			},
			errorContains: "does not exist",
		},
		{
			name: "directory",
			setupFunc: func(t *testing.T) string {
				dir := filepath.Join(t.TempDir(), "export.csv")
				require.NoError(t, os.Mkdir(dir, 0o755))
				return dir
			},
			errorContains: "is a directory",
		},
		{
			name: "office lock file",
			setupFunc: func(t *testing.T) string {
				return testutil.WriteFixture(t, "~$quantities.xlsx", "lock")
			},
			wantMalformed: true,
			errorContains: "lock file",
		},
		{
			name: "unsupported extension",
			setupFunc: func(t *testing.T) string {
				return testutil.WriteFixture(t, "quantities.pdf", "%PDF")
			},
			wantMalformed: true,
			errorContains: "unsupported file type",
		},
		{
			name: "empty file",
			setupFunc: func(t *testing.T) string {
				return testutil.WriteFixture(t, "empty.csv", "")
			},
			wantMalformed: true,
			errorContains: "is empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, _ := testutil.NewTestLogger(t)
			v := NewFileValidator(logger)

			format, err := v.ValidateInputFile(tt.setupFunc(t))
			if tt.errorContains == "" {
				require.NoError(t, err)
				assert.Equal(t, tt.wantFormat, format)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errorContains)
			assert.Equal(t, tt.wantMalformed, errors.Is(err, dataprocessing.ErrMalformedFile))
		})
	}
}

func TestFileValidator_ValidateOutputPath(t *testing.T) {
	v := NewFileValidator(nil)

	t.Run("creates missing parents", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "reports", "2024")
		require.NoError(t, v.ValidateOutputPath(filepath.Join(dir, "summary.xlsx")))
		assert.DirExists(t, dir)

		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Empty(t, entries, "probe file must be removed")
	})

	t.Run("existing output is left alone", func(t *testing.T) {
		path := testutil.WriteFixture(t, "summary.csv", "keep")
		require.NoError(t, v.ValidateOutputPath(path))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "keep", string(data))
	})

	t.Run("directory as output", func(t *testing.T) {
		err := v.ValidateOutputPath(t.TempDir())
		assert.ErrorContains(t, err, "is a directory")
	})

	t.Run("parent is a file", func(t *testing.T) {
		parent := testutil.WriteFixture(t, "blocker", "x")
		err := v.ValidateOutputPath(filepath.Join(parent, "summary.csv"))
		assert.ErrorContains(t, err, "failed to create output directory")
	})
}
